// Package wire defines the XML message envelope exchanged with the queue
// transport and the helpers to encode and decode it. One envelope is one
// conversation turn: sender/receiver identity, the user's payload
// (text, media, or location), delivery lifecycle state, and the conversation
// logic descriptor that names the form to run.
package wire

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"
)

// XMLPrefix is prepended to every serialized envelope and instance snapshot.
const XMLPrefix = `<?xml version="1.0" encoding="UTF-8"?>`

// MessageState is the delivery lifecycle state of an envelope.
type MessageState string

// Lifecycle states carried on the wire.
const (
	StateNotSent   MessageState = "NOT_SENT"
	StateSent      MessageState = "SENT"
	StateDelivered MessageState = "DELIVERED"
	StateReplied   MessageState = "REPLIED"
	StateOptedIn   MessageState = "OPTED_IN"
)

// Endpoint identifies one side of the conversation.
type Endpoint struct {
	UserID            string `xml:"userID"`
	DeviceID          string `xml:"deviceID,omitempty"`
	EncryptedDeviceID string `xml:"encryptedDeviceID,omitempty"`
}

// MessageID carries the internal and channel-assigned identifiers of a turn.
type MessageID struct {
	ID               string `xml:"id,omitempty"`
	ChannelMessageID string `xml:"channelMessageID,omitempty"`
}

// Media is an attachment reference in a payload.
type Media struct {
	URL      string `xml:"url"`
	Category string `xml:"category,omitempty"`
}

// Location is a geographic payload.
type Location struct {
	Latitude  float64 `xml:"latitude"`
	Longitude float64 `xml:"longitude"`
	Address   string  `xml:"address,omitempty"`
	Name      string  `xml:"name,omitempty"`
	URL       string  `xml:"url,omitempty"`
}

// Payload is the user-visible content of a turn: exactly one of text, media,
// or location on inbound messages; rendered question content on outbound
// ones. Flow and QuestionIndex are set by the form engine on rendered
// questions and drive drop-off telemetry.
type Payload struct {
	Text          string    `xml:"text,omitempty"`
	Media         *Media    `xml:"media,omitempty"`
	Location      *Location `xml:"location,omitempty"`
	Flow          string    `xml:"flow,omitempty"`
	QuestionIndex *int      `xml:"questionIndex,omitempty"`
	StylingTag    string    `xml:"stylingTag,omitempty"`
}

// MetaEntry is one key/value pair of a transformer descriptor.
type MetaEntry struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// Transformer is the conversation-logic descriptor attached to an envelope.
// Meta carries the form binding (formID, botId, startingMessage, hiddenFields,
// botOwnerOrgID) as opaque string pairs.
type Transformer struct {
	ID   string      `xml:"id,attr"`
	Meta []MetaEntry `xml:"meta"`
}

// MetaValue returns the value stored under key, or "" when the key is
// missing or holds an empty value.
func (t Transformer) MetaValue(key string) string {
	for _, m := range t.Meta {
		if m.Name == key && m.Value != "" {
			return m.Value
		}
	}
	return ""
}

// Message is one turn on the wire.
type Message struct {
	XMLName           xml.Name      `xml:"xMessage"`
	App               string        `xml:"app"`
	Channel           string        `xml:"channel"`
	Provider          string        `xml:"provider"`
	MessageState      MessageState  `xml:"messageState"`
	MessageID         MessageID     `xml:"messageId"`
	From              Endpoint      `xml:"from"`
	To                Endpoint      `xml:"to"`
	Payload           *Payload      `xml:"payload,omitempty"`
	ConversationLevel []int         `xml:"conversationLevel>level"`
	Transformers      []Transformer `xml:"transformers>transformer"`
	Timestamp         int64         `xml:"timestamp,omitempty"`
}

// Parse decodes an XML envelope.
func Parse(data []byte) (*Message, error) {
	var m Message
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ToXML encodes the envelope with the standard XML prolog.
func (m *Message) ToXML() ([]byte, error) {
	body, err := xml.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte(XMLPrefix), body...), nil
}

// Clone round-trips the envelope through its wire encoding. Replies are
// always normalized this way before being published so that the outbound
// object carries no in-memory state the encoding would not preserve.
func (m *Message) Clone() (*Message, error) {
	raw, err := m.ToXML()
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Transformer returns the first conversation-logic descriptor, or false when
// the envelope carries none.
func (m *Message) Transformer() (Transformer, bool) {
	if len(m.Transformers) == 0 {
		return Transformer{}, false
	}
	return m.Transformers[0], true
}

// LocationText renders a location payload as the answer string
// "{lat} {lon} [address] [name] [url]", appending each optional component
// only when non-empty, and trims the result.
func LocationText(loc *Location) string {
	if loc == nil {
		return ""
	}
	text := formatCoord(loc.Latitude) + " " + formatCoord(loc.Longitude)
	if loc.Address != "" {
		text += " " + loc.Address
	}
	if loc.Name != "" {
		text += " " + loc.Name
	}
	if loc.URL != "" {
		text += " " + loc.URL
	}
	return strings.TrimSpace(text)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
