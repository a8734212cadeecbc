package forms

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/convoforms/go-form-gateway/internal/wire"
)

// HiddenField is one entry of a conversation descriptor's hiddenFields meta:
// a form field filled without asking the user. Value is the configured
// fallback; a profile document with a matching key overrides it.
type HiddenField struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// ParseHiddenFields decodes the hiddenFields descriptor meta (a JSON array).
func ParseHiddenFields(raw string) ([]HiddenField, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []HiddenField
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveHiddenField returns fields without the entry named name.
func RemoveHiddenField(fields []HiddenField, name string) []HiddenField {
	out := make([]HiddenField, 0, len(fields))
	for _, f := range fields {
		if f.Name != name {
			out = append(out, f)
		}
	}
	return out
}

// xmlNode is a generic mutable XML element tree, round-trippable through
// encoding/xml.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

// Instance is a parsed form-instance snapshot: the serialized blob of
// currently-filled field values produced by the engine. Fields are direct
// children of the document root and are addressed by local element name.
type Instance struct {
	root xmlNode
}

// ParseInstance decodes an instance snapshot.
func ParseInstance(snapshot string) (*Instance, error) {
	var root xmlNode
	if err := xml.Unmarshal([]byte(snapshot), &root); err != nil {
		return nil, err
	}
	normalize(&root)
	return &Instance{root: root}, nil
}

// normalize trims mixed-content whitespace so that elements with children
// serialize without stray chardata.
func normalize(n *xmlNode) {
	n.Text = strings.TrimSpace(n.Text)
	if len(n.Children) > 0 {
		n.Text = ""
	}
	for i := range n.Children {
		normalize(&n.Children[i])
	}
}

// SetField sets (or creates) a top-level field value.
func (in *Instance) SetField(name, value string) {
	for i := range in.root.Children {
		if in.root.Children[i].XMLName.Local == name {
			in.root.Children[i].Text = value
			in.root.Children[i].Children = nil
			return
		}
	}
	in.root.Children = append(in.root.Children, xmlNode{
		XMLName: xml.Name{Local: name},
		Text:    value,
	})
}

// Field returns a top-level field value, or "" when absent.
func (in *Instance) Field(name string) string {
	for i := range in.root.Children {
		if in.root.Children[i].XMLName.Local == name {
			return in.root.Children[i].Text
		}
	}
	return ""
}

// SetAdapterProperties stamps the delivery channel and provider into the
// snapshot so the finished instance records where the conversation ran.
func (in *Instance) SetAdapterProperties(channel, provider string) {
	in.SetField("channel", channel)
	in.SetField("provider", provider)
}

// MergeHiddenFields fills each hidden field, preferring the value found in
// the profile document over the configured fallback. Unknown profile keys
// are ignored; fields with neither source keep an empty value.
func (in *Instance) MergeHiddenFields(fields []HiddenField, doc map[string]any) {
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		val := f.Value
		if doc != nil {
			if v, ok := doc[f.Name]; ok {
				val = stringify(v)
			}
		}
		in.SetField(f.Name, val)
	}
}

// XML renders the snapshot with the standard XML prolog.
func (in *Instance) XML() (string, error) {
	body, err := xml.Marshal(in.root)
	if err != nil {
		return "", err
	}
	return wire.XMLPrefix + string(body), nil
}

// stringify renders a decoded JSON value the way it appeared on the wire.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
