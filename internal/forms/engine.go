// Package forms wraps the external form traversal engine behind a typed,
// stateless contract and provides the helpers around it: position-marker
// classification, form definition lookup, and instance snapshot editing.
//
// The engine itself is a black box. The gateway only relies on the
// start/resume operation: given a form, an optional prior position and
// instance snapshot, and the new answer, the engine returns the next
// question, the updated snapshot, and the new position marker.
package forms

import (
	"context"

	"github.com/convoforms/go-form-gateway/internal/wire"
)

// QuestionDescriptor identifies one rendered form question.
type QuestionDescriptor struct {
	FormID       string `json:"formID"`
	FormVersion  string `json:"formVersion"`
	XPath        string `json:"xPath"`
	QuestionType string `json:"questionType,omitempty"`
	Meta         string `json:"meta,omitempty"`
}

// TraversalResult is the outcome of one engine invocation. It is ephemeral:
// consumed to update conversation state and build the reply, never persisted
// as-is.
type TraversalResult struct {
	Question             *QuestionDescriptor `json:"question"`
	NextMessage          *wire.Payload       `json:"nextMessage"`
	CurrentIndex         string              `json:"currentIndex"`
	CurrentResponseState string              `json:"currentResponseState"`
	FormVersion          string              `json:"formVersion"`
	ConversationLevel    []int               `json:"conversationLevel,omitempty"`
}

// StartRequest carries everything one traversal step needs. Answer is nil
// when starting a fresh session and set (possibly to "") when resuming with
// a user reply. All prior state is threaded explicitly; the engine holds
// nothing between calls.
type StartRequest struct {
	FormID       string        `json:"formID"`
	FormPath     string        `json:"formPath"`
	PreviousPath string        `json:"previousPath,omitempty"`
	Answer       *string       `json:"answer,omitempty"`
	InstanceXML  string        `json:"instanceXML,omitempty"`
	UserID       string        `json:"userID"`
	App          string        `json:"app"`
	Payload      *wire.Payload `json:"payload,omitempty"`
}

// QuestionLookup addresses a single already-rendered question.
type QuestionLookup struct {
	FormID   string `json:"formID"`
	FormPath string `json:"formPath"`
	XPath    string `json:"xPath"`
}

// Engine is the start/resume contract of the external traversal engine.
type Engine interface {
	// Start runs one traversal step and returns the next question.
	Start(ctx context.Context, req StartRequest) (*TraversalResult, error)

	// QuestionAt resolves a previously rendered question and its payload by
	// position marker. The payload carries the flow identifier and question
	// index used by drop-off telemetry.
	QuestionAt(ctx context.Context, req QuestionLookup) (*QuestionDescriptor, *wire.Payload, error)
}
