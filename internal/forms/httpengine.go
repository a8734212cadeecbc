package forms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/convoforms/go-form-gateway/internal/wire"
)

// HTTPEngine talks to the traversal engine service over JSON/HTTP.
// It implements Engine.
type HTTPEngine struct {
	BaseURL string
	Client  *http.Client
}

// Start posts one traversal step to /traverse.
func (e *HTTPEngine) Start(ctx context.Context, req StartRequest) (*TraversalResult, error) {
	var out TraversalResult
	if err := e.post(ctx, "/traverse", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QuestionAt posts a question lookup to /question.
func (e *HTTPEngine) QuestionAt(ctx context.Context, req QuestionLookup) (*QuestionDescriptor, *wire.Payload, error) {
	var out struct {
		Question *QuestionDescriptor `json:"question"`
		Payload  *wire.Payload       `json:"payload"`
	}
	if err := e.post(ctx, "/question", req, &out); err != nil {
		return nil, nil, err
	}
	return out.Question, out.Payload, nil
}

func (e *HTTPEngine) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("engine %s: status %d: %s", path, resp.StatusCode, string(raw))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
