package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// UploadService submits finished form-instance snapshots to the external
// collection sink. Exactly one submission happens per completed form.
type UploadService struct {
	BaseURL string
	Client  *http.Client
}

// Submit uploads one finished instance snapshot as XML.
func (s *UploadService) Submit(ctx context.Context, instanceXML string) error {
	if s == nil || s.BaseURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/submission", strings.NewReader(instanceXML))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml")

	client := s.Client
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
		return fmt.Errorf("upload submission: status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
