package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ProfileDocument is the federated user profile as returned by the profile
// service: an open JSON object. Hidden-field merging reads top-level keys;
// the candidate-selection flow reads the "matched" array.
type ProfileDocument map[string]any

// Candidates returns the externally-fetched candidate records under the
// document's "matched" key, each with its identifying "detail" object.
func (d ProfileDocument) Candidates() []map[string]any {
	raw, ok := d["matched"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// CandidateByID scans the matched candidates for the one whose detail "id"
// renders to id, and returns that detail object. Returns nil when no
// candidate matches.
func (d ProfileDocument) CandidateByID(id string) map[string]any {
	for _, c := range d.Candidates() {
		detail, ok := c["detail"].(map[string]any)
		if !ok {
			continue
		}
		switch v := detail["id"].(type) {
		case string:
			if v == id {
				return detail
			}
		case float64:
			if strconv.FormatFloat(v, 'f', -1, 64) == id {
				return detail
			}
		}
	}
	return nil
}

// ProfileService looks up federated user profiles by phone.
type ProfileService struct {
	BaseURL string
	Client  *http.Client
}

// UserByPhone fetches the profile document for userID in the scope of botID.
// A missing or failing profile service yields (nil, err); callers treat the
// profile as optional enrichment and continue without it.
func (s *ProfileService) UserByPhone(ctx context.Context, botID, userID string) (ProfileDocument, error) {
	if s == nil || s.BaseURL == "" {
		return nil, nil
	}
	var doc ProfileDocument
	u := s.BaseURL + "/users/by-phone?bot=" + url.QueryEscape(botID) + "&phone=" + url.QueryEscape(userID)
	if err := doJSON(ctx, s.Client, http.MethodGet, u, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
