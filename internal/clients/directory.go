package clients

import (
	"context"
	"net/http"
	"net/url"
)

// DirectoryService resolves bots in the campaign directory: display names
// and the first form of a bot, used when a finished form chains into a
// successor bot.
type DirectoryService struct {
	BaseURL string
	Client  *http.Client
}

// BotNameByID returns the display name of a bot.
func (s *DirectoryService) BotNameByID(ctx context.Context, botID string) (string, error) {
	var out struct {
		Name string `json:"name"`
	}
	u := s.BaseURL + "/bots/" + url.PathEscape(botID)
	if err := doJSON(ctx, s.Client, http.MethodGet, u, nil, &out); err != nil {
		return "", err
	}
	return out.Name, nil
}

// FirstFormByBotID returns the form ID a bot's conversation starts with.
func (s *DirectoryService) FirstFormByBotID(ctx context.Context, botID string) (string, error) {
	var out struct {
		FormID string `json:"formID"`
	}
	u := s.BaseURL + "/bots/" + url.PathEscape(botID) + "/first-form"
	if err := doJSON(ctx, s.Client, http.MethodGet, u, nil, &out); err != nil {
		return "", err
	}
	return out.FormID, nil
}
