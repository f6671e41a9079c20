package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultMyMemoryURL = "https://api.mymemory.translated.net"

// MyMemoryService translates through the free MyMemory API. Useful as a
// no-credentials provider for small volumes (5000 chars/day anonymous).
type MyMemoryService struct {
	email   string
	baseURL string
	client  *http.Client
}

// NewMyMemoryService creates a MyMemory client. Supplying an email raises
// the daily quota. A nil client gets a pooled default with a 30s timeout.
func NewMyMemoryService(email string, client *http.Client) *MyMemoryService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &MyMemoryService{
		email:   email,
		baseURL: defaultMyMemoryURL,
		client:  client,
	}
}

func (s *MyMemoryService) Name() string {
	return "mymemory"
}

func (s *MyMemoryService) Translate(ctx context.Context, req Request) (string, error) {
	sourceLang := req.SourceLang
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "en"
	}

	q := url.Values{}
	q.Set("q", req.Text)
	q.Set("langpair", fmt.Sprintf("%s|%s", sourceLang, req.TargetLang))
	if s.email != "" {
		q.Set("de", s.email)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/get?%s", s.baseURL, q.Encode()), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var mymemResp struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
		ResponseStatus  int    `json:"responseStatus"`
		ResponseDetails string `json:"responseDetails"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&mymemResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if mymemResp.ResponseStatus != 200 {
		return "", fmt.Errorf("API error: %s (%d)", mymemResp.ResponseDetails, mymemResp.ResponseStatus)
	}

	return mymemResp.ResponseData.TranslatedText, nil
}
