package refiner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/valpere/booktran/internal/postprocess"
)

// defaultTimeout bounds one generation request. Large chunks on big
// models can legitimately take tens of minutes.
const defaultTimeout = 30 * time.Minute

// OllamaRefiner polishes machine translations with a locally hosted
// Ollama model.
type OllamaRefiner struct {
	model   string
	baseURL string
	client  *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// NewOllamaRefiner creates a refiner for the given model. A nil client
// gets a pooled default with the long generation timeout.
func NewOllamaRefiner(model, baseURL string, client *http.Client) *OllamaRefiner {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &OllamaRefiner{
		model:   model,
		baseURL: baseURL,
		client:  client,
	}
}

// Refine sends the machine-translated chunk with the target-language
// instruction and returns the model's trimmed output. An empty response
// falls back to the input text.
func (r *OllamaRefiner) Refine(ctx context.Context, targetLang, text string) (string, error) {
	reqBody := generateRequest{
		Model:  r.model,
		Prompt: buildPrompt(targetLang, text),
		Stream: false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal refinement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/generate", r.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create refinement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refinement request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refiner returned status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode refinement response: %w", err)
	}

	refined := postprocess.Clean(genResp.Response)
	if refined == "" {
		return text, nil
	}
	return refined, nil
}

// ListModels returns the model identifiers available on the endpoint.
func (r *OllamaRefiner) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/tags", r.baseURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model listing failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model listing returned status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Ping checks endpoint reachability with a short deadline, independent of
// the long generation timeout.
func (r *OllamaRefiner) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.ListModels(ctx)
	return err
}
