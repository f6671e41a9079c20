package refiner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaRefiner_Refine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Model != "aya-expanse:32b" {
			t.Errorf("expected model 'aya-expanse:32b', got %q", req.Model)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		if !strings.Contains(req.Prompt, "Привіт світ") {
			t.Errorf("prompt missing draft text: %q", req.Prompt)
		}
		// Ukrainian is outside the closed prompt set; English instruction applies.
		if !strings.HasPrefix(req.Prompt, "Improve this text") {
			t.Errorf("expected English fallback instruction, got %q", req.Prompt)
		}

		json.NewEncoder(w).Encode(generateResponse{Response: "  Привіт, світе!  "})
	}))
	defer server.Close()

	r := NewOllamaRefiner("aya-expanse:32b", server.URL, server.Client())

	refined, err := r.Refine(context.Background(), "uk", "Привіт світ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refined != "Привіт, світе!" {
		t.Errorf("expected trimmed response, got %q", refined)
	}
}

func TestOllamaRefiner_Refine_LanguagePrompt(t *testing.T) {
	var seenPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		seenPrompt = req.Prompt
		json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer server.Close()

	r := NewOllamaRefiner("m", server.URL, server.Client())

	if _, err := r.Refine(context.Background(), "DE", "Guten Tag"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(seenPrompt, "Verbessern Sie diesen Text") {
		t.Errorf("expected German instruction for target 'DE', got %q", seenPrompt)
	}
	if !strings.HasSuffix(seenPrompt, "Guten Tag") {
		t.Errorf("expected draft appended verbatim, got %q", seenPrompt)
	}
}

func TestOllamaRefiner_Refine_EmptyResponseFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: "   "})
	}))
	defer server.Close()

	r := NewOllamaRefiner("m", server.URL, server.Client())

	refined, err := r.Refine(context.Background(), "en", "original draft")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refined != "original draft" {
		t.Errorf("expected fallback to draft, got %q", refined)
	}
}

func TestOllamaRefiner_Refine_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := NewOllamaRefiner("m", server.URL, server.Client())

	if _, err := r.Refine(context.Background(), "en", "text"); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestOllamaRefiner_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3.2"},{"name":"aya-expanse:32b"}]}`))
	}))
	defer server.Close()

	r := NewOllamaRefiner("m", server.URL, server.Client())

	models, err := r.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 || models[0] != "llama3.2" || models[1] != "aya-expanse:32b" {
		t.Errorf("unexpected model list: %v", models)
	}
}

func TestBuildPrompt_Fallback(t *testing.T) {
	p := buildPrompt("sw", "habari")
	if !strings.HasPrefix(p, refinementPrompts["en"]) {
		t.Errorf("expected English fallback for unsupported language, got %q", p)
	}
}
