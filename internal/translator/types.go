// Package translator wraps external machine translation providers behind
// a single synchronous interface. This is Stage 1 of the pipeline: fast,
// non-LLM translation of one chunk at a time.
package translator

import "context"

// Request carries one chunk to a provider.
type Request struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// Service is a thin synchronous client for one translation provider.
// Transient network failures surface as errors and are job-fatal unless
// the caller retries.
type Service interface {
	Name() string
	Translate(ctx context.Context, req Request) (string, error)
}
