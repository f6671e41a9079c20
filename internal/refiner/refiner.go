// Package refiner implements Stage 2 of the translation pipeline: an
// LLM quality pass over a machine-translated chunk.
package refiner

import "context"

// Refiner rewrites a machine translation to sound natural in the target
// language.
type Refiner interface {
	Refine(ctx context.Context, targetLang, text string) (string, error)
}
