/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/booktran/internal"
	"github.com/valpere/booktran/internal/engine"
	"github.com/valpere/booktran/internal/jobstore"
)

var (
	inputFile     string
	outputFile    string
	sourceLang    string
	targetLang    string
	refineModel   string
	useRefine     bool
	chunkInterval time.Duration
	maxChunkChars int
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a text file",
	Long: `Translate a text file in two stages: machine translation followed
by an optional LLM literary refinement pass.

The text is split into chunks, each chunk is checked against the
translation memory cache, and the job is checkpointed after every chunk
so a failed run can be retried with "booktran jobs retry".

Example:
  booktran translate -i book.txt -o book.uk.txt -s en -t uk --refine`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		text := string(data)

		log, err := newLogger()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync()

		svcs, err := buildServices(engine.Config{
			ChunkInterval: chunkInterval,
			MaxChunkChars: maxChunkChars,
		}, log)
		if err != nil {
			return err
		}
		defer svcs.close()

		ctx := context.Background()
		job, err := svcs.store.Create(ctx, jobstore.CreateParams{
			Filename:     filepath.Base(inputFile),
			SourceLang:   sourceLang,
			TargetLang:   targetLang,
			Model:        refineModel,
			OriginalText: text,
			LLMRefine:    useRefine,
		})
		if err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}

		var result string
		err = svcs.engine.Run(ctx, engine.Params{
			JobID:      job.ID,
			Text:       text,
			SourceLang: sourceLang,
			TargetLang: targetLang,
			Model:      refineModel,
			Refine:     useRefine,
		}, func(ev internal.ProgressEvent) {
			if ev.Terminal() {
				result = ev.TranslatedText
				return
			}
			fmt.Fprintf(os.Stderr, "\r%s %d/%d (%.1f%%)",
				ev.Stage, ev.CurrentChunk, ev.TotalChunks, ev.Progress)
		})
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("translation failed (job %s): %w", job.ID, err)
		}

		if dir := filepath.Dir(outputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := os.WriteFile(outputFile, []byte(result), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Translation written to %s (job %s)\n", outputFile, job.ID)
		return nil
	},
}

func init() {
	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "input text file (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output text file (required)")
	translateCmd.Flags().StringVarP(&sourceLang, "source", "s", "auto", "source language code")
	translateCmd.Flags().StringVarP(&targetLang, "target", "t", "", "target language code (required)")
	translateCmd.Flags().StringVarP(&refineModel, "model", "m", "mistral", "Ollama model for the refinement pass")
	translateCmd.Flags().BoolVar(&useRefine, "refine", false, "enable the literary refinement pass")
	translateCmd.Flags().DurationVar(&chunkInterval, "chunk-interval", time.Second, "pacing delay between chunks")
	translateCmd.Flags().IntVar(&maxChunkChars, "max-chunk-chars", 0, "chunk size ceiling in characters (0 for default)")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
	translateCmd.MarkFlagRequired("target")

	rootCmd.AddCommand(translateCmd)
}
