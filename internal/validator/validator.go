// Package validator checks translation request inputs before a job row
// is created. Rejected requests leave no trace in the job store.
package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// MaxTextBytes caps the accepted document size.
const MaxTextBytes = 32 << 20

// Request carries the user-supplied fields of a translation submission.
type Request struct {
	Filename   string
	SourceLang string
	TargetLang string
	Model      string
	Text       string
}

// Validate returns a user-facing error for the first violated rule.
//
// SourceLang may be "auto" to let the translation provider detect the
// source; every other tag must parse as BCP 47.
func Validate(r Request) error {
	if r.Filename == "" {
		return fmt.Errorf("no selected file")
	}
	if r.SourceLang == "" || r.TargetLang == "" || r.Model == "" {
		return fmt.Errorf("missing required parameters")
	}
	if r.SourceLang != "auto" {
		if _, err := language.Parse(r.SourceLang); err != nil {
			return fmt.Errorf("invalid source language %q", r.SourceLang)
		}
	}
	if _, err := language.Parse(r.TargetLang); err != nil {
		return fmt.Errorf("invalid target language %q", r.TargetLang)
	}
	if !utf8.ValidString(r.Text) {
		return fmt.Errorf("text is not valid UTF-8")
	}
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("file is empty")
	}
	if len(r.Text) > MaxTextBytes {
		return fmt.Errorf("text exceeds %d bytes", MaxTextBytes)
	}
	return nil
}
