package internal

import "time"

// Status is the lifecycle state of a translation job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Pipeline stage names carried on progress events.
const (
	StageMachineTranslation = "machine_translation"
	StageLiteraryRefinement = "literary_refinement"
)

// Job is one end-to-end document translation request. Progress is tracked
// over 2N units for N text chunks: one unit per chunk for the machine pass
// and one for the refinement pass, so the visible progress bar reflects
// both stages.
type Job struct {
	ID                 string    `json:"id"`
	Filename           string    `json:"filename"`
	SourceLang         string    `json:"source_lang"`
	TargetLang         string    `json:"target_lang"`
	Model              string    `json:"model"`
	Status             Status    `json:"status"`
	Progress           float64   `json:"progress"`
	CurrentChunk       int       `json:"current_chunk"`
	TotalChunks        int       `json:"total_chunks"`
	OriginalText       string    `json:"original_text,omitempty"`
	MachineTranslation string    `json:"machine_translation,omitempty"`
	TranslatedText     string    `json:"translated_text,omitempty"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	LLMRefine          bool      `json:"llm_refine"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ChunkRecord is the per-segment processing state kept alongside a job.
// The pipeline recomputes segmentation from the original text on each run;
// these rows exist so recovery can selectively re-open failed segments.
type ChunkRecord struct {
	JobID              string `json:"job_id"`
	ChunkNumber        int    `json:"chunk_number"`
	OriginalText       string `json:"original_text,omitempty"`
	MachineTranslation string `json:"machine_translation,omitempty"`
	TranslatedText     string `json:"translated_text,omitempty"`
	Status             Status `json:"status"`
	ErrorMessage       string `json:"error_message,omitempty"`
	Attempts           int    `json:"attempts"`
}

// ProgressEvent is one message on a job's ordered progress stream.
// Stage events carry CurrentChunk in 1..2N; the terminal event carries
// either Status "completed" with the full accumulated texts, or Error.
type ProgressEvent struct {
	Progress           float64 `json:"progress"`
	Stage              string  `json:"stage,omitempty"`
	Status             Status  `json:"status,omitempty"`
	CurrentChunk       int     `json:"current_chunk,omitempty"`
	TotalChunks        int     `json:"total_chunks,omitempty"`
	MachineTranslation string  `json:"machine_translation,omitempty"`
	TranslatedText     string  `json:"translated_text,omitempty"`
	Error              string  `json:"error,omitempty"`
}

// Terminal reports whether the event closes the stream.
func (e ProgressEvent) Terminal() bool {
	return e.Status == StatusCompleted || e.Error != ""
}
