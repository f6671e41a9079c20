package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/valpere/booktran/internal"
	"github.com/valpere/booktran/internal/engine"
	"github.com/valpere/booktran/internal/jobstore"
	"github.com/valpere/booktran/internal/monitor"
	"github.com/valpere/booktran/internal/validator"
)

const maxUploadBytes = 32 << 20

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file part")
		return
	}
	defer file.Close()

	sourceLang := r.FormValue("sourceLanguage")
	targetLang := r.FormValue("targetLanguage")
	model := r.FormValue("model")
	llmRefine := r.FormValue("llmRefine") == "true"

	text, err := decodeUpload(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validator.Validate(validator.Request{
		Filename:   header.Filename,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Model:      model,
		Text:       text,
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.store.Create(r.Context(), jobstore.CreateParams{
		Filename:     header.Filename,
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		Model:        model,
		OriginalText: text,
		LLMRefine:    llmRefine,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info("translation accepted",
		zap.String("job_id", job.ID),
		zap.String("filename", job.Filename),
		zap.String("source_lang", sourceLang),
		zap.String("target_lang", targetLang),
		zap.Bool("llm_refine", llmRefine))

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The job runs detached from the request: once started it goes to
	// completion or failure even if the client drops the stream.
	events := s.engine.Start(context.Background(), engine.Params{
		JobID:      job.ID,
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Model:      model,
		Refine:     llmRefine,
	})

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("failed to encode progress event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-r.Context().Done():
			s.log.Info("client dropped progress stream",
				zap.String("job_id", job.ID))
			go drain(events)
			return
		}
	}
}

// drain keeps consuming events so the detached engine run never blocks
// on an abandoned channel.
func drain(events <-chan internal.ProgressEvent) {
	for range events {
	}
}

// decodeUpload reads the uploaded document as UTF-8, falling back to
// Windows-1251 for legacy Cyrillic texts. Documents over the size cap
// are rejected outright, never clipped.
func decodeUpload(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return "", fmt.Errorf("file exceeds %d bytes", maxUploadBytes)
	}

	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("file is not valid UTF-8 or Windows-1251 text")
	}
	return string(decoded), nil
}

func (s *Server) handleListTranslations(w http.ResponseWriter, r *http.Request) {
	filter := jobstore.Filter{Status: internal.Status(r.URL.Query().Get("status"))}
	jobs, err := s.store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []internal.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"translations": jobs})
}

func (s *Server) handleGetTranslation(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "translation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil && !errors.Is(err, jobstore.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err != nil || job.Status != internal.StatusCompleted {
		writeError(w, http.StatusNotFound, "translation not found or not completed")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "translated_"+job.Filename))
	_, _ = io.WriteString(w, job.TranslatedText)
}

func (s *Server) handleListFailed(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.recovery.ListFailed(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []internal.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if _, err := s.recovery.Retry(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "translation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.models.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if models == nil {
		models = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Metrics())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.models.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	diskUsage := "unknown"
	if pct, err := monitor.DiskUsagePercent(); err == nil {
		if pct > 90 {
			s.log.Warn("low disk space", zap.Float64("disk_usage_percent", pct))
		}
		diskUsage = fmt.Sprintf("%.1f%%", pct)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "healthy",
		"ollama":     "connected",
		"database":   "connected",
		"disk_usage": diskUsage,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
