package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valpere/booktran/internal"
	"github.com/valpere/booktran/internal/cache"
	"github.com/valpere/booktran/internal/jobstore"
	"github.com/valpere/booktran/internal/refiner"
	"github.com/valpere/booktran/internal/translator"
)

type stubTranslator struct {
	mu    sync.Mutex
	calls []string
	err   error
	reply func(text string) string
}

func (s *stubTranslator) Name() string { return "stub" }

func (s *stubTranslator) Translate(_ context.Context, req translator.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.calls = append(s.calls, req.Text)
	if s.reply != nil {
		return s.reply(req.Text), nil
	}
	return "MT:" + req.Text, nil
}

func (s *stubTranslator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubRefiner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubRefiner) Refine(_ context.Context, _ string, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.calls++
	return "R:" + text, nil
}

func (s *stubRefiner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubObserver struct {
	mu        sync.Mutex
	successes int
	failures  int
}

func (o *stubObserver) RecordAttempt(success bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if success {
		o.successes++
	} else {
		o.failures++
	}
}

type testHarness struct {
	engine     *Engine
	translator *stubTranslator
	refiner    *stubRefiner
	observer   *stubObserver
	store      *jobstore.Store
	cache      *cache.Cache
}

func newHarness(t *testing.T, cfg Config) *testHarness {
	t.Helper()

	dir := t.TempDir()
	c, err := cache.New(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	s, err := jobstore.New(filepath.Join(dir, "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	if cfg.ChunkInterval == 0 {
		cfg.ChunkInterval = time.Millisecond
	}

	tr := &stubTranslator{}
	rf := &stubRefiner{}
	obs := &stubObserver{}
	eng := New(tr, func(string) refiner.Refiner { return rf }, c, s, obs, cfg, zap.NewNop())
	return &testHarness{engine: eng, translator: tr, refiner: rf, observer: obs, store: s, cache: c}
}

func (h *testHarness) createJob(t *testing.T, text string, refine bool) *internal.Job {
	t.Helper()
	job, err := h.store.Create(context.Background(), jobstore.CreateParams{
		Filename:     "book.txt",
		SourceLang:   "en",
		TargetLang:   "es",
		Model:        "mistral",
		OriginalText: text,
		LLMRefine:    refine,
	})
	require.NoError(t, err)
	return job
}

func (h *testHarness) runJob(t *testing.T, job *internal.Job, text string, refine bool) ([]internal.ProgressEvent, error) {
	t.Helper()
	var events []internal.ProgressEvent
	err := h.engine.Run(context.Background(), Params{
		JobID:      job.ID,
		Text:       text,
		SourceLang: "en",
		TargetLang: "es",
		Model:      "mistral",
		Refine:     refine,
	}, func(ev internal.ProgressEvent) {
		events = append(events, ev)
	})
	return events, err
}

func TestRunSingleChunkWithoutRefinement(t *testing.T) {
	h := newHarness(t, Config{})
	text := "Hello world.\n\nThis is fine."
	job := h.createJob(t, text, false)

	h.translator.reply = func(string) string { return "Hola mundo.\n\nEsto está bien." }
	events, err := h.runJob(t, job, text, false)
	require.NoError(t, err)

	// One chunk: machine event, refinement event, terminal event.
	require.Len(t, events, 3)
	assert.Equal(t, internal.StageMachineTranslation, events[0].Stage)
	assert.Equal(t, 1, events[0].CurrentChunk)
	assert.Equal(t, 2, events[0].TotalChunks)
	assert.InDelta(t, 50.0, events[0].Progress, 0.01)

	assert.Equal(t, internal.StageLiteraryRefinement, events[1].Stage)
	assert.Equal(t, 2, events[1].CurrentChunk)
	assert.InDelta(t, 100.0, events[1].Progress, 0.01)

	assert.True(t, events[2].Terminal())
	assert.Equal(t, internal.StatusCompleted, events[2].Status)
	assert.InDelta(t, 100.0, events[2].Progress, 0.01)
	assert.Equal(t, "Hola mundo.\n\nEsto está bien.", events[2].TranslatedText)

	// With refinement disabled the refined text equals the machine text.
	assert.Equal(t, events[2].MachineTranslation, events[2].TranslatedText)
	assert.Equal(t, 0, h.refiner.callCount())

	stored, err := h.store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.StatusCompleted, stored.Status)
	assert.InDelta(t, 100.0, stored.Progress, 0.01)
	assert.Equal(t, 2, stored.CurrentChunk)
	assert.Equal(t, "Hola mundo.\n\nEsto está bien.", stored.TranslatedText)
}

func TestRunMultiChunkEventOrdering(t *testing.T) {
	h := newHarness(t, Config{MaxChunkChars: 15})
	text := "Hello world.\n\nThis is fine."
	job := h.createJob(t, text, true)

	events, err := h.runJob(t, job, text, true)
	require.NoError(t, err)

	// Two chunks: four stage events plus the terminal event.
	require.Len(t, events, 5)

	lastChunk := 0
	lastProgress := -1.0
	for _, ev := range events[:4] {
		assert.Greater(t, ev.CurrentChunk, lastChunk, "current_chunk must strictly increase")
		assert.GreaterOrEqual(t, ev.Progress, lastProgress, "progress must not decrease")
		assert.Equal(t, 4, ev.TotalChunks)
		lastChunk = ev.CurrentChunk
		lastProgress = ev.Progress
	}
	assert.Equal(t, 4, lastChunk)

	assert.Equal(t, internal.StageMachineTranslation, events[0].Stage)
	assert.Equal(t, internal.StageLiteraryRefinement, events[1].Stage)
	assert.Equal(t, internal.StageMachineTranslation, events[2].Stage)
	assert.Equal(t, internal.StageLiteraryRefinement, events[3].Stage)

	terminal := events[4]
	assert.Equal(t, internal.StatusCompleted, terminal.Status)
	assert.Equal(t, "R:MT:Hello world.\n\nR:MT:This is fine.", terminal.TranslatedText)
	assert.Equal(t, "MT:Hello world.\n\nMT:This is fine.", terminal.MachineTranslation)

	assert.Equal(t, 2, h.translator.callCount())
	assert.Equal(t, 2, h.refiner.callCount())
	assert.Equal(t, 1, h.observer.successes)
}

func TestRunCachedRerunSkipsExternalCalls(t *testing.T) {
	h := newHarness(t, Config{MaxChunkChars: 15})
	text := "Hello world.\n\nThis is fine."

	first := h.createJob(t, text, true)
	_, err := h.runJob(t, first, text, true)
	require.NoError(t, err)
	require.Equal(t, 2, h.translator.callCount())

	second := h.createJob(t, text, true)
	events, err := h.runJob(t, second, text, true)
	require.NoError(t, err)

	// Everything served from cache: same event count, no new calls.
	assert.Len(t, events, 5)
	assert.Equal(t, 2, h.translator.callCount())
	assert.Equal(t, 2, h.refiner.callCount())
	assert.Equal(t, "R:MT:Hello world.\n\nR:MT:This is fine.", events[4].TranslatedText)

	stored, err := h.store.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.StatusCompleted, stored.Status)
}

func TestRunTranslatorFailure(t *testing.T) {
	h := newHarness(t, Config{})
	text := "Hello world."
	job := h.createJob(t, text, false)

	h.translator.err = errors.New("quota exhausted")
	events, err := h.runJob(t, job, text, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.Terminal())
	assert.Contains(t, last.Error, "quota exhausted")

	stored, err := h.store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.StatusError, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "quota exhausted")
	assert.Equal(t, 1, h.observer.failures)

	chunks, err := h.store.Chunks(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, internal.StatusError, chunks[0].Status)
}

func TestRunRefinerFailureMarksJob(t *testing.T) {
	h := newHarness(t, Config{})
	text := "Hello world."
	job := h.createJob(t, text, true)

	h.refiner.err = errors.New("model not found")
	_, err := h.runJob(t, job, text, true)
	require.Error(t, err)

	stored, err := h.store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.StatusError, stored.Status)

	// The failed chunk must not be cached.
	_, hit, err := h.cache.Get(context.Background(), text, "en", "es")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRunPersistsChunkRecords(t *testing.T) {
	h := newHarness(t, Config{MaxChunkChars: 15})
	text := "Hello world.\n\nThis is fine."
	job := h.createJob(t, text, true)

	_, err := h.runJob(t, job, text, true)
	require.NoError(t, err)

	chunks, err := h.store.Chunks(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	for i, ch := range chunks {
		assert.Equal(t, i+1, ch.ChunkNumber)
		assert.Equal(t, internal.StatusCompleted, ch.Status)
		assert.NotEmpty(t, ch.TranslatedText)
	}
}

func TestStartClosesChannelAfterTerminalEvent(t *testing.T) {
	h := newHarness(t, Config{})
	text := "Hello world."
	job := h.createJob(t, text, false)

	var events []internal.ProgressEvent
	for ev := range h.engine.Start(context.Background(), Params{
		JobID:      job.ID,
		Text:       text,
		SourceLang: "en",
		TargetLang: "es",
		Refine:     false,
	}) {
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	assert.True(t, events[len(events)-1].Terminal())
}
