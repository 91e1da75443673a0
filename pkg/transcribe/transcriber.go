// Package transcribe runs uploaded interview audio through an external
// transcription engine that speaks one JSON request and one JSON response
// over its standard streams, and folds every failure into an Outcome.
package transcribe

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/soypete/mockinterview/pkg/metrics"
)

// Run is the history record written after each transcription.
type Run struct {
	ID        string        `json:"id"`
	Language  string        `json:"language"`
	MimeType  string        `json:"mime_type"`
	Kind      Kind          `json:"kind"`
	Code      string        `json:"code,omitempty"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Recorder persists run history. Implemented by database.Store.
type Recorder interface {
	RecordRun(ctx context.Context, run *Run) error
}

// Transcriber wires the availability check, stager and engine together.
type Transcriber struct {
	engine   *Engine
	stager   *Stager
	recorder Recorder
	logger   *log.Logger
	debug    bool
}

// Options configures a Transcriber.
type Options struct {
	Executable      string
	EntryPoint      string
	WorkDir         string
	Timeout         time.Duration
	ResponseSchema  string
	DefaultLanguage string
	Recorder        Recorder
	Logger          *log.Logger
	Debug           bool
}

// NewTranscriber builds a Transcriber. It fails only when a configured
// response schema cannot be loaded.
func NewTranscriber(opts Options) (*Transcriber, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	classifier, err := NewClassifier(opts.ResponseSchema)
	if err != nil {
		return nil, err
	}

	return &Transcriber{
		engine:   NewEngine(opts.Executable, opts.EntryPoint, opts.WorkDir, opts.Timeout, classifier, logger),
		stager:   NewStager(opts.DefaultLanguage, logger),
		recorder: opts.Recorder,
		logger:   logger,
		debug:    opts.Debug,
	}, nil
}

// Transcribe runs one upload through the engine. The upload file is gone
// from disk when Transcribe returns, whatever the outcome.
func (t *Transcriber) Transcribe(ctx context.Context, up Upload) (outcome *Outcome) {
	start := time.Now()
	language := up.Language
	if language == "" {
		language = t.stager.defaultLanguage
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Printf("[transcribe] panic during orchestration: %v", r)
			outcome = infrastructureOutcome(CodeOrchestrationFailed, fmt.Sprint(r))
		}
		outcome.Duration = time.Since(start)
		t.observe(ctx, up, language, outcome)
	}()

	staged := false
	defer func() {
		if !staged {
			t.stager.Discard(up)
		}
	}()

	if err := t.checkEngine(); err != nil {
		return infrastructureOutcome(CodeEngineNotFound, err.Error())
	}

	artifact := t.stager.Stage(up)
	staged = true
	defer artifact.Release()

	return t.engine.Invoke(ctx, artifact.Request())
}

// Check reports whether the engine can be started.
func (t *Transcriber) Check() error {
	return CheckAvailable(t.engine.EntryPoint, t.engine.WorkDir)
}

func (t *Transcriber) checkEngine() error {
	err := t.Check()
	if t.debug || err != nil {
		_, entryErr := os.Stat(t.engine.EntryPoint)
		_, dirErr := os.Stat(t.engine.WorkDir)
		t.logger.Printf("[transcribe] executable: %s", t.engine.Executable)
		t.logger.Printf("[transcribe] entryPoint: %s exists? %t", t.engine.EntryPoint, entryErr == nil)
		t.logger.Printf("[transcribe] workDir   : %s exists? %t", t.engine.WorkDir, dirErr == nil)
	}
	return err
}

func (t *Transcriber) observe(ctx context.Context, up Upload, language string, outcome *Outcome) {
	metrics.TranscriptionsTotal.WithLabelValues(string(outcome.Kind), metricCode(outcome)).Inc()
	metrics.TranscriptionDuration.WithLabelValues(string(outcome.Kind)).Observe(outcome.Duration.Seconds())

	if !outcome.Success() {
		t.logger.Printf("[transcribe] %s (%s): exit=%d detail=%q stderr=%q",
			outcome.Kind, outcome.Code, outcome.ExitCode, outcome.Detail, outcome.Stderr)
	}

	if t.recorder == nil {
		return
	}
	run := &Run{
		ID:        uuid.New().String(),
		Language:  language,
		MimeType:  up.MimeType,
		Kind:      outcome.Kind,
		Code:      outcome.Code,
		ExitCode:  outcome.ExitCode,
		Duration:  outcome.Duration,
		CreatedAt: time.Now().UTC(),
	}
	// History must outlive a canceled request.
	if err := t.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		t.logger.Printf("[transcribe] WARNING: failed to record run: %v", err)
	}
}

// metricCode bounds the code label. Engine-reported codes are free text and
// only reach the response body and run history.
func metricCode(o *Outcome) string {
	if o.Kind == KindEngineError {
		return string(KindEngineError)
	}
	return o.Code
}
