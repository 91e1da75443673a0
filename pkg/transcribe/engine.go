package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout bounds one engine run.
	DefaultTimeout = 180 * time.Second

	// pipeGrace is how long drains may keep reading after the process was
	// killed before the pipes are closed under them.
	pipeGrace = 2 * time.Second
)

// Engine runs the external transcription engine, one process per request.
type Engine struct {
	Executable string        // interpreter or binary, e.g. "python3"
	EntryPoint string        // script passed as the first argument
	WorkDir    string        // process working directory
	Timeout    time.Duration // zero means DefaultTimeout

	classifier *Classifier
	logger     *log.Logger
}

// NewEngine creates an Engine. A nil classifier applies the plain protocol rules.
func NewEngine(executable, entryPoint, workDir string, timeout time.Duration, classifier *Classifier, logger *log.Logger) *Engine {
	if classifier == nil {
		classifier = &Classifier{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		Executable: executable,
		EntryPoint: entryPoint,
		WorkDir:    workDir,
		Timeout:    timeout,
		classifier: classifier,
		logger:     logger,
	}
}

// Invoke spawns the engine, writes req to its stdin while draining stdout and
// stderr concurrently, and classifies the result once the process exits.
// It never returns a nil Outcome.
func (e *Engine) Invoke(ctx context.Context, req EngineRequest) *Outcome {
	start := time.Now()
	outcome := e.invoke(ctx, req)
	outcome.Duration = time.Since(start)
	return outcome
}

func (e *Engine) invoke(ctx context.Context, req EngineRequest) *Outcome {
	payload, err := json.Marshal(req)
	if err != nil {
		return infrastructureOutcome(CodeSpawnFailed, fmt.Sprintf("failed to marshal request: %v", err))
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// No shell: executable and entry point are discrete argv entries.
	cmd := exec.CommandContext(ctx, e.Executable, e.EntryPoint)
	cmd.Dir = e.WorkDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return infrastructureOutcome(CodeSpawnFailed, fmt.Sprintf("failed to create stdin pipe: %v", err))
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return infrastructureOutcome(CodeSpawnFailed, fmt.Sprintf("failed to create stdout pipe: %v", err))
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return infrastructureOutcome(CodeSpawnFailed, fmt.Sprintf("failed to create stderr pipe: %v", err))
	}

	if err := cmd.Start(); err != nil {
		e.logger.Printf("[transcribe] spawn error: %v", err)
		return infrastructureOutcome(CodeSpawnFailed, err.Error())
	}

	var stdout, stderr bytes.Buffer
	var g errgroup.Group

	g.Go(func() error {
		_, werr := stdin.Write(payload)
		cerr := stdin.Close()
		if werr != nil {
			return fmt.Errorf("write request: %w", werr)
		}
		if cerr != nil {
			return fmt.Errorf("close stdin: %w", cerr)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := io.Copy(&stdout, stdoutPipe); err != nil {
			return fmt.Errorf("read stdout: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := io.Copy(&stderr, stderrPipe); err != nil {
			return fmt.Errorf("read stderr: %w", err)
		}
		return nil
	})

	// A killed engine can leave orphaned children holding the pipes open.
	drained := make(chan struct{})
	stopWatch := context.AfterFunc(ctx, func() {
		t := time.NewTimer(pipeGrace)
		defer t.Stop()
		select {
		case <-drained:
		case <-t.C:
			stdoutPipe.Close()
			stderrPipe.Close()
		}
	})

	streamErr := g.Wait()
	close(drained)
	stopWatch()
	if streamErr != nil && ctx.Err() == nil {
		// Usually a broken pipe: the engine exited without reading its input.
		// Exit status and output still decide the outcome.
		e.logger.Printf("[transcribe] WARNING: engine stream error: %v", streamErr)
	}

	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	if ctxErr := interruption(ctx, waitErr); ctxErr != nil {
		code := CodeTimeout
		detail := fmt.Sprintf("engine did not finish within %s", timeout)
		if errors.Is(ctxErr, context.Canceled) {
			code = CodeCanceled
			detail = "request canceled before the engine finished"
		}
		e.logger.Printf("[transcribe] %s: %s", code, detail)
		return &Outcome{
			Kind:     KindInfrastructureError,
			Code:     code,
			Raw:      stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: exitCode,
			Detail:   detail,
		}
	}

	if waitErr != nil && exitCode == -1 {
		e.logger.Printf("[transcribe] engine wait error: %v", waitErr)
	}

	return e.classifier.Classify(exitCode, stdout.Bytes(), stderr.Bytes())
}

// interruption returns the context error when the engine was killed because
// ctx ended. A clean exit is never an interruption, even if ctx expired after.
func interruption(ctx context.Context, waitErr error) error {
	if waitErr == nil {
		return nil
	}
	return ctx.Err()
}
