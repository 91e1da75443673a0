package init

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/soypete/mockinterview/pkg/config"
	"github.com/soypete/mockinterview/pkg/platform"
	"github.com/soypete/mockinterview/pkg/transcribe"
)

// CheckResult represents the result of a dependency check
type CheckResult struct {
	Name     string
	Required bool
	Found    bool
	Path     string
	Version  string
	Error    string
}

// Checker validates the transcription engine setup before serving
type Checker struct {
	config   *config.Config
	lookPath func(string) (string, error)
}

// NewChecker creates a new dependency checker
func NewChecker(cfg *config.Config) *Checker {
	return &Checker{
		config:   cfg,
		lookPath: platform.LookPath,
	}
}

// CheckAll validates all dependencies
func (c *Checker) CheckAll() ([]CheckResult, error) {
	var results []CheckResult

	results = append(results, c.checkInterpreter())
	results = append(results, c.checkEntryPoint())
	results = append(results, c.checkWorkDir())
	results = append(results, c.checkUploadDir())

	if c.config.Engine.ResponseSchema != "" {
		results = append(results, c.checkResponseSchema())
	}

	// Whisper decodes most containers through ffmpeg
	results = append(results, c.checkFFmpeg())

	var failures []CheckResult
	for _, result := range results {
		if result.Required && !result.Found {
			failures = append(failures, result)
		}
	}

	if len(failures) > 0 {
		return results, c.formatErrors(failures)
	}

	return results, nil
}

// checkInterpreter checks the engine executable resolves and reports its version
func (c *Checker) checkInterpreter() CheckResult {
	name := c.config.Engine.Executable
	path, err := c.lookPath(name)
	if err != nil {
		return CheckResult{
			Name:     "Interpreter",
			Required: true,
			Found:    false,
			Error:    fmt.Sprintf("%s not found in PATH (set engine.executable or PYTHON_EXEC)", name),
		}
	}

	output, _ := exec.Command(path, "--version").CombinedOutput()
	version := strings.TrimSpace(strings.Split(string(output), "\n")[0])

	return CheckResult{
		Name:     "Interpreter",
		Required: true,
		Found:    true,
		Path:     path,
		Version:  version,
	}
}

// checkEntryPoint checks the engine script exists
func (c *Checker) checkEntryPoint() CheckResult {
	path := c.config.Engine.EntryPoint
	info, err := os.Stat(path)
	if err != nil {
		return CheckResult{
			Name:     "Entry point",
			Required: true,
			Found:    false,
			Path:     path,
			Error:    fmt.Sprintf("%s not found (set engine.entry_point or TRANSCRIBE_ENTRYPOINT)", path),
		}
	}
	if info.IsDir() {
		return CheckResult{
			Name:     "Entry point",
			Required: true,
			Found:    false,
			Path:     path,
			Error:    fmt.Sprintf("%s is a directory", path),
		}
	}

	return CheckResult{
		Name:     "Entry point",
		Required: true,
		Found:    true,
		Path:     path,
	}
}

// checkWorkDir checks the engine working directory
func (c *Checker) checkWorkDir() CheckResult {
	dir := c.config.Engine.WorkDir
	if err := transcribe.CheckAvailable(c.config.Engine.EntryPoint, dir); err != nil {
		var availErr *transcribe.AvailabilityError
		if errors.As(err, &availErr) && !availErr.WorkDirFound {
			return CheckResult{
				Name:     "Working directory",
				Required: true,
				Found:    false,
				Path:     dir,
				Error:    fmt.Sprintf("%s is not a directory (set engine.work_dir or TRANSCRIBE_WORKDIR)", dir),
			}
		}
	}

	return CheckResult{
		Name:     "Working directory",
		Required: true,
		Found:    true,
		Path:     dir,
	}
}

// checkUploadDir checks uploads can be spooled
func (c *Checker) checkUploadDir() CheckResult {
	dir := c.config.Upload.Dir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return CheckResult{
			Name:     "Upload directory",
			Required: true,
			Found:    false,
			Path:     dir,
			Error:    fmt.Sprintf("cannot create %s: %v", dir, err),
		}
	}

	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return CheckResult{
			Name:     "Upload directory",
			Required: true,
			Found:    false,
			Path:     dir,
			Error:    fmt.Sprintf("%s is not writable: %v", dir, err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	return CheckResult{
		Name:     "Upload directory",
		Required: true,
		Found:    true,
		Path:     dir,
	}
}

// checkResponseSchema checks the configured response schema compiles
func (c *Checker) checkResponseSchema() CheckResult {
	path := c.config.Engine.ResponseSchema
	if _, err := transcribe.NewClassifier(path); err != nil {
		return CheckResult{
			Name:     "Response schema",
			Required: true,
			Found:    false,
			Path:     path,
			Error:    fmt.Sprintf("cannot load %s: %v", path, err),
		}
	}

	return CheckResult{
		Name:     "Response schema",
		Required: true,
		Found:    true,
		Path:     path,
	}
}

// checkFFmpeg checks if ffmpeg is available
func (c *Checker) checkFFmpeg() CheckResult {
	path, err := c.lookPath("ffmpeg")
	if err != nil {
		return CheckResult{
			Name:     "ffmpeg",
			Required: false,
			Found:    false,
			Error:    "ffmpeg not found (needed by whisper to decode webm/ogg/m4a)",
		}
	}

	return CheckResult{
		Name:     "ffmpeg",
		Required: false,
		Found:    true,
		Path:     path,
	}
}

// formatErrors formats dependency check errors
func (c *Checker) formatErrors(failures []CheckResult) error {
	var msg strings.Builder
	msg.WriteString("\n❌ Dependency check failed:\n\n")

	for _, failure := range failures {
		msg.WriteString(fmt.Sprintf("  ✗ %s: %s\n", failure.Name, failure.Error))
	}

	msg.WriteString("\nPlease fix the transcription engine setup and try again.\n")

	return errors.New(msg.String())
}
