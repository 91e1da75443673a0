package transcribe

import (
	"errors"
	"fmt"
	"os"
)

// ErrEngineNotFound is matched by configuration failures: the engine's entry
// point or working directory is missing.
var ErrEngineNotFound = errors.New("transcription engine not found")

// AvailabilityError describes which engine paths are missing.
type AvailabilityError struct {
	EntryPoint      string
	EntryPointFound bool
	WorkDir         string
	WorkDirFound    bool
}

func (e *AvailabilityError) Error() string {
	return fmt.Sprintf("missing engine entry point or working dir. entryPoint=%s (exists=%t), workDir=%s (exists=%t)",
		e.EntryPoint, e.EntryPointFound, e.WorkDir, e.WorkDirFound)
}

func (e *AvailabilityError) Is(target error) bool {
	return target == ErrEngineNotFound
}

// CheckAvailable verifies the engine entry point exists and its working
// directory is a directory. It touches nothing else.
func CheckAvailable(entryPoint, workDir string) error {
	entryOK := false
	if entryPoint != "" {
		if _, err := os.Stat(entryPoint); err == nil {
			entryOK = true
		}
	}

	dirOK := false
	if workDir != "" {
		if info, err := os.Stat(workDir); err == nil && info.IsDir() {
			dirOK = true
		}
	}

	if entryOK && dirOK {
		return nil
	}

	return &AvailabilityError{
		EntryPoint:      entryPoint,
		EntryPointFound: entryOK,
		WorkDir:         workDir,
		WorkDirFound:    dirOK,
	}
}
