package transcribe

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// DefaultLanguage is used when an upload carries no language tag.
const DefaultLanguage = "en"

// Upload describes an audio file the HTTP layer (or CLI) already placed on disk.
type Upload struct {
	TempPath     string
	MimeType     string
	OriginalName string
	Language     string
}

// Artifact is a staged upload owned by exactly one orchestration.
type Artifact struct {
	Path         string
	MimeType     string
	OriginalName string
	Language     string

	remove func(string) error
	logger *log.Logger
	once   sync.Once
}

// EngineRequest is the single JSON object written to the engine's stdin.
type EngineRequest struct {
	AudioPath string `json:"audio_path"`
	Language  string `json:"language"`
}

// Stager gives uploads a recognizable extension and owns their removal.
type Stager struct {
	defaultLanguage string
	logger          *log.Logger
	rename          func(oldpath, newpath string) error
	remove          func(name string) error
}

// NewStager creates a Stager backed by the real filesystem.
func NewStager(defaultLanguage string, logger *log.Logger) *Stager {
	if defaultLanguage == "" {
		defaultLanguage = DefaultLanguage
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Stager{
		defaultLanguage: defaultLanguage,
		logger:          logger,
		rename:          os.Rename,
		remove:          os.Remove,
	}
}

// Stage renames an extension-less upload to carry its resolved extension.
// A failed rename is logged and the original path is kept.
func (s *Stager) Stage(up Upload) *Artifact {
	path := up.TempPath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	if filepath.Ext(path) == "" {
		ext := ResolveExtension(up.MimeType, up.OriginalName)
		newPath := path + ext
		if err := s.rename(path, newPath); err != nil {
			s.logger.Printf("[transcribe] WARNING: rename failed, continuing with original path %s: %v", path, err)
		} else {
			s.logger.Printf("[transcribe] renamed upload to: %s", newPath)
			path = newPath
		}
	}

	language := up.Language
	if language == "" {
		language = s.defaultLanguage
	}

	return &Artifact{
		Path:         path,
		MimeType:     up.MimeType,
		OriginalName: up.OriginalName,
		Language:     language,
		remove:       s.remove,
		logger:       s.logger,
	}
}

// Discard removes an upload that is rejected before staging.
func (s *Stager) Discard(up Upload) {
	a := &Artifact{Path: up.TempPath, remove: s.remove, logger: s.logger}
	a.Release()
}

// Request builds the engine request for this artifact. Paths use forward
// slashes on every platform.
func (a *Artifact) Request() EngineRequest {
	return EngineRequest{
		AudioPath: filepath.ToSlash(a.Path),
		Language:  a.Language,
	}
}

// Release deletes the staged file. Safe to call more than once; failures
// are logged only.
func (a *Artifact) Release() {
	a.once.Do(func() {
		remove := a.remove
		if remove == nil {
			remove = os.Remove
		}
		if err := remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) && a.logger != nil {
			a.logger.Printf("[transcribe] WARNING: failed to remove %s: %v", a.Path, err)
		}
	})
}

// SpoolUpload copies r into a new uniquely named, extension-less file under
// dir and returns its path.
func SpoolUpload(dir string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(dir, uuid.New().String())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close upload: %w", err)
	}

	return path, nil
}
