package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soypete/mockinterview/pkg/platform"
)

// Config represents the mockinterview configuration
type Config struct {
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Upload   UploadConfig   `json:"upload" yaml:"upload"`
	Web      WebConfig      `json:"web" yaml:"web"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Debug    DebugConfig    `json:"debug" yaml:"debug"`
	Init     InitConfig     `json:"init" yaml:"init"`
}

// EngineConfig describes how to launch the transcription engine
type EngineConfig struct {
	Executable      string `json:"executable" yaml:"executable"`   // interpreter, e.g. "python3"
	EntryPoint      string `json:"entry_point" yaml:"entry_point"` // script handed to the interpreter
	WorkDir         string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`
	TimeoutSeconds  int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	ResponseSchema  string `json:"response_schema,omitempty" yaml:"response_schema,omitempty"`
	DefaultLanguage string `json:"default_language" yaml:"default_language"`
}

// UploadConfig contains upload settings
type UploadConfig struct {
	Dir      string `json:"dir" yaml:"dir"`
	MaxBytes int64  `json:"max_bytes" yaml:"max_bytes"`
}

// WebConfig contains HTTP server settings
type WebConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// DatabaseConfig contains run history settings
type DatabaseConfig struct {
	Disabled bool   `json:"disabled" yaml:"disabled"`
	Driver   string `json:"driver" yaml:"driver"` // "sqlite" or "postgres"
	DSN      string `json:"dsn" yaml:"dsn"`       // file path for sqlite, URL for postgres
}

// DebugConfig contains debug settings
type DebugConfig struct {
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// InitConfig contains initialization settings
type InitConfig struct {
	SkipChecks bool `json:"skip_checks" yaml:"skip_checks"`
	Verbose    bool `json:"verbose" yaml:"verbose"`
}

// DefaultEntryPoint is the engine script location relative to the config base dir.
const DefaultEntryPoint = "mock-interview-algorithms/transcribe_whisper.py"

// Default returns a configuration built from defaults and the environment,
// with relative paths resolved against the working directory.
func Default() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	var config Config
	if err := config.finish(cwd); err != nil {
		return nil, err
	}
	return &config, nil
}

// Load loads configuration from a JSON or YAML file. Relative paths in the
// file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	baseDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}

	if err := config.finish(baseDir); err != nil {
		return nil, err
	}
	return &config, nil
}

// ErrNoConfigFile is returned by LoadDefault when no config file exists.
var ErrNoConfigFile = errors.New("no .mockinterview.json or .mockinterview.yaml found in current directory or home")

// configNames are searched in order in each candidate directory
var configNames = []string{".mockinterview.json", ".mockinterview.yaml", ".mockinterview.yml"}

// LoadDefault attempts to load a config file from the current directory or home
func LoadDefault() (*Config, error) {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}

	for _, dir := range dirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return Load(path)
			}
		}
	}

	return nil, ErrNoConfigFile
}

// EngineTimeout returns the bounded wait for one engine run
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

func (c *Config) finish(baseDir string) error {
	c.setDefaults()
	if err := c.applyEnv(); err != nil {
		return err
	}
	c.resolvePaths(baseDir)
	return c.Validate()
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	// Engine defaults
	if c.Engine.Executable == "" {
		c.Engine.Executable = platform.DefaultPython()
	}
	if c.Engine.EntryPoint == "" {
		c.Engine.EntryPoint = DefaultEntryPoint
	}
	if c.Engine.TimeoutSeconds == 0 {
		c.Engine.TimeoutSeconds = 180
	}
	if c.Engine.DefaultLanguage == "" {
		c.Engine.DefaultLanguage = "en"
	}

	// Upload defaults
	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads"
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = 25 << 20
	}

	// Web defaults
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}

	// Database defaults
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && isSQLite(c.Database.Driver) {
		c.Database.DSN = "mockinterview.db"
	}

	// Debug defaults
	if c.Debug.LogLevel == "" {
		c.Debug.LogLevel = "info"
	}
}

// applyEnv lets deployment environments override the file
func (c *Config) applyEnv() error {
	if v := os.Getenv("PYTHON_EXEC"); v != "" {
		c.Engine.Executable = v
	}
	if v := os.Getenv("TRANSCRIBE_ENTRYPOINT"); v != "" {
		c.Engine.EntryPoint = v
	}
	if v := os.Getenv("TRANSCRIBE_WORKDIR"); v != "" {
		c.Engine.WorkDir = v
	}
	if v := os.Getenv("TRANSCRIBE_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRANSCRIBE_TIMEOUT_SECONDS %q: %w", v, err)
		}
		c.Engine.TimeoutSeconds = n
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.Driver = "postgres"
		c.Database.DSN = v
	}
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Web.Port = n
	}
	return nil
}

// resolvePaths anchors relative filesystem paths at baseDir. The engine
// working directory defaults to the entry point's directory.
func (c *Config) resolvePaths(baseDir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	c.Engine.EntryPoint = abs(c.Engine.EntryPoint)
	if c.Engine.WorkDir == "" {
		c.Engine.WorkDir = filepath.Dir(c.Engine.EntryPoint)
	}
	c.Engine.WorkDir = abs(c.Engine.WorkDir)
	c.Engine.ResponseSchema = abs(c.Engine.ResponseSchema)
	c.Upload.Dir = abs(c.Upload.Dir)
	if isSQLite(c.Database.Driver) && c.Database.DSN != ":memory:" {
		c.Database.DSN = abs(c.Database.DSN)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Engine.Executable) == "" {
		return fmt.Errorf("engine.executable is required")
	}
	if strings.TrimSpace(c.Engine.EntryPoint) == "" {
		return fmt.Errorf("engine.entry_point is required")
	}
	if c.Engine.TimeoutSeconds <= 0 {
		return fmt.Errorf("engine.timeout_seconds must be positive: %d", c.Engine.TimeoutSeconds)
	}
	if c.Upload.MaxBytes < 0 {
		return fmt.Errorf("upload.max_bytes must be positive: %d", c.Upload.MaxBytes)
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web.port: %d", c.Web.Port)
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("invalid database driver: %s (must be 'sqlite' or 'postgres')", c.Database.Driver)
	}
	if !c.Database.Disabled && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for %s", c.Database.Driver)
	}

	switch c.Debug.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Debug.LogLevel)
	}

	return nil
}

func isSQLite(driver string) bool {
	return driver == "sqlite" || driver == "sqlite3"
}
