package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soypete/mockinterview/pkg/platform"
)

var envKeys = []string{
	"PYTHON_EXEC",
	"TRANSCRIBE_ENTRYPOINT",
	"TRANSCRIBE_WORKDIR",
	"TRANSCRIBE_TIMEOUT_SECONDS",
	"DATABASE_URL",
	"PORT",
}

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		wantErr  bool
		errMsg   string
		validate func(*testing.T, string, *Config)
	}{
		{
			name:    "empty json gets defaults",
			file:    "config.json",
			content: `{}`,
			validate: func(t *testing.T, dir string, c *Config) {
				if c.Engine.Executable != platform.DefaultPython() {
					t.Errorf("Engine.Executable = %q, want %q", c.Engine.Executable, platform.DefaultPython())
				}
				wantEntry := filepath.Join(dir, DefaultEntryPoint)
				if c.Engine.EntryPoint != wantEntry {
					t.Errorf("Engine.EntryPoint = %q, want %q", c.Engine.EntryPoint, wantEntry)
				}
				if c.Engine.WorkDir != filepath.Dir(wantEntry) {
					t.Errorf("Engine.WorkDir = %q, want %q", c.Engine.WorkDir, filepath.Dir(wantEntry))
				}
				if c.EngineTimeout() != 180*time.Second {
					t.Errorf("EngineTimeout() = %v, want 180s", c.EngineTimeout())
				}
				if c.Upload.Dir != filepath.Join(dir, "uploads") {
					t.Errorf("Upload.Dir = %q, want %q", c.Upload.Dir, filepath.Join(dir, "uploads"))
				}
				if c.Database.DSN != filepath.Join(dir, "mockinterview.db") {
					t.Errorf("Database.DSN = %q", c.Database.DSN)
				}
			},
		},
		{
			name: "json engine section",
			file: "config.json",
			content: `{
				"engine": {
					"executable": "/usr/bin/python3.11",
					"entry_point": "/opt/algos/transcribe_whisper.py",
					"work_dir": "/opt/algos",
					"timeout_seconds": 30,
					"default_language": "es"
				}
			}`,
			validate: func(t *testing.T, _ string, c *Config) {
				if c.Engine.Executable != "/usr/bin/python3.11" {
					t.Errorf("Engine.Executable = %q", c.Engine.Executable)
				}
				if c.Engine.EntryPoint != "/opt/algos/transcribe_whisper.py" {
					t.Errorf("Engine.EntryPoint = %q", c.Engine.EntryPoint)
				}
				if c.Engine.WorkDir != "/opt/algos" {
					t.Errorf("Engine.WorkDir = %q", c.Engine.WorkDir)
				}
				if c.EngineTimeout() != 30*time.Second {
					t.Errorf("EngineTimeout() = %v, want 30s", c.EngineTimeout())
				}
				if c.Engine.DefaultLanguage != "es" {
					t.Errorf("Engine.DefaultLanguage = %q, want es", c.Engine.DefaultLanguage)
				}
			},
		},
		{
			name: "yaml config",
			file: "config.yaml",
			content: `
engine:
  entry_point: algos/transcribe.py
  response_schema: schema.json
web:
  host: 127.0.0.1
  port: 9090
database:
  driver: postgres
  dsn: postgres://localhost/mock
`,
			validate: func(t *testing.T, dir string, c *Config) {
				if c.Engine.EntryPoint != filepath.Join(dir, "algos", "transcribe.py") {
					t.Errorf("Engine.EntryPoint = %q", c.Engine.EntryPoint)
				}
				if c.Engine.WorkDir != filepath.Join(dir, "algos") {
					t.Errorf("Engine.WorkDir = %q", c.Engine.WorkDir)
				}
				if c.Engine.ResponseSchema != filepath.Join(dir, "schema.json") {
					t.Errorf("Engine.ResponseSchema = %q", c.Engine.ResponseSchema)
				}
				if c.Addr() != "127.0.0.1:9090" {
					t.Errorf("Addr() = %q, want 127.0.0.1:9090", c.Addr())
				}
				if c.Database.DSN != "postgres://localhost/mock" {
					t.Errorf("Database.DSN = %q, postgres DSN must not be rewritten", c.Database.DSN)
				}
			},
		},
		{
			name:    "postgres without dsn",
			file:    "config.json",
			content: `{"database": {"driver": "postgres"}}`,
			wantErr: true,
			errMsg:  "database.dsn is required",
		},
		{
			name:    "disabled postgres without dsn",
			file:    "config.json",
			content: `{"database": {"driver": "postgres", "disabled": true}}`,
			validate: func(t *testing.T, _ string, c *Config) {
				if !c.Database.Disabled {
					t.Error("Database.Disabled = false, want true")
				}
			},
		},
		{
			name:    "unknown driver",
			file:    "config.json",
			content: `{"database": {"driver": "mysql"}}`,
			wantErr: true,
			errMsg:  "invalid database driver",
		},
		{
			name:    "port out of range",
			file:    "config.json",
			content: `{"web": {"port": 70000}}`,
			wantErr: true,
			errMsg:  "invalid web.port",
		},
		{
			name:    "negative timeout",
			file:    "config.json",
			content: `{"engine": {"timeout_seconds": -5}}`,
			wantErr: true,
			errMsg:  "engine.timeout_seconds must be positive",
		},
		{
			name:    "bad log level",
			file:    "config.json",
			content: `{"debug": {"log_level": "verbose"}}`,
			wantErr: true,
			errMsg:  "invalid log level",
		},
		{
			name:    "invalid json",
			file:    "config.json",
			content: `{invalid json`,
			wantErr: true,
			errMsg:  "failed to parse config file",
		},
		{
			name:    "invalid yaml",
			file:    "config.yml",
			content: "engine: [unterminated",
			wantErr: true,
			errMsg:  "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			tmpDir := t.TempDir()
			tmpFile := filepath.Join(tmpDir, tt.file)

			if err := os.WriteFile(tmpFile, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test file: %v", err)
			}

			got, err := Load(tmpFile)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() error = nil, want error containing %q", tt.errMsg)
					return
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Load() unexpected error = %v", err)
			}

			if tt.validate != nil {
				tt.validate(t, tmpDir, got)
			}
		})
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	if err == nil {
		t.Fatal("Load() should error for nonexistent file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %q, want error containing 'failed to read config file'", err.Error())
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PYTHON_EXEC", "/venv/bin/python")
	t.Setenv("TRANSCRIBE_ENTRYPOINT", "/srv/engine/run.py")
	t.Setenv("TRANSCRIBE_WORKDIR", "/srv/engine")
	t.Setenv("TRANSCRIBE_TIMEOUT_SECONDS", "45")
	t.Setenv("DATABASE_URL", "postgres://db/mock")
	t.Setenv("PORT", "3000")

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	content := `{"engine": {"executable": "python3", "timeout_seconds": 10}, "web": {"port": 8081}}`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	c, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}

	if c.Engine.Executable != "/venv/bin/python" {
		t.Errorf("Engine.Executable = %q, want /venv/bin/python", c.Engine.Executable)
	}
	if c.Engine.EntryPoint != "/srv/engine/run.py" {
		t.Errorf("Engine.EntryPoint = %q", c.Engine.EntryPoint)
	}
	if c.Engine.WorkDir != "/srv/engine" {
		t.Errorf("Engine.WorkDir = %q", c.Engine.WorkDir)
	}
	if c.EngineTimeout() != 45*time.Second {
		t.Errorf("EngineTimeout() = %v, want 45s", c.EngineTimeout())
	}
	if c.Database.Driver != "postgres" || c.Database.DSN != "postgres://db/mock" {
		t.Errorf("Database = %+v, want postgres://db/mock", c.Database)
	}
	if c.Web.Port != 3000 {
		t.Errorf("Web.Port = %d, want 3000", c.Web.Port)
	}
}

func TestEnvOverridesInvalid(t *testing.T) {
	tests := []struct {
		key    string
		value  string
		errMsg string
	}{
		{"TRANSCRIBE_TIMEOUT_SECONDS", "soon", "invalid TRANSCRIBE_TIMEOUT_SECONDS"},
		{"TRANSCRIBE_TIMEOUT_SECONDS", "0", "engine.timeout_seconds must be positive"},
		{"TRANSCRIBE_TIMEOUT_SECONDS", "-5", "engine.timeout_seconds must be positive"},
		{"PORT", "http", "invalid PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Default()
			if err == nil {
				t.Fatalf("Default() error = nil, want error containing %q", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Default() error = %q, want error containing %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdirForTest(t, dir)

	c, err := Default()
	if err != nil {
		t.Fatalf("Default() unexpected error = %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get current directory: %v", err)
	}
	if c.Engine.EntryPoint != filepath.Join(cwd, DefaultEntryPoint) {
		t.Errorf("Engine.EntryPoint = %q, want it under %q", c.Engine.EntryPoint, cwd)
	}
	if c.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q, want 0.0.0.0:8080", c.Addr())
	}
	if c.Upload.MaxBytes != 25<<20 {
		t.Errorf("Upload.MaxBytes = %d, want %d", c.Upload.MaxBytes, 25<<20)
	}
	if c.Engine.DefaultLanguage != "en" {
		t.Errorf("Engine.DefaultLanguage = %q, want en", c.Engine.DefaultLanguage)
	}
	if c.Debug.LogLevel != "info" {
		t.Errorf("Debug.LogLevel = %q, want info", c.Debug.LogLevel)
	}
}

func TestSQLiteMemoryDSN(t *testing.T) {
	clearEnv(t)
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(tmpFile, []byte(`{"database": {"dsn": ":memory:"}}`), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	c, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}
	if c.Database.DSN != ":memory:" {
		t.Errorf("Database.DSN = %q, want :memory:", c.Database.DSN)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Engine:   EngineConfig{Executable: "python3", EntryPoint: "/a/b.py", TimeoutSeconds: 10},
			Upload:   UploadConfig{Dir: "/tmp/up", MaxBytes: 1024},
			Web:      WebConfig{Host: "localhost", Port: 8080},
			Database: DatabaseConfig{Driver: "sqlite", DSN: "/tmp/x.db"},
			Debug:    DebugConfig{LogLevel: "debug"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "blank executable", mutate: func(c *Config) { c.Engine.Executable = "  " }, wantErr: "engine.executable is required"},
		{name: "blank entry point", mutate: func(c *Config) { c.Engine.EntryPoint = "" }, wantErr: "engine.entry_point is required"},
		{name: "zero timeout", mutate: func(c *Config) { c.Engine.TimeoutSeconds = 0 }, wantErr: "engine.timeout_seconds must be positive"},
		{name: "negative upload limit", mutate: func(c *Config) { c.Upload.MaxBytes = -1 }, wantErr: "upload.max_bytes must be positive"},
		{name: "zero port", mutate: func(c *Config) { c.Web.Port = 0 }, wantErr: "invalid web.port"},
		{name: "postgresql alias", mutate: func(c *Config) { c.Database.Driver = "postgresql" }},
		{name: "sqlite3 alias", mutate: func(c *Config) { c.Database.Driver = "sqlite3" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefault(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	chdirForTest(t, tmpDir)

	// No config file exists
	_, err := LoadDefault()
	if err == nil {
		t.Fatal("LoadDefault() should error when no config file exists")
	}
	if !errors.Is(err, ErrNoConfigFile) {
		t.Errorf("LoadDefault() error = %v, want ErrNoConfigFile", err)
	}

	// YAML config in current directory
	if err := os.WriteFile(".mockinterview.yaml", []byte("web:\n  port: 9000\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() unexpected error = %v", err)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("LoadDefault() Web.Port = %d, want 9000", cfg.Web.Port)
	}

	// JSON wins over YAML in the same directory
	if err := os.WriteFile(".mockinterview.json", []byte(`{"web": {"port": 9001}}`), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err = LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() unexpected error = %v", err)
	}
	if cfg.Web.Port != 9001 {
		t.Errorf("LoadDefault() Web.Port = %d, want 9001", cfg.Web.Port)
	}
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains:
// it changes the working directory and restores it when the test ends.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(abs); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", abs)
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			panic("testing: failed to restore working directory: " + err.Error())
		}
	})
}
