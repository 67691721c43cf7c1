package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graft.ini")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestConfig_LoadOnce(t *testing.T) {
	path := writeConfig(t, "[bootstrap]\nsource = https://example.com/graft\n")

	cfg := New()
	if err := cfg.Load(path); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if !cfg.Loaded() {
		t.Error("expected Loaded() to be true after Load")
	}

	err := cfg.Load(path)
	if err == nil {
		t.Fatal("expected error on second load, got nil")
	}
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestConfig_LoadMissingFile(t *testing.T) {
	cfg := New()
	err := cfg.Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestConfig_LoadPathEnv(t *testing.T) {
	path := writeConfig(t, "[payload:web]\nacquire_method = git\n")
	t.Setenv(PathEnv, path)

	cfg := New()
	if err := cfg.Load(""); err != nil {
		t.Fatalf("load via %s: %v", PathEnv, err)
	}
	if cfg.Path() != path {
		t.Errorf("expected path %q, got %q", path, cfg.Path())
	}
}

func TestConfig_Absorb(t *testing.T) {
	cfg := New()
	if err := cfg.LoadData([]byte("[payload:web:git]\nrepository = https://git.example.com/web.git\n")); err != nil {
		t.Fatalf("load: %v", err)
	}

	opts, err := cfg.Absorb("payload:web:git",
		[]string{"repository"},
		map[string]string{"revision": "HEAD"})
	if err != nil {
		t.Fatalf("absorb: %v", err)
	}
	if opts["repository"] != "https://git.example.com/web.git" {
		t.Errorf("unexpected repository: %q", opts["repository"])
	}
	if opts["revision"] != "HEAD" {
		t.Errorf("expected default revision HEAD, got %q", opts["revision"])
	}

	// The default must be written back so later readers observe it.
	if got := cfg.Value("payload:web:git", "revision"); got != "HEAD" {
		t.Errorf("expected default written back to section, got %q", got)
	}
}

func TestConfig_AbsorbRequiredMissing(t *testing.T) {
	cfg := New()
	if err := cfg.LoadData([]byte("[payload:web:git]\nrevision = main\n")); err != nil {
		t.Fatalf("load: %v", err)
	}

	_, err := cfg.Absorb("payload:web:git", []string{"repository"}, nil)
	if err == nil {
		t.Fatal("expected error for missing required option, got nil")
	}
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
	if ce.Section != "payload:web:git" || ce.Key != "repository" {
		t.Errorf("error does not identify section/key: %v", ce)
	}
}

func TestConfig_PayloadNames(t *testing.T) {
	data := `
[bootstrap]
source = https://example.com/graft

[payload:web]
acquire_method = git

[payload:web:git]
repository = https://git.example.com/web.git

[payload:db]
acquire_method = sftp

[payload:]
acquire_method = git

[other]
key = value
`
	cfg := New()
	if err := cfg.LoadData([]byte(data)); err != nil {
		t.Fatalf("load: %v", err)
	}

	got := cfg.PayloadNames()
	want := []string{"web", "db"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestConfig_SectionNames(t *testing.T) {
	if got := PayloadSection("web"); got != "payload:web" {
		t.Errorf("PayloadSection: got %q", got)
	}
	if got := MethodSection("web", "git"); got != "payload:web:git" {
		t.Errorf("MethodSection: got %q", got)
	}
}

func TestConfig_Bootstrap(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
		entry   string
	}{
		{
			name:  "entry defaults to run",
			data:  "[bootstrap]\nsource = https://example.com/graft\n",
			entry: "run",
		},
		{
			name:  "explicit entry",
			data:  "[bootstrap]\nsource = https://example.com/graft\nentry = run --install-prereqs\n",
			entry: "run --install-prereqs",
		},
		{
			name:    "missing source",
			data:    "[bootstrap]\nentry = run\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			if err := cfg.LoadData([]byte(tt.data)); err != nil {
				t.Fatalf("load: %v", err)
			}
			bc, err := cfg.Bootstrap()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("bootstrap: %v", err)
			}
			if bc.Entry != tt.entry {
				t.Errorf("expected entry %q, got %q", tt.entry, bc.Entry)
			}
		})
	}
}

func TestConfig_LoggingDefaults(t *testing.T) {
	cfg := New()
	if err := cfg.LoadData([]byte("")); err != nil {
		t.Fatalf("load: %v", err)
	}

	lc, err := cfg.Logging()
	if err != nil {
		t.Fatalf("logging: %v", err)
	}
	if lc.Console != "INFO" {
		t.Errorf("expected console INFO, got %q", lc.Console)
	}
	if lc.Syslog != Disabled {
		t.Errorf("expected syslog %s, got %q", Disabled, lc.Syslog)
	}
	if lc.SyslogFacility != "user" {
		t.Errorf("expected facility user, got %q", lc.SyslogFacility)
	}
}

func TestConfig_TelemetryValidation(t *testing.T) {
	cfg := New()
	if err := cfg.LoadData([]byte("[telemetry]\ntracing = carrier-pigeon\n")); err != nil {
		t.Fatalf("load: %v", err)
	}

	_, err := cfg.Telemetry()
	if err == nil {
		t.Fatal("expected error for unknown tracing exporter, got nil")
	}
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestConfig_StateDefaults(t *testing.T) {
	cfg := New()
	if err := cfg.LoadData([]byte("")); err != nil {
		t.Fatalf("load: %v", err)
	}

	sc, err := cfg.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if sc.Journal != DefaultJournalPath {
		t.Errorf("expected default journal path, got %q", sc.Journal)
	}

	cfg2 := New()
	if err := cfg2.LoadData([]byte("[state]\njournal = DISABLED\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	sc2, err := cfg2.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if sc2.Journal != Disabled {
		t.Errorf("expected %s, got %q", Disabled, sc2.Journal)
	}
}
