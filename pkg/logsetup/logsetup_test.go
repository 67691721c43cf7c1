package logsetup

import (
	"errors"
	"log/syslog"
	"testing"

	"github.com/rs/zerolog"

	"github.com/graftwork/graft/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"Warning", zerolog.WarnLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"CRITICAL", zerolog.FatalLevel},
		{"FATAL", zerolog.FatalLevel},
		{"DISABLED", zerolog.Disabled},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.name, err)
			continue
		}
		if got != tt.level {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.level)
		}
	}
}

func TestParseLevelUnknown(t *testing.T) {
	_, err := ParseLevel("verbose")
	if err == nil {
		t.Fatal("expected error for unknown level, got nil")
	}
	var ce *config.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestParseFacility(t *testing.T) {
	got, err := ParseFacility("local3")
	if err != nil {
		t.Fatalf("ParseFacility: %v", err)
	}
	if got != syslog.LOG_LOCAL3 {
		t.Errorf("expected LOG_LOCAL3, got %v", got)
	}

	if _, err := ParseFacility("mainframe"); err == nil {
		t.Error("expected error for unknown facility, got nil")
	}
}

func TestConfigureDefaults(t *testing.T) {
	// Defaults must not touch syslog: a host without /dev/log would fail.
	if err := Configure(nil); err != nil {
		t.Fatalf("configure with defaults: %v", err)
	}
}

func TestConfigureConsoleEnvOverride(t *testing.T) {
	t.Setenv(ConsoleEnv, "carrier-pigeon")
	err := Configure(nil)
	if err == nil {
		t.Fatal("expected error for bad console override, got nil")
	}
}

func TestConfigureBothDisabled(t *testing.T) {
	cfg := config.New()
	data := "[logging]\nconsole = DISABLED\nsyslog = DISABLED\n"
	if err := cfg.LoadData([]byte(data)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Configure(cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
}
