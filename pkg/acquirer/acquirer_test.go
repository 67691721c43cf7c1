package acquirer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/graftwork/graft/pkg/config"
	"github.com/graftwork/graft/pkg/plugin"
)

func loadConfig(t *testing.T, data string) *config.Config {
	t.Helper()
	cfg := config.New()
	if err := cfg.LoadData([]byte(data)); err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestNewUnknownMethod(t *testing.T) {
	cfg := loadConfig(t, "")
	_, err := New(cfg, "teleport", "payload:web:teleport")
	if err == nil {
		t.Fatal("expected error for unknown method, got nil")
	}
	var le *plugin.LookupError
	if !errors.As(err, &le) {
		t.Fatalf("expected LookupError, got %T", err)
	}
}

func TestBuiltinsRegistered(t *testing.T) {
	for _, name := range []string{"git", "sftp", "http", "local"} {
		if _, err := Registry.Lookup(name); err != nil {
			t.Errorf("builtin %q not registered: %v", name, err)
		}
	}
}

func TestGitConfigure(t *testing.T) {
	cfg := loadConfig(t, `
[payload:web:git]
repository = https://git.example.com/web.git
`)
	a, err := New(cfg, "git", "payload:web:git")
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	g := a.(*gitAcquirer)
	if g.repository != "https://git.example.com/web.git" {
		t.Errorf("unexpected repository: %q", g.repository)
	}
	if g.revision != "HEAD" {
		t.Errorf("expected default revision HEAD, got %q", g.revision)
	}
	// The default must now be visible in the configuration section.
	if got := cfg.Value("payload:web:git", "revision"); got != "HEAD" {
		t.Errorf("expected revision written back, got %q", got)
	}
}

func TestGitConfigureMissingRepository(t *testing.T) {
	cfg := loadConfig(t, "[payload:web:git]\nrevision = main\n")
	_, err := New(cfg, "git", "payload:web:git")
	if err == nil {
		t.Fatal("expected error for missing repository, got nil")
	}
	var ce *config.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
	if ce.Key != "repository" {
		t.Errorf("error does not name the missing key: %v", ce)
	}
}

func TestSFTPConfigureDefaults(t *testing.T) {
	cfg := loadConfig(t, `
[payload:db:sftp]
host = files.example.com
path = /srv/payloads/db
`)
	a, err := New(cfg, "sftp", "payload:db:sftp")
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	s := a.(*sftpAcquirer)
	if s.user != "root" || s.port != "22" {
		t.Errorf("unexpected defaults: user=%q port=%q", s.user, s.port)
	}
	if s.knownHosts != defaultKnownHosts {
		t.Errorf("unexpected known_hosts default: %q", s.knownHosts)
	}
}

func TestHTTPConfigureChecksumShape(t *testing.T) {
	cfg := loadConfig(t, `
[payload:app:http]
url = https://example.com/app.tar.gz
checksum = md5:abcdef
`)
	_, err := New(cfg, "http", "payload:app:http")
	if err == nil {
		t.Fatal("expected error for non-sha256 checksum, got nil")
	}
}

func TestLocalFetch(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, ".graft"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, ".graft", "setup.yaml"), []byte("exec: echo hi\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "script"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := loadConfig(t, "[payload:web:local]\npath = "+src+"\n")
	a, err := New(cfg, "local", "payload:web:local")
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "web")
	if err := a.Fetch(context.Background(), dir); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, ".graft", "setup.yaml")); err != nil {
		t.Errorf("expected step file copied: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "script"))
	if err != nil {
		t.Fatalf("expected script copied: %v", err)
	}
	if info.Mode()&0o111 == 0 {
		t.Error("expected executable bit preserved on copied script")
	}
}

func TestLocalFetchMissingSource(t *testing.T) {
	cfg := loadConfig(t, "[payload:web:local]\npath = /no/such/dir\n")
	a, err := New(cfg, "local", "payload:web:local")
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	err = a.Fetch(context.Background(), filepath.Join(t.TempDir(), "web"))
	if err == nil {
		t.Fatal("expected fetch error, got nil")
	}
	var ae *AcquisitionError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AcquisitionError, got %T", err)
	}
	if ae.Method != "local" {
		t.Errorf("error does not name the method: %v", ae)
	}
}
