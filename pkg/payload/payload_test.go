package payload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/graftwork/graft/pkg/config"
	"github.com/graftwork/graft/pkg/deploy"
	"github.com/graftwork/graft/pkg/plugin"
)

func loadConfig(t *testing.T, data string) *config.Config {
	t.Helper()
	cfg := config.New()
	if err := cfg.LoadData([]byte(data)); err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	return cfg
}

func TestNewPayloadDefaults(t *testing.T) {
	src := t.TempDir()
	cfg := loadConfig(t, `
[payload:web]
acquire_method = local

[payload:web:local]
path = `+src+`
`)
	p, err := NewPayload(cfg, "web", "/run/payloads")
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	if p.Name() != "web" {
		t.Errorf("name: %s", p.Name())
	}
	if p.Environment() != DefaultEnvironment {
		t.Errorf("environment: got %s, want %s", p.Environment(), DefaultEnvironment)
	}
	if p.Method() != "local" {
		t.Errorf("method: %s", p.Method())
	}
	if p.Directory() != "/run/payloads/web" {
		t.Errorf("directory: %s", p.Directory())
	}
	if p.Acquired() {
		t.Error("payload reports acquired before Acquire")
	}
}

func TestNewPayloadMissingMethod(t *testing.T) {
	cfg := loadConfig(t, "[payload:web]\nenvironment = staging\n")
	_, err := NewPayload(cfg, "web", "/run/payloads")
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Key != "acquire_method" {
		t.Errorf("key: %s", cfgErr.Key)
	}
}

func TestNewPayloadUnknownMethod(t *testing.T) {
	cfg := loadConfig(t, "[payload:web]\nacquire_method = teleport\n")
	_, err := NewPayload(cfg, "web", "/run/payloads")
	var lookupErr *plugin.LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected LookupError, got %v", err)
	}
	if lookupErr.Name != "teleport" {
		t.Errorf("name: %s", lookupErr.Name)
	}
}

func TestDeployBeforeAcquire(t *testing.T) {
	src := t.TempDir()
	cfg := loadConfig(t, `
[payload:web]
acquire_method = local

[payload:web:local]
path = `+src+`
`)
	p, err := NewPayload(cfg, "web", t.TempDir())
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	err = p.Deploy(context.Background())
	var depErr *deploy.DeploymentError
	if !errors.As(err, &depErr) {
		t.Fatalf("expected DeploymentError, got %v", err)
	}
	if depErr.Reason != "payload has not been acquired" {
		t.Errorf("reason: %s", depErr.Reason)
	}
}

func TestAcquireThenDeploy(t *testing.T) {
	src := t.TempDir()
	cfgDir := filepath.Join(src, deploy.ConfigDirName)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "steps.yaml"), []byte("exec: touch done.txt\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := loadConfig(t, `
[payload:web]
acquire_method = local
environment = staging

[payload:web:local]
path = `+src+`
`)
	p, err := NewPayload(cfg, "web", t.TempDir())
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !p.Acquired() {
		t.Fatal("payload does not report acquired")
	}
	if err := p.Deploy(context.Background()); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if _, err := os.Stat(filepath.Join(p.Directory(), "done.txt")); err != nil {
		t.Errorf("step did not run in payload directory: %v", err)
	}
}

func TestRegistryDeclarationOrder(t *testing.T) {
	src := t.TempDir()
	cfg := loadConfig(t, `
[payload:zeta]
acquire_method = local
[payload:zeta:local]
path = `+src+`

[payload:alpha]
acquire_method = local
[payload:alpha:local]
path = `+src+`
`)
	r, err := NewRegistry(cfg, "/run/payloads")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 payloads, got %d", r.Len())
	}
	if r.All()[0].Name() != "zeta" || r.All()[1].Name() != "alpha" {
		t.Errorf("unexpected order: %s, %s", r.All()[0].Name(), r.All()[1].Name())
	}
	if r.Get("alpha") == nil || r.Get("missing") != nil {
		t.Error("Get lookup broken")
	}
}

func TestRegistryFailsOnBadPayload(t *testing.T) {
	src := t.TempDir()
	cfg := loadConfig(t, `
[payload:good]
acquire_method = local
[payload:good:local]
path = `+src+`

[payload:bad]
environment = staging
`)
	if _, err := NewRegistry(cfg, "/run/payloads"); err == nil {
		t.Fatal("expected error for payload without acquire_method")
	}
}

func TestHooks(t *testing.T) {
	src := t.TempDir()
	hooksDir := filepath.Join(src, deploy.ConfigDirName, deploy.HooksDirName)
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// The hook records its arguments so the test can see label and names.
	script := "#!/bin/sh\necho \"$@\" > hook-args.txt\n"
	if err := os.WriteFile(filepath.Join(hooksDir, HookPostAcquire), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := loadConfig(t, `
[payload:web]
acquire_method = local
[payload:web:local]
path = `+src+`
`)
	p, err := NewPayload(cfg, "web", t.TempDir())
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	p.CallHook(context.Background(), HookPostAcquire, LabelPayloads, []string{"web", "db"})

	args, err := os.ReadFile(filepath.Join(p.Directory(), "hook-args.txt"))
	if err != nil {
		t.Fatalf("hook did not run: %v", err)
	}
	if string(args) != "payloads web db\n" {
		t.Errorf("hook arguments: %q", args)
	}

	// An absent hook and a failing hook are both silent no-ops.
	p.CallHook(context.Background(), HookPreDeploy, LabelPayloads, nil)
}

func TestHookNotExecutableIsSkipped(t *testing.T) {
	src := t.TempDir()
	hooksDir := filepath.Join(src, deploy.ConfigDirName, deploy.HooksDirName)
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(hooksDir, HookPostDeploy), []byte("#!/bin/sh\ntouch ran.txt\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := loadConfig(t, `
[payload:web]
acquire_method = local
[payload:web:local]
path = `+src+`
`)
	p, err := NewPayload(cfg, "web", t.TempDir())
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	p.CallHook(context.Background(), HookPostDeploy, LabelPayloads, nil)
	if _, err := os.Stat(filepath.Join(p.Directory(), "ran.txt")); err == nil {
		t.Error("non-executable hook was run")
	}
}
