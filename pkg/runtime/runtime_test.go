package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/graftwork/graft/pkg/acquirer"
	"github.com/graftwork/graft/pkg/config"
	"github.com/graftwork/graft/pkg/deploy"
)

// baseConfig turns every optional subsystem off so tests exercise only
// the lifecycle under test.
func baseConfig(t *testing.T, payloads string) *config.Config {
	t.Helper()
	cfg := config.New()
	data := `
[state]
journal = DISABLED

[plugins]
dir = ` + filepath.Join(t.TempDir(), "no-plugins") + `

[policy]
dir = ` + filepath.Join(t.TempDir(), "no-policies") + `
builtin = false

[telemetry]
tracing = disabled

` + payloads
	if err := cfg.LoadData([]byte(data)); err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	return cfg
}

// sourceDir creates a payload source with one exec step that touches
// marker in the payload directory.
func sourceDir(t *testing.T, marker string) string {
	t.Helper()
	src := t.TempDir()
	cfgDir := filepath.Join(src, deploy.ConfigDirName)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	step := "exec: touch " + marker + "\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "steps.yaml"), []byte(step), 0o644); err != nil {
		t.Fatal(err)
	}
	return src
}

func newRuntime(t *testing.T, cfg *config.Config) *Runtime {
	t.Helper()
	r, err := New(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close(context.Background()) })
	return r
}

func TestRunHappyPath(t *testing.T) {
	cfg := baseConfig(t, `
[payload:first]
acquire_method = local
[payload:first:local]
path = `+sourceDir(t, "first.done")+`

[payload:second]
acquire_method = local
[payload:second:local]
path = `+sourceDir(t, "second.done")+`
`)
	r := newRuntime(t, cfg)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, p := range r.Payloads().All() {
		marker := filepath.Join(p.Directory(), p.Name()+".done")
		if _, err := os.Stat(marker); err != nil {
			t.Errorf("payload %s step did not run: %v", p.Name(), err)
		}
	}
}

func TestRunAcquireFailFast(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nowhere")
	cfg := baseConfig(t, `
[payload:broken]
acquire_method = local
[payload:broken:local]
path = `+missing+`

[payload:after]
acquire_method = local
[payload:after:local]
path = `+sourceDir(t, "after.done")+`
`)
	r := newRuntime(t, cfg)
	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected acquisition failure")
	}
	var acqErr *acquirer.AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected AcquisitionError, got %v", err)
	}

	// The second payload was never touched: no acquisition, no steps.
	after := r.Payloads().Get("after")
	if after.Acquired() {
		t.Error("later payload was acquired after an earlier failure")
	}
	if _, err := os.Stat(after.Directory()); !os.IsNotExist(err) {
		t.Errorf("later payload directory exists: %v", err)
	}
}

func TestRunDeployFailFastAcrossPayloads(t *testing.T) {
	// First payload's only step fails; the second payload acquires but
	// never deploys.
	src := t.TempDir()
	cfgDir := filepath.Join(src, deploy.ConfigDirName)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "steps.yaml"), []byte("exec: exit 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig(t, `
[payload:failing]
acquire_method = local
[payload:failing:local]
path = `+src+`

[payload:after]
acquire_method = local
[payload:after:local]
path = `+sourceDir(t, "after.done")+`
`)
	r := newRuntime(t, cfg)
	err := r.Run(context.Background())
	var depErr *deploy.DeploymentError
	if !errors.As(err, &depErr) {
		t.Fatalf("expected DeploymentError, got %v", err)
	}
	if depErr.ExitCode != 3 {
		t.Errorf("exit code: %d", depErr.ExitCode)
	}

	after := r.Payloads().Get("after")
	if !after.Acquired() {
		t.Error("acquisition phase did not complete before deployment started")
	}
	if _, err := os.Stat(filepath.Join(after.Directory(), "after.done")); err == nil {
		t.Error("later payload deployed after an earlier failure")
	}
}

func TestRunPolicyDeny(t *testing.T) {
	policyDir := t.TempDir()
	deny := `package graft.site

import rego.v1

deny contains msg if {
	some p in input.payloads
	p.environment == "production"
	msg := sprintf("payload %s blocked", [p.name])
}
`
	if err := os.WriteFile(filepath.Join(policyDir, "deny.rego"), []byte(deny), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.New()
	data := `
[state]
journal = DISABLED

[plugins]
dir = ` + filepath.Join(t.TempDir(), "no-plugins") + `

[policy]
dir = ` + policyDir + `
builtin = false

[telemetry]
tracing = disabled

[payload:web]
acquire_method = local
[payload:web:local]
path = ` + sourceDir(t, "web.done") + `
`
	if err := cfg.LoadData([]byte(data)); err != nil {
		t.Fatalf("LoadData: %v", err)
	}

	r := newRuntime(t, cfg)
	err := r.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "policy denied run") {
		t.Fatalf("expected policy denial, got %v", err)
	}

	// Denied between phases: acquired, never deployed.
	web := r.Payloads().Get("web")
	if !web.Acquired() {
		t.Error("payload was not acquired before the policy gate")
	}
	if _, err := os.Stat(filepath.Join(web.Directory(), "web.done")); err == nil {
		t.Error("payload deployed despite policy denial")
	}
}

func TestTmpDirStableAndRemoved(t *testing.T) {
	cfg := baseConfig(t, "")
	r, err := New(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := r.TmpDir()
	if err != nil {
		t.Fatalf("TmpDir: %v", err)
	}
	second, err := r.TmpDir()
	if err != nil {
		t.Fatalf("TmpDir: %v", err)
	}
	if first != second {
		t.Errorf("scratch directory changed between calls: %s vs %s", first, second)
	}
	if _, err := os.Stat(first); err != nil {
		t.Fatalf("scratch directory missing: %v", err)
	}

	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Errorf("scratch directory not removed: %v", err)
	}
}
