package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeFactory func() string

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry[fakeFactory]("acquirer")

	first := fakeFactory(func() string { return "first" })
	if err := r.Register("git", first); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := r.Register("git", func() string { return "second" })
	if err == nil {
		t.Fatal("expected error on duplicate registration, got nil")
	}
	var re *RegistrationError
	if !errors.As(err, &re) {
		t.Fatalf("expected RegistrationError, got %T", err)
	}
	if re.Name != "git" {
		t.Errorf("expected name git, got %q", re.Name)
	}

	// The first binding must survive the collision.
	factory, err := r.Lookup("git")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if factory() != "first" {
		t.Error("duplicate registration replaced the original binding")
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := NewRegistry[fakeFactory]("deployment handler")
	r.MustRegister("exec", func() string { return "exec" })
	r.MustRegister("packages", func() string { return "packages" })

	_, err := r.Lookup("ansible")
	if err == nil {
		t.Fatal("expected error for unknown name, got nil")
	}
	var le *LookupError
	if !errors.As(err, &le) {
		t.Fatalf("expected LookupError, got %T", err)
	}
	msg := le.Error()
	for _, want := range []string{"ansible", "exec", "packages"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q does not mention %q", msg, want)
		}
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry[fakeFactory]("acquirer")
	r.MustRegister("sftp", func() string { return "" })
	r.MustRegister("git", func() string { return "" })
	r.MustRegister("local", func() string { return "" })

	got := r.Names()
	want := []string{"git", "local", "sftp"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	r := NewRegistry[fakeFactory]("acquirer")
	r.MustRegister("git", func() string { return "" })

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate MustRegister")
		}
	}()
	r.MustRegister("git", func() string { return "" })
}

func TestHost_LoadDirMissing(t *testing.T) {
	ctx := context.Background()
	h, err := NewHost(ctx)
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	defer h.Close(ctx)

	modules, err := h.LoadDir(ctx, filepath.Join(t.TempDir(), "no-such-dir"))
	if err != nil {
		t.Fatalf("expected missing dir to load nothing, got %v", err)
	}
	if len(modules) != 0 {
		t.Errorf("expected no modules, got %d", len(modules))
	}
}

func TestHost_LoadDirBadModule(t *testing.T) {
	ctx := context.Background()
	h, err := NewHost(ctx)
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	defer h.Close(ctx)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.wasm"), []byte("not wasm"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	_, err = h.LoadDir(ctx, dir)
	if err == nil {
		t.Fatal("expected error compiling garbage module, got nil")
	}
	var le *LookupError
	if !errors.As(err, &le) {
		t.Fatalf("expected LookupError, got %T", err)
	}
	if le.Name != "broken" {
		t.Errorf("expected plugin name broken, got %q", le.Name)
	}
}

func TestHost_LoadDirSkipsNonWASM(t *testing.T) {
	ctx := context.Background()
	h, err := NewHost(ctx)
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	defer h.Close(ctx)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("docs"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.wasm"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	modules, err := h.LoadDir(ctx, dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(modules) != 0 {
		t.Errorf("expected no modules, got %d", len(modules))
	}
}
