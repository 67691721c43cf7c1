package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// Host compiles and runs external plugins. Plugins are WASI command
// modules: each step execution instantiates the module once, feeds it a
// JSON document on stdin, and reads success from the exit status.
type Host struct {
	runtime wazero.Runtime
}

// NewHost creates a WebAssembly host.
func NewHost(ctx context.Context) (*Host, error) {
	runtimeConfig := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true)

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	return &Host{runtime: runtime}, nil
}

// Close releases the runtime and every compiled module.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

// Module is a compiled plugin, ready to run.
type Module struct {
	name     string
	path     string
	host     *Host
	compiled wazero.CompiledModule
}

// Name is the plugin identifier: the file name without the .wasm suffix.
func (m *Module) Name() string { return m.name }

// Path is the file the module was compiled from.
func (m *Module) Path() string { return m.path }

// Run instantiates the module and executes it to completion. stdin is fed
// to the module, env becomes its environment, and stdout/stderr stream
// through to the process's own. Each mount preopens a host directory at
// the same guest path, which is all the filesystem the plugin sees. A
// non-zero exit status is an error.
func (m *Module) Run(ctx context.Context, stdin []byte, env map[string]string, mounts []string) error {
	fsConfig := wazero.NewFSConfig()
	for _, dir := range mounts {
		fsConfig = fsConfig.WithDirMount(dir, dir)
	}
	moduleConfig := wazero.NewModuleConfig().
		WithName("").
		WithArgs(m.name).
		WithStdin(bytes.NewReader(stdin)).
		WithStdout(os.Stdout).
		WithStderr(os.Stderr).
		WithFSConfig(fsConfig)
	for _, key := range sortedKeys(env) {
		moduleConfig = moduleConfig.WithEnv(key, env[key])
	}

	instance, err := m.host.runtime.InstantiateModule(ctx, m.compiled, moduleConfig)
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.ExitCode() == 0 {
				return nil
			}
			return fmt.Errorf("plugin %s exited with status %d", m.name, exitErr.ExitCode())
		}
		return fmt.Errorf("plugin %s failed: %w", m.name, err)
	}
	return instance.Close(ctx)
}

// LoadDir compiles every *.wasm file directly under dir, sorted by file
// name. A missing directory is not an error: hosts without external
// plugins simply have nothing to load. A file that fails to compile is a
// LookupError naming it.
func (h *Host) LoadDir(ctx context.Context, dir string) ([]*Module, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plugin directory %s: %w", dir, err)
	}

	var modules []*Module
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".wasm") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".wasm")
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &LookupError{Kind: "plugin", Name: name, Reason: "cannot load plugin", Err: err}
		}
		compiled, err := h.runtime.CompileModule(ctx, data)
		if err != nil {
			return nil, &LookupError{Kind: "plugin", Name: name, Reason: "cannot load plugin", Err: err}
		}
		modules = append(modules, &Module{
			name:     name,
			path:     path,
			host:     h,
			compiled: compiled,
		})
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].name < modules[j].name })
	return modules, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
