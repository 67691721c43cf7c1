// Package runtime assembles the configured subsystems and drives a run:
// acquire every payload, gate on policy, deploy every payload. The
// runtime owns the scratch directory payloads are materialized into and
// removes it when the process is done with them.
package runtime

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/graftwork/graft/pkg/config"
	"github.com/graftwork/graft/pkg/deploy"
	"github.com/graftwork/graft/pkg/journal"
	"github.com/graftwork/graft/pkg/payload"
	"github.com/graftwork/graft/pkg/plugin"
	"github.com/graftwork/graft/pkg/policy"
	"github.com/graftwork/graft/pkg/telemetry"
)

// Runtime is one assembled orchestrator process.
type Runtime struct {
	cfg     *config.Config
	version string

	tmpDir   string
	payloads *payload.Registry
	journal  *journal.Journal
	policy   *policy.Engine
	tracer   *telemetry.Tracer
	metrics  *telemetry.Metrics
	host     *plugin.Host

	metricsFile string
}

// New assembles a runtime from a loaded configuration. External handler
// plugins are compiled and registered here; the journal is opened
// best-effort, a broken journal degrades to no history rather than a
// failed run.
func New(ctx context.Context, cfg *config.Config, version string) (*Runtime, error) {
	r := &Runtime{cfg: cfg, version: version}

	pluginsCfg, err := cfg.Plugins()
	if err != nil {
		return nil, err
	}
	r.host, err = plugin.NewHost(ctx)
	if err != nil {
		return nil, err
	}
	modules, err := r.host.LoadDir(ctx, pluginsCfg.Dir)
	if err != nil {
		r.host.Close(ctx)
		return nil, err
	}
	if err := deploy.RegisterExternal(modules); err != nil {
		r.host.Close(ctx)
		return nil, err
	}
	for _, m := range modules {
		log.Debug().Str("plugin", m.Name()).Str("path", m.Path()).Msg("registered external handler")
	}

	policyCfg, err := cfg.Policy()
	if err != nil {
		r.host.Close(ctx)
		return nil, err
	}
	r.policy, err = policy.NewEngine(ctx, policyCfg.Dir, policyCfg.Builtin)
	if err != nil {
		r.host.Close(ctx)
		return nil, err
	}

	telemetryCfg, err := cfg.Telemetry()
	if err != nil {
		r.host.Close(ctx)
		return nil, err
	}
	r.tracer, err = telemetry.NewTracer(ctx, telemetryCfg, version)
	if err != nil {
		r.host.Close(ctx)
		return nil, err
	}
	if telemetryCfg.MetricsFile != "" {
		r.metrics = telemetry.NewMetrics()
		r.metricsFile = telemetryCfg.MetricsFile
	}

	stateCfg, err := cfg.State()
	if err != nil {
		r.host.Close(ctx)
		return nil, err
	}
	if stateCfg.Journal != config.Disabled {
		j, err := journal.Open(ctx, stateCfg.Journal)
		if err != nil {
			log.Warn().Err(err).Str("path", stateCfg.Journal).Msg("journal unavailable, run history will not be recorded")
		} else {
			r.journal = j
		}
	}

	payloadsDir, err := r.PayloadsDir()
	if err != nil {
		r.host.Close(ctx)
		return nil, err
	}
	r.payloads, err = payload.NewRegistry(cfg, payloadsDir)
	if err != nil {
		r.host.Close(ctx)
		return nil, err
	}
	return r, nil
}

// TmpDir returns the runtime's scratch directory, creating it on first
// use. Repeated calls return the same directory.
func (r *Runtime) TmpDir() (string, error) {
	if r.tmpDir == "" {
		dir, err := os.MkdirTemp("", "graft-")
		if err != nil {
			return "", err
		}
		r.tmpDir = dir
	}
	return r.tmpDir, nil
}

// PayloadsDir returns the directory payloads are acquired under.
func (r *Runtime) PayloadsDir() (string, error) {
	tmpDir, err := r.TmpDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(tmpDir, "payloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Payloads returns the configured payload registry.
func (r *Runtime) Payloads() *payload.Registry {
	return r.payloads
}

// Journal returns the run journal, nil when disabled or unavailable.
func (r *Runtime) Journal() *journal.Journal {
	return r.journal
}

// Close releases every subsystem and removes the scratch directory with
// all acquired payload contents.
func (r *Runtime) Close(ctx context.Context) error {
	var firstErr error
	if r.host != nil {
		if err := r.host.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := r.journal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.tracer.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if r.tmpDir != "" {
		if err := os.RemoveAll(r.tmpDir); err != nil && firstErr == nil {
			firstErr = err
		}
		r.tmpDir = ""
	}
	return firstErr
}
