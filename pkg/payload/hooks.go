package payload

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/graftwork/graft/pkg/deploy"
	"github.com/graftwork/graft/pkg/environ"
)

// Lifecycle hook names. A payload carrying an executable script of this
// name under .graft/hooks/ has it invoked at the matching point of the
// run.
const (
	HookPostAcquire = "post-acquire"
	HookPreDeploy   = "pre-deploy"
	HookPostDeploy  = "post-deploy"
)

// Hook invocation labels: the first argument tells the script whether it
// is seeing the full payload list or the subset that failed.
const (
	LabelPayloads       = "payloads"
	LabelFailedPayloads = "failed-payloads"
)

// hookPath returns the script path for the named hook, or "" when the
// payload does not carry one.
func (p *Payload) hookPath(hook string) string {
	path := filepath.Join(p.dir, deploy.ConfigDirName, deploy.HooksDirName, hook)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Mode()&0o111 == 0 {
		return ""
	}
	return path
}

// CallHook invokes the payload's script for the named hook, passing the
// label and the given payload names as arguments. Hooks are best-effort:
// a missing script is a silent no-op and a failing one is logged, never
// propagated. The run's outcome does not hinge on its observers.
func (p *Payload) CallHook(ctx context.Context, hook, label string, names []string) {
	script := p.hookPath(hook)
	if script == "" {
		return
	}

	log.Debug().
		Str("payload", p.name).
		Str("hook", hook).
		Str("label", label).
		Msg("invoking hook")

	runner := &environ.Runner{Environment: p.environment}
	argv := append([]string{script, label}, names...)
	output, code, err := runner.Output(ctx, p.dir, argv)
	if err != nil {
		log.Warn().
			Str("payload", p.name).
			Str("hook", hook).
			Err(err).
			Msg("hook could not run")
		return
	}
	if code != 0 {
		log.Warn().
			Str("payload", p.name).
			Str("hook", hook).
			Int("status", code).
			Str("output", output).
			Msg("hook returned failure")
	}
}

// CallHooks invokes the named hook on every acquired payload in the
// registry, in declaration order.
func (r *Registry) CallHooks(ctx context.Context, hook, label string, names []string) {
	for _, p := range r.payloads {
		if !p.acquired {
			continue
		}
		p.CallHook(ctx, hook, label, names)
	}
}
