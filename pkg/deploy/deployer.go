package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ConfigDirName is the fixed-name subdirectory inside an acquired
	// payload that holds its step configuration.
	ConfigDirName = ".graft"

	// HooksDirName is the subdirectory of ConfigDirName holding
	// lifecycle hook scripts.
	HooksDirName = "hooks"
)

// Step is one configured deployment step. After Deploy runs, Status,
// Duration and Err record its outcome for the journal and metrics.
type Step struct {
	// Handler is the resolved handler name.
	Handler string

	// Source is the step file the step was declared in.
	Source string

	// Value is the handler's declarative configuration.
	Value any

	// Status is "pending", "ok", "failed" or "skipped".
	Status string

	// Duration is how long the step ran.
	Duration time.Duration

	// Err is the step's failure, if it failed.
	Err error

	impl Handler
}

// Deployer owns the ordered step list of one payload and executes it.
type Deployer struct {
	payload PayloadInfo
	steps   []*Step
}

// NewDeployer scans the payload's step-configuration directory and
// builds the ordered step list. Every referenced handler is resolved and
// configured here, so a broken declaration fails before any step runs. A
// payload without a step-configuration directory is a DeploymentError.
func NewDeployer(p PayloadInfo) (*Deployer, error) {
	d := &Deployer{payload: p}

	cfgDir := filepath.Join(p.Directory(), ConfigDirName)
	entries, err := os.ReadDir(cfgDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &DeploymentError{Payload: p.Name(), Reason: "payload configuration missing"}
		}
		return nil, &DeploymentError{Payload: p.Name(), Reason: "cannot read payload configuration", Err: err}
	}

	// ReadDir returns entries sorted by name, which is the documented
	// step-file ordering.
	for _, entry := range entries {
		if entry.IsDir() {
			if entry.Name() != HooksDirName {
				log.Debug().Str("payload", p.Name()).Str("entry", entry.Name()).Msg("ignoring subdirectory in step configuration")
			}
			continue
		}
		path := filepath.Join(cfgDir, entry.Name())

		var docs []stepDoc
		switch {
		case strings.HasSuffix(entry.Name(), ".json"):
			docs, err = parseJSONSteps(path)
		case strings.HasSuffix(entry.Name(), ".yaml"):
			docs, err = parseYAMLSteps(path)
		case strings.HasSuffix(entry.Name(), ".star"):
			docs, err = evalStarlarkSteps(path, p)
		default:
			if isExecutable(path) {
				// A plain executable becomes one direct-exec step:
				// argv of one element, never a shell.
				docs = []stepDoc{{{handler: "exec", value: []any{[]any{path}}}}}
			} else {
				log.Warn().Str("payload", p.Name()).Str("file", entry.Name()).Msg("skipping unrecognized step file")
				continue
			}
		}
		if err != nil {
			return nil, &DeploymentError{
				Payload: p.Name(),
				Command: entry.Name(),
				Reason:  "cannot parse step file",
				Err:     err,
			}
		}

		for _, doc := range docs {
			for _, pair := range doc {
				impl, err := newHandler(pair.handler, d, pair.value)
				if err != nil {
					return nil, err
				}
				d.steps = append(d.steps, &Step{
					Handler: pair.handler,
					Source:  entry.Name(),
					Value:   pair.value,
					Status:  "pending",
					impl:    impl,
				})
			}
		}
	}
	return d, nil
}

// Payload returns the payload this deployer belongs to.
func (d *Deployer) Payload() PayloadInfo {
	return d.payload
}

// Steps returns the configured steps in execution order.
func (d *Deployer) Steps() []*Step {
	return d.steps
}

// Deploy executes every step strictly in order. The first failing step
// stops the sequence: remaining steps are marked skipped and the step's
// error propagates to the caller. There is no retry and no rollback.
func (d *Deployer) Deploy(ctx context.Context) error {
	for i, step := range d.steps {
		log.Info().
			Str("payload", d.payload.Name()).
			Int("step", i+1).
			Int("of", len(d.steps)).
			Str("handler", step.Handler).
			Str("source", step.Source).
			Msg("running deployment step")

		stepCtx, span := otel.Tracer("graft").Start(ctx, "graft.step",
			trace.WithAttributes(
				attribute.String("graft.payload", d.payload.Name()),
				attribute.String("graft.handler", step.Handler),
			))
		start := time.Now()
		err := step.impl.Deploy(stepCtx)
		step.Duration = time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()

		if err != nil {
			step.Status = "failed"
			step.Err = err
			for _, rest := range d.steps[i+1:] {
				rest.Status = "skipped"
			}
			log.Error().
				Str("payload", d.payload.Name()).
				Str("handler", step.Handler).
				Err(err).
				Msg("deployment step failed, aborting payload")
			return err
		}
		step.Status = "ok"
	}
	return nil
}

// isExecutable reports whether path is a regular file the current user
// can both read and execute.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if info.Mode()&0o111 == 0 {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// displayValue renders a declarative value for error messages.
func displayValue(value any) string {
	return fmt.Sprintf("%v", value)
}
