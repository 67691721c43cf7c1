package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/graftwork/graft/pkg/deploy"
	"github.com/graftwork/graft/pkg/journal"
	"github.com/graftwork/graft/pkg/payload"
	"github.com/graftwork/graft/pkg/policy"
	"github.com/graftwork/graft/pkg/telemetry"
)

// Lifecycle phase names, as recorded in the journal and metrics.
const (
	PhaseAcquire = "acquire"
	PhaseDeploy  = "deploy"
)

// Run executes the full payload lifecycle: acquire every payload in
// declaration order, evaluate policy over the planned work, then deploy
// every payload in the same order. Both phases are fail-fast: the first
// payload to fail stops its phase and the run.
func (r *Runtime) Run(ctx context.Context) error {
	runID, err := r.journal.BeginRun(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cannot record run start")
	}

	ctx, runSpan := r.tracer.StartRun(ctx, r.payloads.Len())
	runErr := r.run(ctx, runID)
	telemetry.EndSpan(runSpan, runErr)

	if err := r.journal.FinishRun(ctx, runID, runErr); err != nil {
		log.Warn().Err(err).Msg("cannot record run finish")
	}
	status := journal.StatusCompleted
	if runErr != nil {
		status = journal.StatusFailed
	}
	r.metrics.ObserveRun(status)
	if err := r.metrics.Write(r.metricsFile); err != nil {
		log.Warn().Err(err).Str("path", r.metricsFile).Msg("cannot write metrics file")
	}
	return runErr
}

func (r *Runtime) run(ctx context.Context, runID string) error {
	names := make([]string, 0, r.payloads.Len())
	for _, p := range r.payloads.All() {
		names = append(names, p.Name())
	}
	log.Info().Strs("payloads", names).Msg("starting run")

	// Phase 1: acquire everything before deploying anything, so a
	// broken source is discovered while the instance is still pristine.
	for _, p := range r.payloads.All() {
		if err := r.acquireOne(ctx, runID, p); err != nil {
			r.payloads.CallHooks(ctx, payload.HookPostAcquire, payload.LabelFailedPayloads, []string{p.Name()})
			return err
		}
	}
	r.payloads.CallHooks(ctx, payload.HookPostAcquire, payload.LabelPayloads, names)

	// Every payload's step list builds now, both for the policy input
	// and so a malformed declaration fails before any step has run.
	deployers := make([]*deploy.Deployer, 0, r.payloads.Len())
	for _, p := range r.payloads.All() {
		d, err := p.Deployer()
		if err != nil {
			r.payloads.CallHooks(ctx, payload.HookPostDeploy, payload.LabelFailedPayloads, []string{p.Name()})
			return err
		}
		deployers = append(deployers, d)
	}

	if err := r.gateOnPolicy(ctx, deployers); err != nil {
		r.payloads.CallHooks(ctx, payload.HookPostDeploy, payload.LabelFailedPayloads, names)
		return err
	}

	r.payloads.CallHooks(ctx, payload.HookPreDeploy, payload.LabelPayloads, names)

	// Phase 2: deploy in the same order.
	for _, p := range r.payloads.All() {
		if err := r.deployOne(ctx, runID, p); err != nil {
			r.payloads.CallHooks(ctx, payload.HookPostDeploy, payload.LabelFailedPayloads, []string{p.Name()})
			return err
		}
	}
	r.payloads.CallHooks(ctx, payload.HookPostDeploy, payload.LabelPayloads, names)

	log.Info().Int("payloads", r.payloads.Len()).Msg("run completed")
	return nil
}

func (r *Runtime) acquireOne(ctx context.Context, runID string, p *payload.Payload) error {
	phaseCtx, span := r.tracer.StartPhase(ctx, PhaseAcquire, p.Name())
	start := time.Now()
	err := p.Acquire(phaseCtx)
	duration := time.Since(start)
	telemetry.EndSpan(span, err)

	r.recordPhase(ctx, runID, p.Name(), PhaseAcquire, duration, err)
	return err
}

func (r *Runtime) deployOne(ctx context.Context, runID string, p *payload.Payload) error {
	phaseCtx, span := r.tracer.StartPhase(ctx, PhaseDeploy, p.Name())
	start := time.Now()
	err := p.Deploy(phaseCtx)
	duration := time.Since(start)
	telemetry.EndSpan(span, err)

	if d, derr := p.Deployer(); derr == nil {
		for _, step := range d.Steps() {
			r.metrics.ObserveStep(step.Handler, step.Status)
			if jerr := r.journal.RecordStep(ctx, runID, p.Name(), step.Handler, step.Source, step.Status, step.Duration, step.Err); jerr != nil {
				log.Warn().Err(jerr).Msg("cannot record step")
			}
		}
	}
	r.recordPhase(ctx, runID, p.Name(), PhaseDeploy, duration, err)
	return err
}

func (r *Runtime) recordPhase(ctx context.Context, runID, name, phase string, duration time.Duration, phaseErr error) {
	status := journal.StatusCompleted
	if phaseErr != nil {
		status = journal.StatusFailed
	}
	r.metrics.ObservePhase(phase, status, duration.Seconds())
	if err := r.journal.RecordPayloadPhase(ctx, runID, name, phase, duration, phaseErr); err != nil {
		log.Warn().Err(err).Msg("cannot record payload phase")
	}
}

// gateOnPolicy evaluates the loaded policies over the planned work. Any
// denial stops the run before the first deployment step.
func (r *Runtime) gateOnPolicy(ctx context.Context, deployers []*deploy.Deployer) error {
	input := &policy.Input{}
	for _, d := range deployers {
		p := d.Payload()
		pi := policy.PayloadInput{
			Name:        p.Name(),
			Environment: p.Environment(),
			Steps:       []policy.StepInput{},
		}
		for _, step := range d.Steps() {
			pi.Steps = append(pi.Steps, policy.StepInput{Handler: step.Handler, Value: step.Value})
		}
		input.Payloads = append(input.Payloads, pi)
	}

	result, err := r.policy.Evaluate(ctx, input)
	if err != nil {
		return err
	}
	if result.Denied() {
		return fmt.Errorf("policy denied run: %s", strings.Join(result.Denials, "; "))
	}
	return nil
}
