// Package provision implements the Peacock provisioning handlers: the
// subprocess drivers and waiters, the status aggregator that decides the main
// instance's next status, and the start and rebuild entry points.
package provision

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/edvin/peacock/internal/logsink"
	"github.com/edvin/peacock/internal/metrics"
	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/store"
	"github.com/edvin/peacock/internal/token"
	"github.com/edvin/peacock/internal/tracing"
)

// Handler step names, as reported to the token handler and in log records.
const (
	StepStartConviva      = "Start Conviva Subprocess"
	StepStartTAG          = "Start TAG Subprocess"
	StepStartTouchstream  = "Start Touchstream Instance"
	StepWaitConviva       = "Waiting Conviva Subprocess"
	StepWaitTAG           = "Waiting TAG Subprocess"
	StepVerifyTouchstream = "Verify Touchstream Provision"
	StepEvaluate          = "Evaluate Event"
	StepStartProcess      = "Start Process"
	StepRebuild           = "Rebuild PCK DOM"
)

// MainProcessService is the affected service reported when the provision
// name is not known.
const MainProcessService = "Peacock Main Process"

// OutcomeKind classifies how a handler invocation ended.
type OutcomeKind string

const (
	OutcomeCompleted            OutcomeKind = "completed"
	OutcomeCompletedWithWarning OutcomeKind = "completed_with_warning"
	OutcomeFaulted              OutcomeKind = "faulted"
)

// Outcome is the internal result of a handler invocation. The host is told
// the step finished for every kind.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

func Completed() Outcome {
	return Outcome{Kind: OutcomeCompleted}
}

func CompletedWithWarning(reason string) Outcome {
	return Outcome{Kind: OutcomeCompletedWithWarning, Reason: reason}
}

func Faulted(reason string) Outcome {
	return Outcome{Kind: OutcomeFaulted, Reason: reason}
}

// Deps holds the collaborators shared by all handlers.
type Deps struct {
	Store  store.InstanceStore
	Logs   logsink.Sink
	Tokens token.Handler
	Locker *store.Locker
	Logger zerolog.Logger
}

// Runner wraps handler bodies: duplicate concurrent calls for the same step,
// instance and key share one execution, executions for one instance are
// serialized, panics become Faulted outcomes, and every call sends exactly
// one finish message.
type Runner struct {
	deps  Deps
	group singleflight.Group
}

// NewRunner creates a Runner. A nil Locker is replaced with a fresh one.
func NewRunner(deps Deps) *Runner {
	if deps.Locker == nil {
		deps.Locker = store.NewLocker()
	}
	return &Runner{deps: deps}
}

// Deps returns the runner's collaborators.
func (r *Runner) Deps() Deps {
	return r.deps
}

// Run executes fn as the handler step for instanceID.
func (r *Runner) Run(ctx context.Context, step, instanceID string, fn func(ctx context.Context) Outcome) Outcome {
	return r.RunKeyed(ctx, step, instanceID, "", fn)
}

// RunKeyed is Run for steps whose invocations differ by more than step and
// instance. Only concurrent calls with the same key share one execution.
func (r *Runner) RunKeyed(ctx context.Context, step, instanceID, key string, fn func(ctx context.Context) Outcome) (out Outcome) {
	ctx, span := tracing.StartHandler(ctx, step, instanceID)
	logger := r.deps.Logger.With().Str("step", step).Str("instance_id", instanceID).Logger()
	if traceID := tracing.TraceID(ctx); traceID != "" {
		logger = logger.With().Str("trace_id", traceID).Logger()
	}

	defer func() {
		tracing.EndHandler(span, string(out.Kind), out.Reason, out.Kind == OutcomeFaulted)
		metrics.HandlerOutcomes.WithLabelValues(step, string(out.Kind)).Inc()
		if err := r.deps.Tokens.SendFinish(context.WithoutCancel(ctx), step, instanceID); err != nil {
			logger.Error().Err(err).Msg("failed to send finish message")
		}
		logger.Info().Str("outcome", string(out.Kind)).Str("reason", out.Reason).Msg("handler finished")
	}()

	flight := step + "/" + instanceID
	if key != "" {
		flight += "/" + key
	}
	v, _, shared := r.group.Do(flight, func() (any, error) {
		return r.Exclusive(ctx, step, instanceID, fn), nil
	})
	if shared {
		logger.Debug().Msg("joined in-flight invocation")
	}
	return v.(Outcome)
}

// Exclusive runs fn under the instance lock and converts panics into a
// Faulted outcome. It does not send a finish message.
func (r *Runner) Exclusive(ctx context.Context, step, instanceID string, fn func(ctx context.Context) Outcome) (out Outcome) {
	unlock, err := r.deps.Locker.Lock(ctx, instanceID)
	if err != nil {
		r.major(ctx, step, MainProcessService, "Run()", fmt.Errorf("acquire instance lock: %w", err))
		return Faulted(err.Error())
	}
	defer unlock()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			r.deps.Logger.Error().Str("step", step).Str("instance_id", instanceID).
				Bytes("stack", debug.Stack()).Msg("handler panicked")
			r.major(ctx, step, MainProcessService, "Run()", err)
			out = Faulted(err.Error())
		}
	}()

	return fn(ctx)
}

// major records a major-severity exception. Sink failures are only logged.
func (r *Runner) major(ctx context.Context, step, service, source string, err error) {
	rec := model.LogRecord{
		AffectedItem:    step,
		AffectedService: service,
		ErrorCode: model.ErrorCode{
			ConfigurationItem: step + " Script",
			Severity:          model.SeverityMajor,
			Source:            source,
		},
	}
	if serr := r.deps.Logs.ProcessException(context.WithoutCancel(ctx), err, rec); serr != nil {
		r.deps.Logger.Error().Err(serr).Str("step", step).Msg("failed to record exception")
	}
}

// record writes a log record. Sink failures are only logged.
func (r *Runner) record(ctx context.Context, step, service, severity, source, code, description string) {
	rec := model.LogRecord{
		AffectedItem:    step,
		AffectedService: service,
		ErrorCode: model.ErrorCode{
			ConfigurationItem: step + " Script",
			Severity:          severity,
			Source:            source,
			Code:              code,
			Description:       description,
		},
	}
	if err := r.deps.Logs.GenerateLog(context.WithoutCancel(ctx), rec); err != nil {
		r.deps.Logger.Error().Err(err).Str("step", step).Str("code", code).Msg("failed to record log")
	}
}

// readProvision reads and decodes the main instance.
func (r *Runner) readProvision(ctx context.Context, id string) (*model.ProvisionInstance, error) {
	inst, err := r.deps.Store.ReadInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.NewProvisionInstance(inst)
}

// readChild resolves and reads the child of kind referenced by main. A nil
// instance with a nil error means the child is absent.
func (r *Runner) readChild(ctx context.Context, main *model.ProvisionInstance, kind model.ChildKind) (*model.Instance, error) {
	id, ok := childID(main, kind)
	if !ok {
		return nil, nil
	}
	child, err := r.deps.Store.ReadInstance(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s child %s: %w", kind.DisplayName(), id, err)
	}
	return child, nil
}

func serviceName(main *model.ProvisionInstance) string {
	if main != nil && main.ProvisionName != "" {
		return main.ProvisionName
	}
	return MainProcessService
}
