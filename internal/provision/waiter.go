package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edvin/peacock/internal/metrics"
	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/retry"
	"github.com/edvin/peacock/internal/store"
)

// Waiter blocks until a child subprocess settles.
type Waiter struct {
	runner *Runner
	policy retry.Policy
}

// NewWaiter creates a Waiter polling with policy.
func NewWaiter(runner *Runner, policy retry.Policy) *Waiter {
	return &Waiter{runner: runner, policy: policy}
}

// WaitStep returns the handler step name for waiting on kind.
func WaitStep(kind model.ChildKind) string {
	switch kind {
	case model.ChildConviva:
		return StepWaitConviva
	case model.ChildTAG:
		return StepWaitTAG
	case model.ChildTouchstream:
		return StepVerifyTouchstream
	}
	return "Waiting " + kind.DisplayName()
}

// Wait polls the child of kind referenced by mainID until its status is
// terminal. An absent child completes immediately. Timeouts and read
// failures are reported as warnings; waiting never faults the workflow.
func (w *Waiter) Wait(ctx context.Context, kind model.ChildKind, mainID string) Outcome {
	step := WaitStep(kind)
	return w.runner.Run(ctx, step, mainID, func(ctx context.Context) Outcome {
		return w.wait(ctx, step, kind, mainID)
	})
}

func (w *Waiter) wait(ctx context.Context, step string, kind model.ChildKind, mainID string) Outcome {
	deps := w.runner.deps
	logger := deps.Logger.With().Str("step", step).Str("instance_id", mainID).Logger()

	main, err := w.runner.readProvision(ctx, mainID)
	if err != nil {
		err = fmt.Errorf("read main instance: %w", err)
		w.runner.major(ctx, step, MainProcessService, "Run()", err)
		return CompletedWithWarning(err.Error())
	}
	service := serviceName(main)

	id, ok := childID(main, kind)
	if !ok {
		logger.Info().Msgf("no %s instances found to provision, skipping", kind.DisplayName())
		return Completed()
	}

	start := time.Now()
	settled, err := retry.Until(ctx, w.policy, func(ctx context.Context) (bool, error) {
		child, err := deps.Store.ReadInstance(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			logger.Warn().Err(err).Msg("exception thrown while verifying the subprocess")
			w.runner.record(ctx, step, service, model.SeverityWarning, "CheckStateChange()",
				model.CodeExceptionCheckingStatus, "Exception Generated While Checking Status.")
			return false, err
		}
		return child.Status.IsTerminal(), nil
	})
	metrics.WaiterDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		w.runner.major(ctx, step, service, "Run()", err)
		return CompletedWithWarning(fmt.Sprintf("checking %s status: %v", kind.DisplayName(), err))
	case !settled:
		desc := fmt.Sprintf("Verifying %s subprocess took longer than expected and could not verify.", kind.DisplayName())
		logger.Warn().Dur("timeout", w.policy.Timeout).Msg(desc)
		w.runner.record(ctx, step, service, model.SeverityWarning, "Retry()", model.CodeRetryTimeout, desc)
		return CompletedWithWarning(desc)
	default:
		logger.Info().Msgf("%s process dom reports complete", kind.DisplayName())
		return Completed()
	}
}
