package provision

import (
	"context"
	"fmt"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/retry"
	"github.com/edvin/peacock/internal/store"
)

// Callback notifies the event manager about the outcome of a round.
type Callback interface {
	SendProcessUpdate(ctx context.Context, sourceElement string, req model.ExternalRequest) error
}

// RebuildTrigger starts the rebuild of a provision without waiting for it.
type RebuildTrigger interface {
	TriggerRebuild(ctx context.Context, mainID string) error
}

// Evaluator is the status aggregator run by the Evaluate Event step.
type Evaluator struct {
	runner   *Runner
	callback Callback
	rebuild  RebuildTrigger
	policy   DeactivationFailurePolicy
}

// NewEvaluator creates an Evaluator. rebuild may be nil when reprovisioning
// does not rebuild.
func NewEvaluator(runner *Runner, callback Callback, rebuild RebuildTrigger, policy DeactivationFailurePolicy) *Evaluator {
	if policy == "" {
		policy = DeactivationToActiveWithErrors
	}
	return &Evaluator{runner: runner, callback: callback, rebuild: rebuild, policy: policy}
}

// Evaluate moves the main instance to the status implied by its children,
// reports the result to the event manager and, for reprovisioning, triggers
// the rebuild.
func (e *Evaluator) Evaluate(ctx context.Context, mainID string) Outcome {
	return e.EvaluateRequest(ctx, mainID, "")
}

// EvaluateRequest evaluates a provision for a request accepted while the
// provision was in requestedIn. When the provision has since left that
// status and settled, the request is stale and nothing is changed. An empty
// requestedIn evaluates unconditionally.
func (e *Evaluator) EvaluateRequest(ctx context.Context, mainID string, requestedIn model.Status) Outcome {
	return e.runner.Run(ctx, StepEvaluate, mainID, func(ctx context.Context) Outcome {
		return e.evaluate(ctx, mainID, requestedIn)
	})
}

func (e *Evaluator) evaluate(ctx context.Context, mainID string, requestedIn model.Status) Outcome {
	deps := e.runner.deps
	logger := deps.Logger.With().Str("step", StepEvaluate).Str("instance_id", mainID).Logger()

	main, err := e.runner.readProvision(ctx, mainID)
	if err != nil {
		return e.fault(ctx, nil, fmt.Errorf("read main instance: %w", err))
	}

	if requestedIn != "" && main.Status != requestedIn && !main.Status.Evaluable() {
		reason := fmt.Sprintf("Stale request: provision moved from %s to %s before it was evaluated.", requestedIn, main.Status)
		logger.Info().Str("requested_in", string(requestedIn)).Str("status", string(main.Status)).
			Msg("provision settled since the request, skipping evaluation")
		e.runner.record(ctx, StepEvaluate, serviceName(main), model.SeverityInfo, "Run()",
			model.CodeStaleRequest, reason)
		return CompletedWithWarning(reason)
	}

	var entry string
	switch main.Status {
	case model.StatusReady:
		entry = model.TransitionReadyToInProgress
	case model.StatusDeactivate:
		entry = model.TransitionDeactivateToDeactivating
	}
	if entry != "" {
		if _, err := store.ApplyTransition(ctx, deps.Store, mainID, entry); err != nil {
			return e.fault(ctx, main, fmt.Errorf("apply %s: %w", entry, err))
		}
		if main, err = e.runner.readProvision(ctx, mainID); err != nil {
			return e.fault(ctx, nil, fmt.Errorf("re-read main instance: %w", err))
		}
	}
	requested := main.Action

	live := make(map[model.ChildKind]model.Status)
	for _, kind := range model.AllChildKinds {
		child, err := e.runner.readChild(ctx, main, kind)
		if err != nil {
			return e.fault(ctx, main, err)
		}
		if child != nil {
			live[kind] = child.Status
		}
	}
	children := EffectiveStatuses(main.Status, live)
	decision := Decide(main.Status, children, e.policy)

	logger.Info().
		Str("status", string(main.Status)).
		Str("tag", string(children[model.ChildTAG])).
		Str("conviva", string(children[model.ChildConviva])).
		Str("touchstream", string(children[model.ChildTouchstream])).
		Str("target", string(decision.Target)).
		Msg("evaluated children")

	if err := e.apply(ctx, main, decision); err != nil {
		return e.fault(ctx, main, err)
	}
	if decision.Code != "" {
		e.runner.record(ctx, StepEvaluate, serviceName(main), model.SeverityMajor, "Run()",
			decision.Code, decision.Describe())
	}

	if main, err = e.runner.readProvision(ctx, mainID); err != nil {
		return e.fault(ctx, nil, fmt.Errorf("re-read main instance: %w", err))
	}
	e.notify(ctx, main)

	if requested == model.ActionReprovision && e.rebuild != nil {
		if err := e.rebuild.TriggerRebuild(ctx, mainID); err != nil {
			logger.Error().Err(err).Msg("failed to trigger rebuild")
			e.runner.major(ctx, StepEvaluate, serviceName(main), "Run()", fmt.Errorf("trigger rebuild: %w", err))
		}
	}

	switch decision.Code {
	case "":
		return Completed()
	case model.CodeUnknownStatus:
		return Faulted(decision.Describe())
	default:
		return CompletedWithWarning(decision.Describe())
	}
}

func (e *Evaluator) apply(ctx context.Context, main *model.ProvisionInstance, d Decision) error {
	s := e.runner.deps.Store

	if d.ForceError {
		if err := retry.ForceToError(ctx, s, main.ID); err != nil {
			return err
		}
		return nil
	}

	from := main.Status
	if from == model.StatusReprovision {
		if _, err := store.ApplyTransition(ctx, s, main.ID, model.TransitionReprovisionToInProgress); err != nil {
			return fmt.Errorf("apply %s: %w", model.TransitionReprovisionToInProgress, err)
		}
		from = model.StatusInProgress
	}

	tr, ok := model.FindTransition(from, d.Target)
	if !ok {
		return fmt.Errorf("%w: no transition from %s to %s", store.ErrIllegalTransition, from, d.Target)
	}
	if _, err := store.ApplyTransition(ctx, s, main.ID, tr.Name); err != nil {
		return fmt.Errorf("apply %s: %w", tr.Name, err)
	}
	return nil
}

func (e *Evaluator) notify(ctx context.Context, main *model.ProvisionInstance) {
	if main.SourceElement == "" || e.callback == nil {
		return
	}
	status := model.ProcessStatusFor(main.Status)
	err := e.callback.SendProcessUpdate(ctx, main.SourceElement, model.NewPeacockResponse(main.ProvisionName, status))
	if err != nil {
		e.runner.deps.Logger.Error().Err(err).Str("instance_id", main.ID).Msg("failed to notify event manager")
		e.runner.record(ctx, StepEvaluate, serviceName(main), model.SeverityMajor, "Run()",
			model.CodeCallbackFailed, fmt.Sprintf("Failed to update event manager %s: %v", main.SourceElement, err))
	}
}

func (e *Evaluator) fault(ctx context.Context, main *model.ProvisionInstance, err error) Outcome {
	e.runner.deps.Logger.Error().Err(err).Str("step", StepEvaluate).Msg("evaluate failed")
	e.runner.major(ctx, StepEvaluate, serviceName(main), "Run()", err)
	return Faulted(err.Error())
}
