package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/platform"
	"github.com/edvin/peacock/internal/store"
)

// Action prefixes for children that need to recover from a failed round.
const (
	errorActionPrefix            = "error-"
	activeWithErrorsActionPrefix = "activewitherrors-"
)

// driverTransitions maps a requested action to the main instance
// transition a driver applies eagerly.
var driverTransitions = map[model.Action]string{
	model.ActionProvision:         model.TransitionReadyToInProgress,
	model.ActionDeactivate:        model.TransitionDeactivateToDeactivating,
	model.ActionReprovision:       model.TransitionReprovisionToInProgress,
	model.ActionCompleteProvision: model.TransitionCompleteToReady,
}

// ConcreteAction returns the action to invoke on a child in status
// childStatus for the requested action.
func ConcreteAction(childStatus model.Status, action model.Action) string {
	switch {
	case childStatus.IsError():
		return errorActionPrefix + string(action)
	case childStatus == model.StatusActiveWithErrors:
		return activeWithErrorsActionPrefix + string(action)
	default:
		return string(action)
	}
}

// StartRequest asks a driver to start one child for a main instance. An
// empty Action falls back to the Action field of the main instance.
type StartRequest struct {
	MainID string       `json:"main_id"`
	Action model.Action `json:"action,omitempty"`
}

// Driver starts child subprocesses.
type Driver struct {
	runner *Runner
}

func NewDriver(runner *Runner) *Driver {
	return &Driver{runner: runner}
}

// StartStep returns the handler step name for starting kind.
func StartStep(kind model.ChildKind) string {
	switch kind {
	case model.ChildConviva:
		return StepStartConviva
	case model.ChildTAG:
		return StepStartTAG
	case model.ChildTouchstream:
		return StepStartTouchstream
	}
	return "Start " + kind.DisplayName()
}

// Start dispatches the requested action to the child of kind and, when the
// main instance is in the action's source status, advances it. Concurrent
// starts only share an execution when they request the same action.
func (d *Driver) Start(ctx context.Context, kind model.ChildKind, req StartRequest) Outcome {
	step := StartStep(kind)
	return d.runner.RunKeyed(ctx, step, req.MainID, string(req.Action), func(ctx context.Context) Outcome {
		return d.start(ctx, step, kind, req)
	})
}

func (d *Driver) start(ctx context.Context, step string, kind model.ChildKind, req StartRequest) Outcome {
	deps := d.runner.deps
	logger := deps.Logger.With().Str("step", step).Str("instance_id", req.MainID).Logger()

	main, err := d.runner.readProvision(ctx, req.MainID)
	if err != nil {
		return d.fault(ctx, step, nil, fmt.Errorf("read main instance: %w", err))
	}

	action := req.Action
	if action == "" {
		action = main.Action
	}
	if action == "" {
		logger.Warn().Msg("no action requested, nothing to start")
		return CompletedWithWarning("no action requested")
	}

	child, err := d.runner.readChild(ctx, main, kind)
	if err != nil {
		return d.fault(ctx, step, main, err)
	}
	if child == nil {
		logger.Info().Msgf("no %s instance found, skipping", strings.ToLower(kind.DisplayName()))
		return Completed()
	}

	if kind == model.ChildTAG {
		var fields model.ChildFields
		if err := child.Decode(&fields); err != nil {
			return d.fault(ctx, step, main, err)
		}
		fields.Action = string(action)
		if err := child.Encode(fields); err != nil {
			return d.fault(ctx, step, main, err)
		}
		if err := deps.Store.UpdateInstance(ctx, child); err != nil {
			return d.fault(ctx, step, main, fmt.Errorf("write action on TAG child %s: %w", child.ID, err))
		}
	}

	concrete := ConcreteAction(child.Status, action)
	if err := deps.Store.ExecuteAction(ctx, child.ID, concrete); err != nil {
		return d.fault(ctx, step, main, fmt.Errorf("execute %s on %s child %s: %w", concrete, kind.DisplayName(), child.ID, err))
	}
	logger.Info().Str("child_id", child.ID).Str("child_status", string(child.Status)).
		Str("action", concrete).Msg("child action dispatched")

	name, ok := driverTransitions[action]
	if !ok {
		return Completed()
	}
	tr := model.MustTransition(name)
	if main.Status != tr.From && main.Status != tr.To {
		return Completed()
	}
	changed, err := store.ApplyTransition(ctx, deps.Store, main.ID, name)
	if err != nil {
		return d.fault(ctx, step, main, fmt.Errorf("apply %s: %w", name, err))
	}
	if changed {
		logger.Info().Str("transition", name).Msg("main instance advanced")
	}
	return Completed()
}

func (d *Driver) fault(ctx context.Context, step string, main *model.ProvisionInstance, err error) Outcome {
	d.runner.deps.Logger.Error().Err(err).Str("step", step).Msg("driver failed")
	d.runner.major(ctx, step, serviceName(main), "Run() method - exception", err)
	return Faulted(err.Error())
}

// childID returns the normalized child id referenced by main, if any.
func childID(main *model.ProvisionInstance, kind model.ChildKind) (string, bool) {
	raw := main.ChildID(kind)
	if raw == "" {
		return "", false
	}
	id, err := platform.ParseID(raw)
	if err != nil {
		return "", false
	}
	return id, true
}
