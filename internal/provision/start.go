package provision

import (
	"context"
	"fmt"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/store"
)

// Starter moves a provision into its process: it stamps the instance id and
// business key, applies the entry transition and pushes the process token.
type Starter struct {
	runner *Runner
}

func NewStarter(runner *Runner) *Starter {
	return &Starter{runner: runner}
}

// Start runs the process entry point for req.InstanceID.
func (s *Starter) Start(ctx context.Context, req model.StartProcessRequest) error {
	if req.Process == "" {
		req.Process = model.DefaultProcessName
	}
	if req.KeyField == "" {
		req.KeyField = model.DefaultKeyField
	}
	if req.Transition == "" {
		req.Transition = model.TransitionDraftToReady
	}
	tr, ok := model.TransitionByName(req.Transition)
	if !ok {
		return fmt.Errorf("%w: %s is not declared", store.ErrIllegalTransition, req.Transition)
	}

	var result error
	out := s.runner.Exclusive(ctx, StepStartProcess, req.InstanceID, func(ctx context.Context) Outcome {
		result = s.start(ctx, req, tr)
		if result != nil {
			return Faulted(result.Error())
		}
		return Completed()
	})
	if result == nil && out.Kind == OutcomeFaulted {
		return fmt.Errorf("start process: %s", out.Reason)
	}
	return result
}

func (s *Starter) start(ctx context.Context, req model.StartProcessRequest, tr model.Transition) error {
	deps := s.runner.deps

	main, err := s.runner.readProvision(ctx, req.InstanceID)
	if err != nil {
		return fmt.Errorf("read main instance: %w", err)
	}

	key, ok := main.Field(req.KeyField)
	if !ok || key == "" {
		return fmt.Errorf("validation error: business key field %q is empty", req.KeyField)
	}
	if err := main.Validate(tr.To); err != nil {
		return err
	}

	if main.InstanceID != main.ID || main.BusinessKey != key {
		main.InstanceID = main.ID
		main.BusinessKey = key
		if err := main.Sync(); err != nil {
			return err
		}
		if err := deps.Store.UpdateInstance(ctx, main.Instance); err != nil {
			return fmt.Errorf("write instance id: %w", err)
		}
	}

	changed, err := store.ApplyTransition(ctx, deps.Store, main.ID, tr.Name)
	if err != nil {
		return fmt.Errorf("apply %s: %w", tr.Name, err)
	}
	if !changed {
		deps.Logger.Info().Str("instance_id", main.ID).Msg("process already started")
		return nil
	}

	if err := deps.Tokens.PushToken(ctx, req.Process, key, main.ID); err != nil {
		return fmt.Errorf("push token: %w", err)
	}
	deps.Logger.Info().Str("instance_id", main.ID).Str("business_key", key).
		Str("process", req.Process).Msg("process started")
	return nil
}
