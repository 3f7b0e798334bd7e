package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/platform"
	"github.com/edvin/peacock/internal/store"
)

// RowResetter puts an event back to idle in the event manager.
type RowResetter interface {
	ResetEventRow(ctx context.Context, eventID string) error
}

// Rebuilder tears down a provision so its event can be provisioned again:
// children and their descendants are deleted, the event manager row is
// reset and the main instance is removed.
type Rebuilder struct {
	runner *Runner
	events RowResetter
}

func NewRebuilder(runner *Runner, events RowResetter) *Rebuilder {
	return &Rebuilder{runner: runner, events: events}
}

// Rebuild deletes the provision mainID and everything it references.
// Missing or malformed child references are logged and skipped.
func (b *Rebuilder) Rebuild(ctx context.Context, mainID string) error {
	var result error
	out := b.runner.Exclusive(ctx, StepRebuild, mainID, func(ctx context.Context) Outcome {
		result = b.rebuild(ctx, mainID)
		if result != nil {
			return Faulted(result.Error())
		}
		return Completed()
	})
	if result == nil && out.Kind == OutcomeFaulted {
		return errors.New(out.Reason)
	}
	return result
}

func (b *Rebuilder) rebuild(ctx context.Context, mainID string) error {
	deps := b.runner.deps
	logger := deps.Logger.With().Str("step", StepRebuild).Str("instance_id", mainID).Logger()

	main, err := b.runner.readProvision(ctx, mainID)
	if err != nil {
		return fmt.Errorf("read main instance: %w", err)
	}

	if err := b.deleteChild(ctx, main, model.ChildConviva, nil); err != nil {
		return err
	}
	if err := b.deleteChild(ctx, main, model.ChildTouchstream, func(f model.ChildFields) error {
		return b.deleteAll(ctx, f.MediaTailor, nil)
	}); err != nil {
		return err
	}
	if err := b.deleteChild(ctx, main, model.ChildTAG, func(f model.ChildFields) error {
		return b.deleteAll(ctx, f.Scans, func(scan model.ChildFields) error {
			return b.deleteAll(ctx, scan.Channels, nil)
		})
	}); err != nil {
		return err
	}

	if main.EventID != "" && b.events != nil {
		if err := b.events.ResetEventRow(ctx, main.EventID); err != nil {
			logger.Warn().Err(err).Str("event_id", main.EventID).Msg("unable to reset event manager row")
		}
	}

	if err := deps.Store.DeleteInstance(ctx, mainID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete main instance: %w", err)
	}
	logger.Info().Msg("provision rebuilt")
	return nil
}

// deleteChild deletes the child of kind after running descend on its fields.
func (b *Rebuilder) deleteChild(ctx context.Context, main *model.ProvisionInstance, kind model.ChildKind, descend func(model.ChildFields) error) error {
	raw := main.ChildID(kind)
	id, err := platform.ParseID(raw)
	if err != nil {
		b.runner.deps.Logger.Info().Str("instance_id", main.ID).
			Msgf("unable to handle instance id (%s): %q", kind.DisplayName(), raw)
		return nil
	}
	return b.deleteAll(ctx, []string{id}, descend)
}

// deleteAll deletes each existing instance in ids, running descend on its
// fields first.
func (b *Rebuilder) deleteAll(ctx context.Context, ids []string, descend func(model.ChildFields) error) error {
	s := b.runner.deps.Store
	for _, id := range ids {
		inst, err := s.ReadInstance(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read instance %s: %w", id, err)
		}
		if descend != nil {
			var fields model.ChildFields
			if err := inst.Decode(&fields); err != nil {
				return err
			}
			if err := descend(fields); err != nil {
				return err
			}
		}
		if err := s.DeleteInstance(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("delete instance %s: %w", id, err)
		}
	}
	return nil
}

// AsyncRebuild triggers Rebuild on a background goroutine.
type AsyncRebuild struct {
	Rebuilder *Rebuilder
}

func (a AsyncRebuild) TriggerRebuild(ctx context.Context, mainID string) error {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := a.Rebuilder.Rebuild(ctx, mainID); err != nil {
			a.Rebuilder.runner.deps.Logger.Error().Err(err).Str("instance_id", mainID).Msg("rebuild failed")
		}
	}()
	return nil
}
