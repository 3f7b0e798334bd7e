package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/store"
)

// ErrUnknownStatus is returned for statuses outside the declared set.
var ErrUnknownStatus = errors.New("unknown status")

// errorPaths holds the shortest chain of declared transitions from each
// status to error.
var errorPaths = map[model.Status][]string{
	model.StatusDraft: {
		model.TransitionDraftToReady,
		model.TransitionReadyToInProgress,
		model.TransitionInProgressToError,
	},
	model.StatusReady: {
		model.TransitionReadyToInProgress,
		model.TransitionInProgressToError,
	},
	model.StatusInProgress: {
		model.TransitionInProgressToError,
	},
	model.StatusActive: {
		model.TransitionActiveToReprovision,
		model.TransitionReprovisionToInProgress,
		model.TransitionInProgressToError,
	},
	model.StatusActiveWithErrors: {
		model.TransitionActiveWithErrorsToDeactivate,
		model.TransitionDeactivateToDeactivating,
		model.TransitionDeactivatingToError,
	},
	model.StatusDeactivate: {
		model.TransitionDeactivateToDeactivating,
		model.TransitionDeactivatingToError,
	},
	model.StatusDeactivating: {
		model.TransitionDeactivatingToError,
	},
	model.StatusReprovision: {
		model.TransitionReprovisionToInProgress,
		model.TransitionInProgressToError,
	},
	model.StatusComplete: {
		model.TransitionCompleteToReady,
		model.TransitionReadyToInProgress,
		model.TransitionInProgressToError,
	},
	model.StatusError: {},
}

// ErrorPath returns the transitions that move an instance from status to
// error. The path for error itself is empty.
func ErrorPath(status model.Status) ([]model.Transition, error) {
	names, ok := errorPaths[status]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	path := make([]model.Transition, 0, len(names))
	for _, name := range names {
		path = append(path, model.MustTransition(name))
	}
	return path, nil
}

// ForceToError drives the instance to error along ErrorPath, starting from
// the status it is in when read. Already applied steps are skipped, so a
// retried call continues where a failed one stopped.
func ForceToError(ctx context.Context, s store.Transitioner, id string) error {
	inst, err := s.ReadInstance(ctx, id)
	if err != nil {
		return fmt.Errorf("force %s to error: %w", id, err)
	}
	path, err := ErrorPath(inst.Status)
	if err != nil {
		return fmt.Errorf("force %s to error: %w", id, err)
	}
	for _, tr := range path {
		if _, err := store.ApplyTransition(ctx, s, id, tr.Name); err != nil {
			return fmt.Errorf("force %s to error via %s: %w", id, tr.Name, err)
		}
	}
	return nil
}
