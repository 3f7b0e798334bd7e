// Package store provides access to DOM instances: reads, field updates,
// status transitions along the declared edges and action dispatch.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edvin/peacock/internal/metrics"
	"github.com/edvin/peacock/internal/model"
)

var (
	// ErrNotFound is returned when the instance does not exist.
	ErrNotFound = errors.New("instance not found")
	// ErrConflict is returned when the instance changed since it was read.
	ErrConflict = errors.New("instance modified concurrently")
	// ErrIllegalTransition is returned for undeclared transitions or when the
	// instance is not in the transition's source status.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// InstanceStore is the DOM instance store.
type InstanceStore interface {
	// ReadInstance returns the instance or ErrNotFound.
	ReadInstance(ctx context.Context, id string) (*model.Instance, error)
	// UpdateInstance writes the instance fields. The write fails with
	// ErrConflict if inst.Version no longer matches. On success inst.Version
	// is advanced.
	UpdateInstance(ctx context.Context, inst *model.Instance) error
	// DoStatusTransition applies the named transition. The instance must be
	// in the transition's source status.
	DoStatusTransition(ctx context.Context, id, transition string) error
	// ExecuteAction dispatches an action to the instance's own behavior. It
	// records the action; whether the action moves the instance is decided by
	// the behavior that owns it.
	ExecuteAction(ctx context.Context, id, action string) error
	CreateInstance(ctx context.Context, inst *model.Instance) error
	DeleteInstance(ctx context.Context, id string) error
	ListInstances(ctx context.Context, filter ListFilter) ([]model.Instance, error)
}

// Transitioner is the subset of InstanceStore needed to move an instance
// through its status machine.
type Transitioner interface {
	ReadInstance(ctx context.Context, id string) (*model.Instance, error)
	DoStatusTransition(ctx context.Context, id, transition string) error
}

// ListFilter restricts ListInstances. Zero values do not filter.
type ListFilter struct {
	Definition    string
	Statuses      []model.Status
	UpdatedBefore time.Time
	Limit         int
	Cursor        string
}

// DefaultListLimit caps ListInstances when no limit is given.
const DefaultListLimit = 100

func (f ListFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// ApplyTransition applies the named transition unless the instance already
// holds its target status, in which case it is a no-op. It reports whether
// the status changed. A concurrent writer that moved the instance to the
// same target is treated the same as a duplicate request.
func ApplyTransition(ctx context.Context, s Transitioner, id, name string) (bool, error) {
	tr, ok := model.TransitionByName(name)
	if !ok {
		return false, fmt.Errorf("%w: %s is not declared", ErrIllegalTransition, name)
	}

	inst, err := s.ReadInstance(ctx, id)
	if err != nil {
		return false, err
	}
	if inst.Status == tr.To {
		return false, nil
	}

	err = s.DoStatusTransition(ctx, id, name)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrIllegalTransition) && !errors.Is(err, ErrConflict) {
		return false, err
	}

	inst, rerr := s.ReadInstance(ctx, id)
	if rerr == nil && inst.Status == tr.To {
		return false, nil
	}
	return false, err
}

func resolveTransition(name string, current model.Status) (model.Transition, error) {
	tr, ok := model.TransitionByName(name)
	if !ok {
		return model.Transition{}, fmt.Errorf("%w: %s is not declared", ErrIllegalTransition, name)
	}
	if current != tr.From {
		return model.Transition{}, fmt.Errorf("%w: %s requires %s, instance is %s", ErrIllegalTransition, name, tr.From, current)
	}
	return tr, nil
}

func recordTransition(tr model.Transition) {
	metrics.StatusTransitions.WithLabelValues(string(tr.From), string(tr.To)).Inc()
}
