package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/platform"
	"github.com/edvin/peacock/internal/store"
)

// InstanceService exposes the generic DOM instance operations used by the
// child workflows to register themselves and report their status.
type InstanceService struct {
	store store.InstanceStore
}

func NewInstanceService(s store.InstanceStore) *InstanceService {
	return &InstanceService{store: s}
}

// Create stores a new child instance.
func (s *InstanceService) Create(ctx context.Context, definition string, status model.Status, fields json.RawMessage) (*model.Instance, error) {
	if definition == model.DefinitionProvision {
		return nil, fmt.Errorf("validation error: provisions are created through the provisions endpoint")
	}
	if status == "" {
		status = model.StatusReady
	}
	if !status.Valid() {
		return nil, fmt.Errorf("validation error: unknown status %q", status)
	}
	if len(fields) == 0 {
		fields = json.RawMessage(`{}`)
	}
	inst := &model.Instance{
		ID:         platform.NewID(),
		Definition: definition,
		Status:     status,
		Fields:     fields,
	}
	if err := s.store.CreateInstance(ctx, inst); err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return inst, nil
}

// Get returns the instance with the given id.
func (s *InstanceService) Get(ctx context.Context, id string) (*model.Instance, error) {
	inst, err := s.store.ReadInstance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get instance %s: %w", id, err)
	}
	return inst, nil
}

// List returns up to limit instances of a definition after cursor, and
// whether more exist.
func (s *InstanceService) List(ctx context.Context, definition string, limit int, cursor string) ([]model.Instance, bool, error) {
	insts, err := s.store.ListInstances(ctx, store.ListFilter{
		Definition: definition,
		Limit:      limit + 1,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, false, fmt.Errorf("list instances: %w", err)
	}
	hasMore := len(insts) > limit
	if hasMore {
		insts = insts[:limit]
	}
	return insts, hasMore, nil
}

// Transition applies a named transition to an instance and returns the
// instance afterwards. Applying a transition whose target is the current
// status succeeds without change.
func (s *InstanceService) Transition(ctx context.Context, id, name string) (*model.Instance, error) {
	if _, err := store.ApplyTransition(ctx, s.store, id, name); err != nil {
		return nil, fmt.Errorf("transition instance %s: %w", id, err)
	}
	return s.Get(ctx, id)
}
