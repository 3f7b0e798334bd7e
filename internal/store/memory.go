package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/edvin/peacock/internal/model"
)

// ActionRecord is an action dispatched through ExecuteAction.
type ActionRecord struct {
	InstanceID string
	Action     string
	At         time.Time
}

// Memory is an in-process InstanceStore used by tests and local runs.
type Memory struct {
	mu        sync.Mutex
	instances map[string]model.Instance
	actions   []ActionRecord
	now       func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		instances: make(map[string]model.Instance),
		now:       time.Now,
	}
}

func (m *Memory) ReadInstance(ctx context.Context, id string) (*model.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("read instance %s: %w", id, ErrNotFound)
	}
	return cloneInstance(inst), nil
}

func (m *Memory) UpdateInstance(ctx context.Context, inst *model.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.instances[inst.ID]
	if !ok {
		return fmt.Errorf("update instance %s: %w", inst.ID, ErrNotFound)
	}
	if cur.Version != inst.Version {
		return fmt.Errorf("update instance %s: %w", inst.ID, ErrConflict)
	}
	cur.Fields = slices.Clone(inst.Fields)
	cur.Version++
	cur.UpdatedAt = m.now()
	m.instances[inst.ID] = cur

	inst.Version = cur.Version
	inst.UpdatedAt = cur.UpdatedAt
	return nil
}

func (m *Memory) DoStatusTransition(ctx context.Context, id, transition string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.instances[id]
	if !ok {
		return fmt.Errorf("transition instance %s: %w", id, ErrNotFound)
	}
	tr, err := resolveTransition(transition, cur.Status)
	if err != nil {
		return fmt.Errorf("transition instance %s: %w", id, err)
	}
	cur.Status = tr.To
	cur.Version++
	cur.UpdatedAt = m.now()
	m.instances[id] = cur
	recordTransition(tr)
	return nil
}

func (m *Memory) ExecuteAction(ctx context.Context, id, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.instances[id]
	if !ok {
		return fmt.Errorf("execute action %s on %s: %w", action, id, ErrNotFound)
	}
	cur.LastAction = action
	cur.UpdatedAt = m.now()
	m.instances[id] = cur
	m.actions = append(m.actions, ActionRecord{InstanceID: id, Action: action, At: cur.UpdatedAt})
	return nil
}

func (m *Memory) CreateInstance(ctx context.Context, inst *model.Instance) error {
	if !inst.Status.Valid() {
		return fmt.Errorf("create instance %s: unknown status %q", inst.ID, inst.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[inst.ID]; ok {
		return fmt.Errorf("create instance %s: already exists", inst.ID)
	}
	now := m.now()
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = now
	}
	if inst.UpdatedAt.IsZero() {
		inst.UpdatedAt = now
	}
	inst.Version = 1
	m.instances[inst.ID] = *cloneInstance(*inst)
	return nil
}

func (m *Memory) DeleteInstance(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[id]; !ok {
		return fmt.Errorf("delete instance %s: %w", id, ErrNotFound)
	}
	delete(m.instances, id)
	return nil
}

func (m *Memory) ListInstances(ctx context.Context, filter ListFilter) ([]model.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Instance
	for _, inst := range m.instances {
		if filter.Definition != "" && inst.Definition != filter.Definition {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, inst.Status) {
			continue
		}
		if !filter.UpdatedBefore.IsZero() && !inst.UpdatedAt.Before(filter.UpdatedBefore) {
			continue
		}
		if filter.Cursor != "" && inst.ID <= filter.Cursor {
			continue
		}
		out = append(out, *cloneInstance(inst))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

// Actions returns the actions dispatched so far, oldest first.
func (m *Memory) Actions() []ActionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.actions)
}

// ActionsFor returns the actions dispatched to one instance.
func (m *Memory) ActionsFor(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, a := range m.actions {
		if a.InstanceID == id {
			out = append(out, a.Action)
		}
	}
	return out
}

// SetStatus overwrites the status of an instance without going through the
// transition table. Used to simulate children driven by external behaviors.
func (m *Memory) SetStatus(id string, status model.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.instances[id]; ok {
		cur.Status = status
		cur.Version++
		cur.UpdatedAt = m.now()
		m.instances[id] = cur
	}
}

func cloneInstance(inst model.Instance) *model.Instance {
	inst.Fields = slices.Clone(inst.Fields)
	return &inst
}
