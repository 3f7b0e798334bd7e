package activity

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/provision"
	"github.com/edvin/peacock/internal/store"
)

const heartbeatInterval = 30 * time.Second

// Provision contains the Peacock handler activities. Handler problems are
// reported in the returned Outcome and never as an activity error: every
// step has already sent its finish message, so a Temporal retry would run
// it twice.
type Provision struct {
	driver    *provision.Driver
	waiter    *provision.Waiter
	evaluator *provision.Evaluator
	rebuilder *provision.Rebuilder
	store     store.InstanceStore
}

// NewProvision creates a new Provision activity struct.
func NewProvision(driver *provision.Driver, waiter *provision.Waiter, evaluator *provision.Evaluator, rebuilder *provision.Rebuilder, s store.InstanceStore) *Provision {
	return &Provision{
		driver:    driver,
		waiter:    waiter,
		evaluator: evaluator,
		rebuilder: rebuilder,
		store:     s,
	}
}

// SubprocessParams identifies one child subprocess of a provision.
type SubprocessParams struct {
	Kind       model.ChildKind `json:"kind"`
	InstanceID string          `json:"instance_id"`
	Action     model.Action    `json:"action,omitempty"`
}

// StartSubprocess runs the Start step for the child of params.Kind.
func (a *Provision) StartSubprocess(ctx context.Context, params SubprocessParams) (provision.Outcome, error) {
	return a.driver.Start(ctx, params.Kind, provision.StartRequest{
		MainID: params.InstanceID,
		Action: params.Action,
	}), nil
}

// WaitSubprocess blocks until the child of params.Kind settles or the
// waiter gives up. It heartbeats while waiting.
func (a *Provision) WaitSubprocess(ctx context.Context, params SubprocessParams) (provision.Outcome, error) {
	stop := heartbeat(ctx, fmt.Sprintf("waiting on %s", params.Kind))
	defer stop()
	return a.waiter.Wait(ctx, params.Kind, params.InstanceID), nil
}

// EvaluateEvent runs the status aggregator for a provision. requestedIn is
// the provision's status when the request was accepted; see
// provision.Evaluator.EvaluateRequest.
func (a *Provision) EvaluateEvent(ctx context.Context, instanceID string, requestedIn model.Status) (provision.Outcome, error) {
	return a.evaluator.EvaluateRequest(ctx, instanceID, requestedIn), nil
}

// RebuildProvision deletes a provision and its descendants. Unlike the
// handler steps it is safe to retry, so failures are returned.
func (a *Provision) RebuildProvision(ctx context.Context, instanceID string) error {
	return a.rebuilder.Rebuild(ctx, instanceID)
}

// GetProvisionStatus returns the current status of a provision.
func (a *Provision) GetProvisionStatus(ctx context.Context, instanceID string) (model.Status, error) {
	inst, err := a.store.ReadInstance(ctx, instanceID)
	if err != nil {
		return "", fmt.Errorf("get provision status: %w", err)
	}
	return inst.Status, nil
}

// ListStalledParams holds parameters for ListStalledProvisions.
type ListStalledParams struct {
	StalledAfter time.Duration `json:"stalled_after"`
	Limit        int           `json:"limit,omitempty"`
}

// StalledProvision is a provision found by ListStalledProvisions together
// with the status it was found in.
type StalledProvision struct {
	ID     string       `json:"id"`
	Status model.Status `json:"status"`
}

// ListStalledProvisions returns the provisions that have been in
// in_progress or deactivating for longer than params.StalledAfter.
func (a *Provision) ListStalledProvisions(ctx context.Context, params ListStalledParams) ([]StalledProvision, error) {
	insts, err := a.store.ListInstances(ctx, store.ListFilter{
		Definition:    model.DefinitionProvision,
		Statuses:      []model.Status{model.StatusInProgress, model.StatusDeactivating},
		UpdatedBefore: time.Now().Add(-params.StalledAfter),
		Limit:         params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list stalled provisions: %w", err)
	}
	out := make([]StalledProvision, len(insts))
	for i, inst := range insts {
		out[i] = StalledProvision{ID: inst.ID, Status: inst.Status}
	}
	return out, nil
}

// heartbeat records a heartbeat every heartbeatInterval until stop is
// called. Outside an activity context it does nothing.
func heartbeat(ctx context.Context, details string) (stop func()) {
	if !activity.IsActivity(ctx) {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, details)
			}
		}
	}()
	return func() { close(done) }
}
