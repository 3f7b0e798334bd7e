package activity

import (
	"context"
	"fmt"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/platform"
)

// Orchestrator contains activities that hand work to other workflows.
type Orchestrator struct {
	tc        temporalclient.Client
	taskQueue string
}

// NewOrchestrator creates a new Orchestrator activity struct.
func NewOrchestrator(tc temporalclient.Client, taskQueue string) *Orchestrator {
	return &Orchestrator{tc: tc, taskQueue: taskQueue}
}

// SignalProvision enqueues req on the per-instance orchestrator workflow,
// starting it if it is not running.
func (a *Orchestrator) SignalProvision(ctx context.Context, req model.ProvisionRequest) error {
	if req.RequestID == "" {
		req.RequestID = platform.NewRequestKey("req-")
	}
	wfID := model.OrchestratorWorkflowID(req.InstanceID)
	_, err := a.tc.SignalWithStartWorkflow(ctx, wfID, model.ProvisionSignalName, req,
		temporalclient.StartWorkflowOptions{
			ID:        wfID,
			TaskQueue: a.taskQueue,
		},
		model.OrchestratorWorkflowName,
	)
	if err != nil {
		return fmt.Errorf("signal %s: %w", wfID, err)
	}
	return nil
}

// TriggerRebuild starts the rebuild workflow for a provision without
// waiting for it. A rebuild already running for the provision is reused.
func (a *Orchestrator) TriggerRebuild(ctx context.Context, instanceID string) error {
	_, err := a.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        model.RebuildWorkflowID(instanceID),
		TaskQueue: a.taskQueue,
	}, model.RebuildWorkflowName, instanceID)
	if err != nil {
		return fmt.Errorf("start %s: %w", model.RebuildWorkflowName, err)
	}
	return nil
}
