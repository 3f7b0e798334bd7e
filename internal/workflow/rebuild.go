package workflow

import (
	"go.temporal.io/sdk/workflow"
)

// RebuildProvisionWorkflow deletes a provision with all of its children
// and resets its event in the event manager.
func RebuildProvisionWorkflow(ctx workflow.Context, instanceID string) error {
	return workflow.ExecuteActivity(retryingActivityCtx(ctx), "RebuildProvision", instanceID).Get(ctx, nil)
}
