package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/edvin/peacock/internal/activity"
	"github.com/edvin/peacock/internal/model"
)

// SweepStalledProvisionsWorkflow re-evaluates provisions that have sat in
// in_progress or deactivating for longer than stalledAfter. Nothing else
// moves such a provision forward once its round's events have been lost.
func SweepStalledProvisionsWorkflow(ctx workflow.Context, stalledAfter time.Duration) error {
	logger := workflow.GetLogger(ctx)
	actCtx := retryingActivityCtx(ctx)

	var stalled []activity.StalledProvision
	err := workflow.ExecuteActivity(actCtx, "ListStalledProvisions", activity.ListStalledParams{
		StalledAfter: stalledAfter,
	}).Get(ctx, &stalled)
	if err != nil {
		return err
	}

	// A round may settle the provision before the evaluation is processed;
	// the recorded status lets Evaluate Event drop it then.
	for _, p := range stalled {
		err := workflow.ExecuteActivity(actCtx, "SignalProvision", model.ProvisionRequest{
			Kind:       model.RequestEvaluate,
			InstanceID: p.ID,
			Status:     p.Status,
		}).Get(ctx, nil)
		if err != nil {
			logger.Error("failed to signal stalled provision", "instance_id", p.ID, "error", err)
		}
	}

	logger.Info("stalled provision sweep complete", "count", len(stalled))
	return nil
}
