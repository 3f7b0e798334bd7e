package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/peacock/internal/activity"
	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/provision"
)

// subprocessOrder is the order children are started and waited on.
var subprocessOrder = []model.ChildKind{model.ChildConviva, model.ChildTAG, model.ChildTouchstream}

// PeacockProvisionWorkflow runs one provisioning round for a provision:
// it starts the Conviva, TAG and Touchstream subprocesses, waits for each
// of them and finally evaluates the main instance. Every step runs even
// when an earlier one did not complete cleanly; the evaluation decides
// what the round amounted to. The returned outcome is the evaluation's.
func PeacockProvisionWorkflow(ctx workflow.Context, req model.ProvisionRequest) (provision.Outcome, error) {
	logger := workflow.GetLogger(ctx)

	step := func(actCtx workflow.Context, name string, params activity.SubprocessParams) {
		var out provision.Outcome
		if err := workflow.ExecuteActivity(actCtx, name, params).Get(ctx, &out); err != nil {
			logger.Error("handler activity failed",
				"activity", name, "kind", params.Kind, "instance_id", params.InstanceID, "error", err)
			return
		}
		if out.Kind != provision.OutcomeCompleted {
			logger.Warn("handler step did not complete cleanly",
				"activity", name, "kind", params.Kind, "outcome", out.Kind, "reason", out.Reason)
		}
	}

	for _, kind := range subprocessOrder {
		step(handlerActivityCtx(ctx), "StartSubprocess", activity.SubprocessParams{
			Kind:       kind,
			InstanceID: req.InstanceID,
			Action:     req.Action,
		})
	}
	for _, kind := range subprocessOrder {
		step(waitActivityCtx(ctx), "WaitSubprocess", activity.SubprocessParams{
			Kind:       kind,
			InstanceID: req.InstanceID,
		})
	}

	var out provision.Outcome
	if err := workflow.ExecuteActivity(handlerActivityCtx(ctx), "EvaluateEvent", req.InstanceID, req.Status).Get(ctx, &out); err != nil {
		return provision.Outcome{}, err
	}
	return out, nil
}
