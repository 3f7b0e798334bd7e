package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/peacock/internal/activity"
	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/provision"
)

// ProvisionOrchestratorWorkflow is a long-running per-provision workflow
// that processes requests for one instance sequentially, so two handler
// rounds for the same provision never overlap. Requests arrive on the
// "provision" signal.
//
// The workflow idles for up to 5 minutes between requests and then
// completes; SignalWithStartWorkflow starts a new run for the next
// request. After 1000 requests it continues as new to bound its history.
func ProvisionOrchestratorWorkflow(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)
	signalCh := workflow.GetSignalChannel(ctx, model.ProvisionSignalName)

	iteration := 0
	const maxIterations = 1000

	handle := func(req model.ProvisionRequest) {
		if err := executeProvisionRequest(ctx, req); err != nil {
			logger.Error("provision request failed",
				"request_id", req.RequestID,
				"kind", req.Kind,
				"instance_id", req.InstanceID,
				"error", err)
		}
		iteration++
	}

	for {
		for {
			var req model.ProvisionRequest
			if !signalCh.ReceiveAsync(&req) {
				break
			}
			handle(req)
			if iteration >= maxIterations {
				return workflow.NewContinueAsNewError(ctx, ProvisionOrchestratorWorkflow)
			}
		}

		var req model.ProvisionRequest
		gotSignal := false

		selector := workflow.NewSelector(ctx)
		selector.AddReceive(signalCh, func(c workflow.ReceiveChannel, _ bool) {
			c.Receive(ctx, &req)
			gotSignal = true
		})
		selector.AddFuture(workflow.NewTimer(ctx, 5*time.Minute), func(workflow.Future) {})
		selector.Select(ctx)

		if !gotSignal {
			return nil
		}

		handle(req)
		if iteration >= maxIterations {
			return workflow.NewContinueAsNewError(ctx, ProvisionOrchestratorWorkflow)
		}
	}
}

// executeProvisionRequest runs one request: a full handler round for
// actions, a single Evaluate Event for evaluate requests.
func executeProvisionRequest(ctx workflow.Context, req model.ProvisionRequest) error {
	var out provision.Outcome
	var err error

	switch req.Kind {
	case model.RequestEvaluate:
		err = workflow.ExecuteActivity(handlerActivityCtx(ctx), "EvaluateEvent", req.InstanceID, req.Status).Get(ctx, &out)
	default:
		opts := workflow.ChildWorkflowOptions{}
		if req.RequestID != "" {
			opts.WorkflowID = "peacock-" + req.InstanceID + "-" + req.RequestID
		}
		childCtx := workflow.WithChildOptions(ctx, opts)
		err = workflow.ExecuteChildWorkflow(childCtx, PeacockProvisionWorkflow, req).Get(ctx, &out)
	}

	if req.CallbackURL != "" {
		fireCallback(ctx, req, out, err)
	}
	return err
}

// fireCallback reports the result of a request to its callback URL. It is
// best-effort: failures are logged and never block the orchestrator.
func fireCallback(ctx workflow.Context, req model.ProvisionRequest, out provision.Outcome, reqErr error) {
	logger := workflow.GetLogger(ctx)

	payload := model.CallbackPayload{
		RequestID:     req.RequestID,
		InstanceID:    req.InstanceID,
		Kind:          req.Kind,
		Outcome:       string(out.Kind),
		StatusMessage: out.Reason,
	}
	if reqErr != nil {
		payload.Outcome = string(provision.OutcomeFaulted)
		payload.StatusMessage = reqErr.Error()
	}

	var status model.Status
	if err := workflow.ExecuteActivity(handlerActivityCtx(ctx), "GetProvisionStatus", req.InstanceID).Get(ctx, &status); err != nil {
		logger.Warn("could not read provision status for callback", "instance_id", req.InstanceID, "error", err)
	}
	payload.Status = status

	callbackCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    10,
			InitialInterval:    5 * time.Second,
			MaximumInterval:    5 * time.Minute,
			BackoffCoefficient: 2.0,
		},
	})

	err := workflow.ExecuteActivity(callbackCtx, "SendCallback", activity.SendCallbackParams{
		URL:     req.CallbackURL,
		Payload: payload,
	}).Get(ctx, nil)
	if err != nil {
		logger.Error("callback failed",
			"url", req.CallbackURL,
			"request_id", req.RequestID,
			"instance_id", req.InstanceID,
			"error", err)
	}
}
