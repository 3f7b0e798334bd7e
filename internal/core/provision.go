package core

import (
	"context"
	"errors"
	"fmt"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/platform"
	"github.com/edvin/peacock/internal/provision"
	"github.com/edvin/peacock/internal/store"
)

const taskQueue = "peacock-tasks"

// ErrNotEvaluable is returned when an evaluation is requested for a
// provision that is not in a round.
var ErrNotEvaluable = errors.New("provision is not in an evaluable status")

// buttonTransitions are the main instance transitions applied when an
// action is requested, keyed by action and current status.
var buttonTransitions = map[model.Action]map[model.Status]string{
	model.ActionDeactivate: {
		model.StatusActive:           model.TransitionActiveToDeactivate,
		model.StatusActiveWithErrors: model.TransitionActiveWithErrorsToDeactivate,
		model.StatusDeactivate:       "",
	},
	model.ActionReprovision: {
		model.StatusActive:      model.TransitionActiveToReprovision,
		model.StatusReprovision: "",
	},
	model.ActionProvision: {
		model.StatusReady:      "",
		model.StatusInProgress: "",
	},
	model.ActionCompleteProvision: {
		model.StatusComplete: "",
	},
}

type ctxKey string

const callbackURLKey ctxKey = "callback_url"

// WithCallbackURL attaches a callback URL to the context. Requests signalled
// with such a context report their result to the URL.
func WithCallbackURL(ctx context.Context, url string) context.Context {
	if url == "" {
		return ctx
	}
	return context.WithValue(ctx, callbackURLKey, url)
}

// CallbackURLFromContext returns the callback URL attached to ctx, if any.
func CallbackURLFromContext(ctx context.Context) string {
	if url, ok := ctx.Value(callbackURLKey).(string); ok {
		return url
	}
	return ""
}

// TokenLister lists the process token ledger of an instance.
type TokenLister interface {
	List(ctx context.Context, instanceID string) ([]model.ProcessToken, error)
}

// LogLister lists handler log records by affected service.
type LogLister interface {
	ListByService(ctx context.Context, service string, limit int) ([]model.LogRecord, error)
}

// ProvisionService manages provision instances and hands their requests to
// the per-instance orchestrator workflow.
type ProvisionService struct {
	store   store.InstanceStore
	starter *provision.Starter
	tokens  TokenLister
	logs    LogLister
	tc      temporalclient.Client
}

func NewProvisionService(s store.InstanceStore, starter *provision.Starter, tokens TokenLister, logs LogLister, tc temporalclient.Client) *ProvisionService {
	return &ProvisionService{store: s, starter: starter, tokens: tokens, logs: logs, tc: tc}
}

// Create stores a new provision in draft.
func (s *ProvisionService) Create(ctx context.Context, fields model.ProvisionFields) (*model.ProvisionInstance, error) {
	if err := fields.Validate(model.StatusDraft); err != nil {
		return nil, err
	}
	fields.Action = ""
	fields.InstanceID = ""
	fields.BusinessKey = ""

	p := &model.ProvisionInstance{
		Instance: &model.Instance{
			ID:         platform.NewID(),
			Definition: model.DefinitionProvision,
			Status:     model.StatusDraft,
		},
		ProvisionFields: fields,
	}
	if err := p.Sync(); err != nil {
		return nil, err
	}
	if err := s.store.CreateInstance(ctx, p.Instance); err != nil {
		return nil, fmt.Errorf("create provision: %w", err)
	}
	return p, nil
}

// Get returns the provision with the given id.
func (s *ProvisionService) Get(ctx context.Context, id string) (*model.ProvisionInstance, error) {
	inst, err := s.store.ReadInstance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get provision %s: %w", id, err)
	}
	p, err := model.NewProvisionInstance(inst)
	if err != nil {
		return nil, fmt.Errorf("get provision %s: %w", id, store.ErrNotFound)
	}
	return p, nil
}

// List returns up to limit provisions after cursor, optionally restricted
// to the given statuses, and whether more exist.
func (s *ProvisionService) List(ctx context.Context, statuses []model.Status, limit int, cursor string) ([]*model.ProvisionInstance, bool, error) {
	insts, err := s.store.ListInstances(ctx, store.ListFilter{
		Definition: model.DefinitionProvision,
		Statuses:   statuses,
		Limit:      limit + 1,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, false, fmt.Errorf("list provisions: %w", err)
	}
	hasMore := len(insts) > limit
	if hasMore {
		insts = insts[:limit]
	}
	out := make([]*model.ProvisionInstance, 0, len(insts))
	for i := range insts {
		p, err := model.NewProvisionInstance(&insts[i])
		if err != nil {
			return nil, false, fmt.Errorf("list provisions: %w", err)
		}
		out = append(out, p)
	}
	return out, hasMore, nil
}

// Start moves a draft provision into its process and runs its first round.
// It returns the orchestrator request id.
func (s *ProvisionService) Start(ctx context.Context, req model.StartProcessRequest) (string, error) {
	if _, err := s.Get(ctx, req.InstanceID); err != nil {
		return "", err
	}
	if err := s.starter.Start(ctx, req); err != nil {
		return "", fmt.Errorf("start provision %s: %w", req.InstanceID, err)
	}
	if err := s.setAction(ctx, req.InstanceID, model.ActionProvision); err != nil {
		return "", err
	}
	p, err := s.Get(ctx, req.InstanceID)
	if err != nil {
		return "", err
	}
	return s.signal(ctx, model.ProvisionRequest{
		Kind:       model.RequestAction,
		InstanceID: req.InstanceID,
		Action:     model.ActionProvision,
		Status:     p.Status,
	})
}

// Action records a requested action on a provision, applies the matching
// button transition and runs a round for it.
func (s *ProvisionService) Action(ctx context.Context, id string, action model.Action) (string, error) {
	byStatus, ok := buttonTransitions[action]
	if !ok {
		return "", fmt.Errorf("validation error: unknown action %q", action)
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	name, ok := byStatus[p.Status]
	if !ok {
		return "", fmt.Errorf("%w: %s is not allowed in status %s", store.ErrIllegalTransition, action, p.Status)
	}

	if err := s.setAction(ctx, id, action); err != nil {
		return "", err
	}
	status := p.Status
	if name != "" {
		if _, err := store.ApplyTransition(ctx, s.store, id, name); err != nil {
			return "", fmt.Errorf("apply %s: %w", name, err)
		}
		status = model.MustTransition(name).To
	}
	return s.signal(ctx, model.ProvisionRequest{
		Kind:       model.RequestAction,
		InstanceID: id,
		Action:     action,
		Status:     status,
	})
}

// Evaluate runs Evaluate Event for a provision that is in a round.
func (s *ProvisionService) Evaluate(ctx context.Context, id string) (string, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !p.Status.Evaluable() {
		return "", fmt.Errorf("%w: %s", ErrNotEvaluable, p.Status)
	}
	return s.signal(ctx, model.ProvisionRequest{
		Kind:       model.RequestEvaluate,
		InstanceID: id,
		Status:     p.Status,
	})
}

// Delete starts the rebuild of a provision, which removes it together with
// its children.
func (s *ProvisionService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	_, err := s.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        model.RebuildWorkflowID(id),
		TaskQueue: taskQueue,
	}, model.RebuildWorkflowName, id)
	if err != nil {
		return fmt.Errorf("start %s: %w", model.RebuildWorkflowName, err)
	}
	return nil
}

// Tokens returns the process token ledger of a provision.
func (s *ProvisionService) Tokens(ctx context.Context, id string) ([]model.ProcessToken, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	tokens, err := s.tokens.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list tokens of %s: %w", id, err)
	}
	return tokens, nil
}

// Logs returns the most recent handler log records of a provision.
func (s *ProvisionService) Logs(ctx context.Context, id string, limit int) ([]model.LogRecord, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	recs, err := s.logs.ListByService(ctx, p.ProvisionName, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs of %s: %w", id, err)
	}
	return recs, nil
}

func (s *ProvisionService) setAction(ctx context.Context, id string, action model.Action) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Action == action {
		return nil
	}
	p.Action = action
	if err := p.Sync(); err != nil {
		return err
	}
	if err := s.store.UpdateInstance(ctx, p.Instance); err != nil {
		return fmt.Errorf("set action of %s: %w", id, err)
	}
	return nil
}

// signal routes req through the per-instance orchestrator workflow so
// requests for one provision run one at a time.
func (s *ProvisionService) signal(ctx context.Context, req model.ProvisionRequest) (string, error) {
	req.RequestID = platform.NewRequestKey("req-")
	req.CallbackURL = CallbackURLFromContext(ctx)

	wfID := model.OrchestratorWorkflowID(req.InstanceID)
	_, err := s.tc.SignalWithStartWorkflow(ctx, wfID, model.ProvisionSignalName, req,
		temporalclient.StartWorkflowOptions{
			ID:        wfID,
			TaskQueue: taskQueue,
		},
		model.OrchestratorWorkflowName,
	)
	if err != nil {
		return "", fmt.Errorf("signal %s: %w", model.OrchestratorWorkflowName, err)
	}
	return req.RequestID, nil
}
