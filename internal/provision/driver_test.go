package provision

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/platform"
	"github.com/edvin/peacock/internal/store"
)

func TestConcreteAction(t *testing.T) {
	tests := []struct {
		status model.Status
		action model.Action
		want   string
	}{
		{model.StatusReady, model.ActionProvision, "provision"},
		{model.StatusActive, model.ActionDeactivate, "deactivate"},
		{model.StatusError, model.ActionProvision, "error-provision"},
		{model.Status("error_provisioning"), model.ActionDeactivate, "error-deactivate"},
		{model.StatusActiveWithErrors, model.ActionDeactivate, "activewitherrors-deactivate"},
		{model.StatusComplete, model.ActionCompleteProvision, "complete-provision"},
		{model.StatusActive, model.Action("restart"), "restart"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ConcreteAction(tt.status, tt.action), "%s/%s", tt.status, tt.action)
	}
}

func TestDriver_AbsentChildIsSkipped(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"no reference":      "",
		"malformed id":      "not-a-guid",
		"row does not exist": platform.NewID(),
	}
	for name, ref := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			mainID := env.provision(t, model.StatusReady, model.ProvisionFields{Conviva: ref, Action: model.ActionProvision})

			out := NewDriver(env.runner).Start(ctx, model.ChildConviva, StartRequest{MainID: mainID})

			assert.Equal(t, OutcomeCompleted, out.Kind)
			assert.Empty(t, env.store.Actions())
			assert.Equal(t, model.StatusReady, env.status(t, mainID))
			assert.Equal(t, []string{StepStartConviva}, env.tokens.Finished(mainID))
		})
	}
}

func TestDriver_ProvisionAdvancesMain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	convivaID := env.child(t, model.DefinitionConviva, model.StatusReady, model.ChildFields{})
	mainID := env.provision(t, model.StatusReady, model.ProvisionFields{Conviva: convivaID, Action: model.ActionProvision})

	out := NewDriver(env.runner).Start(ctx, model.ChildConviva, StartRequest{MainID: mainID})

	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, []string{"provision"}, env.store.ActionsFor(convivaID))
	assert.Equal(t, model.StatusInProgress, env.status(t, mainID))

	// A second driver in the same round finds the main instance already
	// advanced and leaves it alone.
	out = NewDriver(env.runner).Start(ctx, model.ChildConviva, StartRequest{MainID: mainID})
	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, model.StatusInProgress, env.status(t, mainID))
}

func TestDriver_TAGWritesActionBeforeDispatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tagID := env.child(t, model.DefinitionTAG, model.StatusError, model.ChildFields{Scans: []string{"scan-1"}})
	mainID := env.provision(t, model.StatusDeactivate, model.ProvisionFields{TAG: tagID})

	out := NewDriver(env.runner).Start(ctx, model.ChildTAG, StartRequest{MainID: mainID, Action: model.ActionDeactivate})
	require.Equal(t, OutcomeCompleted, out.Kind)

	tag, err := env.store.ReadInstance(ctx, tagID)
	require.NoError(t, err)
	var fields model.ChildFields
	require.NoError(t, tag.Decode(&fields))
	assert.Equal(t, "deactivate", fields.Action)
	assert.Equal(t, []string{"scan-1"}, fields.Scans)

	assert.Equal(t, []string{"error-deactivate"}, env.store.ActionsFor(tagID))
	assert.Equal(t, model.StatusDeactivating, env.status(t, mainID))
}

func TestDriver_ActiveWithErrorsChildGetsPrefix(t *testing.T) {
	env := newTestEnv(t)
	tsID := env.child(t, model.DefinitionTouchstream, model.StatusActiveWithErrors, model.ChildFields{})
	mainID := env.provision(t, model.StatusReprovision, model.ProvisionFields{Touchstream: tsID, Action: model.ActionReprovision})

	out := NewDriver(env.runner).Start(context.Background(), model.ChildTouchstream, StartRequest{MainID: mainID})

	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, []string{"activewitherrors-reprovision"}, env.store.ActionsFor(tsID))
	assert.Equal(t, model.StatusInProgress, env.status(t, mainID))
}

func TestDriver_MainNotInSourceStatus(t *testing.T) {
	env := newTestEnv(t)
	convivaID := env.child(t, model.DefinitionConviva, model.StatusActive, model.ChildFields{})
	mainID := env.provision(t, model.StatusActive, model.ProvisionFields{Conviva: convivaID})

	out := NewDriver(env.runner).Start(context.Background(), model.ChildConviva,
		StartRequest{MainID: mainID, Action: model.ActionProvision})

	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, []string{"provision"}, env.store.ActionsFor(convivaID))
	assert.Equal(t, model.StatusActive, env.status(t, mainID))
}

func TestDriver_UnknownActionIsForwardedOnly(t *testing.T) {
	env := newTestEnv(t)
	convivaID := env.child(t, model.DefinitionConviva, model.StatusActive, model.ChildFields{})
	mainID := env.provision(t, model.StatusReady, model.ProvisionFields{Conviva: convivaID})

	out := NewDriver(env.runner).Start(context.Background(), model.ChildConviva,
		StartRequest{MainID: mainID, Action: "restart"})

	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, []string{"restart"}, env.store.ActionsFor(convivaID))
	assert.Equal(t, model.StatusReady, env.status(t, mainID))
}

func TestDriver_NoActionRequested(t *testing.T) {
	env := newTestEnv(t)
	convivaID := env.child(t, model.DefinitionConviva, model.StatusActive, model.ChildFields{})
	mainID := env.provision(t, model.StatusReady, model.ProvisionFields{Conviva: convivaID})

	out := NewDriver(env.runner).Start(context.Background(), model.ChildConviva, StartRequest{MainID: mainID})

	assert.Equal(t, OutcomeCompletedWithWarning, out.Kind)
	assert.Empty(t, env.store.Actions())
}

func TestDriver_StoreFailureIsFaultedButFinished(t *testing.T) {
	env := newTestEnv(t)
	convivaID := env.child(t, model.DefinitionConviva, model.StatusActive, model.ChildFields{})
	mainID := env.provision(t, model.StatusReady, model.ProvisionFields{Conviva: convivaID, Action: model.ActionProvision})

	fs := &failingStore{Memory: env.store, failRead: map[string]bool{convivaID: true}}
	runner := NewRunner(Deps{Store: fs, Logs: env.logs, Tokens: env.tokens, Logger: env.runner.deps.Logger})

	out := NewDriver(runner).Start(context.Background(), model.ChildConviva, StartRequest{MainID: mainID})

	assert.Equal(t, OutcomeFaulted, out.Kind)
	assert.Equal(t, []string{StepStartConviva}, env.tokens.Finished(mainID))
	assert.Equal(t, model.StatusReady, env.status(t, mainID))

	recs := env.logs.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, model.SeverityMajor, recs[0].ErrorCode.Severity)
	assert.Equal(t, "Run() method - exception", recs[0].ErrorCode.Source)
	assert.Equal(t, "EPL Match", recs[0].AffectedService)
	assert.Contains(t, recs[0].LogNotes, "store unavailable")
}

func TestDriver_MissingMainInstance(t *testing.T) {
	env := newTestEnv(t)
	out := NewDriver(env.runner).Start(context.Background(), model.ChildTAG, StartRequest{MainID: "missing"})

	assert.Equal(t, OutcomeFaulted, out.Kind)
	assert.Equal(t, []string{StepStartTAG}, env.tokens.Finished("missing"))
	require.Len(t, env.logs.Records(), 1)
	assert.Equal(t, MainProcessService, env.logs.Records()[0].AffectedService)
}

// blockingStore holds the first dispatched action until release is closed.
type blockingStore struct {
	*store.Memory
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) ExecuteAction(ctx context.Context, id, action string) error {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.Memory.ExecuteAction(ctx, id, action)
}

func TestDriver_ConcurrentStartsWithDifferentActions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tagID := env.child(t, model.DefinitionTAG, model.StatusActive, model.ChildFields{})
	mainID := env.provision(t, model.StatusActive, model.ProvisionFields{TAG: tagID})

	bs := &blockingStore{Memory: env.store, entered: make(chan struct{}), release: make(chan struct{})}
	driver := NewDriver(NewRunner(Deps{Store: bs, Logs: env.logs, Tokens: env.tokens, Logger: env.runner.deps.Logger}))

	var wg sync.WaitGroup
	outs := make([]Outcome, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		outs[0] = driver.Start(ctx, model.ChildTAG, StartRequest{MainID: mainID, Action: model.ActionReprovision})
	}()
	<-bs.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		outs[1] = driver.Start(ctx, model.ChildTAG, StartRequest{MainID: mainID, Action: model.ActionDeactivate})
	}()
	time.Sleep(50 * time.Millisecond)
	close(bs.release)
	wg.Wait()

	assert.Equal(t, OutcomeCompleted, outs[0].Kind)
	assert.Equal(t, OutcomeCompleted, outs[1].Kind)
	assert.Equal(t, []string{"reprovision", "deactivate"}, env.store.ActionsFor(tagID))
	assert.Equal(t, []string{StepStartTAG, StepStartTAG}, env.tokens.Finished(mainID))
}
