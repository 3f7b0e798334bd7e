package provision

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/platform"
	"github.com/edvin/peacock/internal/store"
)

func TestStart_MovesDraftToReadyAndPushesToken(t *testing.T) {
	env := newTestEnv(t)
	mainID := env.provision(t, model.StatusDraft, model.ProvisionFields{EventID: "evt-7"})

	require.NoError(t, NewStarter(env.runner).Start(context.Background(), model.StartProcessRequest{InstanceID: mainID}))

	assert.Equal(t, model.StatusReady, env.status(t, mainID))

	inst, err := env.store.ReadInstance(context.Background(), mainID)
	require.NoError(t, err)
	p, err := model.NewProvisionInstance(inst)
	require.NoError(t, err)
	assert.Equal(t, mainID, p.InstanceID)
	assert.Equal(t, "evt-7", p.BusinessKey)

	tokens, err := env.tokens.List(context.Background(), mainID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, model.TokenPushed, tokens[0].Event)
	assert.Equal(t, model.DefaultProcessName, tokens[0].Process)
	assert.Equal(t, "evt-7", tokens[0].BusinessKey)
}

func TestStart_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	mainID := env.provision(t, model.StatusDraft, model.ProvisionFields{})
	starter := NewStarter(env.runner)

	require.NoError(t, starter.Start(context.Background(), model.StartProcessRequest{InstanceID: mainID}))
	require.NoError(t, starter.Start(context.Background(), model.StartProcessRequest{InstanceID: mainID}))

	tokens, err := env.tokens.List(context.Background(), mainID)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
	assert.Equal(t, model.StatusReady, env.status(t, mainID))
}

func TestStart_CustomKeyFieldAndProcess(t *testing.T) {
	env := newTestEnv(t)
	mainID := env.provision(t, model.StatusDraft, model.ProvisionFields{})

	err := NewStarter(env.runner).Start(context.Background(), model.StartProcessRequest{
		InstanceID: mainID,
		Process:    "Peacock Deprovision",
		KeyField:   "Provision Name",
	})
	require.NoError(t, err)

	tokens, err := env.tokens.List(context.Background(), mainID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "Peacock Deprovision", tokens[0].Process)
	assert.Equal(t, "EPL Match", tokens[0].BusinessKey)
}

func TestStart_EmptyBusinessKey(t *testing.T) {
	env := newTestEnv(t)
	mainID := env.provision(t, model.StatusDraft, model.ProvisionFields{})

	err := NewStarter(env.runner).Start(context.Background(), model.StartProcessRequest{
		InstanceID: mainID,
		KeyField:   "TAG",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation error")
	assert.Equal(t, model.StatusDraft, env.status(t, mainID))
}

func TestStart_MissingRequiredField(t *testing.T) {
	env := newTestEnv(t)
	raw, err := json.Marshal(model.ProvisionFields{EventID: "evt-9"})
	require.NoError(t, err)
	mainID := platform.NewID()
	require.NoError(t, env.store.CreateInstance(context.Background(), &model.Instance{
		ID:         mainID,
		Definition: model.DefinitionProvision,
		Status:     model.StatusDraft,
		Fields:     raw,
	}))

	err = NewStarter(env.runner).Start(context.Background(), model.StartProcessRequest{InstanceID: mainID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation error")

	tokens, err := env.tokens.List(context.Background(), mainID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestStart_UndeclaredTransition(t *testing.T) {
	env := newTestEnv(t)
	mainID := env.provision(t, model.StatusDraft, model.ProvisionFields{})

	err := NewStarter(env.runner).Start(context.Background(), model.StartProcessRequest{
		InstanceID: mainID,
		Transition: "draft_to_active",
	})
	assert.ErrorIs(t, err, store.ErrIllegalTransition)
}

func TestStart_WrongSourceStatus(t *testing.T) {
	env := newTestEnv(t)
	mainID := env.provision(t, model.StatusActive, model.ProvisionFields{})

	err := NewStarter(env.runner).Start(context.Background(), model.StartProcessRequest{InstanceID: mainID})
	assert.ErrorIs(t, err, store.ErrIllegalTransition)
}
