package handler

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalmocks "go.temporal.io/sdk/mocks"

	"github.com/edvin/peacock/internal/core"
	"github.com/edvin/peacock/internal/logsink"
	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/provision"
	"github.com/edvin/peacock/internal/store"
	"github.com/edvin/peacock/internal/token"
)

type fixture struct {
	store     *store.Memory
	logs      *logsink.Memory
	tc        *temporalmocks.Client
	provision *Provision
	instance  *Instance
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemory(),
		logs:  logsink.NewMemory(),
		tc:    &temporalmocks.Client{},
	}
	tokens := token.NewMemory()
	runner := provision.NewRunner(provision.Deps{
		Store:  f.store,
		Logs:   f.logs,
		Tokens: tokens,
		Logger: zerolog.Nop(),
	})
	f.provision = NewProvision(core.NewProvisionService(f.store, provision.NewStarter(runner), tokens, f.logs, f.tc))
	f.instance = NewInstance(core.NewInstanceService(f.store))
	return f
}

// seed stores a provision in the given status and returns its id.
func (f *fixture) seed(t *testing.T, status model.Status) string {
	t.Helper()
	p := &model.ProvisionInstance{
		Instance: &model.Instance{
			ID:         "prov-" + string(status),
			Definition: model.DefinitionProvision,
			Status:     status,
		},
		ProvisionFields: model.ProvisionFields{
			ProvisionName: "Match 12",
			EventID:       "evt-12",
			SourceElement: "10/20",
		},
	}
	require.NoError(t, p.Sync())
	require.NoError(t, f.store.CreateInstance(context.Background(), p.Instance))
	return p.ID
}

func (f *fixture) allowSignal() {
	f.tc.On("SignalWithStartWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil)
}

func (f *fixture) status(t *testing.T, id string) model.Status {
	t.Helper()
	inst, err := f.store.ReadInstance(context.Background(), id)
	require.NoError(t, err)
	return inst.Status
}
