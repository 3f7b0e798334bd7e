package provision

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/edvin/peacock/internal/logsink"
	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/platform"
	"github.com/edvin/peacock/internal/store"
	"github.com/edvin/peacock/internal/token"
)

type testEnv struct {
	store  *store.Memory
	logs   *logsink.Memory
	tokens *token.Memory
	runner *Runner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  store.NewMemory(),
		logs:   logsink.NewMemory(),
		tokens: token.NewMemory(),
	}
	env.runner = NewRunner(Deps{
		Store:  env.store,
		Logs:   env.logs,
		Tokens: env.tokens,
		Logger: zerolog.Nop(),
	})
	return env
}

// provision creates a main instance with the given status and fields.
func (e *testEnv) provision(t *testing.T, status model.Status, fields model.ProvisionFields) string {
	t.Helper()
	if fields.ProvisionName == "" {
		fields.ProvisionName = "EPL Match"
	}
	if fields.EventID == "" {
		fields.EventID = "evt-1"
	}
	raw, err := json.Marshal(fields)
	require.NoError(t, err)

	id := platform.NewID()
	require.NoError(t, e.store.CreateInstance(context.Background(), &model.Instance{
		ID:         id,
		Definition: model.DefinitionProvision,
		Status:     status,
		Fields:     raw,
	}))
	return id
}

// child creates a child instance and returns its id.
func (e *testEnv) child(t *testing.T, definition string, status model.Status, fields model.ChildFields) string {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)

	id := platform.NewID()
	require.NoError(t, e.store.CreateInstance(context.Background(), &model.Instance{
		ID:         id,
		Definition: definition,
		Status:     status,
		Fields:     raw,
	}))
	return id
}

func (e *testEnv) status(t *testing.T, id string) model.Status {
	t.Helper()
	inst, err := e.store.ReadInstance(context.Background(), id)
	require.NoError(t, err)
	return inst.Status
}

func (e *testEnv) exists(id string) bool {
	_, err := e.store.ReadInstance(context.Background(), id)
	return err == nil
}

// recordingCallback records event manager updates.
type recordingCallback struct {
	mu      sync.Mutex
	targets []string
	updates []model.ExternalRequest
	err     error
}

func (c *recordingCallback) SendProcessUpdate(ctx context.Context, sourceElement string, req model.ExternalRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets = append(c.targets, sourceElement)
	c.updates = append(c.updates, req)
	return c.err
}

func (c *recordingCallback) statuses() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, u := range c.updates {
		out = append(out, u.ProcessResponse.Peacock.Status)
	}
	return out
}

// recordingTrigger records rebuild triggers.
type recordingTrigger struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingTrigger) TriggerRebuild(ctx context.Context, mainID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, mainID)
	return nil
}

// failingStore fails reads of selected ids.
type failingStore struct {
	*store.Memory
	failRead map[string]bool
}

var errStoreDown = errors.New("store unavailable")

func (f *failingStore) ReadInstance(ctx context.Context, id string) (*model.Instance, error) {
	if f.failRead[id] {
		return nil, errStoreDown
	}
	return f.Memory.ReadInstance(ctx, id)
}
