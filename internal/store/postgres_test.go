package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/peacock/internal/model"
)

func instanceRow(inst model.Instance) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = inst.ID
		*(dest[1].(*string)) = inst.Definition
		*(dest[2].(*model.Status)) = inst.Status
		*(dest[3].(*int64)) = inst.Version
		*(dest[4].(*json.RawMessage)) = inst.Fields
		*(dest[5].(*string)) = inst.LastAction
		*(dest[6].(*time.Time)) = inst.CreatedAt
		*(dest[7].(*time.Time)) = inst.UpdatedAt
		return nil
	}}
}

func statusRow(status model.Status) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*model.Status)) = status
		return nil
	}}
}

func TestPostgres_ReadInstance_Success(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()

	want := model.Instance{
		ID:         "main-1",
		Definition: model.DefinitionProvision,
		Status:     model.StatusInProgress,
		Version:    3,
		Fields:     json.RawMessage(`{"Event ID":"e1"}`),
	}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"main-1"}).Return(instanceRow(want))

	got, err := s.ReadInstance(ctx, "main-1")
	require.NoError(t, err)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, int64(3), got.Version)
	assert.JSONEq(t, `{"Event ID":"e1"}`, string(got.Fields))
	db.AssertExpectations(t)
}

func TestPostgres_ReadInstance_NotFound(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errRow(pgx.ErrNoRows))

	_, err := s.ReadInstance(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_ReadInstance_DBError(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errRow(errors.New("connection reset")))

	_, err := s.ReadInstance(ctx, "main-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgres_DoStatusTransition_Success(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"),
		[]any{model.StatusInProgress, "main-1", model.StatusReady},
	).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	require.NoError(t, s.DoStatusTransition(ctx, "main-1", model.TransitionReadyToInProgress))
	db.AssertExpectations(t)
}

func TestPostgres_DoStatusTransition_Undeclared(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)

	err := s.DoStatusTransition(context.Background(), "main-1", "ready_to_active")
	require.ErrorIs(t, err, ErrIllegalTransition)
	db.AssertNotCalled(t, "Exec")
}

func TestPostgres_DoStatusTransition_WrongSource(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"main-1"}).Return(statusRow(model.StatusActive))

	err := s.DoStatusTransition(ctx, "main-1", model.TransitionReadyToInProgress)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestPostgres_DoStatusTransition_NotFound(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errRow(pgx.ErrNoRows))

	err := s.DoStatusTransition(ctx, "main-1", model.TransitionReadyToInProgress)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_DoStatusTransition_LostRace(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(statusRow(model.StatusReady))

	err := s.DoStatusTransition(ctx, "main-1", model.TransitionReadyToInProgress)
	require.ErrorIs(t, err, ErrConflict)
}

func TestPostgres_UpdateInstance_Success(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()
	now := time.Now()

	inst := &model.Instance{ID: "main-1", Version: 4, Fields: json.RawMessage(`{"InstanceId":"main-1"}`)}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"),
		[]any{inst.Fields, "main-1", int64(4)},
	).Return(&mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*int64)) = 5
		*(dest[1].(*time.Time)) = now
		return nil
	}})

	require.NoError(t, s.UpdateInstance(ctx, inst))
	assert.Equal(t, int64(5), inst.Version)
	assert.Equal(t, now, inst.UpdatedAt)
	db.AssertExpectations(t)
}

func TestPostgres_UpdateInstance_Conflict(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()

	inst := &model.Instance{ID: "main-1", Version: 4}
	db.On("QueryRow", ctx, mock.MatchedBy(func(q string) bool { return strings.HasPrefix(q, "UPDATE") }), mock.Anything).
		Return(errRow(pgx.ErrNoRows))
	db.On("QueryRow", ctx, mock.MatchedBy(func(q string) bool { return strings.HasPrefix(q, "SELECT") }), mock.Anything).
		Return(statusRow(model.StatusActive))

	err := s.UpdateInstance(ctx, inst)
	require.ErrorIs(t, err, ErrConflict)
}

func TestPostgres_ExecuteAction(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 3 && args[0] == "tag-1" && args[1] == "error-provision"
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
	require.NoError(t, s.ExecuteAction(ctx, "tag-1", "error-provision"))

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 0"), nil).Once()
	err := s.ExecuteAction(ctx, "missing", "provision")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_CreateInstance(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()

	inst := &model.Instance{ID: "main-1", Definition: model.DefinitionProvision, Status: model.StatusDraft}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return args[0] == "main-1" && string(args[4].(json.RawMessage)) == "{}"
	})).Return(&mockRow{scanFunc: func(dest ...any) error { return nil }})

	require.NoError(t, s.CreateInstance(ctx, inst))
	assert.Equal(t, int64(1), inst.Version)

	err := s.CreateInstance(ctx, &model.Instance{ID: "x", Status: "bogus"})
	require.Error(t, err)
}

func TestPostgres_DeleteInstance(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"main-1"}).Return(pgconn.NewCommandTag("DELETE 1"), nil)
	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"gone"}).Return(pgconn.NewCommandTag("DELETE 0"), nil)

	require.NoError(t, s.DeleteInstance(ctx, "main-1"))
	require.ErrorIs(t, s.DeleteInstance(ctx, "gone"), ErrNotFound)
}

func TestPostgres_ListInstances(t *testing.T) {
	db := &mockDB{}
	s := NewPostgres(db)
	ctx := context.Background()
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := newMockRows(
		instanceRow(model.Instance{ID: "a", Status: model.StatusInProgress}).scanFunc,
		instanceRow(model.Instance{ID: "b", Status: model.StatusDeactivating}).scanFunc,
	)
	db.On("Query", ctx,
		mock.MatchedBy(func(q string) bool {
			return strings.Contains(q, "definition = $1") &&
				strings.Contains(q, "status = ANY($2)") &&
				strings.Contains(q, "updated_at < $3") &&
				strings.Contains(q, "LIMIT $4")
		}),
		[]any{model.DefinitionProvision, []string{"in_progress", "deactivating"}, cutoff, DefaultListLimit},
	).Return(rows, nil)

	got, err := s.ListInstances(ctx, ListFilter{
		Definition:    model.DefinitionProvision,
		Statuses:      []model.Status{model.StatusInProgress, model.StatusDeactivating},
		UpdatedBefore: cutoff,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, model.StatusDeactivating, got[1].Status)
	db.AssertExpectations(t)
}
