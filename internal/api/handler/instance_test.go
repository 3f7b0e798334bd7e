package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/peacock/internal/model"
)

func TestInstanceCreate_Success(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.instance.Create(rec, newRequest(http.MethodPost, "/instances", map[string]any{
		"definition": "tag",
		"fields":     map[string]any{"Scan": []string{"scan-1"}},
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	var inst model.Instance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inst))
	assert.Equal(t, model.DefinitionTAG, inst.Definition)
	assert.Equal(t, model.StatusReady, inst.Status)
	assert.JSONEq(t, `{"Scan":["scan-1"]}`, string(inst.Fields))
}

func TestInstanceCreate_UnknownDefinition(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.instance.Create(rec, newRequest(http.MethodPost, "/instances", map[string]any{"definition": "peacock_provision"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstanceCreate_UnknownStatus(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.instance.Create(rec, newRequest(http.MethodPost, "/instances", map[string]any{"definition": "conviva", "status": "pending"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstanceList_RequiresDefinition(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.instance.List(rec, newRequest(http.MethodGet, "/instances", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstanceTransition(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.instance.Create(rec, newRequest(http.MethodPost, "/instances", map[string]any{"definition": "conviva", "status": "in_progress"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Instance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = httptest.NewRecorder()
	f.instance.Transition(rec, withChiURLParam(newRequest(http.MethodPost, "/instances/"+created.ID+"/transitions",
		map[string]any{"transition": model.TransitionInProgressToActive}), "id", created.ID))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusActive, f.status(t, created.ID))
}

func TestInstanceTransition_Illegal(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, model.StatusDraft)
	rec := httptest.NewRecorder()

	f.instance.Transition(rec, withChiURLParam(newRequest(http.MethodPost, "/instances/"+id+"/transitions",
		map[string]any{"transition": model.TransitionActiveToDeactivate}), "id", id))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInstanceGet_NotFound(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.instance.Get(rec, withChiURLParam(newRequest(http.MethodGet, "/instances/missing", nil), "id", "missing"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
