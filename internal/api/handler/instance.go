package handler

import (
	"encoding/json"
	"net/http"

	"github.com/edvin/peacock/internal/api/request"
	"github.com/edvin/peacock/internal/api/response"
	"github.com/edvin/peacock/internal/core"
	"github.com/edvin/peacock/internal/model"
)

type Instance struct {
	svc *core.InstanceService
}

func NewInstance(svc *core.InstanceService) *Instance {
	return &Instance{svc: svc}
}

func (h *Instance) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateInstance
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var fields json.RawMessage
	if req.Fields != nil {
		raw, err := json.Marshal(req.Fields)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "invalid fields: "+err.Error())
			return
		}
		fields = raw
	}

	inst, err := h.svc.Create(r.Context(), req.Definition, model.Status(req.Status), fields)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, inst)
}

func (h *Instance) List(w http.ResponseWriter, r *http.Request) {
	params, err := request.ParseListParams(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params.Definition == "" {
		response.WriteError(w, http.StatusBadRequest, "validation error: definition is required")
		return
	}

	items, hasMore, err := h.svc.List(r.Context(), params.Definition, params.Limit, params.Cursor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	cursor := nextCursor(items, hasMore, func(i model.Instance) string { return i.ID })
	response.WritePaginated(w, http.StatusOK, items, cursor, hasMore)
}

func (h *Instance) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	inst, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, inst)
}

func (h *Instance) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req request.InstanceTransition
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst, err := h.svc.Transition(r.Context(), id, req.Transition)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, inst)
}
