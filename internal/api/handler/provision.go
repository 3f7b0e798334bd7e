package handler

import (
	"net/http"

	"github.com/edvin/peacock/internal/api/request"
	"github.com/edvin/peacock/internal/api/response"
	"github.com/edvin/peacock/internal/core"
	"github.com/edvin/peacock/internal/model"
)

type Provision struct {
	svc *core.ProvisionService
}

func NewProvision(svc *core.ProvisionService) *Provision {
	return &Provision{svc: svc}
}

func (h *Provision) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateProvision
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.svc.Create(r.Context(), req.Fields())
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, p)
}

func (h *Provision) List(w http.ResponseWriter, r *http.Request) {
	params, err := request.ParseListParams(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, hasMore, err := h.svc.List(r.Context(), params.Statuses, params.Limit, params.Cursor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	cursor := nextCursor(items, hasMore, func(p *model.ProvisionInstance) string { return p.ID })
	response.WritePaginated(w, http.StatusOK, items, cursor, hasMore)
}

func (h *Provision) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, p)
}

func (h *Provision) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req request.StartProvision
	if err := request.DecodeOptional(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	reqID, err := h.svc.Start(r.Context(), model.StartProcessRequest{
		InstanceID: id,
		Process:    req.Process,
		KeyField:   req.KeyField,
		Transition: req.Transition,
	})
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, response.Accepted{RequestID: reqID, InstanceID: id})
}

func (h *Provision) Action(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req request.ProvisionAction
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	reqID, err := h.svc.Action(r.Context(), id, model.Action(req.Action))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, response.Accepted{RequestID: reqID, InstanceID: id})
}

func (h *Provision) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	reqID, err := h.svc.Evaluate(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, response.Accepted{RequestID: reqID, InstanceID: id})
}

func (h *Provision) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Provision) Tokens(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	tokens, err := h.svc.Tokens(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Provision) Logs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit := request.ParseLimit(r, request.DefaultLogLimit, request.MaxLogLimit)

	recs, err := h.svc.Logs(r.Context(), id, limit)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, recs)
}
