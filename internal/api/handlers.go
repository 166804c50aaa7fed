package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/miniagent/agent-platform/internal/models"
	"github.com/miniagent/agent-platform/internal/platform/errs"
	"github.com/miniagent/agent-platform/internal/store"
	"github.com/miniagent/agent-platform/internal/tenant"
)

type toolRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type agentRequest struct {
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	Description string  `json:"description"`
	ToolIDs     []int64 `json:"tool_ids"`
}

type runRequest struct {
	Task  string `json:"task"`
	Model string `json:"model"`
}

func (h *Handler) tenantOf(w http.ResponseWriter, r *http.Request) (tenant.Tenant, bool) {
	t, ok := tenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, errs.InvalidTenant("Invalid API key"))
	}
	return t, ok
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, errs.Validation("Invalid id")
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Validation("Invalid request body")
	}
	return nil
}

func (h *Handler) createTool(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}
	var req toolRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tool, err := h.svc.CreateTool(r.Context(), t, req.Name, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (h *Handler) getTool(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tool, err := h.svc.GetTool(r.Context(), t, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (h *Handler) listTools(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}
	f := store.ToolFilter{
		Name:      r.URL.Query().Get("name"),
		AgentName: r.URL.Query().Get("agent_name"),
	}
	tools, err := h.svc.ListTools(r.Context(), t, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tools)
}

func (h *Handler) updateTool(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd models.ToolUpdate
	if err := decodeBody(r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	tool, err := h.svc.UpdateTool(r.Context(), t, id, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (h *Handler) deleteTool(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteTool(r.Context(), t, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": fmt.Sprintf("Deleted tool %d", id)})
}

func (h *Handler) createAgent(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}
	var req agentRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	agent, err := h.svc.CreateAgent(r.Context(), t, req.Name, req.Role, req.Description, req.ToolIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (h *Handler) getAgent(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	agent, err := h.svc.GetAgent(r.Context(), t, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}
	f := store.AgentFilter{
		Name:     r.URL.Query().Get("name"),
		ToolName: r.URL.Query().Get("tool_name"),
	}
	agents, err := h.svc.ListAgents(r.Context(), t, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *Handler) updateAgent(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd models.AgentUpdate
	if err := decodeBody(r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	agent, err := h.svc.UpdateAgent(r.Context(), t, id, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (h *Handler) deleteAgent(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteAgent(r.Context(), t, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": fmt.Sprintf("Deleted agent: %d", id)})
}

func (h *Handler) runAgent(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req runRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Model == "" {
		req.Model = "gpt-4o"
	}
	exec, err := h.svc.RunAgent(r.Context(), t, id, req.Task, req.Model)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (h *Handler) listExecutions(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenantOf(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var agentID *int64
	if raw := q.Get("agent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(w, r, errs.Validation("Invalid agent_id"))
			return
		}
		agentID = &id
	}

	page, err := queryInt(q.Get("page"))
	if err != nil {
		h.writeError(w, r, errs.Validation("Invalid page"))
		return
	}
	pageSize, err := queryInt(q.Get("page_size"))
	if err != nil {
		h.writeError(w, r, errs.Validation("Invalid page_size"))
		return
	}

	execs, err := h.svc.ListExecutions(r.Context(), t, agentID, page, pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

func queryInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
