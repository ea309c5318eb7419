package handlers

import (
	"net/http"

	"github.com/Scan360AI/rnd-credit-manager/httpx"
	"github.com/Scan360AI/rnd-credit-manager/validation"
)

func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, ws.Allocations())
}

// AllocationRequest carries the raw percentage; strings and numbers are both
// accepted and normalized to an integer in 0..100.
type AllocationRequest struct {
	Percentage any `json:"percentage"`
}

func (h *Handler) SetAllocation(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var in AllocationRequest
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	empID, projID := r.PathValue("employeeID"), r.PathValue("projectID")
	pct, err := ws.SetAllocation(r.Context(), empID, projID, in.Percentage)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"employeeId": empID,
		"projectId":  projID,
		"percentage": pct,
	})
}

type DistributeRequest struct {
	ProjectIDs []string `json:"project_ids" validate:"required,min=1,dive,required"`
}

func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var in DistributeRequest
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	v := validation.Violations{}
	validation.Struct(in, v)
	if err := v.Err(); err != nil {
		httpx.Error(w, r, err)
		return
	}
	entries, err := ws.DistributeEqually(r.Context(), r.PathValue("employeeID"), in.ProjectIDs)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) ClearAllocations(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	n, err := ws.ClearAllocations(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"cleared": n})
}
