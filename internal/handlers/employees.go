package handlers

import (
	"net/http"

	"github.com/Scan360AI/rnd-credit-manager/httpx"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/engine"
	"github.com/Scan360AI/rnd-credit-manager/internal/history"
	"github.com/Scan360AI/rnd-credit-manager/validation"
)

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, ws.Employees())
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	e, err := ws.Employee(r.PathValue("id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"employee":    e,
		"allocations": ws.EmployeeAllocations(e.ID),
	})
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var in engine.EmployeePatch
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	e, err := ws.AddEmployee(r.Context(), in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var in engine.EmployeePatch
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	e, err := ws.UpdateEmployee(r.Context(), r.PathValue("id"), in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.DeleteEmployee(r.Context(), r.PathValue("id")); err != nil {
		httpx.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MonthRequest sets a month either directly (hours with hourly or monthly cost) or
// through the normalizer when gross pay or an employer cost is given.
type MonthRequest struct {
	Hours        float64 `json:"hours" validate:"gte=0,lte=744"`
	HourlyCost   float64 `json:"hourly_cost" validate:"gte=0"`
	MonthlyCost  float64 `json:"monthly_cost" validate:"gte=0"`
	GrossPay     float64 `json:"gross_pay" validate:"gte=0"`
	EmployerCost float64 `json:"employer_cost" validate:"gte=0"`
}

func (m MonthRequest) normalized() bool { return m.GrossPay > 0 || m.EmployerCost > 0 }

func monthPath(r *http.Request) (string, error) {
	return history.Canonical(r.PathValue("mm") + "/" + r.PathValue("yyyy"))
}

func (h *Handler) PutMonth(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	month, err := monthPath(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var in MonthRequest
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	v := validation.Violations{}
	validation.Struct(in, v)
	if !in.normalized() {
		validation.PositiveFloat("hours", in.Hours, v)
	}
	if err := v.Err(); err != nil {
		httpx.Error(w, r, err)
		return
	}
	id := r.PathValue("id")
	var out any
	if in.normalized() {
		out, err = ws.NormalizeMonth(r.Context(), id, month, costs.Input{
			HoursInMonth:         in.Hours,
			GrossMonthlyPay:      in.GrossPay,
			EmployerCostOverride: in.EmployerCost,
		})
	} else {
		out, err = ws.UpsertMonth(r.Context(), id, month, costs.Record{
			Hours:       in.Hours,
			HourlyCost:  in.HourlyCost,
			MonthlyCost: in.MonthlyCost,
		})
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) DeleteMonth(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	month, err := monthPath(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	e, err := ws.RemoveMonth(r.Context(), r.PathValue("id"), month)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) NextMonth(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	key, e, err := ws.AddMonth(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"month": key, "employee": e})
}
