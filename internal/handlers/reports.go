package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Scan360AI/rnd-credit-manager/httpx"
	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	"github.com/Scan360AI/rnd-credit-manager/internal/credit"
	"github.com/Scan360AI/rnd-credit-manager/internal/engine"
	"github.com/Scan360AI/rnd-credit-manager/internal/export"
)

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, h.reports.Report(r.Context(), ws))
}

func writeCSV(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, export.BOM)
	_, _ = w.Write(body)
}

// ExportEmployee serves /api/export/employees/{id}.csv.
func (h *Handler) ExportEmployee(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	file := r.PathValue("file")
	id, isCSV := strings.CutSuffix(file, ".csv")
	if !isCSV || id == "" {
		httpx.Error(w, r, apperr.NotFound("export", file))
		return
	}
	var buf bytes.Buffer
	if err := export.EmployeeMatrixCSV(&buf, ws.Snapshot(), id); err != nil {
		httpx.Error(w, r, err)
		return
	}
	writeCSV(w, "dipendente_"+id+".csv", buf.Bytes())
}

func (h *Handler) ExportProjects(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	calc := credit.NewCalculator(ws.CreditTable())
	if err := export.ProjectSummaryCSV(&buf, ws.Snapshot(), calc); err != nil {
		httpx.Error(w, r, err)
		return
	}
	writeCSV(w, "riepilogo_progetti.csv", buf.Bytes())
}

func (h *Handler) ExportTimesheet(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	calc := credit.NewCalculator(ws.CreditTable())
	now := h.now()
	if err := export.TimesheetCSV(&buf, ws.Snapshot(), calc, now.Format("02/01/2006")); err != nil {
		httpx.Error(w, r, err)
		return
	}
	writeCSV(w, "timesheet_"+now.Format("2006-01-02")+".csv", buf.Bytes())
}

func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	body, err := engine.Serialize(ws)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// PutSnapshot replaces the whole tenant content with an exported document.
func (h *Handler) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, httpx.MaxBodySize))
	if err != nil {
		httpx.Error(w, r, apperr.Invalid("body", "unreadable"))
		return
	}
	st, err := engine.Deserialize(body)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := ws.Replace(r.Context(), st); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"revision":    ws.Revision(),
		"employees":   len(st.Employees),
		"projects":    len(st.Projects),
		"invoices":    len(st.Invoices),
		"allocations": len(st.Allocations),
	})
}
