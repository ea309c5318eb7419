// Package handlers exposes the tenant workspaces as a JSON API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/httpx"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/engine"
	"github.com/Scan360AI/rnd-credit-manager/internal/extraction"
	"github.com/Scan360AI/rnd-credit-manager/internal/ratelimit"
	"github.com/Scan360AI/rnd-credit-manager/internal/services"
	"github.com/Scan360AI/rnd-credit-manager/tenant"
)

var log = slog.Default().With(slog.String("layer", "handler"))

// AI groups the document-extraction collaborators. A nil Extractor disables extraction.
type AI struct {
	Extractor extraction.Extractor
	Analyzer  extraction.Analyzer
	Limiter   *ratelimit.Limiter
	Model     string
}

func (a AI) Enabled() bool { return a.Extractor != nil }

type Handler struct {
	registry *engine.Registry
	reports  *services.ReportService
	ai       AI
	rates    costs.Rates
	ping     func(ctx context.Context) error
	now      func() time.Time
}

type Option func(*Handler)

func WithAI(ai AI) Option { return func(h *Handler) { h.ai = ai } }

func WithRates(r costs.Rates) Option { return func(h *Handler) { h.rates = r } }

// WithPing sets the database check used by /healthz.
func WithPing(fn func(ctx context.Context) error) Option { return func(h *Handler) { h.ping = fn } }

func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

func New(registry *engine.Registry, reports *services.ReportService, opts ...Option) *Handler {
	h := &Handler{
		registry: registry,
		reports:  reports,
		rates:    costs.DefaultRates(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	if h.reports == nil {
		h.reports = services.NewReportService(nil)
	}
	return h
}

// workspace resolves the request tenant's workspace, writing the error response itself.
func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) (*engine.Workspace, bool) {
	id, ok := tenant.FromContext(r.Context())
	if !ok {
		id = tenant.DefaultTenantID
	}
	ws, err := h.registry.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return nil, false
	}
	return ws, true
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Healthz)

	mux.HandleFunc("GET /api/employees", h.ListEmployees)
	mux.HandleFunc("POST /api/employees", h.CreateEmployee)
	mux.HandleFunc("GET /api/employees/{id}", h.GetEmployee)
	mux.HandleFunc("PATCH /api/employees/{id}", h.UpdateEmployee)
	mux.HandleFunc("DELETE /api/employees/{id}", h.DeleteEmployee)
	mux.HandleFunc("PUT /api/employees/{id}/months/{mm}/{yyyy}", h.PutMonth)
	mux.HandleFunc("DELETE /api/employees/{id}/months/{mm}/{yyyy}", h.DeleteMonth)
	mux.HandleFunc("POST /api/employees/{id}/months/next", h.NextMonth)

	mux.HandleFunc("GET /api/projects", h.ListProjects)
	mux.HandleFunc("POST /api/projects", h.CreateProject)
	mux.HandleFunc("GET /api/projects/{id}", h.GetProject)
	mux.HandleFunc("PATCH /api/projects/{id}", h.UpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", h.DeleteProject)
	mux.HandleFunc("POST /api/projects/{id}/invoices/{invoiceID}", h.ToggleInvoice)
	mux.HandleFunc("GET /api/project-types", h.ProjectTypes)

	mux.HandleFunc("GET /api/invoices", h.ListInvoices)
	mux.HandleFunc("POST /api/invoices", h.CreateInvoice)
	mux.HandleFunc("POST /api/invoices/analyze", h.AnalyzeInvoice)
	mux.HandleFunc("PATCH /api/invoices/{id}", h.UpdateInvoice)
	mux.HandleFunc("DELETE /api/invoices/{id}", h.DeleteInvoice)

	mux.HandleFunc("GET /api/allocations", h.ListAllocations)
	mux.HandleFunc("PUT /api/allocations/{employeeID}/{projectID}", h.SetAllocation)
	mux.HandleFunc("POST /api/allocations/{employeeID}/distribute", h.Distribute)
	mux.HandleFunc("DELETE /api/allocations", h.ClearAllocations)

	mux.HandleFunc("GET /api/report", h.Report)
	mux.HandleFunc("GET /api/export/employees/{file}", h.ExportEmployee)
	mux.HandleFunc("GET /api/export/projects.csv", h.ExportProjects)
	mux.HandleFunc("GET /api/export/timesheet.csv", h.ExportTimesheet)
	mux.HandleFunc("GET /api/snapshot", h.GetSnapshot)
	mux.HandleFunc("PUT /api/snapshot", h.PutSnapshot)

	mux.HandleFunc("POST /api/payslips", h.UploadPayslips)
	mux.HandleFunc("GET /api/ai/status", h.AIStatus)
	mux.HandleFunc("POST /api/costs/ral", h.CostFromRAL)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			log.Error("healthz:db", slog.String("err", err.Error()))
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "db": "down"})
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "db": "up"})
}
