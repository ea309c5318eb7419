package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/allocation"
	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/history"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
	json "github.com/goccy/go-json"
)

const DocumentVersion = 1

// Document is the portable JSON form of a workspace.
type Document struct {
	Version     int                `json:"version"`
	ExportedAt  time.Time          `json:"exportedAt"`
	Employees   []EmployeeDoc      `json:"employees"`
	Projects    []ProjectDoc       `json:"projects"`
	Invoices    []InvoiceDoc       `json:"invoices"`
	Allocations []allocation.Entry `json:"allocations"`
}

type EmployeeDoc struct {
	ID                 string                  `json:"id"`
	FiscalCode         string                  `json:"fiscalCode,omitempty"`
	Name               string                  `json:"name"`
	Role               string                  `json:"role,omitempty"`
	Sector             string                  `json:"sector,omitempty"`
	AnnualHours        float64                 `json:"annualHours"`
	FallbackHourlyCost float64                 `json:"fallbackHourlyCost"`
	TotalAnnualHours   float64                 `json:"totalAnnualHours"`
	TotalAnnualCost    float64                 `json:"totalAnnualCost"`
	AverageHourlyCost  float64                 `json:"averageHourlyCost"`
	MonthlyHistory     map[string]costs.Record `json:"monthlyHistory"`
}

type ProjectDoc struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Year             int      `json:"year"`
	Type             string   `json:"type"`
	Description      string   `json:"description,omitempty"`
	Status           string   `json:"status"`
	StartDate        string   `json:"startDate,omitempty"`
	EndDate          string   `json:"endDate,omitempty"`
	AssignedInvoices []string `json:"assignedInvoices"`
}

type InvoiceDoc struct {
	ID          string  `json:"id"`
	Number      string  `json:"number,omitempty"`
	Supplier    string  `json:"supplier,omitempty"`
	Date        string  `json:"date,omitempty"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
	Eligible    bool    `json:"eligible"`
	Rationale   string  `json:"rationale,omitempty"`
	ProjectID   string  `json:"projectId,omitempty"`
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// Encode converts state into its document form. Output is ordered by id.
func Encode(st State, now time.Time) Document {
	doc := Document{
		Version:     DocumentVersion,
		ExportedAt:  now.UTC(),
		Employees:   make([]EmployeeDoc, 0, len(st.Employees)),
		Projects:    make([]ProjectDoc, 0, len(st.Projects)),
		Invoices:    make([]InvoiceDoc, 0, len(st.Invoices)),
		Allocations: append([]allocation.Entry{}, st.Allocations...),
	}
	for _, e := range st.Employees {
		doc.Employees = append(doc.Employees, EmployeeDoc{
			ID:                 e.ID,
			FiscalCode:         e.FiscalCode,
			Name:               e.Name,
			Role:               e.Role,
			Sector:             e.Sector,
			AnnualHours:        e.AnnualHours,
			FallbackHourlyCost: e.FallbackHourlyCost,
			TotalAnnualHours:   e.TotalAnnualHours,
			TotalAnnualCost:    e.TotalAnnualCost,
			AverageHourlyCost:  e.AverageHourlyCost,
			MonthlyHistory:     e.MonthlyHistory(),
		})
	}
	for _, p := range st.Projects {
		doc.Projects = append(doc.Projects, ProjectDoc{
			ID:               p.ID,
			Name:             p.Name,
			Year:             p.Year,
			Type:             p.Type,
			Description:      p.Description,
			Status:           string(p.Status),
			StartDate:        formatDate(p.StartDate),
			EndDate:          formatDate(p.EndDate),
			AssignedInvoices: append([]string{}, p.AssignedInvoiceIDs...),
		})
	}
	for _, inv := range st.Invoices {
		d := InvoiceDoc{
			ID:          inv.ID,
			Number:      inv.Number,
			Supplier:    inv.Supplier,
			Date:        formatDate(inv.Date),
			Amount:      inv.Amount,
			Description: inv.Description,
			Eligible:    inv.Eligible,
			Rationale:   inv.Rationale,
		}
		if inv.ProjectID != nil {
			d.ProjectID = *inv.ProjectID
		}
		doc.Invoices = append(doc.Invoices, d)
	}
	slices.SortFunc(doc.Employees, func(a, b EmployeeDoc) int { return compareStrings(a.ID, b.ID) })
	slices.SortFunc(doc.Projects, func(a, b ProjectDoc) int { return compareStrings(a.ID, b.ID) })
	slices.SortFunc(doc.Invoices, func(a, b InvoiceDoc) int { return compareStrings(a.ID, b.ID) })
	return doc
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Decode validates a document and converts it into state. Month keys are canonicalized,
// percentages normalized, and references to unknown ids dropped.
func Decode(doc Document) (State, error) {
	var st State
	seen := map[string]bool{}
	dup := func(kind, id string) error {
		if id == "" {
			return apperr.Invalid(kind+".id", "required")
		}
		if seen[kind+"/"+id] {
			return apperr.Invalid(kind+".id", fmt.Sprintf("duplicate id %q", id))
		}
		seen[kind+"/"+id] = true
		return nil
	}

	invoiceIDs := map[string]bool{}
	for _, d := range doc.Invoices {
		if err := dup("invoice", d.ID); err != nil {
			return State{}, err
		}
		date, err := parseDate("invoice.date", d.Date)
		if err != nil {
			return State{}, err
		}
		invoiceIDs[d.ID] = true
		st.Invoices = append(st.Invoices, &models.Invoice{
			ID:          d.ID,
			Number:      d.Number,
			Supplier:    d.Supplier,
			Date:        date,
			Amount:      d.Amount,
			Description: d.Description,
			Eligible:    d.Eligible,
			Rationale:   d.Rationale,
		})
		if d.ProjectID != "" {
			pid := d.ProjectID
			st.Invoices[len(st.Invoices)-1].ProjectID = &pid
		}
	}

	projectIDs := map[string]bool{}
	for _, d := range doc.Projects {
		if err := dup("project", d.ID); err != nil {
			return State{}, err
		}
		p := &models.Project{ID: d.ID, Name: d.Name, Year: d.Year, Type: d.Type, Description: d.Description}
		if p.Type == "" {
			p.Type = models.DefaultProjectType
		}
		p.Status = models.ProjectStatusActive
		if status, ok := models.ParseProjectStatus(d.Status); ok {
			p.Status = status
		}
		var err error
		if p.StartDate, err = parseDate("project.startDate", d.StartDate); err != nil {
			return State{}, err
		}
		if p.EndDate, err = parseDate("project.endDate", d.EndDate); err != nil {
			return State{}, err
		}
		if !p.ValidDates() {
			return State{}, apperr.Invalid("project.endDate", fmt.Sprintf("project %s starts after it ends", d.ID))
		}
		p.AssignedInvoiceIDs = []string{}
		for _, id := range d.AssignedInvoices {
			if invoiceIDs[id] && !slices.Contains(p.AssignedInvoiceIDs, id) {
				p.AssignedInvoiceIDs = append(p.AssignedInvoiceIDs, id)
			}
		}
		projectIDs[d.ID] = true
		st.Projects = append(st.Projects, p)
	}
	for _, inv := range st.Invoices {
		if inv.ProjectID != nil && !projectIDs[*inv.ProjectID] {
			inv.ProjectID = nil
		}
	}

	employeeIDs := map[string]bool{}
	for _, d := range doc.Employees {
		if err := dup("employee", d.ID); err != nil {
			return State{}, err
		}
		e := &models.Employee{
			ID:                 d.ID,
			FiscalCode:         d.FiscalCode,
			Name:               d.Name,
			Role:               d.Role,
			Sector:             d.Sector,
			AnnualHours:        d.AnnualHours,
			FallbackHourlyCost: d.FallbackHourlyCost,
		}
		for key, rec := range d.MonthlyHistory {
			if err := history.UpsertMonth(e, key, rec); err != nil {
				return State{}, fmt.Errorf("employee %s: %w", d.ID, err)
			}
		}
		refreshAggregates(e)
		employeeIDs[d.ID] = true
		st.Employees = append(st.Employees, e)
	}

	for _, a := range doc.Allocations {
		pct := allocation.Normalize(a.Percentage)
		if pct == 0 || !employeeIDs[a.EmployeeID] || !projectIDs[a.ProjectID] {
			continue
		}
		st.Allocations = append(st.Allocations, allocation.Entry{EmployeeID: a.EmployeeID, ProjectID: a.ProjectID, Percentage: pct})
	}
	return st, nil
}

// Serialize encodes the workspace as JSON.
func Serialize(w *Workspace) ([]byte, error) {
	return json.Marshal(Encode(w.State(), w.now()))
}

// Deserialize parses and validates a JSON document.
func Deserialize(data []byte) (State, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, apperr.Invalid("document", err.Error())
	}
	if doc.Version > DocumentVersion {
		return State{}, apperr.Invalid("version", fmt.Sprintf("unsupported version %d", doc.Version))
	}
	return Decode(doc)
}

// Replace swaps the whole workspace content after persisting it.
func (w *Workspace) Replace(ctx context.Context, st State) error {
	return w.update(func() (bool, error) {
		for _, e := range st.Employees {
			e.TenantID = w.tenant
		}
		for _, p := range st.Projects {
			p.TenantID = w.tenant
		}
		for _, inv := range st.Invoices {
			inv.TenantID = w.tenant
		}
		err := w.persist.Transaction(ctx, func(tx Persister) error {
			return tx.ReplaceState(ctx, w.tenant, st)
		})
		if err != nil {
			log.Error("replace:persist", slog.String("tenant", w.tenant), slog.String("err", err.Error()))
			return false, fmt.Errorf("replace workspace: %w", err)
		}
		w.load(st)
		return true, nil
	})
}
