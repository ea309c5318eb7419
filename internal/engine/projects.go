package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
)

// MinProjectYear is the first fiscal year a project may belong to.
const MinProjectYear = 2015

const dateLayout = "2006-01-02"

// ProjectPatch carries the fields to change. Dates are "YYYY-MM-DD"; an empty string
// clears the date.
type ProjectPatch struct {
	Name        *string `json:"name"`
	Year        *int    `json:"year"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, apperr.Invalid(field, "expected YYYY-MM-DD")
	}
	return &t, nil
}

func (w *Workspace) applyProjectPatch(p *models.Project, in ProjectPatch) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperr.Invalid("name", "required")
		}
		p.Name = name
	}
	if in.Year != nil {
		maxYear := w.now().Year() + 1
		if *in.Year < MinProjectYear || *in.Year > maxYear {
			return apperr.Invalid("year", fmt.Sprintf("must be between %d and %d", MinProjectYear, maxYear))
		}
		p.Year = *in.Year
	}
	if in.Type != nil {
		t := strings.TrimSpace(*in.Type)
		if !w.table.Known(t) {
			return apperr.Invalid("type", fmt.Sprintf("unknown project type %q", t))
		}
		p.Type = t
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		st, ok := models.ParseProjectStatus(*in.Status)
		if !ok {
			return apperr.Invalid("status", fmt.Sprintf("unknown status %q", *in.Status))
		}
		p.Status = st
	}
	start, end := p.StartDate, p.EndDate
	if in.StartDate != nil {
		d, err := parseDate("start_date", *in.StartDate)
		if err != nil {
			return err
		}
		start = d
	}
	if in.EndDate != nil {
		d, err := parseDate("end_date", *in.EndDate)
		if err != nil {
			return err
		}
		end = d
	}
	p.StartDate, p.EndDate = start, end
	if !p.ValidDates() {
		field := "end_date"
		if in.StartDate != nil && in.EndDate == nil {
			field = "start_date"
		}
		return apperr.Invalid(field, "start date is after end date")
	}
	return nil
}

func (w *Workspace) Project(id string) (*models.Project, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.projects[id]
	if !ok {
		return nil, apperr.NotFound("project", id)
	}
	return p.Clone(), nil
}

// AddProject creates a project. Year defaults to the current year, type to
// ricerca_industriale and status to active.
func (w *Workspace) AddProject(ctx context.Context, in ProjectPatch) (*models.Project, error) {
	var out *models.Project
	err := w.update(func() (bool, error) {
		p := &models.Project{
			ID:                 models.NewID(),
			TenantID:           w.tenant,
			Name:               "Nuovo Progetto",
			Year:               w.now().Year(),
			Type:               models.DefaultProjectType,
			Status:             models.ProjectStatusActive,
			AssignedInvoiceIDs: []string{},
		}
		if err := w.applyProjectPatch(p, in); err != nil {
			return false, err
		}
		if err := w.persist.SaveProject(ctx, w.tenant, p); err != nil {
			log.Error("add-project:persist", slog.String("tenant", w.tenant), slog.String("err", err.Error()))
			return false, fmt.Errorf("add project: %w", err)
		}
		w.projects[p.ID] = p
		out = p.Clone()
		return true, nil
	})
	return out, err
}

// UpdateProject applies a field patch. An invalid field rejects the whole patch.
func (w *Workspace) UpdateProject(ctx context.Context, id string, in ProjectPatch) (*models.Project, error) {
	var out *models.Project
	err := w.update(func() (bool, error) {
		cur, ok := w.projects[id]
		if !ok {
			return false, apperr.NotFound("project", id)
		}
		p := cur.Clone()
		if err := w.applyProjectPatch(p, in); err != nil {
			return false, err
		}
		if err := w.persist.SaveProject(ctx, w.tenant, p); err != nil {
			log.Error("update-project:persist", slog.String("project", id), slog.String("err", err.Error()))
			return false, fmt.Errorf("update project: %w", err)
		}
		w.projects[id] = p
		out = p.Clone()
		return true, nil
	})
	return out, err
}

// DeleteProject soft-deletes the project, clears its allocations and detaches its invoices.
func (w *Workspace) DeleteProject(ctx context.Context, id string) error {
	return w.update(func() (bool, error) {
		if _, ok := w.projects[id]; !ok {
			return false, apperr.NotFound("project", id)
		}
		var detached []*models.Invoice
		for _, inv := range w.invoices {
			if inv.ProjectID != nil && *inv.ProjectID == id {
				c := inv.Clone()
				c.ProjectID = w.remainingOwner(inv.ID, id)
				detached = append(detached, c)
			}
		}
		changes := w.alloc.ClearForProject(id)
		err := w.persist.Transaction(ctx, func(tx Persister) error {
			if err := tx.SaveAllocations(ctx, w.tenant, changes); err != nil {
				return err
			}
			for _, inv := range detached {
				if err := tx.SaveInvoice(ctx, w.tenant, inv); err != nil {
					return err
				}
			}
			return tx.DeleteProject(ctx, w.tenant, id)
		})
		if err != nil {
			w.alloc.Revert(changes)
			log.Error("delete-project:rollback", slog.String("project", id), slog.String("err", err.Error()))
			return false, fmt.Errorf("delete project: %w", err)
		}
		for _, inv := range detached {
			w.invoices[inv.ID] = inv
		}
		delete(w.projects, id)
		log.Info("delete-project:done", slog.String("project", id), slog.Int("allocations", len(changes)), slog.Int("invoices", len(detached)))
		return true, nil
	})
}

// remainingOwner picks, by lowest id, another project that still lists the invoice.
func (w *Workspace) remainingOwner(invoiceID, excludeProject string) *string {
	var owner string
	for pid, p := range w.projects {
		if pid == excludeProject || !p.HasInvoice(invoiceID) {
			continue
		}
		if owner == "" || pid < owner {
			owner = pid
		}
	}
	if owner == "" {
		return nil
	}
	return &owner
}

// ToggleInvoice assigns the invoice to the project, or unassigns it when already
// assigned. It returns true when the invoice was added.
func (w *Workspace) ToggleInvoice(ctx context.Context, projectID, invoiceID string) (bool, error) {
	var added bool
	err := w.update(func() (bool, error) {
		cur, ok := w.projects[projectID]
		if !ok {
			return false, apperr.NotFound("project", projectID)
		}
		curInv, ok := w.invoices[invoiceID]
		if !ok {
			return false, apperr.NotFound("invoice", invoiceID)
		}
		p, inv := cur.Clone(), curInv.Clone()
		added = p.ToggleInvoice(invoiceID)
		switch {
		case added:
			pid := projectID
			inv.ProjectID = &pid
		case inv.ProjectID != nil && *inv.ProjectID == projectID:
			inv.ProjectID = w.remainingOwner(invoiceID, projectID)
		}
		err := w.persist.Transaction(ctx, func(tx Persister) error {
			if err := tx.SaveProject(ctx, w.tenant, p); err != nil {
				return err
			}
			return tx.SaveInvoice(ctx, w.tenant, inv)
		})
		if err != nil {
			return false, fmt.Errorf("toggle invoice: %w", err)
		}
		w.projects[projectID], w.invoices[invoiceID] = p, inv
		return true, nil
	})
	return added, err
}

// InvoicePatch carries the invoice fields to change. Date is "YYYY-MM-DD".
type InvoicePatch struct {
	Number      *string  `json:"number"`
	Supplier    *string  `json:"supplier"`
	Date        *string  `json:"date"`
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
	Eligible    *bool    `json:"eligible"`
	Rationale   *string  `json:"rationale"`
}

// PatchFrom builds a patch that sets every field of inv.
func PatchFrom(inv models.Invoice) InvoicePatch {
	p := InvoicePatch{
		Number:      &inv.Number,
		Supplier:    &inv.Supplier,
		Amount:      &inv.Amount,
		Description: &inv.Description,
		Eligible:    &inv.Eligible,
		Rationale:   &inv.Rationale,
	}
	if inv.Date != nil {
		d := inv.Date.Format(dateLayout)
		p.Date = &d
	}
	return p
}

func applyInvoicePatch(inv *models.Invoice, in InvoicePatch) error {
	if in.Number != nil {
		inv.Number = strings.TrimSpace(*in.Number)
	}
	if in.Supplier != nil {
		inv.Supplier = strings.TrimSpace(*in.Supplier)
	}
	if in.Date != nil {
		d, err := parseDate("date", *in.Date)
		if err != nil {
			return err
		}
		inv.Date = d
	}
	if in.Amount != nil {
		if *in.Amount < 0 {
			return apperr.Invalid("amount", "must not be negative")
		}
		inv.Amount = *in.Amount
	}
	if in.Description != nil {
		inv.Description = strings.TrimSpace(*in.Description)
	}
	if in.Eligible != nil {
		inv.Eligible = *in.Eligible
	}
	if in.Rationale != nil {
		inv.Rationale = strings.TrimSpace(*in.Rationale)
	}
	return nil
}

func (w *Workspace) Invoice(id string) (*models.Invoice, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	inv, ok := w.invoices[id]
	if !ok {
		return nil, apperr.NotFound("invoice", id)
	}
	return inv.Clone(), nil
}

func (w *Workspace) AddInvoice(ctx context.Context, in InvoicePatch) (*models.Invoice, error) {
	var out *models.Invoice
	err := w.update(func() (bool, error) {
		inv := &models.Invoice{ID: models.NewID(), TenantID: w.tenant}
		if err := applyInvoicePatch(inv, in); err != nil {
			return false, err
		}
		if err := w.persist.SaveInvoice(ctx, w.tenant, inv); err != nil {
			return false, fmt.Errorf("add invoice: %w", err)
		}
		w.invoices[inv.ID] = inv
		out = inv.Clone()
		return true, nil
	})
	return out, err
}

func (w *Workspace) UpdateInvoice(ctx context.Context, id string, in InvoicePatch) (*models.Invoice, error) {
	var out *models.Invoice
	err := w.update(func() (bool, error) {
		cur, ok := w.invoices[id]
		if !ok {
			return false, apperr.NotFound("invoice", id)
		}
		inv := cur.Clone()
		if err := applyInvoicePatch(inv, in); err != nil {
			return false, err
		}
		if err := w.persist.SaveInvoice(ctx, w.tenant, inv); err != nil {
			return false, fmt.Errorf("update invoice: %w", err)
		}
		w.invoices[id] = inv
		out = inv.Clone()
		return true, nil
	})
	return out, err
}

// DeleteInvoice removes the invoice and unassigns it from every project.
func (w *Workspace) DeleteInvoice(ctx context.Context, id string) error {
	return w.update(func() (bool, error) {
		if _, ok := w.invoices[id]; !ok {
			return false, apperr.NotFound("invoice", id)
		}
		var touched []*models.Project
		for _, p := range w.projects {
			if p.HasInvoice(id) {
				c := p.Clone()
				c.AssignedInvoiceIDs = slices.DeleteFunc(c.AssignedInvoiceIDs, func(s string) bool { return s == id })
				touched = append(touched, c)
			}
		}
		err := w.persist.Transaction(ctx, func(tx Persister) error {
			for _, p := range touched {
				if err := tx.SaveProject(ctx, w.tenant, p); err != nil {
					return err
				}
			}
			return tx.DeleteInvoice(ctx, w.tenant, id)
		})
		if err != nil {
			log.Error("delete-invoice:rollback", slog.String("invoice", id), slog.String("err", err.Error()))
			return false, fmt.Errorf("delete invoice: %w", err)
		}
		for _, p := range touched {
			w.projects[p.ID] = p
		}
		delete(w.invoices, id)
		return true, nil
	})
}
