package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Scan360AI/rnd-credit-manager/internal/allocation"
	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/extraction"
	"github.com/Scan360AI/rnd-credit-manager/internal/history"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
	"github.com/Scan360AI/rnd-credit-manager/internal/money"
)

// maxMonthlyHours is 31 days of 24 hours.
const maxMonthlyHours = 744

// EmployeePatch carries the fields to change. Nil fields are left untouched.
type EmployeePatch struct {
	Name       *string `json:"name"`
	FiscalCode *string `json:"fiscal_code"`
	Role       *string `json:"role"`
	Sector     *string `json:"sector"`

	// Manual mode: monthly hours and hourly cost used while no history exists.
	MonthlyHours *float64 `json:"monthly_hours"`
	HourlyCost   *float64 `json:"hourly_cost"`
}

// refreshAggregates recomputes history aggregates, or the manual-mode totals when
// the employee has no history.
func refreshAggregates(e *models.Employee) {
	history.Recompute(e)
	if e.HasHistory() {
		return
	}
	monthly := e.AnnualHours / 12
	e.TotalAnnualHours, e.TotalAnnualCost = costs.ManualAnnual(monthly, e.FallbackHourlyCost)
	e.AverageMonthlyHours = money.Round(monthly, 0)
	e.AverageHourlyCost = money.Round2(e.FallbackHourlyCost)
}

func (w *Workspace) byFiscalCode(code string) *models.Employee {
	if code == "" {
		return nil
	}
	for _, e := range w.employees {
		if e.FiscalCode == code {
			return e
		}
	}
	return nil
}

func (w *Workspace) applyEmployeePatch(e *models.Employee, p EmployeePatch) error {
	if p.Name != nil {
		name := strings.Join(strings.Fields(*p.Name), " ")
		if name == "" {
			return apperr.Invalid("name", "required")
		}
		e.Name = name
	}
	if p.FiscalCode != nil {
		code := strings.ToUpper(strings.TrimSpace(*p.FiscalCode))
		if code != "" {
			if !extraction.ValidFiscalCode(code) {
				return apperr.Invalid("fiscal_code", "malformed fiscal code")
			}
			if other := w.byFiscalCode(code); other != nil && other.ID != e.ID {
				return apperr.Invalid("fiscal_code", "already assigned to another employee")
			}
		}
		e.FiscalCode = code
	}
	if p.Role != nil {
		e.Role = strings.TrimSpace(*p.Role)
	}
	if p.Sector != nil {
		s := strings.ToLower(strings.TrimSpace(*p.Sector))
		if s != "" && !slices.Contains(costs.Sectors(), s) {
			return apperr.Invalid("sector", fmt.Sprintf("unknown sector %q", s))
		}
		e.Sector = s
	}
	if p.MonthlyHours != nil {
		h := *p.MonthlyHours
		if h < 0 || h > maxMonthlyHours {
			return apperr.Invalid("monthly_hours", "must be between 0 and 744")
		}
		e.AnnualHours = h * 12
	}
	if p.HourlyCost != nil {
		if *p.HourlyCost < 0 {
			return apperr.Invalid("hourly_cost", "must not be negative")
		}
		e.FallbackHourlyCost = money.Round2(*p.HourlyCost)
	}
	refreshAggregates(e)
	return nil
}

func (w *Workspace) Employee(id string) (*models.Employee, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.employees[id]
	if !ok {
		return nil, apperr.NotFound("employee", id)
	}
	return e.Clone(), nil
}

// AddEmployee creates an employee in manual mode. Name is required.
func (w *Workspace) AddEmployee(ctx context.Context, p EmployeePatch) (*models.Employee, error) {
	if p.Name == nil {
		return nil, apperr.Invalid("name", "required")
	}
	var out *models.Employee
	err := w.update(func() (bool, error) {
		e := &models.Employee{ID: models.NewID(), TenantID: w.tenant}
		if err := w.applyEmployeePatch(e, p); err != nil {
			return false, err
		}
		if err := w.persist.SaveEmployee(ctx, w.tenant, e); err != nil {
			log.Error("add-employee:persist", slog.String("tenant", w.tenant), slog.String("err", err.Error()))
			return false, fmt.Errorf("add employee: %w", err)
		}
		w.employees[e.ID] = e
		out = e.Clone()
		return true, nil
	})
	return out, err
}

// UpdateEmployee applies a field patch.
func (w *Workspace) UpdateEmployee(ctx context.Context, id string, p EmployeePatch) (*models.Employee, error) {
	var out *models.Employee
	err := w.mutateEmployee(ctx, id, "update-employee", func(e *models.Employee) error {
		if err := w.applyEmployeePatch(e, p); err != nil {
			return err
		}
		out = e.Clone()
		return nil
	})
	return out, err
}

// mutateEmployee stages fn on a copy, persists it, then swaps it in.
func (w *Workspace) mutateEmployee(ctx context.Context, id, op string, fn func(e *models.Employee) error) error {
	return w.update(func() (bool, error) {
		cur, ok := w.employees[id]
		if !ok {
			return false, apperr.NotFound("employee", id)
		}
		e := cur.Clone()
		if err := fn(e); err != nil {
			return false, err
		}
		if err := w.persist.SaveEmployee(ctx, w.tenant, e); err != nil {
			log.Error(op+":persist", slog.String("employee", id), slog.String("err", err.Error()))
			return false, fmt.Errorf("%s: %w", op, err)
		}
		w.employees[id] = e
		return true, nil
	})
}

// DeleteEmployee soft-deletes the employee and clears all of its allocations.
func (w *Workspace) DeleteEmployee(ctx context.Context, id string) error {
	return w.update(func() (bool, error) {
		if _, ok := w.employees[id]; !ok {
			return false, apperr.NotFound("employee", id)
		}
		changes := w.alloc.ClearForEmployee(id)
		err := w.persist.Transaction(ctx, func(tx Persister) error {
			if err := tx.SaveAllocations(ctx, w.tenant, changes); err != nil {
				return err
			}
			return tx.DeleteEmployee(ctx, w.tenant, id)
		})
		if err != nil {
			w.alloc.Revert(changes)
			log.Error("delete-employee:rollback", slog.String("employee", id), slog.String("err", err.Error()))
			return false, fmt.Errorf("delete employee: %w", err)
		}
		delete(w.employees, id)
		log.Info("delete-employee:done", slog.String("employee", id), slog.Int("allocations", len(changes)))
		return true, nil
	})
}

// UpsertMonth stores a month record as given, sanitized.
func (w *Workspace) UpsertMonth(ctx context.Context, id, month string, rec costs.Record) (*models.Employee, error) {
	if rec.HourlyCost == 0 && rec.MonthlyCost > 0 && rec.Hours > 0 {
		rec.HourlyCost = money.Round2(rec.MonthlyCost / rec.Hours)
	}
	if rec.MonthlyCost == 0 && rec.HourlyCost > 0 && rec.Hours > 0 {
		rec.MonthlyCost = money.Round2(rec.HourlyCost * rec.Hours)
	}
	var out *models.Employee
	err := w.mutateEmployee(ctx, id, "upsert-month", func(e *models.Employee) error {
		if err := history.UpsertMonth(e, month, rec); err != nil {
			return err
		}
		out = e.Clone()
		return nil
	})
	return out, err
}

// NormalizeMonth runs a payroll observation through the normalizer with the employee's
// sector rates and stores the result.
func (w *Workspace) NormalizeMonth(ctx context.Context, id, month string, in costs.Input) (*models.Employee, error) {
	var out *models.Employee
	err := w.mutateEmployee(ctx, id, "normalize-month", func(e *models.Employee) error {
		rec := costs.Normalize(in, costs.SectorRates(e.Sector, w.rates))
		if err := history.UpsertMonth(e, month, rec); err != nil {
			return err
		}
		out = e.Clone()
		return nil
	})
	return out, err
}

func (w *Workspace) RemoveMonth(ctx context.Context, id, month string) (*models.Employee, error) {
	var out *models.Employee
	err := w.mutateEmployee(ctx, id, "remove-month", func(e *models.Employee) error {
		if err := history.RemoveMonth(e, month); err != nil {
			return err
		}
		out = e.Clone()
		return nil
	})
	return out, err
}

// AddMonth appends the month after the latest, copying its values.
func (w *Workspace) AddMonth(ctx context.Context, id string) (string, *models.Employee, error) {
	var (
		key string
		out *models.Employee
	)
	err := w.mutateEmployee(ctx, id, "add-month", func(e *models.Employee) error {
		k, err := history.AddMonth(e)
		if err != nil {
			return err
		}
		key, out = k, e.Clone()
		return nil
	})
	return key, out, err
}

// EmployeeAllocations lists the employee's allocation entries.
func (w *Workspace) EmployeeAllocations(id string) []allocation.Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.alloc.ForEmployee(id)
}
