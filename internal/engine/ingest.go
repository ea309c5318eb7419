package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/extraction"
	"github.com/Scan360AI/rnd-credit-manager/internal/history"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
	"gorm.io/datatypes"
)

// IngestFailure names a group that could not be stored.
type IngestFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type IngestResult struct {
	Created []string        `json:"created"`
	Updated []string        `json:"updated"`
	Failed  []IngestFailure `json:"failed"`
	// Manual holds the placeholders of files that could not be extracted. They are never
	// stored; the user completes them and submits the months by hand.
	Manual []extraction.Payslip `json:"manual"`
}

// findOwner matches a payslip group to an existing employee: by fiscal code first, then
// by name among employees that carry no conflicting fiscal code.
func (w *Workspace) findOwner(g extraction.Group) *models.Employee {
	if e := w.byFiscalCode(g.FiscalCode); e != nil {
		return e
	}
	candidates := map[string]string{}
	for id, e := range w.employees {
		if e.FiscalCode == "" || g.FiscalCode == "" {
			candidates[id] = e.Name
		}
	}
	if id, ok := extraction.MatchEmployee(g.Name, candidates); ok {
		return w.employees[id]
	}
	return nil
}

// IngestGroups stores extracted payslips. Each group creates or updates one employee;
// every month goes through the normalizer with the employee's sector rates. A failing
// group leaves its employee untouched and does not stop the others. Manual placeholders
// are returned in Manual and never touch stored history.
func (w *Workspace) IngestGroups(ctx context.Context, groups []extraction.Group) IngestResult {
	res := IngestResult{Created: []string{}, Updated: []string{}, Failed: []IngestFailure{}, Manual: []extraction.Payslip{}}
	for _, g := range groups {
		extracted := make([]extraction.Payslip, 0, len(g.Payslips))
		for _, p := range g.Payslips {
			if p.Manual {
				res.Manual = append(res.Manual, p)
				continue
			}
			extracted = append(extracted, p)
		}
		if len(extracted) == 0 {
			continue
		}
		g.Payslips = extracted
		id, created, err := w.ingestGroup(ctx, g)
		switch {
		case err != nil:
			log.Warn("ingest:group-failed", slog.String("name", g.Name), slog.String("err", err.Error()))
			res.Failed = append(res.Failed, IngestFailure{Name: g.Name, Error: err.Error()})
		case created:
			res.Created = append(res.Created, id)
		default:
			res.Updated = append(res.Updated, id)
		}
	}
	log.Info("ingest:done", slog.String("tenant", w.tenant),
		slog.Int("created", len(res.Created)), slog.Int("updated", len(res.Updated)), slog.Int("failed", len(res.Failed)), slog.Int("manual", len(res.Manual)))
	return res
}

func (w *Workspace) ingestGroup(ctx context.Context, g extraction.Group) (string, bool, error) {
	var (
		id      string
		created bool
	)
	err := w.update(func() (bool, error) {
		var e *models.Employee
		if cur := w.findOwner(g); cur != nil {
			e = cur.Clone()
		} else {
			e = &models.Employee{ID: models.NewID(), TenantID: w.tenant, Name: g.Name}
			created = true
		}
		if e.FiscalCode == "" && g.FiscalCode != "" {
			if !extraction.ValidFiscalCode(g.FiscalCode) {
				return false, fmt.Errorf("ingest %q: malformed fiscal code", g.Name)
			}
			e.FiscalCode = g.FiscalCode
		}
		if e.Name == "" {
			e.Name = g.Name
		}
		if e.Name == "" {
			return false, apperr.Invalid("name", "payslip carries neither name nor a known fiscal code")
		}
		if e.Role == "" {
			e.Role = g.Role
		}
		rates := costs.SectorRates(e.Sector, w.rates)
		now := w.now()
		for _, p := range g.Payslips {
			key, err := p.MonthKey(now)
			if err != nil {
				return false, err
			}
			rec := costs.Normalize(p.CostInput(), rates)
			if err := history.UpsertMonth(e, key, rec); err != nil {
				return false, err
			}
			if m, ok := e.Month(key); ok {
				m.Source = datatypes.JSONMap(p.Source())
			}
		}
		if err := w.persist.SaveEmployee(ctx, w.tenant, e); err != nil {
			return false, fmt.Errorf("ingest %q: %w", g.Name, err)
		}
		w.employees[e.ID] = e
		id = e.ID
		return true, nil
	})
	return id, created, err
}
