// Package engine owns the per-tenant session state: employees with their cost history,
// projects, invoices and allocations. Every mutation is persisted before it becomes
// visible and is reverted when persistence fails.
package engine

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/aggregate"
	"github.com/Scan360AI/rnd-credit-manager/internal/allocation"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/credit"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
)

var log = slog.Default().With(slog.String("layer", "service"), slog.String("service", "workspace"))

// Observer is notified after every committed mutation.
type Observer func(tenant string, revision uint64)

// State is the full content of a workspace, as loaded from storage or a snapshot.
type State struct {
	Employees   []*models.Employee
	Projects    []*models.Project
	Invoices    []*models.Invoice
	Allocations []allocation.Entry
}

type Workspace struct {
	mu       sync.RWMutex
	tenant   string
	epoch    string
	revision uint64

	employees map[string]*models.Employee
	projects  map[string]*models.Project
	invoices  map[string]*models.Invoice
	alloc     *allocation.Store

	rates    costs.Rates
	table    *credit.Table
	persist  Persister
	observer Observer
	now      func() time.Time
}

type Option func(*Workspace)

func WithPersister(p Persister) Option {
	return func(w *Workspace) {
		if p != nil {
			w.persist = p
		}
	}
}

func WithRates(r costs.Rates) Option { return func(w *Workspace) { w.rates = r } }

func WithCreditTable(t *credit.Table) Option {
	return func(w *Workspace) {
		if t != nil {
			w.table = t
		}
	}
}

func WithObserver(o Observer) Option { return func(w *Workspace) { w.observer = o } }

func WithClock(now func() time.Time) Option {
	return func(w *Workspace) {
		if now != nil {
			w.now = now
		}
	}
}

// New returns an empty workspace for tenant.
func New(tenant string, opts ...Option) *Workspace {
	w := &Workspace{
		tenant:    tenant,
		epoch:     models.NewID(),
		employees: map[string]*models.Employee{},
		projects:  map[string]*models.Project{},
		invoices:  map[string]*models.Invoice{},
		alloc:     allocation.NewStore(),
		rates:     costs.DefaultRates(),
		table:     credit.NewTable(),
		persist:   NopPersister{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// NewFromState builds a workspace from loaded state. Allocations referencing unknown
// employees or projects are dropped.
func NewFromState(tenant string, st State, opts ...Option) *Workspace {
	w := New(tenant, opts...)
	w.load(st)
	return w
}

func (w *Workspace) load(st State) {
	employees := map[string]*models.Employee{}
	for _, e := range st.Employees {
		if e == nil || e.ID == "" {
			continue
		}
		e.TenantID = w.tenant
		refreshAggregates(e)
		employees[e.ID] = e
	}
	projects := map[string]*models.Project{}
	for _, p := range st.Projects {
		if p == nil || p.ID == "" {
			continue
		}
		p.TenantID = w.tenant
		projects[p.ID] = p
	}
	invoices := map[string]*models.Invoice{}
	for _, inv := range st.Invoices {
		if inv == nil || inv.ID == "" {
			continue
		}
		inv.TenantID = w.tenant
		invoices[inv.ID] = inv
	}
	store := allocation.NewStore()
	for _, a := range st.Allocations {
		_, okE := employees[a.EmployeeID]
		_, okP := projects[a.ProjectID]
		if !okE || !okP {
			continue
		}
		store.Set(a.EmployeeID, a.ProjectID, a.Percentage)
	}
	w.employees, w.projects, w.invoices, w.alloc = employees, projects, invoices, store
}

func (w *Workspace) Tenant() string { return w.tenant }

func (w *Workspace) Revision() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.revision
}

// Epoch identifies this in-memory instance. Revisions are only comparable within
// one epoch.
func (w *Workspace) Epoch() string { return w.epoch }

func (w *Workspace) CreditTable() *credit.Table { return w.table }

// update runs fn under the write lock. The revision is bumped and observers notified
// only when fn reports a change.
func (w *Workspace) update(fn func() (bool, error)) error {
	w.mu.Lock()
	changed, err := fn()
	var rev uint64
	if err == nil && changed {
		w.revision++
		rev = w.revision
	}
	w.mu.Unlock()
	if err == nil && changed && w.observer != nil {
		w.observer(w.tenant, rev)
	}
	return err
}

func (w *Workspace) Employees() []*models.Employee {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*models.Employee, 0, len(w.employees))
	for _, e := range w.employees {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (w *Workspace) Projects() []*models.Project {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*models.Project, 0, len(w.projects))
	for _, p := range w.projects {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (w *Workspace) Invoices() []*models.Invoice {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*models.Invoice, 0, len(w.invoices))
	for _, inv := range w.invoices {
		out = append(out, inv.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := dateOrZero(out[i].Date), dateOrZero(out[j].Date)
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func dateOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// Allocations waits for any in-flight write, so a reverted percentage is never seen.
func (w *Workspace) Allocations() []allocation.Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.alloc.Entries()
}

// Snapshot returns a deep copy suitable for the aggregator.
func (w *Workspace) Snapshot() aggregate.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

func (w *Workspace) snapshotLocked() aggregate.Snapshot {
	s := aggregate.Snapshot{
		Employees:   make([]*models.Employee, 0, len(w.employees)),
		Projects:    make([]*models.Project, 0, len(w.projects)),
		Invoices:    make([]*models.Invoice, 0, len(w.invoices)),
		Allocations: w.alloc.Clone(),
	}
	for _, e := range w.employees {
		s.Employees = append(s.Employees, e.Clone())
	}
	for _, p := range w.projects {
		s.Projects = append(s.Projects, p.Clone())
	}
	for _, inv := range w.invoices {
		s.Invoices = append(s.Invoices, inv.Clone())
	}
	return s
}

// State returns a deep copy of the workspace content.
func (w *Workspace) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := w.snapshotLocked()
	return State{
		Employees:   s.Employees,
		Projects:    s.Projects,
		Invoices:    s.Invoices,
		Allocations: w.alloc.Entries(),
	}
}

// Report computes the credit report at the current revision.
func (w *Workspace) Report() credit.Report {
	w.mu.RLock()
	s := w.snapshotLocked()
	rev := w.revision
	w.mu.RUnlock()
	r := credit.NewCalculator(w.table).Report(s)
	r.Revision = rev
	return r
}
