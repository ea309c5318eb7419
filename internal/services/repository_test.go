package services

import (
	"context"
	"testing"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/allocation"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/db"
	"github.com/Scan360AI/rnd-credit-manager/internal/engine"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newRepo(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()
	d, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.AutoMigrate(db.Models()...); err != nil {
		t.Fatal(err)
	}
	return NewRepository(d), d
}

func sp(s string) *string { return &s }

func fp(f float64) *float64 { return &f }

func newWorkspace(t *testing.T, repo *Repository, tenant string) *engine.Workspace {
	t.Helper()
	st, err := repo.Load(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	now := func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }
	return engine.NewFromState(tenant, st, engine.WithPersister(repo), engine.WithClock(now))
}

func TestRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	w := newWorkspace(t, repo, "acme")

	emp, err := w.AddEmployee(ctx, engine.EmployeePatch{Name: sp("Mario Rossi"), FiscalCode: sp("RSSMRA80A01H501U")})
	if err != nil {
		t.Fatalf("AddEmployee: %v", err)
	}
	if _, err := w.UpsertMonth(ctx, emp.ID, "01/2024", costs.Record{Hours: 160, HourlyCost: 20}); err != nil {
		t.Fatalf("UpsertMonth: %v", err)
	}
	p, err := w.AddProject(ctx, engine.ProjectPatch{Name: sp("Alpha")})
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	inv, err := w.AddInvoice(ctx, engine.InvoicePatch{Number: sp("F1"), Amount: fp(1000)})
	if err != nil {
		t.Fatalf("AddInvoice: %v", err)
	}
	if _, err := w.ToggleInvoice(ctx, p.ID, inv.ID); err != nil {
		t.Fatalf("ToggleInvoice: %v", err)
	}
	if _, err := w.SetAllocation(ctx, emp.ID, p.ID, 60); err != nil {
		t.Fatalf("SetAllocation: %v", err)
	}

	// other tenants never see the rows
	other, err := repo.Load(ctx, "other")
	if err != nil || len(other.Employees) != 0 {
		t.Fatalf("tenant leak: %+v %v", other, err)
	}

	reloaded := newWorkspace(t, repo, "acme")
	emps := reloaded.Employees()
	if len(emps) != 1 || emps[0].MonthsCount != 1 || emps[0].TotalAnnualCost != 3200 {
		t.Fatalf("employees = %+v", emps)
	}
	projects := reloaded.Projects()
	if len(projects) != 1 || !projects[0].HasInvoice(inv.ID) {
		t.Fatalf("projects = %+v", projects)
	}
	allocs := reloaded.Allocations()
	if len(allocs) != 1 || allocs[0].Percentage != 60 {
		t.Fatalf("allocations = %+v", allocs)
	}
}

func TestRepository_DeleteEmployeeCascades(t *testing.T) {
	ctx := context.Background()
	repo, d := newRepo(t)
	w := newWorkspace(t, repo, "acme")
	emp, _ := w.AddEmployee(ctx, engine.EmployeePatch{Name: sp("Anna Bianchi")})
	p, _ := w.AddProject(ctx, engine.ProjectPatch{Name: sp("Beta")})
	if _, err := w.SetAllocation(ctx, emp.ID, p.ID, 100); err != nil {
		t.Fatal(err)
	}
	if err := w.DeleteEmployee(ctx, emp.ID); err != nil {
		t.Fatalf("DeleteEmployee: %v", err)
	}
	var allocs int64
	d.Model(&models.Allocation{}).Where("tenant_id = ?", "acme").Count(&allocs)
	if allocs != 0 {
		t.Errorf("allocations left: %d", allocs)
	}
	// soft delete keeps the row
	var soft int64
	d.Unscoped().Model(&models.Employee{}).Where("id = ?", emp.ID).Count(&soft)
	if soft != 1 {
		t.Errorf("employee row hard deleted")
	}
	st, _ := repo.Load(ctx, "acme")
	if len(st.Employees) != 0 {
		t.Errorf("deleted employee loaded: %+v", st.Employees)
	}
}

func TestRepository_SaveAllocationsZeroDeletes(t *testing.T) {
	ctx := context.Background()
	repo, d := newRepo(t)
	key := allocation.Key{EmployeeID: "e1", ProjectID: "p1"}
	if err := repo.SaveAllocations(ctx, "acme", []allocation.Change{{Key: key, New: 40}}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveAllocations(ctx, "acme", []allocation.Change{{Key: key, Old: 40, New: 70}}); err != nil {
		t.Fatal(err)
	}
	var row models.Allocation
	if err := d.Where("employee_id = ?", "e1").First(&row).Error; err != nil || row.Percentage != 70 {
		t.Fatalf("row = %+v, %v", row, err)
	}
	if err := repo.SaveAllocations(ctx, "acme", []allocation.Change{{Key: key, Old: 70, New: 0}}); err != nil {
		t.Fatal(err)
	}
	var n int64
	d.Model(&models.Allocation{}).Count(&n)
	if n != 0 {
		t.Errorf("zero allocation stored")
	}
}

func TestRepository_ReplaceState(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	w := newWorkspace(t, repo, "acme")
	if _, err := w.AddEmployee(ctx, engine.EmployeePatch{Name: sp("Old Person")}); err != nil {
		t.Fatal(err)
	}
	e := &models.Employee{ID: "e-new", Name: "New Person"}
	e.History = []models.MonthlyCost{models.MonthlyCostFrom("03/2024", costs.Record{Hours: 100, HourlyCost: 30, MonthlyCost: 3000})}
	st := engine.State{
		Employees:   []*models.Employee{e},
		Projects:    []*models.Project{{ID: "p-new", Name: "Gamma", Year: 2024, Type: "design"}},
		Allocations: []allocation.Entry{{EmployeeID: "e-new", ProjectID: "p-new", Percentage: 50}},
	}
	if err := w.Replace(ctx, st); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	loaded, err := repo.Load(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Employees) != 1 || loaded.Employees[0].ID != "e-new" || len(loaded.Employees[0].History) != 1 {
		t.Fatalf("employees = %+v", loaded.Employees)
	}
	if len(loaded.Allocations) != 1 || loaded.Allocations[0].Percentage != 50 {
		t.Fatalf("allocations = %+v", loaded.Allocations)
	}
	tenants, err := repo.Tenants(ctx)
	if err != nil || len(tenants) != 1 || tenants[0] != "acme" {
		t.Fatalf("tenants = %v, %v", tenants, err)
	}
}

func TestReportService_NilCache(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	w := newWorkspace(t, repo, "acme")
	svc := NewReportService(nil)
	r1 := svc.Report(ctx, w)
	if _, err := w.AddProject(ctx, engine.ProjectPatch{Name: sp("Alpha")}); err != nil {
		t.Fatal(err)
	}
	r2 := svc.Report(ctx, w)
	if r2.Revision != r1.Revision+1 || len(r2.Projects) != 1 {
		t.Fatalf("r1 = %+v r2 = %+v", r1, r2)
	}
}
