package aggregate

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Scan360AI/rnd-credit-manager/internal/allocation"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/history"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func employee(t *testing.T, id, name string, months map[string][2]float64) *models.Employee {
	t.Helper()
	e := &models.Employee{ID: id, Name: name}
	for key, hm := range months {
		if err := history.UpsertMonth(e, key, costs.Record{Hours: hm[0], HourlyCost: hm[1], MonthlyCost: hm[0] * hm[1]}); err != nil {
			t.Fatalf("upsert %s: %v", key, err)
		}
	}
	return e
}

func marioSnapshot(t *testing.T) (Snapshot, *allocation.Store) {
	t.Helper()
	mario := employee(t, "mario", "Mario Rossi", map[string][2]float64{
		"01/2024": {160, 20},
		"02/2024": {170, 22},
	})
	store := allocation.NewStore()
	store.Set("mario", "A", 50)
	return Snapshot{
		Employees:   []*models.Employee{mario},
		Projects:    []*models.Project{{ID: "A", Name: "Project A", Type: "ricerca_industriale"}, {ID: "B", Name: "Project B"}},
		Allocations: store,
	}, store
}

func TestProjectHoursAndCost_MonthSpecificRate(t *testing.T) {
	s, _ := marioSnapshot(t)
	if got := ProjectHours(s, "A"); !approx(got, 165) {
		t.Errorf("ProjectHours(A) = %v, want 165", got)
	}
	if got := ProjectCost(s, "A"); !approx(got, 3470) {
		t.Errorf("ProjectCost(A) = %v, want 3470", got)
	}
	if got := ProjectCost(s, "B"); got != 0 {
		t.Errorf("ProjectCost(B) = %v, want 0", got)
	}
	if got := EmployeeAllocatedHours(s, "mario"); !approx(got, 165) {
		t.Errorf("EmployeeAllocatedHours = %v, want 165", got)
	}
}

func TestEmployeeTotalAllocation_States(t *testing.T) {
	tests := []struct {
		name  string
		a, b  int
		total int
		state Status
	}{
		{"none", 0, 0, 0, StatusNone},
		{"under", 40, 20, 60, StatusUnder},
		{"perfect", 60, 40, 100, StatusPerfect},
		{"over", 70, 50, 120, StatusOver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store := marioSnapshot(t)
			store.ClearAll()
			store.Set("mario", "A", tt.a)
			store.Set("mario", "B", tt.b)
			total, state := EmployeeTotalAllocation(s, "mario")
			if total != tt.total || state != tt.state {
				t.Errorf("got (%d, %s), want (%d, %s)", total, state, tt.total, tt.state)
			}
		})
	}
}

func TestOverAllocation_StillAggregates(t *testing.T) {
	s, store := marioSnapshot(t)
	store.Set("mario", "A", 70)
	store.Set("mario", "B", 50)
	if _, st := EmployeeTotalAllocation(s, "mario"); st != StatusOver {
		t.Fatalf("state = %s, want over", st)
	}
	if got := ProjectHours(s, "A"); !approx(got, 231) {
		t.Errorf("ProjectHours(A) = %v, want 231", got)
	}
	if got := ProjectHours(s, "B"); !approx(got, 165) {
		t.Errorf("ProjectHours(B) = %v, want 165", got)
	}
	if got := EmployeeAllocatedHours(s, "mario"); !approx(got, 396) {
		t.Errorf("allocated hours = %v, want 396 (more than available)", got)
	}
}

func TestFallbackPath_NoHistory(t *testing.T) {
	manual := &models.Employee{ID: "anna", Name: "Anna", AnnualHours: 1920, FallbackHourlyCost: 25}
	store := allocation.NewStore()
	store.Set("anna", "A", 25)
	s := Snapshot{
		Employees:   []*models.Employee{manual},
		Projects:    []*models.Project{{ID: "A"}},
		Allocations: store,
	}
	if got := ProjectHours(s, "A"); !approx(got, 480) {
		t.Errorf("ProjectHours = %v, want 480", got)
	}
	if got := ProjectCost(s, "A"); !approx(got, 12000) {
		t.Errorf("ProjectCost = %v, want 12000", got)
	}
	if got := EmployeeTotalHours(manual); got != 1920 {
		t.Errorf("EmployeeTotalHours = %v, want 1920", got)
	}
}

func TestMixedHistoryAndFallback(t *testing.T) {
	s, store := marioSnapshot(t)
	s.Employees = append(s.Employees, &models.Employee{ID: "anna", AnnualHours: 1000, FallbackHourlyCost: 10})
	store.Set("anna", "A", 10)
	if got := ProjectHours(s, "A"); !approx(got, 165+100) {
		t.Errorf("ProjectHours = %v, want 265", got)
	}
	if got := ProjectCost(s, "A"); !approx(got, 3470+1000) {
		t.Errorf("ProjectCost = %v, want 4470", got)
	}
}

func TestDeterminism_OrderIndependent(t *testing.T) {
	base := []*models.Employee{
		employee(t, "e1", "One", map[string][2]float64{"01/2024": {160, 20.17}, "02/2024": {150, 21.33}}),
		employee(t, "e2", "Two", map[string][2]float64{"12/2023": {168, 19.99}, "01/2024": {172, 23.41}}),
		employee(t, "e3", "Three", map[string][2]float64{"03/2024": {120, 31.07}}),
		{ID: "e4", AnnualHours: 1700, FallbackHourlyCost: 27.5},
	}
	store := allocation.NewStore()
	store.Set("e1", "A", 33)
	store.Set("e2", "A", 17)
	store.Set("e3", "A", 91)
	store.Set("e4", "A", 7)
	projects := []*models.Project{{ID: "A"}, {ID: "B"}, {ID: "C"}}

	ref := Snapshot{Employees: base, Projects: projects, Allocations: store}
	wantH, wantC := ProjectHours(ref, "A"), ProjectCost(ref, "A")
	for i := 0; i < 50; i++ {
		emps := append([]*models.Employee(nil), base...)
		rand.Shuffle(len(emps), func(a, b int) { emps[a], emps[b] = emps[b], emps[a] })
		prj := append([]*models.Project(nil), projects...)
		rand.Shuffle(len(prj), func(a, b int) { prj[a], prj[b] = prj[b], prj[a] })
		s := Snapshot{Employees: emps, Projects: prj, Allocations: store}
		if h := ProjectHours(s, "A"); h != wantH {
			t.Fatalf("ProjectHours varies with order: %v vs %v", h, wantH)
		}
		if c := ProjectCost(s, "A"); c != wantC {
			t.Fatalf("ProjectCost varies with order: %v vs %v", c, wantC)
		}
	}
}

func TestProjectAndEmployeeAllocations(t *testing.T) {
	s, store := marioSnapshot(t)
	store.Set("mario", "B", 25)

	shares := ProjectAllocations(s, "A")
	if len(shares) != 1 || shares[0].Name != "Mario Rossi" || shares[0].Percentage != 50 {
		t.Fatalf("ProjectAllocations = %+v", shares)
	}
	if !approx(shares[0].Hours, 165) || !approx(shares[0].Cost, 3470) {
		t.Fatalf("share hours/cost = %v/%v", shares[0].Hours, shares[0].Cost)
	}

	ps := EmployeeAllocations(s, "mario")
	if len(ps) != 2 || ps[0].ProjectID != "A" || ps[1].ProjectID != "B" {
		t.Fatalf("EmployeeAllocations = %+v", ps)
	}
	if EmployeeAllocations(s, "ghost") != nil {
		t.Fatalf("unknown employee must yield nil")
	}
}

func TestMonthlyMatrix(t *testing.T) {
	s, store := marioSnapshot(t)
	store.Set("mario", "B", 25)
	rows := MonthlyMatrix(s, "mario", s.Projects)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	jan := rows[0]
	if jan.Month != "01/2024" || jan.TotalHours != 160 {
		t.Fatalf("first row = %+v", jan)
	}
	if jan.Cells[0].Hours != 80 || jan.Cells[0].Percentage != 50 {
		t.Errorf("A cell = %+v", jan.Cells[0])
	}
	if jan.Cells[1].Hours != 40 || jan.Cells[1].Cost != 800 {
		t.Errorf("B cell = %+v", jan.Cells[1])
	}
}

func TestNilAllocations(t *testing.T) {
	s := Snapshot{Employees: []*models.Employee{{ID: "x"}}, Projects: []*models.Project{{ID: "A"}}}
	if ProjectHours(s, "A") != 0 {
		t.Fatal("expected zero with no allocation reader")
	}
}
