// Package aggregate derives hours, costs and allocation states from a snapshot of
// employees, projects and allocations. Every function is pure.
package aggregate

import (
	"sort"

	"github.com/Scan360AI/rnd-credit-manager/internal/allocation"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
)

// Status classifies an employee's total allocation.
type Status string

const (
	StatusNone    Status = "none"
	StatusUnder   Status = "under"
	StatusPerfect Status = "perfect"
	StatusOver    Status = "over"
)

// Classify maps a total percentage to its status.
func Classify(total int) Status {
	switch {
	case total <= 0:
		return StatusNone
	case total < 100:
		return StatusUnder
	case total == 100:
		return StatusPerfect
	default:
		return StatusOver
	}
}

// Snapshot is the read-only input of every aggregate function.
type Snapshot struct {
	Employees   []*models.Employee
	Projects    []*models.Project
	Invoices    []*models.Invoice
	Allocations allocation.Reader
}

// EmployeeShare is one employee's contribution to a project.
type EmployeeShare struct {
	EmployeeID string  `json:"employee_id"`
	Name       string  `json:"name"`
	Percentage int     `json:"percentage"`
	Hours      float64 `json:"hours"`
	Cost       float64 `json:"cost"`
}

// ProjectShare is one project's slice of an employee's time.
type ProjectShare struct {
	ProjectID  string  `json:"project_id"`
	Name       string  `json:"name"`
	Percentage int     `json:"percentage"`
	Hours      float64 `json:"hours"`
	Cost       float64 `json:"cost"`
}

// Cell is one project column of a monthly matrix row.
type Cell struct {
	ProjectID  string  `json:"project_id"`
	Percentage int     `json:"percentage"`
	Hours      float64 `json:"hours"`
	Cost       float64 `json:"cost"`
}

// MonthRow is one month of an employee's hour/cost matrix.
type MonthRow struct {
	Month       string  `json:"month"`
	TotalHours  float64 `json:"total_hours"`
	HourlyCost  float64 `json:"hourly_cost"`
	MonthlyCost float64 `json:"monthly_cost"`
	Cells       []Cell  `json:"cells"`
}

func (s Snapshot) pct(employeeID, projectID string) int {
	if s.Allocations == nil {
		return 0
	}
	return s.Allocations.Get(employeeID, projectID)
}

func (s Snapshot) employees() []*models.Employee {
	out := make([]*models.Employee, 0, len(s.Employees))
	for _, e := range s.Employees {
		if e != nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s Snapshot) projects() []*models.Project {
	out := make([]*models.Project, 0, len(s.Projects))
	for _, p := range s.Projects {
		if p != nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Employee returns the employee with id, if present in the snapshot.
func (s Snapshot) Employee(id string) (*models.Employee, bool) {
	for _, e := range s.Employees {
		if e != nil && e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Project returns the project with id, if present in the snapshot.
func (s Snapshot) Project(id string) (*models.Project, bool) {
	for _, p := range s.Projects {
		if p != nil && p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// EmployeeTotalAllocation sums the employee's percentages across all projects.
func EmployeeTotalAllocation(s Snapshot, employeeID string) (int, Status) {
	total := 0
	for _, p := range s.projects() {
		total += s.pct(employeeID, p.ID)
	}
	return total, Classify(total)
}

// allocated returns the hours and cost pct percent of e's time represents.
// Employees with monthly history use each month's own hourly cost; employees
// without history use AnnualHours and FallbackHourlyCost.
func allocated(e *models.Employee, pct int) (hours, cost float64) {
	if pct <= 0 {
		return 0, 0
	}
	share := float64(pct) / 100
	if !e.HasHistory() {
		hours = e.AnnualHours * share
		return hours, hours * e.FallbackHourlyCost
	}
	for _, m := range e.History {
		h := m.Hours * share
		hours += h
		cost += h * m.HourlyCost
	}
	return hours, cost
}

// ProjectHours sums allocated hours across all employees and months.
func ProjectHours(s Snapshot, projectID string) float64 {
	var total float64
	for _, e := range s.employees() {
		h, _ := allocated(e, s.pct(e.ID, projectID))
		total += h
	}
	return total
}

// ProjectCost sums allocated hours times the month-specific hourly cost.
func ProjectCost(s Snapshot, projectID string) float64 {
	var total float64
	for _, e := range s.employees() {
		_, c := allocated(e, s.pct(e.ID, projectID))
		total += c
	}
	return total
}

// EmployeeAllocatedHours sums the employee's allocated hours over all projects.
func EmployeeAllocatedHours(s Snapshot, employeeID string) float64 {
	e, ok := s.Employee(employeeID)
	if !ok {
		return 0
	}
	var total float64
	for _, p := range s.projects() {
		h, _ := allocated(e, s.pct(e.ID, p.ID))
		total += h
	}
	return total
}

// EmployeeTotalHours is the employee's available hours: the history total, or
// AnnualHours in manual mode.
func EmployeeTotalHours(e *models.Employee) float64 {
	if e.HasHistory() {
		return e.TotalAnnualHours
	}
	return e.AnnualHours
}

// ProjectAllocations lists every employee allocated to the project.
func ProjectAllocations(s Snapshot, projectID string) []EmployeeShare {
	var out []EmployeeShare
	for _, e := range s.employees() {
		pct := s.pct(e.ID, projectID)
		if pct <= 0 {
			continue
		}
		h, c := allocated(e, pct)
		out = append(out, EmployeeShare{EmployeeID: e.ID, Name: e.Name, Percentage: pct, Hours: h, Cost: c})
	}
	return out
}

// EmployeeAllocations lists every project the employee is allocated to.
func EmployeeAllocations(s Snapshot, employeeID string) []ProjectShare {
	e, ok := s.Employee(employeeID)
	if !ok {
		return nil
	}
	var out []ProjectShare
	for _, p := range s.projects() {
		pct := s.pct(e.ID, p.ID)
		if pct <= 0 {
			continue
		}
		h, c := allocated(e, pct)
		out = append(out, ProjectShare{ProjectID: p.ID, Name: p.Name, Percentage: pct, Hours: h, Cost: c})
	}
	return out
}

// MonthlyMatrix returns one row per history month with a cell for every project in
// the snapshot. Cells of unallocated projects are zero.
func MonthlyMatrix(s Snapshot, employeeID string, projects []*models.Project) []MonthRow {
	e, ok := s.Employee(employeeID)
	if !ok {
		return nil
	}
	rows := make([]MonthRow, 0, len(e.History))
	for _, m := range e.History {
		row := MonthRow{
			Month:       m.Month,
			TotalHours:  m.Hours,
			HourlyCost:  m.HourlyCost,
			MonthlyCost: m.MonthlyCost,
			Cells:       make([]Cell, 0, len(projects)),
		}
		for _, p := range projects {
			pct := s.pct(e.ID, p.ID)
			h := m.Hours * float64(pct) / 100
			row.Cells = append(row.Cells, Cell{ProjectID: p.ID, Percentage: pct, Hours: h, Cost: h * m.HourlyCost})
		}
		rows = append(rows, row)
	}
	return rows
}
