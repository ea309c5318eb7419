// Package export renders workspace data as CSV for spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/Scan360AI/rnd-credit-manager/internal/aggregate"
	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	"github.com/Scan360AI/rnd-credit-manager/internal/credit"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
	"github.com/Scan360AI/rnd-credit-manager/internal/money"
)

// BOM makes spreadsheet tools read the file as UTF-8.
const BOM = "\ufeff"

const unnamed = "Senza nome"

func projectName(p *models.Project) string {
	if p.Name == "" {
		return unnamed
	}
	return p.Name
}

// sortedProjects orders projects by name, then id.
func sortedProjects(s aggregate.Snapshot) []*models.Project {
	out := make([]*models.Project, 0, len(s.Projects))
	for _, p := range s.Projects {
		if p != nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FormatRate renders 0.1 as "10%".
func FormatRate(rate float64) string {
	return strconv.FormatFloat(money.Round(rate*100, 2), 'f', -1, 64) + "%"
}

func matrixRows(s aggregate.Snapshot, employeeID string, projects []*models.Project) [][]string {
	header := []string{"Mese", "Ore Totali"}
	for _, p := range projects {
		header = append(header, projectName(p))
	}
	header = append(header, "Costo Mensile")

	rows := [][]string{header}
	for _, m := range aggregate.MonthlyMatrix(s, employeeID, projects) {
		row := []string{m.Month, strconv.FormatFloat(m.TotalHours, 'f', -1, 64)}
		costs := make([]float64, 0, len(m.Cells))
		for _, c := range m.Cells {
			row = append(row, fmt.Sprintf("%sh (%d%%)", money.Fixed(c.Hours, 1), c.Percentage))
			costs = append(costs, c.Cost)
		}
		row = append(row, money.Fixed(money.Sum(costs...), 2))
		rows = append(rows, row)
	}
	return rows
}

// EmployeeMatrixCSV writes one row per history month with the hours and percentage
// allocated to every project, and the allocated cost of the month.
func EmployeeMatrixCSV(w io.Writer, s aggregate.Snapshot, employeeID string) error {
	if _, ok := s.Employee(employeeID); !ok {
		return apperr.NotFound("employee", employeeID)
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(matrixRows(s, employeeID, sortedProjects(s))); err != nil {
		return fmt.Errorf("employee matrix csv: %w", err)
	}
	return nil
}

func summaryRows(s aggregate.Snapshot, calc *credit.Calculator) [][]string {
	rows := [][]string{{"Progetto", "Tipo", "Ore Totali", "Costo", "Aliquota", "Credito Stimato"}}
	var hours, costs, credits []float64
	for _, p := range sortedProjects(s) {
		h := aggregate.ProjectHours(s, p.ID)
		c := aggregate.ProjectCost(s, p.ID)
		cr := calc.LaborCreditEstimate(s, p.ID)
		hours, costs, credits = append(hours, h), append(costs, c), append(credits, cr)
		rows = append(rows, []string{
			projectName(p),
			calc.Table().Info(p.Type).Label,
			money.Fixed(h, 0),
			money.Fixed(c, 2),
			FormatRate(calc.Rate(p.Type)),
			money.Fixed(cr, 2),
		})
	}
	rows = append(rows, []string{
		"TOTALE", "",
		money.Fixed(money.Sum(hours...), 0),
		money.Fixed(money.Sum(costs...), 2),
		"",
		money.Fixed(money.Sum(credits...), 2),
	})
	return rows
}

// ProjectSummaryCSV writes one row per project with hours, labor cost, rate and labor
// credit, followed by a TOTALE row.
func ProjectSummaryCSV(w io.Writer, s aggregate.Snapshot, calc *credit.Calculator) error {
	if calc == nil {
		calc = credit.NewCalculator(nil)
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(summaryRows(s, calc)); err != nil {
		return fmt.Errorf("project summary csv: %w", err)
	}
	return nil
}

// TimesheetCSV writes the full timesheet: a title block, one matrix per employee with
// history, and the project summary.
func TimesheetCSV(w io.Writer, s aggregate.Snapshot, calc *credit.Calculator, exportDate string) error {
	if calc == nil {
		calc = credit.NewCalculator(nil)
	}
	rows := [][]string{
		{"Timesheet Dettagliato - Credito R&S"},
		{"Data export:", exportDate},
		{},
	}
	projects := sortedProjects(s)
	employees := append([]*models.Employee(nil), s.Employees...)
	sort.Slice(employees, func(i, j int) bool {
		if employees[i].Name != employees[j].Name {
			return employees[i].Name < employees[j].Name
		}
		return employees[i].ID < employees[j].ID
	})
	for _, e := range employees {
		title := e.Name
		if e.Role != "" {
			title += " - " + e.Role
		}
		rows = append(rows, []string{title})
		if e.HasHistory() {
			rows = append(rows, matrixRows(s, e.ID, projects)...)
		}
		rows = append(rows, []string{})
	}
	rows = append(rows, []string{"RIEPILOGO PROGETTI"})
	rows = append(rows, summaryRows(s, calc)...)

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("timesheet csv: %w", err)
	}
	return nil
}
