package credit

import (
	"sort"

	"github.com/Scan360AI/rnd-credit-manager/internal/aggregate"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
	"github.com/Scan360AI/rnd-credit-manager/internal/money"
)

// ProjectEstimate is the credit picture of one project. Amounts are rounded to cents.
type ProjectEstimate struct {
	ProjectID           string  `json:"project_id"`
	Name                string  `json:"name"`
	Type                string  `json:"type"`
	TypeLabel           string  `json:"type_label"`
	Color               string  `json:"color"`
	Year                int     `json:"year"`
	Status              string  `json:"status"`
	Hours               float64 `json:"hours"`
	LaborCost           float64 `json:"labor_cost"`
	InvoiceCost         float64 `json:"invoice_cost"`
	Budget              float64 `json:"budget"`
	Rate                float64 `json:"rate"`
	LaborCreditEstimate float64 `json:"labor_credit_estimate"`
	TotalCreditEstimate float64 `json:"total_credit_estimate"`
	Employees           int     `json:"employees"`
	Invoices            int     `json:"invoices"`
}

// EmployeeStatus summarizes one employee's allocation state.
type EmployeeStatus struct {
	EmployeeID     string           `json:"employee_id"`
	Name           string           `json:"name"`
	Total          int              `json:"total_percentage"`
	Status         aggregate.Status `json:"status"`
	AvailableHours float64          `json:"available_hours"`
	AllocatedHours float64          `json:"allocated_hours"`
	CostEstimated  bool             `json:"cost_estimated"`
	NeedsReview    bool             `json:"needs_review"`
}

// OrgSummary aggregates all projects. The credit rate is applied once per project;
// LaborCredit and BudgetCredit are sums of the per-project figures.
type OrgSummary struct {
	Projects              int     `json:"projects"`
	Employees             int     `json:"employees"`
	TotalHours            float64 `json:"total_hours"`
	LaborCost             float64 `json:"labor_cost"`
	InvoiceCost           float64 `json:"invoice_cost"`
	TotalCost             float64 `json:"total_cost"`
	LaborCredit           float64 `json:"labor_credit"`
	BudgetCredit          float64 `json:"budget_credit"`
	EligibleInvoicesTotal float64 `json:"eligible_invoices_total"`
}

// Report is the full credit report of a workspace.
type Report struct {
	Revision  uint64            `json:"revision"`
	Projects  []ProjectEstimate `json:"projects"`
	Employees []EmployeeStatus  `json:"employees"`
	Summary   OrgSummary        `json:"summary"`
}

// Calculator turns aggregates into credit estimates.
type Calculator struct {
	table *Table
}

func NewCalculator(table *Table) *Calculator {
	if table == nil {
		table = NewTable()
	}
	return &Calculator{table: table}
}

func (c *Calculator) Table() *Table { return c.table }

// Rate returns the credit rate of a project type.
func (c *Calculator) Rate(projectType string) float64 {
	return c.table.Rate(projectType)
}

// InvoiceCost sums the eligible invoices assigned to the project.
func InvoiceCost(s aggregate.Snapshot, p *models.Project) float64 {
	byID := make(map[string]*models.Invoice, len(s.Invoices))
	for _, inv := range s.Invoices {
		if inv != nil {
			byID[inv.ID] = inv
		}
	}
	ids := append([]string(nil), p.AssignedInvoiceIDs...)
	sort.Strings(ids)
	amounts := make([]float64, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if inv, ok := byID[id]; ok {
			amounts = append(amounts, inv.EligibleAmount())
		}
	}
	return money.Sum(amounts...)
}

// ProjectBudget is labor cost plus eligible assigned invoices.
func (c *Calculator) ProjectBudget(s aggregate.Snapshot, projectID string) float64 {
	p, ok := s.Project(projectID)
	if !ok {
		return 0
	}
	return money.Round2(aggregate.ProjectCost(s, projectID) + InvoiceCost(s, p))
}

// LaborCreditEstimate is labor cost times the project's rate.
func (c *Calculator) LaborCreditEstimate(s aggregate.Snapshot, projectID string) float64 {
	p, ok := s.Project(projectID)
	if !ok {
		return 0
	}
	return money.Round2(aggregate.ProjectCost(s, projectID) * c.Rate(p.Type))
}

// TotalCreditEstimate is the full budget times the project's rate.
func (c *Calculator) TotalCreditEstimate(s aggregate.Snapshot, projectID string) float64 {
	p, ok := s.Project(projectID)
	if !ok {
		return 0
	}
	return money.Round2(c.ProjectBudget(s, projectID) * c.Rate(p.Type))
}

// Estimate computes every figure for one project.
func (c *Calculator) Estimate(s aggregate.Snapshot, p *models.Project) ProjectEstimate {
	labor := aggregate.ProjectCost(s, p.ID)
	invoices := InvoiceCost(s, p)
	rate := c.Rate(p.Type)
	info := c.table.Info(p.Type)
	budget := labor + invoices
	return ProjectEstimate{
		ProjectID:           p.ID,
		Name:                p.Name,
		Type:                p.Type,
		TypeLabel:           info.Label,
		Color:               info.Color,
		Year:                p.Year,
		Status:              string(p.Status),
		Hours:               money.Round2(aggregate.ProjectHours(s, p.ID)),
		LaborCost:           money.Round2(labor),
		InvoiceCost:         money.Round2(invoices),
		Budget:              money.Round2(budget),
		Rate:                rate,
		LaborCreditEstimate: money.Round2(labor * rate),
		TotalCreditEstimate: money.Round2(budget * rate),
		Employees:           len(aggregate.ProjectAllocations(s, p.ID)),
		Invoices:            len(p.AssignedInvoiceIDs),
	}
}

// Report builds per-project estimates, employee allocation states and the org summary.
func (c *Calculator) Report(s aggregate.Snapshot) Report {
	projects := append([]*models.Project(nil), s.Projects...)
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].Name != projects[j].Name {
			return projects[i].Name < projects[j].Name
		}
		return projects[i].ID < projects[j].ID
	})

	r := Report{Projects: make([]ProjectEstimate, 0, len(projects))}
	var hours, labor, invoices, laborCredit, budgetCredit []float64
	for _, p := range projects {
		est := c.Estimate(s, p)
		r.Projects = append(r.Projects, est)
		hours = append(hours, est.Hours)
		labor = append(labor, est.LaborCost)
		invoices = append(invoices, est.InvoiceCost)
		laborCredit = append(laborCredit, est.LaborCreditEstimate)
		budgetCredit = append(budgetCredit, est.TotalCreditEstimate)
	}

	employees := append([]*models.Employee(nil), s.Employees...)
	sort.Slice(employees, func(i, j int) bool {
		if employees[i].Name != employees[j].Name {
			return employees[i].Name < employees[j].Name
		}
		return employees[i].ID < employees[j].ID
	})
	for _, e := range employees {
		total, st := aggregate.EmployeeTotalAllocation(s, e.ID)
		r.Employees = append(r.Employees, EmployeeStatus{
			EmployeeID:     e.ID,
			Name:           e.Name,
			Total:          total,
			Status:         st,
			AvailableHours: aggregate.EmployeeTotalHours(e),
			AllocatedHours: money.Round2(aggregate.EmployeeAllocatedHours(s, e.ID)),
			CostEstimated:  e.CostIsEstimated,
			NeedsReview:    e.NeedsReview,
		})
	}

	var eligible []float64
	for _, inv := range s.Invoices {
		if inv != nil {
			eligible = append(eligible, inv.EligibleAmount())
		}
	}

	r.Summary = OrgSummary{
		Projects:              len(projects),
		Employees:             len(employees),
		TotalHours:            money.Round2(money.Sum(hours...)),
		LaborCost:             money.Round2(money.Sum(labor...)),
		InvoiceCost:           money.Round2(money.Sum(invoices...)),
		LaborCredit:           money.Round2(money.Sum(laborCredit...)),
		BudgetCredit:          money.Round2(money.Sum(budgetCredit...)),
		EligibleInvoicesTotal: money.Round2(money.Sum(eligible...)),
	}
	r.Summary.TotalCost = money.Round2(r.Summary.LaborCost + r.Summary.InvoiceCost)
	return r
}
