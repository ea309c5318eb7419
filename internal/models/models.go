package models

import (
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NewID returns a fresh entity identifier.
func NewID() string { return uuid.NewString() }

// Employee is a person whose payroll cost is allocated to projects.
// Deleting an employee is a soft delete (DeletedAt).
type Employee struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	TenantID  string         `gorm:"size:64;index;not null" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	FiscalCode string `gorm:"size:16;index" json:"fiscal_code"`
	Name       string `gorm:"size:255;not null" json:"name"`
	Role       string `gorm:"size:255" json:"role,omitempty"`
	Sector     string `gorm:"size:50" json:"sector,omitempty"`

	// Manual mode, used only while History is empty.
	AnnualHours        float64 `json:"annual_hours"`
	FallbackHourlyCost float64 `json:"fallback_hourly_cost"`

	History []MonthlyCost `gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE" json:"history"`

	// Aggregates, recomputed from History.
	TotalAnnualHours    float64 `json:"total_annual_hours"`
	AverageMonthlyHours float64 `json:"average_monthly_hours"`
	AverageHourlyCost   float64 `json:"average_hourly_cost"`
	TotalAnnualCost     float64 `json:"total_annual_cost"`
	MonthsCount         int     `json:"months_count"`
	FirstMonth          string  `gorm:"size:7" json:"first_month,omitempty"`
	LastMonth           string  `gorm:"size:7" json:"last_month,omitempty"`
	CostIsEstimated     bool    `json:"cost_is_estimated"`
	NeedsReview         bool    `json:"needs_review"`
}

// BeforeCreate assigns an ID when none was set.
func (e *Employee) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	return nil
}

// HasHistory reports whether the employee is tracked month by month.
func (e *Employee) HasHistory() bool {
	return len(e.History) > 0
}

// Month returns the history entry for key, if any.
func (e *Employee) Month(key string) (*MonthlyCost, bool) {
	for i := range e.History {
		if e.History[i].Month == key {
			return &e.History[i], true
		}
	}
	return nil, false
}

// MonthlyHistory returns the history as a month-keyed map.
func (e *Employee) MonthlyHistory() map[string]costs.Record {
	out := make(map[string]costs.Record, len(e.History))
	for _, m := range e.History {
		out[m.Month] = m.Record()
	}
	return out
}

// Clone returns a deep copy, history included.
func (e *Employee) Clone() *Employee {
	c := *e
	c.History = make([]MonthlyCost, len(e.History))
	for i, m := range e.History {
		c.History[i] = m.clone()
	}
	return &c
}

// MonthlyCost is one month of normalized payroll cost.
type MonthlyCost struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	EmployeeID string `gorm:"size:36;not null;uniqueIndex:idx_employee_month" json:"-"`
	Month      string `gorm:"size:7;not null;uniqueIndex:idx_employee_month" json:"month"`

	Hours       float64  `gorm:"not null" json:"hours"`
	HourlyCost  float64  `gorm:"type:decimal(10,2);not null" json:"hourly_cost"`
	MonthlyCost float64  `gorm:"type:decimal(12,2);not null" json:"monthly_cost"`
	GrossPay    *float64 `gorm:"type:decimal(12,2)" json:"gross_pay,omitempty"`
	Estimated   bool     `json:"estimated"`
	NeedsReview bool     `json:"needs_review"`

	// Raw extracted fields, kept for audit.
	Source datatypes.JSONMap `json:"source,omitempty"`
}

// Record converts the row into the normalizer's record type.
func (m MonthlyCost) Record() costs.Record {
	rec := costs.Record{
		Hours:       m.Hours,
		HourlyCost:  m.HourlyCost,
		MonthlyCost: m.MonthlyCost,
		Estimated:   m.Estimated,
		NeedsReview: m.NeedsReview,
	}
	if m.GrossPay != nil {
		g := *m.GrossPay
		rec.GrossPay = &g
	}
	return rec
}

// MonthlyCostFrom builds a row for month from a normalized record.
func MonthlyCostFrom(month string, rec costs.Record) MonthlyCost {
	m := MonthlyCost{
		Month:       month,
		Hours:       rec.Hours,
		HourlyCost:  rec.HourlyCost,
		MonthlyCost: rec.MonthlyCost,
		Estimated:   rec.Estimated,
		NeedsReview: rec.NeedsReview,
	}
	if rec.GrossPay != nil {
		g := *rec.GrossPay
		m.GrossPay = &g
	}
	return m
}

func (m MonthlyCost) clone() MonthlyCost {
	c := m
	if m.GrossPay != nil {
		g := *m.GrossPay
		c.GrossPay = &g
	}
	if m.Source != nil {
		c.Source = make(datatypes.JSONMap, len(m.Source))
		for k, v := range m.Source {
			c.Source[k] = v
		}
	}
	return c
}
