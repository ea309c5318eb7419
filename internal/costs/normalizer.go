// Package costs turns payroll observations into normalized monthly cost records.
package costs

import (
	"github.com/Scan360AI/rnd-credit-manager/internal/money"
)

const (
	// Installments is the Italian 13-month salary convention.
	Installments = 13
	// DefaultHours is used when a payslip carries no usable data.
	DefaultHours = 160
)

// Input is one payroll observation for a month. Zero means absent.
type Input struct {
	HoursInMonth         float64 `json:"hours_in_month"`
	GrossMonthlyPay      float64 `json:"gross_monthly_pay"`
	EmployerCostOverride float64 `json:"employer_cost_override"`
}

// Record is the normalized cost of one month.
type Record struct {
	Hours       float64  `json:"hours"`
	HourlyCost  float64  `json:"hourlyCost"`
	MonthlyCost float64  `json:"monthlyCost"`
	GrossPay    *float64 `json:"grossPay,omitempty"`
	Estimated   bool     `json:"estimated"`
	NeedsReview bool     `json:"needsReview"`
}

// Breakdown is the employer cost derived from a RAL.
type Breakdown struct {
	RAL         float64 `json:"ral"`
	INPS        float64 `json:"inps"`
	INAIL       float64 `json:"inail"`
	TFR         float64 `json:"tfr"`
	Other       float64 `json:"other"`
	TotalCost   float64 `json:"total_cost"`
	MonthlyCost float64 `json:"monthly_cost"`
	Multiplier  float64 `json:"multiplier"`
}

// Normalize never fails: malformed numbers are sanitized to 0 and a record with no cost
// information at all comes back flagged for manual completion.
func Normalize(in Input, rates Rates) Record {
	hours := money.Sanitize(in.HoursInMonth)
	gross := money.Sanitize(in.GrossMonthlyPay)
	override := money.Sanitize(in.EmployerCostOverride)

	var rec Record
	switch {
	case override > 0:
		rec.MonthlyCost = override
	case gross > 0:
		rec.MonthlyCost = FromRAL(gross*Installments, rates).TotalCost / Installments
		rec.Estimated = true
	default:
		if hours == 0 {
			hours = DefaultHours
		}
		rec.Hours = hours
		rec.NeedsReview = true
		return rec
	}
	if gross > 0 {
		g := gross
		rec.GrossPay = &g
	}
	rec.Hours = hours
	rec.MonthlyCost = money.Round2(rec.MonthlyCost)
	if hours > 0 {
		rec.HourlyCost = money.Round2(rec.MonthlyCost / hours)
	}
	return rec
}

// Sanitize clamps a record coming from manual entry or storage so aggregation never
// sees negative or NaN values.
func Sanitize(rec Record) Record {
	rec.Hours = money.Sanitize(rec.Hours)
	rec.HourlyCost = money.Sanitize(rec.HourlyCost)
	rec.MonthlyCost = money.Sanitize(rec.MonthlyCost)
	if rec.GrossPay != nil {
		g := money.Sanitize(*rec.GrossPay)
		rec.GrossPay = &g
	}
	return rec
}

// FromRAL applies the statutory on-cost formula to an annual gross salary.
func FromRAL(ral float64, rates Rates) Breakdown {
	ral = money.Sanitize(ral)
	b := Breakdown{
		RAL:        ral,
		INPS:       ral * rates.INPS,
		INAIL:      ral * rates.INAIL,
		TFR:        ral * rates.TFR,
		Other:      ral * rates.Other,
		Multiplier: rates.Multiplier(),
	}
	b.TotalCost = ral * b.Multiplier
	b.MonthlyCost = b.TotalCost / Installments
	return b
}

// Rounded returns the breakdown with every amount rounded to cents.
func (b Breakdown) Rounded() Breakdown {
	b.INPS = money.Round2(b.INPS)
	b.INAIL = money.Round2(b.INAIL)
	b.TFR = money.Round2(b.TFR)
	b.Other = money.Round2(b.Other)
	b.TotalCost = money.Round2(b.TotalCost)
	b.MonthlyCost = money.Round2(b.MonthlyCost)
	return b
}

// QuickEstimate is the flat 1.42 employer-cost approximation.
func QuickEstimate(ral float64) float64 {
	return money.Round2(money.Sanitize(ral) * defaultMultiplier)
}

// ManualAnnual derives annual hours and cost for an employee tracked without monthly history.
func ManualAnnual(monthlyHours, hourlyCost float64) (annualHours, annualCost float64) {
	monthlyHours = money.Sanitize(monthlyHours)
	hourlyCost = money.Sanitize(hourlyCost)
	return monthlyHours * 12, money.Round2(monthlyHours * hourlyCost * 12)
}
