package history

import (
	"math"
	"sort"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
	"github.com/Scan360AI/rnd-credit-manager/internal/money"
)

// UpsertMonth inserts or overwrites the record for key and recomputes the aggregates.
func UpsertMonth(e *models.Employee, key string, rec costs.Record) error {
	k, err := ParseMonthKey(key)
	if err != nil {
		return err
	}
	row := models.MonthlyCostFrom(k.String(), costs.Sanitize(rec))
	row.EmployeeID = e.ID
	if existing, ok := e.Month(row.Month); ok {
		row.ID = existing.ID
		if row.Source == nil {
			row.Source = existing.Source
		}
		*existing = row
	} else {
		e.History = append(e.History, row)
	}
	Recompute(e)
	return nil
}

// RemoveMonth deletes one month. The last remaining month cannot be removed; the
// employee has to be deleted instead.
func RemoveMonth(e *models.Employee, key string) error {
	k, err := ParseMonthKey(key)
	if err != nil {
		return err
	}
	idx := -1
	for i, m := range e.History {
		if m.Month == k.String() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperr.NotFound("month", k.String())
	}
	if len(e.History) <= 1 {
		return apperr.ErrCannotRemoveLastMonth
	}
	e.History = append(e.History[:idx], e.History[idx+1:]...)
	Recompute(e)
	return nil
}

// AddMonth appends the month following the latest one, copying its record.
func AddMonth(e *models.Employee) (string, error) {
	if len(e.History) == 0 {
		return "", apperr.NotFound("month", "latest")
	}
	Recompute(e)
	last, _ := e.Month(e.LastMonth)
	lk, err := ParseMonthKey(e.LastMonth)
	if err != nil {
		return "", err
	}
	next := lk.Next().String()
	rec := last.Record()
	if err := UpsertMonth(e, next, rec); err != nil {
		return "", err
	}
	return next, nil
}

// Recompute sorts the history chronologically and refreshes every derived aggregate.
func Recompute(e *models.Employee) {
	type keyed struct {
		ord int
		idx int
	}
	order := make([]keyed, 0, len(e.History))
	for i, m := range e.History {
		k, err := ParseMonthKey(m.Month)
		ord := math.MaxInt
		if err == nil {
			ord = k.ordinal()
			e.History[i].Month = k.String()
		}
		order = append(order, keyed{ord: ord, idx: i})
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].ord < order[j].ord })
	sorted := make([]models.MonthlyCost, len(order))
	for i, o := range order {
		sorted[i] = e.History[o.idx]
	}
	e.History = sorted

	e.TotalAnnualHours = 0
	e.TotalAnnualCost = 0
	e.AverageMonthlyHours = 0
	e.AverageHourlyCost = 0
	e.MonthsCount = len(sorted)
	e.FirstMonth, e.LastMonth = "", ""
	e.CostIsEstimated = false
	e.NeedsReview = false
	if len(sorted) == 0 {
		return
	}

	hours := make([]float64, 0, len(sorted))
	monthly := make([]float64, 0, len(sorted))
	hourly := make([]float64, 0, len(sorted))
	for _, m := range sorted {
		hours = append(hours, m.Hours)
		monthly = append(monthly, m.MonthlyCost)
		hourly = append(hourly, m.HourlyCost)
		if m.Estimated {
			e.CostIsEstimated = true
		}
		if m.NeedsReview {
			e.NeedsReview = true
		}
	}
	n := float64(len(sorted))
	e.TotalAnnualHours = money.Sum(hours...)
	e.TotalAnnualCost = money.Round2(money.Sum(monthly...))
	e.AverageMonthlyHours = money.Round(e.TotalAnnualHours/n, 0)
	e.AverageHourlyCost = money.Round2(money.Sum(hourly...) / n)
	e.FirstMonth = sorted[0].Month
	e.LastMonth = sorted[len(sorted)-1].Month
}
