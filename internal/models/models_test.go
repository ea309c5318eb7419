package models

import (
	"testing"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
)

func TestProject_ValidDates(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dec := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		start *time.Time
		end   *time.Time
		want  bool
	}{
		{"both empty", nil, nil, true},
		{"only start", &jan, nil, true},
		{"ordered", &jan, &dec, true},
		{"same day", &jan, &jan, true},
		{"reversed", &dec, &jan, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Project{StartDate: tt.start, EndDate: tt.end}
			if got := p.ValidDates(); got != tt.want {
				t.Errorf("ValidDates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProject_ToggleInvoice(t *testing.T) {
	p := &Project{}
	if added := p.ToggleInvoice("inv-1"); !added {
		t.Fatalf("expected first toggle to add")
	}
	if !p.HasInvoice("inv-1") {
		t.Fatalf("expected inv-1 assigned")
	}
	if added := p.ToggleInvoice("inv-1"); added {
		t.Fatalf("expected second toggle to remove")
	}
	if p.HasInvoice("inv-1") || len(p.AssignedInvoiceIDs) != 0 {
		t.Fatalf("expected empty set, got %v", p.AssignedInvoiceIDs)
	}
}

func TestProject_CloneIsIndependent(t *testing.T) {
	p := &Project{AssignedInvoiceIDs: []string{"a"}}
	c := p.Clone()
	c.ToggleInvoice("b")
	if len(p.AssignedInvoiceIDs) != 1 {
		t.Fatalf("clone mutated original: %v", p.AssignedInvoiceIDs)
	}
}

func TestParseProjectStatus(t *testing.T) {
	tests := map[string]ProjectStatus{
		"active":     ProjectStatusActive,
		"in_corso":   ProjectStatusActive,
		"Completato": ProjectStatusCompleted,
		"suspended":  ProjectStatusSuspended,
	}
	for in, want := range tests {
		got, ok := ParseProjectStatus(in)
		if !ok || got != want {
			t.Errorf("ParseProjectStatus(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseProjectStatus("archived"); ok {
		t.Errorf("expected archived to be rejected")
	}
}

func TestInvoice_EligibleAmount(t *testing.T) {
	tests := []struct {
		name string
		inv  Invoice
		want float64
	}{
		{"eligible", Invoice{Amount: 1200, Eligible: true}, 1200},
		{"not eligible", Invoice{Amount: 1200}, 0},
		{"negative", Invoice{Amount: -10, Eligible: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.EligibleAmount(); got != tt.want {
				t.Errorf("EligibleAmount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmployee_MonthlyHistory(t *testing.T) {
	gross := 2000.0
	e := &Employee{History: []MonthlyCost{
		MonthlyCostFrom("01/2024", costs.Record{Hours: 160, HourlyCost: 20, MonthlyCost: 3200, GrossPay: &gross}),
		MonthlyCostFrom("02/2024", costs.Record{Hours: 170, HourlyCost: 22, MonthlyCost: 3740, Estimated: true}),
	}}
	h := e.MonthlyHistory()
	if len(h) != 2 {
		t.Fatalf("expected 2 months got %d", len(h))
	}
	if h["01/2024"].GrossPay == nil || *h["01/2024"].GrossPay != 2000 {
		t.Errorf("gross pay lost: %+v", h["01/2024"])
	}
	if !h["02/2024"].Estimated {
		t.Errorf("estimated flag lost")
	}
	if _, ok := e.Month("03/2024"); ok {
		t.Errorf("unexpected month 03/2024")
	}
}

func TestEmployee_CloneIsDeep(t *testing.T) {
	gross := 1000.0
	e := &Employee{History: []MonthlyCost{{Month: "01/2024", Hours: 160, GrossPay: &gross}}}
	c := e.Clone()
	c.History[0].Hours = 10
	*c.History[0].GrossPay = 5
	if e.History[0].Hours != 160 || *e.History[0].GrossPay != 1000 {
		t.Fatalf("clone shares state with original: %+v", e.History[0])
	}
}
