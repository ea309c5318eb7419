package extraction

import (
	"testing"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	json "github.com/goccy/go-json"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234,56", 1234.56, true},
		{"1234.56", 1234.56, true},
		{"€ 2.500", 2500, true},
		{"2.500,00 EUR", 2500, true},
		{"25.5", 25.5, true},
		{"168", 168, true},
		{"", 0, false},
		{"n/d", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseAmount(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPayslip_UnmarshalLenient(t *testing.T) {
	raw := `{"nome_completo":"Mario Rossi","codice_fiscale":"rssmra80a01h501u","qualifica":null,
		"mese":"3/2024","ore_mensili":"168","retribuzione_lorda":"2.450,75","costo_azienda":null}`
	var p Payslip
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Name() != "Mario Rossi" || p.Code() != "RSSMRA80A01H501U" {
		t.Errorf("got %q %q", p.Name(), p.Code())
	}
	if !p.Hours.Valid || p.Hours.Value != 168 {
		t.Errorf("hours = %+v", p.Hours)
	}
	if !p.GrossPay.Valid || p.GrossPay.Value != 2450.75 {
		t.Errorf("gross = %+v", p.GrossPay)
	}
	if p.EmployerCost.Valid {
		t.Errorf("employer cost should be null")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	key, err := p.MonthKey(time.Now())
	if err != nil || key != "03/2024" {
		t.Errorf("MonthKey = %q, %v", key, err)
	}
}

func TestPayslip_Validate(t *testing.T) {
	name := "Anna Bianchi"
	badCode := "XYZ"
	badMonth := "13/2024"
	tests := []struct {
		name string
		p    Payslip
		ok   bool
	}{
		{"name only", Payslip{FullName: &name}, true},
		{"bad fiscal code", Payslip{FullName: &name, FiscalCode: &badCode}, false},
		{"bad month", Payslip{FullName: &name, Month: &badMonth}, false},
		{"nothing", Payslip{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !apperr.IsValidation(err) {
				t.Errorf("got %T want ValidationError", err)
			}
		})
	}
}

func TestPayslip_Defaults(t *testing.T) {
	p := Payslip{}
	in := p.CostInput()
	if in.HoursInMonth != 160 || in.GrossMonthlyPay != 0 || in.EmployerCostOverride != 0 {
		t.Errorf("CostInput = %+v", in)
	}
	now := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	if key, _ := p.MonthKey(now); key != "07/2025" {
		t.Errorf("got %q want 07/2025", key)
	}
}

func TestManualTemplate(t *testing.T) {
	p := ManualTemplate("cedolino_rossi.pdf")
	if !p.Manual || p.File != "cedolino_rossi.pdf" || p.Name() != "cedolino_rossi" {
		t.Errorf("template = %+v", p)
	}
	if p.Source()["manual"] != true {
		t.Errorf("source should flag manual")
	}
}

func TestValidFiscalCode(t *testing.T) {
	for code, want := range map[string]bool{
		"RSSMRA80A01H501U": true,
		"rssmra80a01h501u": true,
		"RSSMRA80A01H501":  false,
		"12345678901":      false,
	} {
		if got := ValidFiscalCode(code); got != want {
			t.Errorf("ValidFiscalCode(%q) = %v, want %v", code, got, want)
		}
	}
}
