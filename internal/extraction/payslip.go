// Package extraction turns payroll documents into validated cost inputs: it calls the
// document-extraction API, rate limits it, processes batches and groups payslips per
// employee.
package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/history"
	json "github.com/goccy/go-json"
)

var fiscalCodePattern = regexp.MustCompile(`^[A-Z]{6}[0-9]{2}[A-Z][0-9]{2}[A-Z][0-9]{3}[A-Z]$`)

// ValidFiscalCode checks the shape of an Italian personal fiscal code, ignoring case.
func ValidFiscalCode(code string) bool {
	return fiscalCodePattern.MatchString(strings.ToUpper(strings.TrimSpace(code)))
}

// Number is a nullable amount that accepts JSON numbers and Italian-formatted strings.
type Number struct {
	Value float64
	Valid bool
}

func Num(v float64) Number { return Number{Value: v, Valid: true} }

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	*n = Number{}
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		if v, ok := ParseAmount(str); ok {
			*n = Num(v)
		}
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*n = Num(v)
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

// ParseAmount reads "1.234,56", "1234.56", "€ 2.500" and similar.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(strings.NewReplacer("€", "", "EUR", "", " ", "", "\u00a0", "").Replace(s))
	if s == "" {
		return 0, false
	}
	hasDot, hasComma := strings.Contains(s, "."), strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	case hasDot:
		// "2.500" is a thousands separator, "25.5" a decimal point.
		if i := strings.LastIndex(s, "."); len(s)-i-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Payslip is the validated result of one payroll document. Every field may be null.
type Payslip struct {
	FullName     *string `json:"nome_completo"`
	FiscalCode   *string `json:"codice_fiscale"`
	Role         *string `json:"qualifica"`
	Month        *string `json:"mese"`
	Hours        Number  `json:"ore_mensili"`
	GrossPay     Number  `json:"retribuzione_lorda"`
	EmployerCost Number  `json:"costo_azienda"`

	File   string `json:"file,omitempty"`
	Manual bool   `json:"manual,omitempty"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func (p Payslip) Name() string { return strings.Join(strings.Fields(str(p.FullName)), " ") }

func (p Payslip) Code() string { return strings.ToUpper(str(p.FiscalCode)) }

func (p Payslip) Qualification() string { return str(p.Role) }

// MonthKey returns the canonical month, or the month of now when absent.
func (p Payslip) MonthKey(now time.Time) (string, error) {
	if m := str(p.Month); m != "" {
		return history.Canonical(m)
	}
	return history.MonthKey{Year: now.Year(), Month: int(now.Month())}.String(), nil
}

// Validate rejects malformed months and fiscal codes.
func (p Payslip) Validate() error {
	if m := str(p.Month); m != "" {
		if _, err := history.ParseMonthKey(m); err != nil {
			return err
		}
	}
	if code := p.Code(); code != "" && !ValidFiscalCode(code) {
		return apperr.Invalid("codice_fiscale", "malformed fiscal code")
	}
	if p.Name() == "" && p.Code() == "" {
		return apperr.Invalid("nome_completo", "name or fiscal code required")
	}
	return nil
}

// CostInput maps the payslip onto the normalizer input. Missing hours default to 160.
func (p Payslip) CostInput() costs.Input {
	in := costs.Input{HoursInMonth: costs.DefaultHours}
	if p.Hours.Valid && p.Hours.Value > 0 {
		in.HoursInMonth = p.Hours.Value
	}
	if p.GrossPay.Valid {
		in.GrossMonthlyPay = p.GrossPay.Value
	}
	if p.EmployerCost.Valid {
		in.EmployerCostOverride = p.EmployerCost.Value
	}
	return in
}

// Source returns the raw fields for audit storage.
func (p Payslip) Source() map[string]any {
	src := map[string]any{}
	put := func(k string, v *string) {
		if v != nil {
			src[k] = *v
		}
	}
	putN := func(k string, n Number) {
		if n.Valid {
			src[k] = n.Value
		}
	}
	put("nome_completo", p.FullName)
	put("codice_fiscale", p.FiscalCode)
	put("qualifica", p.Role)
	put("mese", p.Month)
	putN("ore_mensili", p.Hours)
	putN("retribuzione_lorda", p.GrossPay)
	putN("costo_azienda", p.EmployerCost)
	if p.File != "" {
		src["file"] = p.File
	}
	if p.Manual {
		src["manual"] = true
	}
	return src
}

// ManualTemplate is the placeholder produced when a file could not be extracted.
func ManualTemplate(file string) Payslip {
	name := strings.TrimSuffix(file, extOf(file))
	return Payslip{FullName: &name, File: file, Manual: true}
}

func extOf(file string) string {
	if i := strings.LastIndex(file, "."); i > 0 {
		return file[i:]
	}
	return ""
}
