package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/models"
)

var (
	invoiceNumberRe   = regexp.MustCompile(`(?i)(?:fattura|invoice|documento)\s*n[°.]?\s*(\S+)`)
	invoiceDateRe     = regexp.MustCompile(`(?i)(?:data|date)\s*:?\s*(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})`)
	invoiceSupplierRe = regexp.MustCompile(`(?i)(?:fornitore|supplier|ragione sociale)\s*:?\s*([^\n]+)`)
	invoiceAmountRe   = regexp.MustCompile(`(?i)(?:totale|total|importo)\s*€?\s*([\d.,]+)`)
)

// EligibleKeywords mark an invoice as R&D spend.
var EligibleKeywords = []string{"ricerca", "sviluppo", "r&s", "innovazione", "consulenza tecnica", "prototipo"}

const (
	RationaleManual   = "Da verificare manualmente"
	RationaleKeywords = "Rilevate keywords R&S nel documento"
)

// ParseInvoiceAnalysis fills the fields found in a free-text analysis over defaults.
func ParseInvoiceAnalysis(text string, defaults models.Invoice) models.Invoice {
	out := *defaults.Clone()
	if m := invoiceNumberRe.FindStringSubmatch(text); m != nil {
		out.Number = m[1]
	}
	if m := invoiceDateRe.FindStringSubmatch(text); m != nil {
		if d, ok := parseInvoiceDate(m[1]); ok {
			out.Date = &d
		}
	}
	if m := invoiceSupplierRe.FindStringSubmatch(text); m != nil {
		out.Supplier = strings.TrimSpace(m[1])
	}
	if m := invoiceAmountRe.FindStringSubmatch(text); m != nil {
		s := strings.Replace(strings.ReplaceAll(m[1], ".", ""), ",", ".", 1)
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			out.Amount = v
		}
	}
	lower := strings.ToLower(text)
	for _, kw := range EligibleKeywords {
		if strings.Contains(lower, kw) {
			out.Eligible = true
			out.Rationale = RationaleKeywords
			break
		}
	}
	if !out.Eligible && out.Rationale == "" {
		out.Rationale = RationaleManual
	}
	return out
}

func parseInvoiceDate(s string) (time.Time, bool) {
	s = strings.ReplaceAll(s, "-", "/")
	for _, layout := range []string{"2/1/2006", "02/01/2006", "2/1/06", "02/01/06"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
