package extraction

import (
	"testing"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/models"
)

func TestParseInvoiceAnalysis(t *testing.T) {
	text := "Fattura n. 2024/117\nData: 15/03/2024\nFornitore: Laboratori Alfa S.r.l.\n" +
		"Totale 12.500,50\nDescrizione: consulenza tecnica per prototipo"
	got := ParseInvoiceAnalysis(text, models.Invoice{Rationale: RationaleManual})

	if got.Number != "2024/117" {
		t.Errorf("number = %q", got.Number)
	}
	if got.Date == nil || !got.Date.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", got.Date)
	}
	if got.Supplier != "Laboratori Alfa S.r.l." {
		t.Errorf("supplier = %q", got.Supplier)
	}
	if got.Amount != 12500.50 {
		t.Errorf("amount = %v", got.Amount)
	}
	if !got.Eligible || got.Rationale != RationaleKeywords {
		t.Errorf("eligible = %v %q", got.Eligible, got.Rationale)
	}
}

func TestParseInvoiceAnalysis_KeepsDefaults(t *testing.T) {
	defaults := models.Invoice{Number: "N/A", Amount: 10, Rationale: RationaleManual}
	got := ParseInvoiceAnalysis("servizio di pulizia uffici", defaults)
	if got.Number != "N/A" || got.Amount != 10 || got.Eligible || got.Rationale != RationaleManual {
		t.Errorf("got %+v", got)
	}
}
