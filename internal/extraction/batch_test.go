package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
)

type fakeExtractor map[string]func() ([]Payslip, error)

func (f fakeExtractor) Extract(_ context.Context, data []byte, _ string) ([]Payslip, error) {
	return f[string(data)]()
}

func TestProcessBatch(t *testing.T) {
	ex := fakeExtractor{
		"ok": func() ([]Payslip, error) {
			return []Payslip{slip("Mario Rossi", "", "01/2024"), slip("Mario Rossi", "", "02/2024")}, nil
		},
		"quota": func() ([]Payslip, error) {
			return nil, apperr.External("gemini", apperr.CodeQuotaExceeded, errors.New("429"))
		},
		"boom": func() ([]Payslip, error) {
			return nil, apperr.External("gemini", apperr.CodeUpstream, errors.New("500"))
		},
		"invalid": func() ([]Payslip, error) {
			return []Payslip{slip("X", "", "13/2024")}, nil
		},
	}
	files := []File{
		{Name: "a.pdf", Mime: "application/pdf", Data: []byte("ok")},
		{Name: "b.png", Mime: "image/png", Data: []byte("quota")},
		{Name: "c.txt", Mime: "text/plain", Data: []byte("ok")},
		{Name: "d.jpg", Mime: "image/jpeg", Data: []byte("boom")},
		{Name: "e.pdf", Mime: "application/pdf", Data: []byte("invalid")},
	}
	res := ProcessBatch(context.Background(), ex, files)

	if len(res.Succeeded) != 3 {
		t.Fatalf("got %d succeeded want 3: %+v", len(res.Succeeded), res.Succeeded)
	}
	if res.Succeeded[0].File != "a.pdf" || res.Succeeded[1].File != "a.pdf" {
		t.Errorf("file not stamped: %+v", res.Succeeded[:2])
	}
	manual := res.Manual()
	if len(manual) != 1 || manual[0].File != "b.png" {
		t.Errorf("manual = %+v", manual)
	}
	if len(res.Failed) != 4 {
		t.Fatalf("got %d failures want 4: %+v", len(res.Failed), res.Failed)
	}
	if res.Failed[0].File != "b.png" || res.Failed[0].Code != string(apperr.CodeQuotaExceeded) {
		t.Errorf("quota failure = %+v", res.Failed[0])
	}
	if res.Failed[1].File != "c.txt" || res.Failed[2].File != "d.jpg" || res.Failed[3].File != "e.pdf" {
		t.Errorf("failures out of order: %+v", res.Failed)
	}
}

func TestValidateFile(t *testing.T) {
	big := make([]byte, MaxFileSize+1)
	tests := []struct {
		name string
		f    File
		ok   bool
	}{
		{"pdf", File{Mime: "application/pdf", Data: []byte("x")}, true},
		{"jpg alias", File{Mime: "image/jpg", Data: []byte("x")}, true},
		{"with params", File{Mime: "image/png; charset=binary", Data: []byte("x")}, true},
		{"too big", File{Mime: "application/pdf", Data: big}, false},
		{"empty", File{Mime: "application/pdf"}, false},
		{"gif", File{Mime: "image/gif", Data: []byte("x")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateFile(tt.f); (err == nil) != tt.ok {
				t.Errorf("ValidateFile() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
