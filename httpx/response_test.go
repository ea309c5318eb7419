package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	json "github.com/goccy/go-json"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"validation", apperr.Invalid("name", "required"), 400, "validation_failed"},
		{"wrapped not found", fmt.Errorf("x: %w", apperr.NotFound("employee", "1")), 404, "not_found"},
		{"last month", apperr.ErrCannotRemoveLastMonth, 409, "cannot_remove_last_month"},
		{"quota", apperr.External("gemini", apperr.CodeQuotaExceeded, nil), 429, "QUOTA_EXCEEDED"},
		{"daily", apperr.External("ratelimit", apperr.CodeDailyQuotaExceeded, nil), 429, "DAILY_QUOTA_EXCEEDED"},
		{"credentials", apperr.External("gemini", apperr.CodeInvalidCredentials, nil), 502, "INVALID_CREDENTIALS"},
		{"disabled", apperr.External("gemini", apperr.CodeDisabled, nil), 503, "AI_DISABLED"},
		{"other", errors.New("boom"), 500, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Status(tt.err)
			if status != tt.want || code != tt.code {
				t.Errorf("got %d %q want %d %q", status, code, tt.want, tt.code)
			}
		})
	}
}

func TestError_ValidationDetailsAndLanguage(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "en-US")
	w := httptest.NewRecorder()
	Error(w, r, apperr.Invalid("year", "out of range"))
	if w.Code != 400 {
		t.Fatalf("got %d want 400", w.Code)
	}
	var resp struct {
		Error   string            `json:"error"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Details["year"] != "out of range" || resp.Message != "Validation failed" {
		t.Errorf("got %+v", resp)
	}
}

func TestError_InternalNotEchoed(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	Error(w, r, errors.New("secret dsn"))
	if strings.Contains(w.Body.String(), "secret") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}
}

func TestDecode(t *testing.T) {
	var dst struct{ Name string }
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Name":"x"}`))
	if err := Decode(r, &dst); err != nil || dst.Name != "x" {
		t.Fatalf("got %v %+v", err, dst)
	}
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	if err := Decode(r, &dst); !apperr.IsValidation(err) {
		t.Errorf("malformed body: got %v", err)
	}
	r = httptest.NewRequest(http.MethodPost, "/", nil)
	if err := Decode(r, &dst); !apperr.IsValidation(err) {
		t.Errorf("empty body: got %v", err)
	}
}
