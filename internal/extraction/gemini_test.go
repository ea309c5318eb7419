package extraction

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	json "github.com/goccy/go-json"
)

func geminiReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
		}},
	})
	return string(b)
}

type countingWaiter struct{ n int }

func (w *countingWaiter) Wait(context.Context) error { w.n++; return nil }

func TestGeminiClient_Extract(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "k1" {
			t.Errorf("missing api key in query: %s", r.URL.RawQuery)
		}
		if !strings.Contains(r.URL.Path, "gemini-test") {
			t.Errorf("model not in path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, geminiReply("Ecco i dati:\n```json\n{\"nome_completo\":\"Mario Rossi\",\"mese\":\"01/2024\",\"ore_mensili\":160,\"retribuzione_lorda\":\"2.000,00\"}\n```"))
	}))
	defer srv.Close()

	waiter := &countingWaiter{}
	c := NewGeminiClient("k1", "gemini-test", srv.URL+"/models/{model}:generateContent", waiter)
	got, err := c.Extract(context.Background(), []byte("%PDF"), "application/pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 || got[0].Name() != "Mario Rossi" || got[0].GrossPay.Value != 2000 {
		t.Errorf("got %+v", got)
	}
	if waiter.n != 1 {
		t.Errorf("limiter called %d times want 1", waiter.n)
	}
	parts := gotReq.Contents[0].Parts
	if len(parts) != 2 || parts[1].InlineData == nil || parts[1].InlineData.MimeType != "application/pdf" {
		t.Errorf("request parts = %+v", parts)
	}
	if gotReq.GenerationConfig.Temperature != 0.1 || gotReq.GenerationConfig.MaxOutputTokens != 1024 {
		t.Errorf("generation config = %+v", gotReq.GenerationConfig)
	}
}

func TestGeminiClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperr.Code
	}{
		{"quota", http.StatusTooManyRequests, `{"error":{"message":"Resource exhausted"}}`, apperr.CodeQuotaExceeded},
		{"bad key", http.StatusBadRequest, `{"error":{"message":"API key not valid. API_KEY_INVALID"}}`, apperr.CodeInvalidCredentials},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad"}}`, apperr.CodeUpstream},
		{"server", http.StatusInternalServerError, `oops`, apperr.CodeUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()
			c := NewGeminiClient("k", "", srv.URL+"/{model}", nil)
			_, err := c.Extract(context.Background(), []byte("x"), "image/png")
			code, ok := apperr.ExternalCode(err)
			if !ok || code != tt.want {
				t.Errorf("got %v (%q) want %q", err, code, tt.want)
			}
		})
	}
}

func TestGeminiClient_MissingKey(t *testing.T) {
	c := NewGeminiClient("", "", "", nil)
	_, err := c.Extract(context.Background(), []byte("x"), "image/png")
	if code, _ := apperr.ExternalCode(err); code != apperr.CodeInvalidCredentials {
		t.Errorf("got %v want INVALID_CREDENTIALS", err)
	}
}

func TestDecodePayslips(t *testing.T) {
	got, err := DecodePayslips(`[{"nome_completo":"A B","mese":"01/2024"},{"nome_completo":"A B","mese":"02/2024"}]`)
	if err != nil || len(got) != 2 {
		t.Fatalf("array: %v %d", err, len(got))
	}
	if _, err := DecodePayslips("nessun dato"); err == nil {
		t.Errorf("expected error without JSON")
	}
}
