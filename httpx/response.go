// Package httpx writes JSON responses and maps domain errors to HTTP statuses.
package httpx

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Scan360AI/rnd-credit-manager/i18n"
	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	json "github.com/goccy/go-json"
)

// MaxBodySize caps JSON request bodies.
const MaxBodySize = 20 << 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// Status maps an error onto its HTTP status and error code.
func Status(err error) (int, string) {
	var v *apperr.ValidationError
	var nf *apperr.NotFoundError
	switch {
	case errors.As(err, &v):
		return http.StatusBadRequest, "validation_failed"
	case errors.As(err, &nf):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrCannotRemoveLastMonth):
		return http.StatusConflict, apperr.ErrCannotRemoveLastMonth.Error()
	}
	if code, ok := apperr.ExternalCode(err); ok {
		switch code {
		case apperr.CodeQuotaExceeded, apperr.CodeDailyQuotaExceeded:
			return http.StatusTooManyRequests, string(code)
		case apperr.CodeDisabled:
			return http.StatusServiceUnavailable, string(code)
		}
		return http.StatusBadGateway, string(code)
	}
	return http.StatusInternalServerError, "internal_error"
}

// Error writes err as an ErrorResponse, translated for the request language.
// Internal errors are logged and never echoed.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Status(err)
	lang := i18n.DetectLanguage(r.Header.Get("Accept-Language"))
	resp := ErrorResponse{Error: code, Message: i18n.T(lang, code)}
	var v *apperr.ValidationError
	switch {
	case errors.As(err, &v):
		resp.Details = map[string]string{v.Field: v.Reason}
	case status == http.StatusInternalServerError:
		slog.Error("http:internal-error", slog.String("path", r.URL.Path), slog.String("err", err.Error()))
	default:
		resp.Details = err.Error()
	}
	JSON(w, status, resp)
}

// Decode reads a JSON body into dst. Malformed bodies become validation errors.
func Decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize))
	if err != nil {
		return apperr.Invalid("body", "unreadable")
	}
	if len(body) == 0 {
		return apperr.Invalid("body", "required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Invalid("body", "malformed JSON")
	}
	return nil
}
