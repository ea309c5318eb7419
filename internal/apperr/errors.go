// Package apperr defines the error taxonomy shared by the engine, the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies an external-service failure class.
type Code string

const (
	CodeQuotaExceeded      Code = "QUOTA_EXCEEDED"
	CodeDailyQuotaExceeded Code = "DAILY_QUOTA_EXCEEDED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeUpstream           Code = "UPSTREAM"
	CodeDisabled           Code = "AI_DISABLED"
)

var ErrCannotRemoveLastMonth = errors.New("cannot_remove_last_month")

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports an unknown or deleted entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ExternalServiceError wraps a failure of a collaborator such as the extraction API.
type ExternalServiceError struct {
	Service string
	Code    Code
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Service, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Service)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func External(service string, code Code, err error) error {
	return &ExternalServiceError{Service: service, Code: code, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ExternalCode returns the code of the first ExternalServiceError in the chain.
func ExternalCode(err error) (Code, bool) {
	var ext *ExternalServiceError
	if errors.As(err, &ext) {
		return ext.Code, true
	}
	return "", false
}

// IsQuota reports whether err is a per-minute or daily quota failure.
func IsQuota(err error) bool {
	code, ok := ExternalCode(err)
	return ok && (code == CodeQuotaExceeded || code == CodeDailyQuotaExceeded)
}
