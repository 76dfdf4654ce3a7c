package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSponsorshipDisabled = errors.New("sponsorship is not configured")
	ErrInvalidRequest      = errors.New("invalid sponsorship request")
	ErrQuotaExceeded       = errors.New("sender sponsorship quota exceeded")
	ErrUpstreamRejected    = errors.New("sponsor api rejected request")
	ErrUpstreamUnavailable = errors.New("sponsor api unavailable")
)

// InvalidField names the offending request field
func InvalidField(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Is(target error) bool { return target == ErrInvalidRequest }

// UpstreamError is a non-2xx answer from the sponsor API
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("sponsor api returned %d: %s", e.StatusCode, e.Message)
}

// Is treats 4xx as rejections and everything else as unavailability
func (e *UpstreamError) Is(target error) bool {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return target == ErrUpstreamRejected
	}
	return target == ErrUpstreamUnavailable
}
