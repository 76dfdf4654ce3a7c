package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrConfiguration       = errors.New("configuration error")
	ErrProviderDenied      = errors.New("identity provider denied login")
	ErrNonceMismatch       = errors.New("token nonce does not match pending login")
	ErrTokenNotFound       = errors.New("identity token not found in callback")
	ErrProofUnavailable    = errors.New("proof service unavailable")
	ErrProofRejected       = errors.New("proof service rejected request")
	ErrSessionExpired      = errors.New("session expired")
	ErrTransactionRejected = errors.New("transaction rejected by network")
	ErrNoPendingLogin      = errors.New("no pending login")
	ErrInvalidToken        = errors.New("invalid identity token")
	ErrInvalidSession      = errors.New("invalid session")
	ErrNoSession           = errors.New("not logged in")
	ErrKeyNotFound         = errors.New("key not found")
	ErrChainUnavailable    = errors.New("chain rpc unavailable")
	ErrSponsorUnavailable  = errors.New("sponsorship unavailable")
)

// ConfigError names the missing setting
func ConfigError(setting string) error {
	return fmt.Errorf("%w: %s is not set", ErrConfiguration, setting)
}

// ProviderDeniedError carries the provider's error parameters
type ProviderDeniedError struct {
	Code        string
	Description string
}

func (e *ProviderDeniedError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("identity provider denied login: %s", e.Code)
	}
	return fmt.Sprintf("identity provider denied login: %s: %s", e.Code, e.Description)
}

func (e *ProviderDeniedError) Is(target error) bool { return target == ErrProviderDenied }

// ProofServiceError describes a failed prover call
type ProofServiceError struct {
	StatusCode int
	Body       string
	Retryable  bool
	Cause      error
}

func (e *ProofServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("proof service unavailable: %v", e.Cause)
	}
	return fmt.Sprintf("cannot sign: proof service returned %d: %s", e.StatusCode, e.Body)
}

func (e *ProofServiceError) Is(target error) bool {
	if e.Retryable {
		return target == ErrProofUnavailable
	}
	return target == ErrProofRejected
}

func (e *ProofServiceError) Unwrap() error { return e.Cause }

// TransactionRejectedError carries the network's reason verbatim
type TransactionRejectedError struct {
	Digest string
	Reason string
}

func (e *TransactionRejectedError) Error() string {
	return fmt.Sprintf("transaction %s rejected: %s", e.Digest, e.Reason)
}

func (e *TransactionRejectedError) Is(target error) bool { return target == ErrTransactionRejected }

// IsRetryable reports whether repeating the same call may succeed.
// Expired sessions and rejections never are.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrProofRejected),
		errors.Is(err, ErrTransactionRejected),
		errors.Is(err, ErrNonceMismatch),
		errors.Is(err, ErrConfiguration):
		return false
	case errors.Is(err, ErrProofUnavailable),
		errors.Is(err, ErrChainUnavailable),
		errors.Is(err, ErrTokenNotFound),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}
