package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"network proof failure", &ProofServiceError{Retryable: true, Cause: errors.New("dial")}, true},
		{"prover 500", &ProofServiceError{StatusCode: 500, Body: "boom"}, false},
		{"expired session", fmt.Errorf("sign: %w", ErrSessionExpired), false},
		{"rpc timeout", fmt.Errorf("epoch: %w", context.DeadlineExceeded), true},
		{"rejected tx", &TransactionRejectedError{Digest: "abc", Reason: "InsufficientGas"}, false},
		{"token not found", ErrTokenNotFound, true},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	denied := fmt.Errorf("callback: %w", &ProviderDeniedError{Code: "access_denied"})
	assert.ErrorIs(t, denied, ErrProviderDenied)
	assert.NotErrorIs(t, denied, ErrTokenNotFound)

	var pd *ProviderDeniedError
	assert.True(t, errors.As(denied, &pd))
	assert.Equal(t, "access_denied", pd.Code)

	assert.ErrorIs(t, &ProofServiceError{StatusCode: 400}, ErrProofRejected)
	assert.ErrorIs(t, &ProofServiceError{Retryable: true}, ErrProofUnavailable)
	assert.ErrorIs(t, &TransactionRejectedError{}, ErrTransactionRejected)
	assert.ErrorIs(t, ConfigError("ZKLOGIN_CLIENT_ID"), ErrConfiguration)
}

func TestAccountExpired(t *testing.T) {
	acc := &Account{ExpiresAt: 1_000}
	assert.True(t, acc.Expired(acc.ExpiresAtTime()))
	assert.False(t, acc.Expired(acc.ExpiresAtTime().Add(-1)))
}

func TestLoginState_Terminal(t *testing.T) {
	assert.True(t, StateAuthenticated.Terminal())
	assert.True(t, StateFailedDenied.Terminal())
	assert.True(t, StateFailedNonce.Terminal())
	assert.False(t, StateIdle.Terminal())
	assert.False(t, StateAwaitingRedirect.Terminal())
}
