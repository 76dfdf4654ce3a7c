package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/metrics"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/zklogin"
	"github.com/quangdang46/talent-passport/shared/logging"
)

// Storage keys used by the login flow
const (
	keySession       = "session"
	keyPending       = "pending"
	keyCapturedToken = "captured_token"
)

var loginKeys = []string{keySession, keyPending, keyCapturedToken}

// SessionStore persists the account in durable storage and the pending login
// and captured token in short-lived storage.
type SessionStore struct {
	durable   domain.KeyValueStore
	ephemeral domain.KeyValueStore
	logger    *logging.Logger
	now       func() time.Time
}

func NewSessionStore(durable, ephemeral domain.KeyValueStore, logger *logging.Logger, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{durable: durable, ephemeral: ephemeral, logger: logger, now: now}
}

// Save writes the whole account
func (s *SessionStore) Save(ctx context.Context, account *domain.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.durable.Set(ctx, keySession, data, 0); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	metrics.SetSessionActive(true)
	return nil
}

// Load returns the stored account or ErrNoSession. Malformed, non-canonical
// or expired sessions are cleared before returning ErrNoSession; an expired
// one also matches ErrSessionExpired.
func (s *SessionStore) Load(ctx context.Context) (*domain.Account, error) {
	data, err := s.durable.Get(ctx, keySession)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, domain.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var account domain.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, s.discard(ctx, "malformed", err)
	}
	if !ValidSalt(account.Salt) {
		return nil, s.discard(ctx, "non_canonical_salt", nil)
	}
	if !zklogin.IsValidAddress(account.Address) {
		return nil, s.discard(ctx, "invalid_address", nil)
	}
	if account.Expired(s.now()) {
		_ = s.discard(ctx, "expired", nil)
		return nil, fmt.Errorf("%w: %w", domain.ErrNoSession, domain.ErrSessionExpired)
	}

	metrics.SetSessionActive(true)
	return &account, nil
}

func (s *SessionStore) discard(ctx context.Context, reason string, cause error) error {
	log := s.logger.WithContext(ctx).WithField("reason", reason)
	if cause != nil {
		log = log.WithError(cause)
	}
	log.Warn("Discarding stored session")

	if err := s.Clear(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to clear discarded session")
	}
	return domain.ErrNoSession
}

// Clear removes every login key from both stores
func (s *SessionStore) Clear(ctx context.Context) error {
	var errs []error
	if err := s.durable.Delete(ctx, loginKeys...); err != nil {
		errs = append(errs, err)
	}
	if s.ephemeral != s.durable {
		if err := s.ephemeral.Delete(ctx, loginKeys...); err != nil {
			errs = append(errs, err)
		}
	}
	metrics.SetSessionActive(false)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// SavePending overwrites any previous attempt
func (s *SessionStore) SavePending(ctx context.Context, pending *domain.PendingLogin, ttl time.Duration) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to encode pending login: %w", err)
	}
	if err := s.ephemeral.Set(ctx, keyPending, data, ttl); err != nil {
		return fmt.Errorf("failed to save pending login: %w", err)
	}
	return nil
}

func (s *SessionStore) LoadPending(ctx context.Context) (*domain.PendingLogin, error) {
	data, err := s.ephemeral.Get(ctx, keyPending)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, domain.ErrNoPendingLogin
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending login: %w", err)
	}

	var pending domain.PendingLogin
	if err := json.Unmarshal(data, &pending); err != nil {
		_ = s.ephemeral.Delete(ctx, keyPending)
		return nil, fmt.Errorf("%w: pending record is malformed", domain.ErrNoPendingLogin)
	}
	return &pending, nil
}

// ClearEphemeral drops the pending attempt and any captured token
func (s *SessionStore) ClearEphemeral(ctx context.Context) error {
	return s.ephemeral.Delete(ctx, keyPending, keyCapturedToken)
}

// SaveCapturedToken stores a token grabbed by the callback listener
func (s *SessionStore) SaveCapturedToken(ctx context.Context, raw string, ttl time.Duration) error {
	return s.ephemeral.Set(ctx, keyCapturedToken, []byte(raw), ttl)
}

// ClearCapturedToken drops a captured token but keeps the pending attempt
func (s *SessionStore) ClearCapturedToken(ctx context.Context) error {
	return s.ephemeral.Delete(ctx, keyCapturedToken)
}
