package service

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/config"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/metrics"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/zklogin"
	"github.com/quangdang46/talent-passport/shared/logging"
)

// Deps are the collaborators of the login flow. Chain and Sponsor may be nil
// when the commands that need them are not used.
type Deps struct {
	Config    *config.Config
	Durable   domain.KeyValueStore
	Ephemeral domain.KeyValueStore
	Chain     domain.ChainClient
	Prover    domain.ProofRequester
	Salts     domain.SaltProvider
	Deriver   domain.AddressDeriver
	Sponsor   domain.SponsorClient
	Logger    *logging.Logger
	Rand      io.Reader
	Now       func() time.Time
}

type Service struct {
	cfg       *config.Config
	keys      *EphemeralKeyManager
	binder    *NonceBinder
	extractor *TokenExtractor
	capture   *TokenCapture
	sessions  *SessionStore
	salts     domain.SaltProvider
	deriver   domain.AddressDeriver
	signer    *TransactionSigner
	chain     domain.ChainClient
	sponsor   domain.SponsorClient
	logger    *logging.Logger
	now       func() time.Time
}

var _ domain.AuthClient = (*Service)(nil)

func NewAuthService(deps Deps) (*Service, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("%w: config is required", domain.ErrConfiguration)
	}
	if deps.Durable == nil || deps.Ephemeral == nil {
		return nil, fmt.Errorf("%w: storage is required", domain.ErrConfiguration)
	}
	if deps.Salts == nil || deps.Deriver == nil {
		return nil, fmt.Errorf("%w: salt provider and deriver are required", domain.ErrConfiguration)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	capture := &TokenCapture{}
	proofs := NewProofService(deps.Prover, deps.Config.Prover.MaxAttempts, deps.Logger)

	return &Service{
		cfg:    deps.Config,
		keys:   NewEphemeralKeyManager(deps.Rand),
		binder: NewNonceBinder(deps.Config.Provider),
		extractor: NewTokenExtractor(
			CapturedTokenStrategy(capture),
			StoredTokenStrategy(deps.Ephemeral),
			FragmentStrategy(),
			QueryStrategy(),
		),
		capture:  capture,
		sessions: NewSessionStore(deps.Durable, deps.Ephemeral, deps.Logger, deps.Now),
		salts:    deps.Salts,
		deriver:  deps.Deriver,
		signer:   NewTransactionSigner(proofs, deps.Logger, deps.Now),
		chain:    deps.Chain,
		sponsor:  deps.Sponsor,
		logger:   deps.Logger,
		now:      deps.Now,
	}, nil
}

// BeginLogin reads the current epoch from the network and prepares a login attempt
func (s *Service) BeginLogin(ctx context.Context) (*domain.LoginStart, error) {
	if err := s.binder.Configured(); err != nil {
		return nil, err
	}
	if s.chain == nil {
		return nil, domain.ConfigError("SUI_RPC_URL")
	}
	epoch, err := s.chain.CurrentEpoch(ctx)
	if err != nil {
		metrics.RecordLoginStep("begin", "error")
		return nil, fmt.Errorf("failed to read current epoch: %w", err)
	}
	return s.BeginLoginAtEpoch(ctx, epoch)
}

// BeginLoginAtEpoch prepares a login attempt valid until epoch + offset.
// Any previous pending attempt is overwritten and can no longer complete.
func (s *Service) BeginLoginAtEpoch(ctx context.Context, currentEpoch uint64) (*domain.LoginStart, error) {
	// Fail before generating anything if the provider is unusable
	if err := s.binder.Configured(); err != nil {
		return nil, err
	}

	material, err := s.keys.Generate(currentEpoch + s.cfg.Sui.MaxEpochOffset)
	if err != nil {
		metrics.RecordLoginStep("begin", "error")
		return nil, err
	}
	nonce, err := material.Nonce()
	if err != nil {
		metrics.RecordLoginStep("begin", "error")
		return nil, fmt.Errorf("failed to compute nonce: %w", err)
	}

	attemptID := logging.GenerateAttemptID()
	ctx = logging.WithAttemptID(ctx, attemptID)

	pending := &domain.PendingLogin{
		AttemptID:           attemptID,
		Randomness:          material.Randomness,
		MaxEpoch:            material.MaxEpoch,
		EphemeralPrivateKey: material.KeyPair.Export(),
		Nonce:               nonce,
		CreatedAt:           s.now(),
	}

	// Drop a token captured for an older attempt before the new one is stored
	s.capture.Clear()
	if err := s.sessions.ClearEphemeral(ctx); err != nil {
		return nil, err
	}
	if err := s.sessions.SavePending(ctx, pending, s.cfg.Storage.PendingTTL); err != nil {
		return nil, err
	}

	authURL, err := s.binder.AuthURL(attemptID, nonce)
	if err != nil {
		return nil, err
	}

	metrics.RecordLoginStep("begin", "success")
	s.logger.WithContext(ctx).Audit("login_started", map[string]interface{}{
		"provider":  s.cfg.Provider.Name,
		"nonce":     nonce,
		"max_epoch": material.MaxEpoch,
	})

	return &domain.LoginStart{
		AttemptID: attemptID,
		State:     domain.StateAwaitingRedirect,
		AuthURL:   authURL,
		Nonce:     nonce,
		MaxEpoch:  material.MaxEpoch,
	}, nil
}

// CaptureToken records a token at the earliest moment the callback is seen
func (s *Service) CaptureToken(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return domain.ErrTokenNotFound
	}
	s.capture.Set(rawToken)
	if err := s.sessions.SaveCapturedToken(ctx, rawToken, s.cfg.Storage.PendingTTL); err != nil {
		return fmt.Errorf("failed to store captured token: %w", err)
	}
	s.logger.WithContext(ctx).WithField("token", logging.RedactToken(rawToken)).Debug("Captured identity token")
	return nil
}

// HandleCallback extracts the token from a redirect and completes the login.
// ErrTokenNotFound leaves any existing session untouched.
func (s *Service) HandleCallback(ctx context.Context, callbackURL string) (*domain.LoginResult, error) {
	var callback *url.URL
	if callbackURL != "" {
		u, err := url.Parse(callbackURL)
		if err != nil {
			return &domain.LoginResult{State: domain.StateIdle}, fmt.Errorf("invalid callback url: %w", err)
		}
		callback = u
	}

	raw, strategy, err := s.extractor.Extract(ctx, callback)
	if err != nil {
		log := s.logger.WithContext(ctx).WithError(err)
		var denied *domain.ProviderDeniedError
		if errors.As(err, &denied) {
			metrics.RecordLoginStep("extract", "denied")
			if clearErr := s.sessions.ClearEphemeral(ctx); clearErr != nil {
				log.WithField("clear_error", clearErr.Error()).Warn("Failed to clear pending login")
			}
			s.logger.WithContext(ctx).Audit("login_failed", map[string]interface{}{
				"reason": "provider_denied",
				"code":   denied.Code,
			})
			return &domain.LoginResult{State: domain.StateFailedDenied}, err
		}
		metrics.RecordLoginStep("extract", "not_found")
		log.Info("No identity token in callback")
		return &domain.LoginResult{State: domain.StateIdle}, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"strategy": strategy,
		"token":    logging.RedactToken(raw),
	}).Debug("Identity token extracted")
	metrics.RecordLoginStep("extract", "success")

	return s.HandleToken(ctx, raw)
}

// HandleToken verifies the nonce before anything is derived or stored.
// A rejected token is dropped from the capture so a later callback can succeed.
func (s *Service) HandleToken(ctx context.Context, rawToken string) (result *domain.LoginResult, err error) {
	defer func() {
		if err != nil {
			s.dropCapturedToken(ctx)
		}
	}()

	token, err := ParseIdentityToken(rawToken, s.binder.ClientID(), s.now())
	if err != nil {
		metrics.RecordLoginStep("parse", "error")
		return &domain.LoginResult{State: domain.StateIdle}, err
	}

	pending, err := s.sessions.LoadPending(ctx)
	if err != nil {
		metrics.RecordLoginStep("pending", "error")
		return &domain.LoginResult{State: domain.StateIdle}, err
	}
	ctx = logging.WithAttemptID(ctx, pending.AttemptID)

	// Nonce check must precede derivation and persistence
	if subtle.ConstantTimeCompare([]byte(token.Claims.Nonce), []byte(pending.Nonce)) != 1 {
		metrics.RecordNonceCheck(false)
		if clearErr := s.sessions.ClearEphemeral(ctx); clearErr != nil {
			s.logger.WithContext(ctx).WithError(clearErr).Error("Failed to clear ephemeral state after nonce mismatch")
		}
		s.capture.Clear()
		s.logger.WithContext(ctx).Security("nonce_mismatch", "high", map[string]interface{}{
			"expected_nonce": pending.Nonce,
			"token_nonce":    token.Claims.Nonce,
			"sub":            token.Claims.Subject,
		})
		s.logger.WithContext(ctx).Audit("login_failed", map[string]interface{}{"reason": "nonce_mismatch"})
		return &domain.LoginResult{State: domain.StateFailedNonce}, domain.ErrNonceMismatch
	}
	metrics.RecordNonceCheck(true)

	salt, err := s.salts.Salt(ctx, token.Claims)
	if err != nil {
		metrics.RecordLoginStep("derive", "error")
		return &domain.LoginResult{State: domain.StateIdle}, fmt.Errorf("failed to obtain salt: %w", err)
	}
	if !ValidSalt(salt) {
		metrics.RecordLoginStep("derive", "error")
		return &domain.LoginResult{State: domain.StateIdle}, fmt.Errorf("%w: salt provider returned a non-canonical salt", domain.ErrInvalidSession)
	}

	address, err := s.deriver.DeriveAddress(token.Claims, salt)
	if err != nil {
		metrics.RecordLoginStep("derive", "error")
		return &domain.LoginResult{State: domain.StateIdle}, fmt.Errorf("failed to derive address: %w", err)
	}

	account := &domain.Account{
		Address:             address,
		Provider:            s.cfg.Provider.Name,
		Email:               token.Claims.Email,
		Name:                token.Claims.Name,
		Picture:             token.Claims.Picture,
		Sub:                 token.Claims.Subject,
		Aud:                 token.Claims.Audience,
		Iss:                 zklogin.NormalizeIssuer(token.Claims.Issuer),
		JWTToken:            rawToken,
		Salt:                salt,
		EphemeralPrivateKey: pending.EphemeralPrivateKey,
		Randomness:          pending.Randomness,
		MaxEpoch:            pending.MaxEpoch,
		ExpiresAt:           token.Claims.ExpiresAt.UnixMilli(),
	}

	if err := s.sessions.Save(ctx, account); err != nil {
		metrics.RecordLoginStep("persist", "error")
		return &domain.LoginResult{State: domain.StateIdle}, err
	}

	s.capture.Clear()
	if err := s.sessions.ClearEphemeral(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to delete pending login after success")
	}

	metrics.RecordLoginStep("complete", "success")
	s.logger.WithContext(logging.WithAddress(ctx, address)).Audit("login_completed", map[string]interface{}{
		"provider":   account.Provider,
		"sub":        account.Sub,
		"expires_at": account.ExpiresAtTime().UTC().Format(time.RFC3339),
	})

	return &domain.LoginResult{State: domain.StateAuthenticated, Account: account}, nil
}

func (s *Service) dropCapturedToken(ctx context.Context) {
	s.capture.Clear()
	if err := s.sessions.ClearCapturedToken(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to drop rejected identity token")
	}
}

// CurrentAccount returns the validated session or ErrNoSession
func (s *Service) CurrentAccount(ctx context.Context) (*domain.Account, error) {
	return s.sessions.Load(ctx)
}

// Logout removes every key of the login flow
func (s *Service) Logout(ctx context.Context) error {
	s.capture.Clear()
	if err := s.sessions.Clear(ctx); err != nil {
		return err
	}
	s.logger.WithContext(ctx).Audit("session_cleared", nil)
	return nil
}

func (s *Service) SignTransaction(ctx context.Context, txBytes []byte) (*domain.CompositeSignature, error) {
	account, err := s.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	sig, err := s.signer.Sign(logging.WithAddress(ctx, account.Address), txBytes, account)
	if errors.Is(err, domain.ErrNonceMismatch) {
		if clearErr := s.sessions.Clear(ctx); clearErr != nil {
			s.logger.WithContext(ctx).WithError(clearErr).Warn("Failed to clear corrupted session")
		}
	}
	return sig, err
}

// ExecuteTransaction signs and submits; rejections are never retried
func (s *Service) ExecuteTransaction(ctx context.Context, txBytes []byte) (*domain.TransactionResult, error) {
	if s.chain == nil {
		return nil, domain.ConfigError("SUI_RPC_URL")
	}
	sig, err := s.SignTransaction(ctx, txBytes)
	if err != nil {
		return nil, err
	}
	return s.chain.ExecuteTransaction(ctx, txBytes, []string{sig.Signature})
}

// ExecuteSponsored has the proxy wrap kind bytes with gas, signs the result and executes it
func (s *Service) ExecuteSponsored(ctx context.Context, txKindBytes []byte) (*domain.TransactionResult, error) {
	if s.sponsor == nil {
		return nil, domain.ConfigError("SPONSOR_PROXY_URL")
	}
	account, err := s.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if account.Expired(s.now()) {
		return nil, domain.ErrSessionExpired
	}
	ctx = logging.WithAddress(ctx, account.Address)

	sponsored, err := s.sponsor.Sponsor(ctx, &domain.SponsorRequest{
		TransactionData: base64.StdEncoding.EncodeToString(txKindBytes),
		Sender:          account.Address,
		Network:         s.cfg.Sui.Network,
	})
	if err != nil {
		return nil, err
	}

	txBytes, err := base64.StdEncoding.DecodeString(sponsored.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: sponsored bytes are not base64", domain.ErrSponsorUnavailable)
	}

	sig, err := s.signer.Sign(ctx, txBytes, account)
	if err != nil {
		return nil, err
	}

	result, err := s.sponsor.Execute(ctx, sponsored.Digest, sig.Signature)
	if err != nil {
		return nil, err
	}
	s.logger.WithContext(ctx).Audit("sponsorship_executed", map[string]interface{}{"digest": result.Digest})
	return result, nil
}

// Balance reads the session owner's SUI balance
func (s *Service) Balance(ctx context.Context) (*domain.Balance, error) {
	if s.chain == nil {
		return nil, domain.ConfigError("SUI_RPC_URL")
	}
	account, err := s.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.chain.GetBalance(ctx, account.Address)
}

// RecomputeNonce recomputes the current session's nonce from its stored material
func (s *Service) RecomputeNonce(ctx context.Context) (string, error) {
	account, err := s.sessions.Load(ctx)
	if err != nil {
		return "", err
	}
	material, err := s.keys.Restore(account.EphemeralPrivateKey, account.Randomness, account.MaxEpoch)
	if err != nil {
		return "", err
	}
	return material.Nonce()
}
