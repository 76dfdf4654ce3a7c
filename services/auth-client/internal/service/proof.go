package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"time"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/metrics"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/zklogin"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/resilience"
)

// ProofService fetches a fresh proof for every signature
type ProofService struct {
	requester domain.ProofRequester
	retry     *resilience.RetryConfig
	logger    *logging.Logger
}

// NewProofService wraps requester; a nil requester means no prover URL was configured
func NewProofService(requester domain.ProofRequester, maxAttempts int, logger *logging.Logger) *ProofService {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = maxAttempts
	retry.RetryableErrors = domain.IsRetryable
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.WithError(err).WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("Proof request failed, retrying")
	}
	return &ProofService{requester: requester, retry: retry, logger: logger}
}

// BuildRequest recomputes the nonce from the stored key material and refuses
// to build a request when it no longer matches the token.
func (p *ProofService) BuildRequest(ctx context.Context, account *domain.Account) (*domain.ProofRequest, error) {
	kp, err := zklogin.ParseEphemeralKeyPair(account.EphemeralPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSession, err)
	}
	nonce, err := zklogin.ComputeNonce(kp.SuiPublicKey(), account.MaxEpoch, account.Randomness)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSession, err)
	}

	tokenNonce := rawTokenNonce(account.JWTToken)
	p.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"computed_nonce": nonce,
		"token_nonce":    tokenNonce,
		"max_epoch":      account.MaxEpoch,
	}).Debug("Recomputed nonce before proof request")

	if subtle.ConstantTimeCompare([]byte(nonce), []byte(tokenNonce)) != 1 {
		p.logger.WithContext(ctx).Security("proof_nonce_mismatch", "high", map[string]interface{}{
			"computed_nonce": nonce,
			"token_nonce":    tokenNonce,
		})
		return nil, fmt.Errorf("%w: stored session does not match its token", domain.ErrNonceMismatch)
	}

	salt, err := SaltInt(account.Salt)
	if err != nil {
		return nil, err
	}

	return &domain.ProofRequest{
		JWT:                        account.JWTToken,
		ExtendedEphemeralPublicKey: kp.ExtendedPublicKey(),
		MaxEpoch:                   strconv.FormatUint(account.MaxEpoch, 10),
		JWTRandomness:              account.Randomness,
		Salt:                       salt.String(),
		KeyClaimName:               domain.ClaimName,
	}, nil
}

// GetProof never caches; network failures are retried, rejections are not
func (p *ProofService) GetProof(ctx context.Context, account *domain.Account) (*domain.ZkProof, error) {
	if p.requester == nil {
		return nil, domain.ConfigError("ZKLOGIN_PROVER_URL")
	}

	req, err := p.BuildRequest(ctx, account)
	if err != nil {
		return nil, err
	}

	p.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"jwt":            logging.RedactToken(req.JWT),
		"extended_pk":    req.ExtendedEphemeralPublicKey,
		"max_epoch":      req.MaxEpoch,
		"key_claim_name": req.KeyClaimName,
		"salt":           logging.Fingerprint(req.Salt),
	}).Debug("Requesting proof")

	var proof *domain.ZkProof
	start := time.Now()
	err = resilience.RetryWithConfig(ctx, p.retry, func(ctx context.Context) error {
		var callErr error
		proof, callErr = p.requester.RequestProof(ctx, req)
		return callErr
	})
	elapsed := time.Since(start)
	metrics.RecordProof(elapsed, err)
	p.logger.WithContext(ctx).Performance("prover.request", elapsed, map[string]interface{}{
		"success": err == nil,
	})

	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Proof request failed")
		return nil, err
	}
	return proof, nil
}
