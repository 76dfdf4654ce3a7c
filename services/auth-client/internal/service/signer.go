package service

import (
	"context"
	"fmt"
	"time"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/metrics"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/zklogin"
	"github.com/quangdang46/talent-passport/shared/logging"
)

// TransactionSigner produces a new composite signature per call.
// The account is treated as read-only so concurrent signs are safe.
type TransactionSigner struct {
	proofs *ProofService
	logger *logging.Logger
	now    func() time.Time
}

func NewTransactionSigner(proofs *ProofService, logger *logging.Logger, now func() time.Time) *TransactionSigner {
	if now == nil {
		now = time.Now
	}
	return &TransactionSigner{proofs: proofs, logger: logger, now: now}
}

func (s *TransactionSigner) Sign(ctx context.Context, txBytes []byte, account *domain.Account) (*domain.CompositeSignature, error) {
	if account.Expired(s.now()) {
		metrics.RecordSignature("expired")
		return nil, fmt.Errorf("%w at %s", domain.ErrSessionExpired, account.ExpiresAtTime().UTC().Format(time.RFC3339))
	}
	if len(txBytes) == 0 {
		return nil, fmt.Errorf("transaction bytes are empty")
	}

	// 1. ephemeral signature over the intent digest
	kp, err := zklogin.ParseEphemeralKeyPair(account.EphemeralPrivateKey)
	if err != nil {
		metrics.RecordSignature("failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSession, err)
	}
	userSignature := kp.SignTransaction(txBytes)

	// 2. fresh proof
	proof, err := s.proofs.GetProof(ctx, account)
	if err != nil {
		metrics.RecordSignature("failed")
		return nil, err
	}

	// 3. address seed
	seed, err := addressSeed(account.Salt, account.Sub, account.Aud)
	if err != nil {
		metrics.RecordSignature("failed")
		return nil, err
	}

	// 4. combine
	serialized, err := zklogin.SerializeSignature(proof, seed.String(), account.MaxEpoch, userSignature)
	if err != nil {
		metrics.RecordSignature("failed")
		return nil, fmt.Errorf("failed to serialize signature: %w", err)
	}

	metrics.RecordSignature("signed")
	s.logger.WithContext(ctx).Audit("transaction_signed", map[string]interface{}{
		"address":   account.Address,
		"max_epoch": account.MaxEpoch,
		"tx_digest": fmt.Sprintf("%x", zklogin.TransactionSigningDigest(txBytes)),
	})

	return &domain.CompositeSignature{
		Signature:   serialized,
		AddressSeed: seed.String(),
		MaxEpoch:    account.MaxEpoch,
	}, nil
}
