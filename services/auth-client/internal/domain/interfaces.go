package domain

import (
	"context"
	"time"
)

// KeyValueStore is the persistence port for login state.
// Get returns ErrKeyNotFound for absent or expired keys. A ttl of zero never expires.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// ChainClient talks to the blockchain network
type ChainClient interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
	ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (*TransactionResult, error)
	GetBalance(ctx context.Context, owner Address) (*Balance, error)
}

// ProofRequester calls the remote proving service
type ProofRequester interface {
	RequestProof(ctx context.Context, req *ProofRequest) (*ZkProof, error)
}

// SaltProvider returns the canonical per-subject salt
type SaltProvider interface {
	Salt(ctx context.Context, claims IdentityClaims) (string, error)
}

// AddressDeriver computes an address from identity claims and a salt.
// Callers must have verified the token nonce first.
type AddressDeriver interface {
	DeriveAddress(claims IdentityClaims, salt string) (Address, error)
}

// SponsorClient talks to the gas-sponsorship proxy
type SponsorClient interface {
	Sponsor(ctx context.Context, req *SponsorRequest) (*SponsoredTransaction, error)
	Execute(ctx context.Context, digest, signature string) (*TransactionResult, error)
}
