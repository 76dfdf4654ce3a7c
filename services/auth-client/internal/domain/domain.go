package domain

import (
	"context"
	"time"
)

type Address = string
type AttemptID = string

// ClaimName is the identity claim the address is bound to
const ClaimName = "sub"

// LoginState is a state of the login state machine
type LoginState string

const (
	StateIdle             LoginState = "IDLE"
	StateAwaitingRedirect LoginState = "AWAITING_REDIRECT"
	StateAuthenticated    LoginState = "AUTHENTICATED"
	StateFailedDenied     LoginState = "FAILED_DENIED"
	StateFailedNonce      LoginState = "FAILED_NONCE_MISMATCH"
)

// Terminal reports whether the login attempt is over
func (s LoginState) Terminal() bool {
	switch s {
	case StateAuthenticated, StateFailedDenied, StateFailedNonce:
		return true
	}
	return false
}

// PendingLogin is the record that carries one login attempt across the redirect.
// Only one exists at a time; a new attempt overwrites it.
type PendingLogin struct {
	AttemptID           AttemptID `json:"attemptId"`
	Randomness          string    `json:"randomness"`
	MaxEpoch            uint64    `json:"maxEpoch"`
	EphemeralPrivateKey string    `json:"ephemeralPrivateKey"`
	Nonce               string    `json:"nonce"`
	CreatedAt           time.Time `json:"createdAt"`
}

// IdentityClaims are the structural claims read from an identity token.
// The token signature is not verified locally; the prover is the trust boundary.
type IdentityClaims struct {
	Issuer    string
	Subject   string
	Audience  string
	Nonce     string
	ExpiresAt time.Time
	Email     string
	Name      string
	Picture   string
}

type IdentityToken struct {
	Raw    string
	Claims IdentityClaims
}

// Account is the persisted session. It is only ever written whole.
type Account struct {
	Address             Address `json:"address"`
	Provider            string  `json:"provider"`
	Email               string  `json:"email,omitempty"`
	Name                string  `json:"name,omitempty"`
	Picture             string  `json:"picture,omitempty"`
	Sub                 string  `json:"sub"`
	Aud                 string  `json:"aud"`
	Iss                 string  `json:"iss"`
	JWTToken            string  `json:"jwtToken"`
	Salt                string  `json:"salt"`
	EphemeralPrivateKey string  `json:"ephemeralPrivateKey"`
	Randomness          string  `json:"randomness"`
	MaxEpoch            uint64  `json:"maxEpoch"`
	ExpiresAt           int64   `json:"expiresAt"` // unix ms
}

// Expired reports whether now is at or past the session expiry
func (a *Account) Expired(now time.Time) bool {
	return now.UnixMilli() >= a.ExpiresAt
}

// ExpiresAtTime returns the expiry as a time.Time
func (a *Account) ExpiresAtTime() time.Time {
	return time.UnixMilli(a.ExpiresAt)
}

type LoginResult struct {
	State   LoginState
	Account *Account
}

// LoginStart is returned when a login attempt has been prepared
type LoginStart struct {
	AttemptID AttemptID
	State     LoginState
	AuthURL   string
	Nonce     string
	MaxEpoch  uint64
}

// ProofRequest is the payload sent to the proving service
type ProofRequest struct {
	JWT                        string `json:"jwt"`
	ExtendedEphemeralPublicKey string `json:"extendedEphemeralPublicKey"`
	MaxEpoch                   string `json:"maxEpoch"`
	JWTRandomness              string `json:"jwtRandomness"`
	Salt                       string `json:"salt"`
	KeyClaimName               string `json:"keyClaimName"`
}

// ProofPoints are decimal field elements as returned by the prover
type ProofPoints struct {
	A []string   `json:"a"`
	B [][]string `json:"b"`
	C []string   `json:"c"`
}

type IssBase64Details struct {
	Value     string `json:"value"`
	IndexMod4 uint8  `json:"indexMod4"`
}

// ZkProof is the prover response. It is consumed by exactly one signature.
type ZkProof struct {
	ProofPoints      ProofPoints      `json:"proofPoints"`
	IssBase64Details IssBase64Details `json:"issBase64Details"`
	HeaderBase64     string           `json:"headerBase64"`
}

// CompositeSignature is the serialized zkLogin signature for one transaction
type CompositeSignature struct {
	Signature   string // base64, flag-prefixed
	AddressSeed string
	MaxEpoch    uint64
}

// TransactionResult is what the network reports after execution
type TransactionResult struct {
	Digest string `json:"digest"`
	Status string `json:"status"`
}

// Balance is a coin balance owned by an address
type Balance struct {
	CoinType     string `json:"coinType"`
	TotalBalance string `json:"totalBalance"`
	ObjectCount  int    `json:"coinObjectCount"`
}

// SponsoredTransaction is returned by the sponsorship proxy
type SponsoredTransaction struct {
	Bytes  string `json:"bytes"`
	Digest string `json:"digest"`
}

type SponsorRequest struct {
	TransactionData string `json:"transactionData"`
	Sender          string `json:"sender"`
	Network         string `json:"network"`
}

// AuthClient is the full login and signing flow
type AuthClient interface {
	BeginLogin(ctx context.Context) (*LoginStart, error)
	CaptureToken(ctx context.Context, rawToken string) error
	HandleCallback(ctx context.Context, callbackURL string) (*LoginResult, error)
	HandleToken(ctx context.Context, rawToken string) (*LoginResult, error)
	CurrentAccount(ctx context.Context) (*Account, error)
	Logout(ctx context.Context) error
	SignTransaction(ctx context.Context, txBytes []byte) (*CompositeSignature, error)
	ExecuteTransaction(ctx context.Context, txBytes []byte) (*TransactionResult, error)
	ExecuteSponsored(ctx context.Context, txKindBytes []byte) (*TransactionResult, error)
}
