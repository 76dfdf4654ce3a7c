package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/config"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/infrastructure/storage"
)

const (
	testClientID = "client-123.apps.googleusercontent.com"
	testIssuer   = "https://accounts.google.com"
	testSecret   = "unit-test-salt-secret"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// MockProofRequester is a mock implementation of domain.ProofRequester
type MockProofRequester struct {
	mock.Mock
}

func (m *MockProofRequester) RequestProof(ctx context.Context, req *domain.ProofRequest) (*domain.ZkProof, error) {
	args := m.Called(ctx, req)
	if got := args.Get(0); got != nil {
		return got.(*domain.ZkProof), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAddressDeriver is a spy around the real deriver
type MockAddressDeriver struct {
	mock.Mock
}

func (m *MockAddressDeriver) DeriveAddress(claims domain.IdentityClaims, salt string) (domain.Address, error) {
	args := m.Called(claims, salt)
	return args.String(0), args.Error(1)
}

// MockChainClient is a mock implementation of domain.ChainClient
type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) CurrentEpoch(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockChainClient) ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (*domain.TransactionResult, error) {
	args := m.Called(ctx, txBytes, signatures)
	if got := args.Get(0); got != nil {
		return got.(*domain.TransactionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChainClient) GetBalance(ctx context.Context, owner domain.Address) (*domain.Balance, error) {
	args := m.Called(ctx, owner)
	if got := args.Get(0); got != nil {
		return got.(*domain.Balance), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockSponsorClient is a mock implementation of domain.SponsorClient
type MockSponsorClient struct {
	mock.Mock
}

func (m *MockSponsorClient) Sponsor(ctx context.Context, req *domain.SponsorRequest) (*domain.SponsoredTransaction, error) {
	args := m.Called(ctx, req)
	if got := args.Get(0); got != nil {
		return got.(*domain.SponsoredTransaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSponsorClient) Execute(ctx context.Context, digest, signature string) (*domain.TransactionResult, error) {
	args := m.Called(ctx, digest, signature)
	if got := args.Get(0); got != nil {
		return got.(*domain.TransactionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Provider.ClientID = testClientID
	cfg.Provider.RedirectURL = "http://127.0.0.1:5173/auth/callback"
	cfg.Prover.URL = "http://prover.test"
	cfg.Prover.MaxAttempts = 1
	cfg.SaltSecret = testSecret
	cfg.Storage.Driver = "memory"
	return cfg
}

// signToken builds an HS256 token; the signature is never checked locally
func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-key"))
	require.NoError(t, err)
	return raw
}

func tokenClaims(nonce, sub string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   "accounts.google.com",
		"aud":   testClientID,
		"sub":   sub,
		"nonce": nonce,
		"exp":   testNow.Add(600 * time.Second).Unix(),
		"email": "user@example.com",
		"name":  "Test User",
	}
}

func newMemoryStores(t *testing.T) (*storage.MemoryStore, *storage.MemoryStore) {
	t.Helper()
	durable := storage.NewMemoryStore()
	ephemeral := storage.NewMemoryStore()
	t.Cleanup(func() {
		_ = durable.Close()
		_ = ephemeral.Close()
	})
	return durable, ephemeral
}

func testProof() *domain.ZkProof {
	return &domain.ZkProof{
		ProofPoints: domain.ProofPoints{
			A: []string{"1", "2", "1"},
			B: [][]string{{"3", "4"}, {"5", "6"}, {"1", "0"}},
			C: []string{"7", "8", "1"},
		},
		IssBase64Details: domain.IssBase64Details{Value: "wiaXNzIjoiaHR0cHM6Ly9hY2NvdW50cy5nb29nbGUuY29tIiw", IndexMod4: 1},
		HeaderBase64:     "eyJhbGciOiJSUzI1NiIsImtpZCI6IjEifQ",
	}
}
