package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/shared/logging"
)

func validAccount() *domain.Account {
	return &domain.Account{
		Address:             "0x" + "ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34",
		Provider:            "google",
		Sub:                 "user123",
		Aud:                 testClientID,
		Iss:                 testIssuer,
		JWTToken:            "header.payload.sig",
		Salt:                "0123456789abcdef0123456789abcdef",
		EphemeralPrivateKey: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=",
		Randomness:          "42",
		MaxEpoch:            10,
		ExpiresAt:           testNow.Add(time.Hour).UnixMilli(),
	}
}

func newTestSessionStore(t *testing.T) (*SessionStore, domain.KeyValueStore, domain.KeyValueStore) {
	durable, ephemeral := newMemoryStores(t)
	store := NewSessionStore(durable, ephemeral, logging.NewNop(), func() time.Time { return testNow })
	return store, durable, ephemeral
}

func TestSessionStore_SaveLoad(t *testing.T) {
	store, _, _ := newTestSessionStore(t)
	ctx := context.Background()

	account := validAccount()
	require.NoError(t, store.Save(ctx, account))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, account, loaded)
}

func TestSessionStore_LoadEmpty(t *testing.T) {
	store, _, _ := newTestSessionStore(t)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestSessionStore_LoadExpiredClears(t *testing.T) {
	store, durable, _ := newTestSessionStore(t)
	ctx := context.Background()

	account := validAccount()
	account.ExpiresAt = testNow.UnixMilli() - 1
	require.NoError(t, store.Save(ctx, account))

	loaded, err := store.Load(ctx)
	assert.Nil(t, loaded)
	assert.ErrorIs(t, err, domain.ErrNoSession)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, err = durable.Get(ctx, keySession)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestSessionStore_ExpiresExactlyNow(t *testing.T) {
	store, _, _ := newTestSessionStore(t)
	ctx := context.Background()

	account := validAccount()
	account.ExpiresAt = testNow.UnixMilli()
	require.NoError(t, store.Save(ctx, account))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestSessionStore_LoadRejectsNonCanonicalSalt(t *testing.T) {
	for _, salt := range []string{"not-hex!", "", "0123456789ABCDEF0123456789ABCDEF", "0123"} {
		t.Run(salt, func(t *testing.T) {
			store, durable, _ := newTestSessionStore(t)
			ctx := context.Background()

			account := validAccount()
			account.Salt = salt
			require.NoError(t, store.Save(ctx, account))

			loaded, err := store.Load(ctx)
			assert.Nil(t, loaded)
			assert.ErrorIs(t, err, domain.ErrNoSession)

			_, err = durable.Get(ctx, keySession)
			assert.ErrorIs(t, err, domain.ErrKeyNotFound)
		})
	}
}

func TestSessionStore_LoadRejectsMalformed(t *testing.T) {
	store, durable, _ := newTestSessionStore(t)
	ctx := context.Background()

	require.NoError(t, durable.Set(ctx, keySession, []byte("{not json"), 0))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrNoSession)

	_, err = durable.Get(ctx, keySession)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestSessionStore_ClearRemovesEveryKey(t *testing.T) {
	store, durable, ephemeral := newTestSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, validAccount()))
	require.NoError(t, store.SavePending(ctx, &domain.PendingLogin{AttemptID: "login-1", Nonce: "n"}, time.Minute))
	require.NoError(t, store.SaveCapturedToken(ctx, "tok", time.Minute))

	require.NoError(t, store.Clear(ctx))

	for _, key := range loginKeys {
		_, err := durable.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
		_, err = ephemeral.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	}
}

func TestSessionStore_PendingRoundTrip(t *testing.T) {
	store, _, ephemeral := newTestSessionStore(t)
	ctx := context.Background()

	_, err := store.LoadPending(ctx)
	assert.ErrorIs(t, err, domain.ErrNoPendingLogin)

	pending := &domain.PendingLogin{
		AttemptID:           "login-1",
		Randomness:          "12345",
		MaxEpoch:            12,
		EphemeralPrivateKey: "key",
		Nonce:               "nonce",
		CreatedAt:           testNow,
	}
	require.NoError(t, store.SavePending(ctx, pending, time.Minute))

	loaded, err := store.LoadPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, pending.Nonce, loaded.Nonce)
	assert.True(t, pending.CreatedAt.Equal(loaded.CreatedAt))

	require.NoError(t, ephemeral.Set(ctx, keyPending, []byte("garbage"), time.Minute))
	_, err = store.LoadPending(ctx)
	assert.ErrorIs(t, err, domain.ErrNoPendingLogin)
}

func TestSessionStore_RecordFormat(t *testing.T) {
	store, durable, _ := newTestSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, validAccount()))
	raw, err := durable.Get(ctx, keySession)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"address", "provider", "sub", "jwtToken", "salt", "ephemeralPrivateKey", "randomness", "maxEpoch", "expiresAt"} {
		assert.Contains(t, fields, key)
	}
}

// Scenario D at the signer level
func TestTransactionSigner_ExpiredNeverCallsProver(t *testing.T) {
	prover := new(MockProofRequester)
	proofs := NewProofService(prover, 1, logging.NewNop())
	signer := NewTransactionSigner(proofs, logging.NewNop(), func() time.Time { return testNow })

	account := validAccount()
	account.ExpiresAt = testNow.UnixMilli() - 1000

	sig, err := signer.Sign(context.Background(), []byte{1, 2, 3}, account)
	assert.Nil(t, sig)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	prover.AssertNotCalled(t, "RequestProof", mock.Anything, mock.Anything)
}
