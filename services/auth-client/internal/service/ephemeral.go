package service

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/zklogin"
)

// EphemeralMaterial is the key, randomness and epoch bound for one login attempt
type EphemeralMaterial struct {
	KeyPair    *zklogin.EphemeralKeyPair
	Randomness string
	MaxEpoch   uint64
}

// EphemeralKeyManager creates fresh material for every login attempt
type EphemeralKeyManager struct {
	rand io.Reader
}

func NewEphemeralKeyManager(r io.Reader) *EphemeralKeyManager {
	if r == nil {
		r = rand.Reader
	}
	return &EphemeralKeyManager{rand: r}
}

// Generate never reuses a key or randomness; a failing entropy source aborts the login
func (m *EphemeralKeyManager) Generate(maxEpoch uint64) (*EphemeralMaterial, error) {
	kp, err := zklogin.GenerateEphemeralKeyPair(m.rand)
	if err != nil {
		return nil, err
	}
	randomness, err := zklogin.GenerateRandomness(m.rand)
	if err != nil {
		return nil, err
	}
	return &EphemeralMaterial{KeyPair: kp, Randomness: randomness, MaxEpoch: maxEpoch}, nil
}

// Restore rebuilds material from its stored form
func (m *EphemeralKeyManager) Restore(privateKey, randomness string, maxEpoch uint64) (*EphemeralMaterial, error) {
	kp, err := zklogin.ParseEphemeralKeyPair(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to restore ephemeral key: %w", err)
	}
	return &EphemeralMaterial{KeyPair: kp, Randomness: randomness, MaxEpoch: maxEpoch}, nil
}

// Nonce computes the nonce this material commits to
func (e *EphemeralMaterial) Nonce() (string, error) {
	return zklogin.ComputeNonce(e.KeyPair.SuiPublicKey(), e.MaxEpoch, e.Randomness)
}
