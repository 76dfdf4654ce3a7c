package zklogin

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
)

// Signature scheme flags
const (
	FlagEd25519 byte = 0x00
	FlagZkLogin byte = 0x05
)

const randomnessBytes = 16

// EphemeralKeyPair is the single-use Ed25519 key bound into the nonce
type EphemeralKeyPair struct {
	private ed25519.PrivateKey
}

// GenerateEphemeralKeyPair draws a fresh key from r
func GenerateEphemeralKeyPair(r io.Reader) (*EphemeralKeyPair, error) {
	_, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	return &EphemeralKeyPair{private: priv}, nil
}

// ParseEphemeralKeyPair restores a key exported with Export
func ParseEphemeralKeyPair(encoded string) (*EphemeralKeyPair, error) {
	seed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ephemeral key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ephemeral key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &EphemeralKeyPair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// Export returns the base64 32-byte seed
func (k *EphemeralKeyPair) Export() string {
	return base64.StdEncoding.EncodeToString(k.private.Seed())
}

func (k *EphemeralKeyPair) PublicKey() ed25519.PublicKey {
	return k.private.Public().(ed25519.PublicKey)
}

// SuiPublicKey is the flag-prefixed public key (33 bytes)
func (k *EphemeralKeyPair) SuiPublicKey() []byte {
	return append([]byte{FlagEd25519}, k.PublicKey()...)
}

// ExtendedPublicKey is the base64 flag-prefixed key the prover expects
func (k *EphemeralKeyPair) ExtendedPublicKey() string {
	return base64.StdEncoding.EncodeToString(k.SuiPublicKey())
}

// Sign signs msg as-is
func (k *EphemeralKeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.private, msg)
}

// GenerateRandomness returns 128 random bits as a decimal string
func GenerateRandomness(r io.Reader) (string, error) {
	buf := make([]byte, randomnessBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to read randomness: %w", err)
	}
	return new(big.Int).SetBytes(buf).String(), nil
}
