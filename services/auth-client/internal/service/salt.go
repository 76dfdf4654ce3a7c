package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"regexp"

	"golang.org/x/crypto/hkdf"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
)

const saltBytes = 16

var saltPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// HKDFSaltProvider derives a stable salt per subject from a local secret.
// Anyone holding the secret can recompute every user's salt, so production
// deployments should put a salt service behind domain.SaltProvider instead.
type HKDFSaltProvider struct {
	secret []byte
}

func NewHKDFSaltProvider(secret string) (*HKDFSaltProvider, error) {
	if secret == "" {
		return nil, domain.ConfigError("ZKLOGIN_SALT_SECRET")
	}
	return &HKDFSaltProvider{secret: []byte(secret)}, nil
}

func (p *HKDFSaltProvider) Salt(_ context.Context, claims domain.IdentityClaims) (string, error) {
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub", domain.ErrInvalidToken)
	}
	r := hkdf.New(sha256.New, p.secret, nil, []byte("zklogin-salt:"+claims.Subject))
	out := make([]byte, saltBytes)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", fmt.Errorf("failed to derive salt: %w", err)
	}
	return hex.EncodeToString(out), nil
}

// ValidSalt reports whether s is in canonical form
func ValidSalt(s string) bool {
	return saltPattern.MatchString(s)
}

// SaltInt parses a canonical salt into a field element
func SaltInt(s string) (*big.Int, error) {
	if !ValidSalt(s) {
		return nil, fmt.Errorf("%w: salt is not canonical", domain.ErrInvalidSession)
	}
	v, _ := new(big.Int).SetString(s, 16)
	return v, nil
}
