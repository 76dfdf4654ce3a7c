package service

import (
	"math/big"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/zklogin"
)

// ZkLoginDeriver computes addresses from (sub, aud, iss, salt).
// It does not look at the nonce; callers verify it first.
type ZkLoginDeriver struct{}

func NewZkLoginDeriver() *ZkLoginDeriver {
	return &ZkLoginDeriver{}
}

func (ZkLoginDeriver) DeriveAddress(claims domain.IdentityClaims, salt string) (domain.Address, error) {
	seed, err := addressSeed(salt, claims.Subject, claims.Audience)
	if err != nil {
		return "", err
	}
	return zklogin.ComputeAddress(seed, claims.Issuer)
}

func addressSeed(salt, sub, aud string) (*big.Int, error) {
	s, err := SaltInt(salt)
	if err != nil {
		return nil, err
	}
	return zklogin.ComputeAddressSeed(s, domain.ClaimName, sub, aud)
}
