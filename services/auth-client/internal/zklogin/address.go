package zklogin

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const googleIssuer = "accounts.google.com"

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// ComputeAddressSeed binds a salt to one claim of one audience
func ComputeAddressSeed(salt *big.Int, name, value, aud string) (*big.Int, error) {
	nameF, err := HashASCIIStrToField(name, MaxKeyClaimNameLength)
	if err != nil {
		return nil, fmt.Errorf("claim name: %w", err)
	}
	valueF, err := HashASCIIStrToField(value, MaxKeyClaimValueLength)
	if err != nil {
		return nil, fmt.Errorf("claim value: %w", err)
	}
	audF, err := HashASCIIStrToField(aud, MaxAudValueLength)
	if err != nil {
		return nil, fmt.Errorf("audience: %w", err)
	}
	saltF, err := PoseidonHash([]*big.Int{salt})
	if err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	return PoseidonHash([]*big.Int{nameF, valueF, audF, saltF})
}

// NormalizeIssuer adds the scheme Google omits from its iss claim
func NormalizeIssuer(iss string) string {
	if iss == googleIssuer {
		return "https://" + googleIssuer
	}
	return iss
}

// ComputeAddress hashes flag || len(iss) || iss || seed into a 32-byte address
func ComputeAddress(addressSeed *big.Int, iss string) (string, error) {
	iss = NormalizeIssuer(iss)
	if len(iss) == 0 || len(iss) > 255 {
		return "", fmt.Errorf("issuer length %d out of range", len(iss))
	}

	buf := make([]byte, 0, 2+len(iss)+32)
	buf = append(buf, FlagZkLogin, byte(len(iss)))
	buf = append(buf, iss...)
	buf = append(buf, toPaddedBigEndian(addressSeed, 32)...)

	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// IsValidAddress checks the canonical 0x + 64 lowercase hex form
func IsValidAddress(addr string) bool {
	return addressPattern.MatchString(strings.ToLower(addr))
}
