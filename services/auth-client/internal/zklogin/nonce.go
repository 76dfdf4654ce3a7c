package zklogin

import (
	"encoding/base64"
	"fmt"
	"math/big"
)

// NonceLength is the length of an encoded nonce
const NonceLength = 27

const nonceBytes = 20

var mask128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// ComputeNonce derives the nonce bound to (public key, maxEpoch, randomness).
// suiPublicKey is the flag-prefixed key; randomness is a decimal string.
func ComputeNonce(suiPublicKey []byte, maxEpoch uint64, randomness string) (string, error) {
	if len(suiPublicKey) == 0 {
		return "", fmt.Errorf("public key is empty")
	}
	r, ok := new(big.Int).SetString(randomness, 10)
	if !ok || r.Sign() < 0 {
		return "", fmt.Errorf("randomness %q is not a decimal integer", randomness)
	}

	pk := new(big.Int).SetBytes(suiPublicKey)
	hi := new(big.Int).Rsh(pk, 128)
	lo := new(big.Int).And(pk, mask128)

	h, err := PoseidonHash([]*big.Int{hi, lo, new(big.Int).SetUint64(maxEpoch), r})
	if err != nil {
		return "", fmt.Errorf("failed to hash nonce inputs: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(toPaddedBigEndian(h, nonceBytes)), nil
}
