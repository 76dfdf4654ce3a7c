// Package zklogin holds the pure zkLogin primitives: Poseidon hashing over BN254,
// nonce and address-seed derivation, address computation and signature serialization.
package zklogin

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

const (
	poseidonMaxArity = 16
	poseidonMaxInput = 32
	// packWidth is the number of bytes packed into one field element (248 bits)
	packWidth = 31
)

// Claim lengths the circuit pads to
const (
	MaxKeyClaimNameLength  = 32
	MaxKeyClaimValueLength = 115
	MaxAudValueLength      = 145
)

var errEmptyInput = errors.New("poseidon: no inputs")

// PoseidonHash hashes up to 32 field elements. Inputs beyond 16 are folded as
// H(H(first 16), H(rest)).
func PoseidonHash(inputs []*big.Int) (*big.Int, error) {
	n := len(inputs)
	switch {
	case n == 0:
		return nil, errEmptyInput
	case n <= poseidonMaxArity:
		return poseidon.Hash(inputs)
	case n <= poseidonMaxInput:
		left, err := poseidon.Hash(inputs[:poseidonMaxArity])
		if err != nil {
			return nil, err
		}
		right, err := poseidon.Hash(inputs[poseidonMaxArity:])
		if err != nil {
			return nil, err
		}
		return poseidon.Hash([]*big.Int{left, right})
	default:
		return nil, fmt.Errorf("poseidon: %d inputs exceeds maximum of %d", n, poseidonMaxInput)
	}
}

// HashASCIIStrToField pads s with zero bytes to maxSize, packs it into 31-byte
// big-endian chunks aligned to the end of the buffer and hashes the chunks.
func HashASCIIStrToField(s string, maxSize int) (*big.Int, error) {
	if len(s) > maxSize {
		return nil, fmt.Errorf("string %q is longer than %d bytes", s, maxSize)
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return nil, fmt.Errorf("string %q is not ASCII", s)
		}
	}

	padded := make([]byte, maxSize)
	copy(padded, s)

	chunks := chunkFromEnd(padded, packWidth)
	packed := make([]*big.Int, len(chunks))
	for i, chunk := range chunks {
		packed[i] = new(big.Int).SetBytes(chunk)
	}
	return PoseidonHash(packed)
}

// chunkFromEnd splits b into size-byte chunks counted from the end, so only the
// first chunk may be short.
func chunkFromEnd(b []byte, size int) [][]byte {
	count := (len(b) + size - 1) / size
	chunks := make([][]byte, count)
	end := len(b)
	for i := count - 1; i >= 0; i-- {
		start := end - size
		if start < 0 {
			start = 0
		}
		chunks[i] = b[start:end]
		end = start
	}
	return chunks
}

// toPaddedBigEndian returns the low width bytes of n, big-endian, left-padded with zeros
func toPaddedBigEndian(n *big.Int, width int) []byte {
	raw := n.Bytes()
	if len(raw) >= width {
		return raw[len(raw)-width:]
	}
	out := make([]byte, width)
	copy(out[width-len(raw):], raw)
	return out
}
