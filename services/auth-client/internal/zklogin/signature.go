package zklogin

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"golang.org/x/crypto/blake2b"
)

// transaction intent: scope TransactionData, version V0, app Sui
var transactionIntent = []byte{0, 0, 0}

// TransactionSigningDigest is blake2b256(intent || txBytes)
func TransactionSigningDigest(txBytes []byte) [32]byte {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent...)
	msg = append(msg, txBytes...)
	return blake2b.Sum256(msg)
}

// SignTransaction returns flag || signature || public key over the intent digest
func (k *EphemeralKeyPair) SignTransaction(txBytes []byte) []byte {
	digest := TransactionSigningDigest(txBytes)
	sig := k.Sign(digest[:])

	out := make([]byte, 0, 1+len(sig)+len(k.PublicKey()))
	out = append(out, FlagEd25519)
	out = append(out, sig...)
	out = append(out, k.PublicKey()...)
	return out
}

// SerializeSignature encodes the composite zkLogin signature as base64(flag || bcs)
func SerializeSignature(proof *domain.ZkProof, addressSeed string, maxEpoch uint64, userSignature []byte) (string, error) {
	if proof == nil {
		return "", errors.New("proof is nil")
	}
	if addressSeed == "" {
		return "", errors.New("address seed is empty")
	}
	if len(userSignature) == 0 {
		return "", errors.New("user signature is empty")
	}

	w := &bcsWriter{}
	w.u8(FlagZkLogin)

	// inputs.proofPoints
	w.strs(proof.ProofPoints.A)
	w.uleb128(uint64(len(proof.ProofPoints.B)))
	for _, row := range proof.ProofPoints.B {
		w.strs(row)
	}
	w.strs(proof.ProofPoints.C)

	// inputs.issBase64Details
	w.str(proof.IssBase64Details.Value)
	if proof.IssBase64Details.IndexMod4 > 3 {
		return "", fmt.Errorf("indexMod4 %d out of range", proof.IssBase64Details.IndexMod4)
	}
	w.u8(proof.IssBase64Details.IndexMod4)

	w.str(proof.HeaderBase64)
	w.str(addressSeed)

	w.u64(maxEpoch)
	w.bytes(userSignature)

	return base64.StdEncoding.EncodeToString(w.Bytes()), nil
}
