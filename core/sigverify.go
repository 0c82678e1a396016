package core

// Classical signature verification for the VM's VERIFY_SIG/VERIFY_SIG_ECDSA
// opcodes: DER-encoded ECDSA over secp256k1, the same curve the host chain
// itself uses. Grounded on the teacher's reliance on
// github.com/btcsuite/btcd/btcec/v2 for key handling elsewhere in the
// corpus's Bitcoin-lineage examples.

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

type ecdsaVerifier struct{}

// NewClassicalVerifier returns the default secp256k1/DER ClassicalVerifier.
func NewClassicalVerifier() ClassicalVerifier { return ecdsaVerifier{} }

func (ecdsaVerifier) Verify(pubKeyBytes, sig, msgHash []byte) (bool, error) {
	if len(sig) > 72 {
		return false, fmt.Errorf("%w: signature exceeds 72 bytes", ErrInvalidState)
	}
	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false, fmt.Errorf("%w: parse pubkey: %v", ErrInvalidState, err)
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, fmt.Errorf("%w: parse signature: %v", ErrInvalidState, err)
	}
	return parsed.Verify(msgHash, pubKey), nil
}
