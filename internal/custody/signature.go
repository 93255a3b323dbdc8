package custody

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an r || s || v signature.
const SignatureLength = crypto.SignatureLength

// MessageHash returns keccak256(recipient || uint256(amount) || nonce || ledger),
// the tightly packed encoding of the transfer tuple.
func MessageHash(recipient Address, amount *big.Int, nonce Nonce, ledger Address) []byte {
	packed := make([]byte, 0, common.AddressLength+32+NonceLength+common.AddressLength)
	packed = append(packed, recipient.Bytes()...)
	packed = append(packed, common.LeftPadBytes(amount.Bytes(), 32)...)
	packed = append(packed, nonce[:]...)
	packed = append(packed, ledger.Bytes()...)
	return crypto.Keccak256(packed)
}

// TransferDigest is the value the owner signs: the personal message hash of
// MessageHash, so a transfer signature can never double as a raw hash signature.
func TransferDigest(recipient Address, amount *big.Int, nonce Nonce, ledger Address) []byte {
	return accounts.TextHash(MessageHash(recipient, amount, nonce, ledger))
}

// SignTransfer produces the owner signature for a transfer on ledger. The
// recovery byte is returned in the 27/28 form.
func SignTransfer(key *ecdsa.PrivateKey, ledger, recipient Address, amount *big.Int, nonce Nonce) ([]byte, error) {
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	sig, err := crypto.Sign(TransferDigest(recipient, amount, nonce, ledger), key)
	if err != nil {
		return nil, fmt.Errorf("sign transfer: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Recoverer extracts the signing address from a signature over digest.
type Recoverer interface {
	Recover(digest, sig []byte) (Address, error)
}

// RecovererFunc adapts a function to Recoverer.
type RecovererFunc func(digest, sig []byte) (Address, error)

// Recover calls f.
func (f RecovererFunc) Recover(digest, sig []byte) (Address, error) {
	return f(digest, sig)
}

// ECDSARecoverer recovers secp256k1 signers. It accepts recovery bytes in
// both the 0/1 and 27/28 forms and rejects malleable high-s signatures.
type ECDSARecoverer struct{}

var errMalformedSignature = errors.New("malformed signature")

// Recover implements Recoverer.
func (ECDSARecoverer) Recover(digest, sig []byte) (Address, error) {
	if len(sig) != SignatureLength {
		return Address{}, fmt.Errorf("%w: want %d bytes, got %d", errMalformedSignature, SignatureLength, len(sig))
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if v := normalized[crypto.RecoveryIDOffset]; v == 27 || v == 28 {
		normalized[crypto.RecoveryIDOffset] = v - 27
	}

	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(normalized[crypto.RecoveryIDOffset], r, s, true) {
		return Address{}, fmt.Errorf("%w: signature values out of range", errMalformedSignature)
	}

	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
