// Package custody implements the fund authorization ledger: a pooled balance
// that only moves when the owner has signed the exact transfer and an
// authorized address relays it, with every signed nonce usable once.
package custody

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnauthorized indicates the caller lacks the role the operation requires.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyAuthorized is returned when adding an address that is already a member.
	ErrAlreadyAuthorized = errors.New("address already authorized")

	// ErrNotAuthorized is returned when removing an address that is not a member.
	ErrNotAuthorized = errors.New("address not authorized")

	// ErrIndexOutOfRange is returned by index based enumeration past the set size.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNonceReused indicates the nonce was already consumed by a committed transfer.
	ErrNonceReused = errors.New("nonce already used")

	// ErrInvalidSignature indicates the recovered signer is not the owner.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInsufficientFunds occurs when the pool cannot cover the requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount rejects amounts that are not representable as a uint256,
	// and zero deposits.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrOwnerMismatch is returned when an existing ledger is opened with a
	// different owner than the one it was created with.
	ErrOwnerMismatch = errors.New("ledger owner mismatch")

	// ErrLedgerNotFound is returned by stores for an uninitialised ledger.
	ErrLedgerNotFound = errors.New("ledger not found")
)

// Address identifies an account, a relayer or a ledger instance.
type Address = common.Address

// maxAmount is 2^256-1, the largest value the signed message can encode.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

const (
	// KindFundsReceived is emitted on every deposit.
	KindFundsReceived = "FundsReceived"
	// KindFundsTransferred is emitted on every committed transfer.
	KindFundsTransferred = "FundsTransferred"
)

// Event is an entry of the append-only ledger event log.
//
// For FundsReceived, Counterparty is the sender and Caller equals it.
// For FundsTransferred, Counterparty is the recipient and Caller is the
// authorized address that relayed the request.
type Event struct {
	ID           string
	Sequence     int64
	Ledger       Address
	Kind         string
	Counterparty Address
	Caller       Address
	Amount       *big.Int
	Nonce        *Nonce
	OccurredAt   time.Time
}

// TransferRequest is an owner-signed instruction to pay amount to recipient.
// It is never stored; only its nonce is.
type TransferRequest struct {
	Recipient Address
	Amount    *big.Int
	Nonce     Nonce
	Signature []byte
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0 && amount.Cmp(maxAmount) <= 0
}
