package custody

import (
	"context"
	"errors"
	"math/big"
)

var errReadOnly = errors.New("write in read-only transaction")

// Tx is the view of one ledger inside an atomic unit of work. Reads observe
// the writes made earlier in the same Tx.
type Tx interface {
	Owner() Address
	Balance() (*big.Int, error)
	SetBalance(balance *big.Int) error

	IsAuthorized(addr Address) (bool, error)
	AuthorizedCount() (int, error)
	AuthorizedAt(index int) (Address, error)
	Authorized() ([]Address, error)
	AddAuthorized(addr Address) error
	RemoveAuthorized(addr Address) error

	NonceConsumed(nonce Nonce) (bool, error)
	ConsumeNonce(nonce Nonce) error

	// Append adds e to the event log and assigns its Sequence.
	Append(e *Event) error
	Events(after int64, limit int) ([]Event, error)
}

// Store persists ledgers. Update must serialize writers of the same ledger
// and apply every write made by fn, or none of them when fn fails.
type Store interface {
	// Init creates the ledger when absent. An existing ledger must have the
	// same owner, otherwise ErrOwnerMismatch is returned.
	Init(ctx context.Context, ledger, owner Address) error
	View(ctx context.Context, ledger Address, fn func(tx Tx) error) error
	Update(ctx context.Context, ledger Address, fn func(tx Tx) error) error
}
