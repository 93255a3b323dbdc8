package custody

import (
	"context"
	"math/big"
	"sync"
)

type memoryLedger struct {
	owner      Address
	balance    *big.Int
	authorized *AddressSet
	nonces     map[Nonce]struct{}
	events     []Event
}

type memoryStore struct {
	mu      sync.RWMutex
	ledgers map[Address]*memoryLedger
}

// NewMemoryStore creates a concurrency-safe in-memory store. Every Update
// holds the store lock for its full duration.
func NewMemoryStore() Store {
	return &memoryStore{ledgers: make(map[Address]*memoryLedger)}
}

func (s *memoryStore) Init(_ context.Context, ledger, owner Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.ledgers[ledger]; ok {
		if existing.owner != owner {
			return ErrOwnerMismatch
		}
		return nil
	}
	s.ledgers[ledger] = &memoryLedger{
		owner:      owner,
		balance:    new(big.Int),
		authorized: NewAddressSet(),
		nonces:     make(map[Nonce]struct{}),
	}
	return nil
}

func (s *memoryStore) View(_ context.Context, ledger Address, fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[ledger]
	if !ok {
		return ErrLedgerNotFound
	}
	return fn(&memoryTx{ledger: ledger, base: l, readOnly: true})
}

func (s *memoryStore) Update(_ context.Context, ledger Address, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[ledger]
	if !ok {
		return ErrLedgerNotFound
	}
	tx := &memoryTx{ledger: ledger, base: l, pendingNonces: make(map[Nonce]struct{})}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memoryTx stages writes and applies them to base only on commit.
type memoryTx struct {
	ledger   Address
	base     *memoryLedger
	readOnly bool

	balance       *big.Int
	authorized    *AddressSet
	pendingNonces map[Nonce]struct{}
	nonceOrder    []Nonce
	events        []Event
}

func (t *memoryTx) Owner() Address { return t.base.owner }

func (t *memoryTx) Balance() (*big.Int, error) {
	if t.balance != nil {
		return new(big.Int).Set(t.balance), nil
	}
	return new(big.Int).Set(t.base.balance), nil
}

func (t *memoryTx) SetBalance(balance *big.Int) error {
	if t.readOnly {
		return errReadOnly
	}
	if balance.Sign() < 0 {
		return ErrInsufficientFunds
	}
	t.balance = new(big.Int).Set(balance)
	return nil
}

func (t *memoryTx) set() *AddressSet {
	if t.authorized != nil {
		return t.authorized
	}
	return t.base.authorized
}

func (t *memoryTx) IsAuthorized(addr Address) (bool, error) {
	return t.set().Contains(addr), nil
}

func (t *memoryTx) AuthorizedCount() (int, error) {
	return t.set().Len(), nil
}

func (t *memoryTx) AuthorizedAt(index int) (Address, error) {
	return t.set().At(index)
}

func (t *memoryTx) Authorized() ([]Address, error) {
	return t.set().Slice(), nil
}

func (t *memoryTx) writableSet() (*AddressSet, error) {
	if t.readOnly {
		return nil, errReadOnly
	}
	if t.authorized == nil {
		t.authorized = t.base.authorized.Clone()
	}
	return t.authorized, nil
}

func (t *memoryTx) AddAuthorized(addr Address) error {
	set, err := t.writableSet()
	if err != nil {
		return err
	}
	if !set.Add(addr) {
		return ErrAlreadyAuthorized
	}
	return nil
}

func (t *memoryTx) RemoveAuthorized(addr Address) error {
	set, err := t.writableSet()
	if err != nil {
		return err
	}
	if !set.Remove(addr) {
		return ErrNotAuthorized
	}
	return nil
}

func (t *memoryTx) NonceConsumed(nonce Nonce) (bool, error) {
	if _, ok := t.pendingNonces[nonce]; ok {
		return true, nil
	}
	_, ok := t.base.nonces[nonce]
	return ok, nil
}

func (t *memoryTx) ConsumeNonce(nonce Nonce) error {
	if t.readOnly {
		return errReadOnly
	}
	if used, _ := t.NonceConsumed(nonce); used {
		return ErrNonceReused
	}
	t.pendingNonces[nonce] = struct{}{}
	t.nonceOrder = append(t.nonceOrder, nonce)
	return nil
}

func (t *memoryTx) Append(e *Event) error {
	if t.readOnly {
		return errReadOnly
	}
	e.Ledger = t.ledger
	e.Sequence = int64(len(t.base.events)+len(t.events)) + 1
	t.events = append(t.events, cloneEvent(*e))
	return nil
}

func (t *memoryTx) Events(after int64, limit int) ([]Event, error) {
	all := t.base.events
	if len(t.events) > 0 {
		all = append(append([]Event(nil), all...), t.events...)
	}
	out := make([]Event, 0)
	for _, e := range all {
		if e.Sequence <= after {
			continue
		}
		out = append(out, cloneEvent(e))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memoryTx) commit() {
	if t.balance != nil {
		t.base.balance = t.balance
	}
	if t.authorized != nil {
		t.base.authorized = t.authorized
	}
	for _, n := range t.nonceOrder {
		t.base.nonces[n] = struct{}{}
	}
	t.base.events = append(t.base.events, t.events...)
}

func cloneEvent(e Event) Event {
	if e.Amount != nil {
		e.Amount = new(big.Int).Set(e.Amount)
	}
	if e.Nonce != nil {
		n := *e.Nonce
		e.Nonce = &n
	}
	return e
}
