package custody

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Publisher receives events after the operation that produced them committed.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Ledger is the fund authorization state machine for one ledger identity.
// Every mutating operation runs inside a single Store.Update, so it either
// commits completely or leaves the state untouched.
type Ledger struct {
	identity  Address
	owner     Address
	store     Store
	recoverer Recoverer
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithRecoverer replaces the secp256k1 signer recovery.
func WithRecoverer(r Recoverer) Option {
	return func(l *Ledger) { l.recoverer = r }
}

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithLogger sets the logger used for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New opens the ledger identified by identity, creating it with owner when
// the store does not know it yet.
func New(ctx context.Context, store Store, identity, owner Address, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if (owner == Address{}) {
		return nil, fmt.Errorf("owner address is required")
	}
	l := &Ledger{
		identity:  identity,
		owner:     owner,
		store:     store,
		recoverer: ECDSARecoverer{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := store.Init(ctx, identity, owner); err != nil {
		return nil, fmt.Errorf("init ledger %s: %w", identity.Hex(), err)
	}
	return l, nil
}

// Identity is the address every transfer signature is bound to.
func (l *Ledger) Identity() Address { return l.identity }

// Owner is the address that governs the authorized set and signs transfers.
func (l *Ledger) Owner() Address { return l.owner }

// Deposit credits amount to the pool on behalf of sender.
func (l *Ledger) Deposit(ctx context.Context, sender Address, amount *big.Int) (Event, error) {
	if !validAmount(amount) || amount.Sign() == 0 {
		return Event{}, ErrInvalidAmount
	}
	ev := l.newEvent(KindFundsReceived, sender, sender, amount, nil)
	err := l.store.Update(ctx, l.identity, func(tx Tx) error {
		balance, err := tx.Balance()
		if err != nil {
			return err
		}
		balance.Add(balance, amount)
		if balance.Cmp(maxAmount) > 0 {
			return fmt.Errorf("%w: balance would overflow", ErrInvalidAmount)
		}
		if err := tx.SetBalance(balance); err != nil {
			return err
		}
		return tx.Append(&ev)
	})
	if err != nil {
		return Event{}, err
	}
	l.publish(ctx, ev)
	return ev, nil
}

// AddAuthorized appends addr to the authorized set. Owner only.
func (l *Ledger) AddAuthorized(ctx context.Context, caller, addr Address) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	return l.store.Update(ctx, l.identity, func(tx Tx) error {
		return tx.AddAuthorized(addr)
	})
}

// RemoveAuthorized drops addr from the authorized set. Owner only.
func (l *Ledger) RemoveAuthorized(ctx context.Context, caller, addr Address) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	return l.store.Update(ctx, l.identity, func(tx Tx) error {
		return tx.RemoveAuthorized(addr)
	})
}

// AuthorizedCount returns the size of the authorized set.
func (l *Ledger) AuthorizedCount(ctx context.Context) (int, error) {
	var n int
	err := l.store.View(ctx, l.identity, func(tx Tx) error {
		var err error
		n, err = tx.AuthorizedCount()
		return err
	})
	return n, err
}

// AuthorizedAt returns the member at index.
func (l *Ledger) AuthorizedAt(ctx context.Context, index int) (Address, error) {
	var addr Address
	err := l.store.View(ctx, l.identity, func(tx Tx) error {
		var err error
		addr, err = tx.AuthorizedAt(index)
		return err
	})
	return addr, err
}

// Authorized lists the authorized set in positional order.
func (l *Ledger) Authorized(ctx context.Context) ([]Address, error) {
	var out []Address
	err := l.store.View(ctx, l.identity, func(tx Tx) error {
		var err error
		out, err = tx.Authorized()
		return err
	})
	return out, err
}

// Balance returns the pooled balance.
func (l *Ledger) Balance(ctx context.Context) (*big.Int, error) {
	var balance *big.Int
	err := l.store.View(ctx, l.identity, func(tx Tx) error {
		var err error
		balance, err = tx.Balance()
		return err
	})
	return balance, err
}

// NonceUsed reports whether nonce was consumed by a committed transfer.
func (l *Ledger) NonceUsed(ctx context.Context, nonce Nonce) (bool, error) {
	var used bool
	err := l.store.View(ctx, l.identity, func(tx Tx) error {
		var err error
		used, err = tx.NonceConsumed(nonce)
		return err
	})
	return used, err
}

// Events returns up to limit events with a sequence greater than after.
func (l *Ledger) Events(ctx context.Context, after int64, limit int) ([]Event, error) {
	var out []Event
	err := l.store.View(ctx, l.identity, func(tx Tx) error {
		var err error
		out, err = tx.Events(after, limit)
		return err
	})
	return out, err
}

// Transfer pays req.Amount to req.Recipient when caller is authorized, the
// nonce is fresh, the owner signed the request for this ledger and the pool
// holds enough funds. The checks run in that order and nothing is written
// unless all of them pass.
func (l *Ledger) Transfer(ctx context.Context, caller Address, req TransferRequest) (Event, error) {
	if !validAmount(req.Amount) {
		return Event{}, ErrInvalidAmount
	}
	digest := TransferDigest(req.Recipient, req.Amount, req.Nonce, l.identity)
	nonce := req.Nonce
	ev := l.newEvent(KindFundsTransferred, req.Recipient, caller, req.Amount, &nonce)

	err := l.store.Update(ctx, l.identity, func(tx Tx) error {
		member, err := tx.IsAuthorized(caller)
		if err != nil {
			return err
		}
		if !member {
			return ErrUnauthorized
		}

		used, err := tx.NonceConsumed(req.Nonce)
		if err != nil {
			return err
		}
		if used {
			return ErrNonceReused
		}

		signer, err := l.recoverer.Recover(digest, req.Signature)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		if signer != l.owner {
			return ErrInvalidSignature
		}

		balance, err := tx.Balance()
		if err != nil {
			return err
		}
		if balance.Cmp(req.Amount) < 0 {
			return ErrInsufficientFunds
		}

		if err := tx.SetBalance(balance.Sub(balance, req.Amount)); err != nil {
			return err
		}
		if err := tx.ConsumeNonce(req.Nonce); err != nil {
			return err
		}
		return tx.Append(&ev)
	})
	if err != nil {
		return Event{}, err
	}
	l.publish(ctx, ev)
	return ev, nil
}

func (l *Ledger) newEvent(kind string, counterparty, caller Address, amount *big.Int, nonce *Nonce) Event {
	return Event{
		ID:           uuid.NewString(),
		Ledger:       l.identity,
		Kind:         kind,
		Counterparty: counterparty,
		Caller:       caller,
		Amount:       new(big.Int).Set(amount),
		Nonce:        nonce,
		OccurredAt:   l.now().UTC(),
	}
}

func (l *Ledger) publish(ctx context.Context, ev Event) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, ev); err != nil {
		l.logger.Warn("publish ledger event",
			slog.String("kind", ev.Kind),
			slog.String("event_id", ev.ID),
			slog.Int64("sequence", ev.Sequence),
			slog.Any("error", err))
	}
}
