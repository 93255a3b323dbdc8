package custody

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxEventPage = 500

// PostgresStore persists ledgers in PostgreSQL. Writers of one ledger are
// serialized by locking its row for the duration of the transaction.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Init creates the ledger row if it does not exist and checks its owner.
func (s *PostgresStore) Init(ctx context.Context, ledger, owner Address) error {
	if _, err := s.db.Exec(ctx, `INSERT INTO ledgers (address, owner, balance) VALUES ($1, $2, 0)
        ON CONFLICT (address) DO NOTHING`, ledger.Hex(), owner.Hex()); err != nil {
		return fmt.Errorf("insert ledger: %w", err)
	}
	var stored string
	if err := s.db.QueryRow(ctx, `SELECT owner FROM ledgers WHERE address = $1`, ledger.Hex()).Scan(&stored); err != nil {
		return fmt.Errorf("load ledger owner: %w", err)
	}
	if common.HexToAddress(stored) != owner {
		return ErrOwnerMismatch
	}
	return nil
}

// View runs fn inside a read-only transaction.
func (s *PostgresStore) View(ctx context.Context, ledger Address, fn func(tx Tx) error) error {
	return s.run(ctx, ledger, pgx.TxOptions{AccessMode: pgx.ReadOnly}, `SELECT owner, balance::text FROM ledgers WHERE address = $1`, fn)
}

// Update runs fn inside a read-write transaction holding the ledger row lock.
func (s *PostgresStore) Update(ctx context.Context, ledger Address, fn func(tx Tx) error) error {
	return s.run(ctx, ledger, pgx.TxOptions{}, `SELECT owner, balance::text FROM ledgers WHERE address = $1 FOR UPDATE`, fn)
}

func (s *PostgresStore) run(ctx context.Context, ledger Address, opts pgx.TxOptions, loadQuery string, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	ptx := &postgresTx{ctx: ctx, tx: tx, ledger: ledger.Hex()}
	var owner, balance string
	if err := tx.QueryRow(ctx, loadQuery, ptx.ledger).Scan(&owner, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLedgerNotFound
		}
		return err
	}
	ptx.owner = common.HexToAddress(owner)
	if ptx.balance, err = parseNumeric(balance); err != nil {
		return err
	}

	if err := fn(ptx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type postgresTx struct {
	ctx     context.Context
	tx      pgx.Tx
	ledger  string
	owner   Address
	balance *big.Int
}

func (t *postgresTx) Owner() Address { return t.owner }

func (t *postgresTx) Balance() (*big.Int, error) {
	return new(big.Int).Set(t.balance), nil
}

func (t *postgresTx) SetBalance(balance *big.Int) error {
	if balance.Sign() < 0 {
		return ErrInsufficientFunds
	}
	if _, err := t.tx.Exec(t.ctx, `UPDATE ledgers SET balance = $2::numeric WHERE address = $1`, t.ledger, balance.String()); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	t.balance = new(big.Int).Set(balance)
	return nil
}

func (t *postgresTx) IsAuthorized(addr Address) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(t.ctx, `SELECT EXISTS (SELECT 1 FROM authorized_addresses WHERE ledger = $1 AND address = $2)`,
		t.ledger, addr.Hex()).Scan(&ok)
	return ok, err
}

func (t *postgresTx) AuthorizedCount() (int, error) {
	var n int
	err := t.tx.QueryRow(t.ctx, `SELECT COUNT(*) FROM authorized_addresses WHERE ledger = $1`, t.ledger).Scan(&n)
	return n, err
}

func (t *postgresTx) AuthorizedAt(index int) (Address, error) {
	if index < 0 {
		return Address{}, ErrIndexOutOfRange
	}
	var addr string
	err := t.tx.QueryRow(t.ctx, `SELECT address FROM authorized_addresses WHERE ledger = $1 AND position = $2`,
		t.ledger, index).Scan(&addr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Address{}, ErrIndexOutOfRange
		}
		return Address{}, err
	}
	return common.HexToAddress(addr), nil
}

func (t *postgresTx) Authorized() ([]Address, error) {
	rows, err := t.tx.Query(t.ctx, `SELECT address FROM authorized_addresses WHERE ledger = $1 ORDER BY position`, t.ledger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Address, 0)
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		out = append(out, common.HexToAddress(addr))
	}
	return out, rows.Err()
}

func (t *postgresTx) AddAuthorized(addr Address) error {
	exists, err := t.IsAuthorized(addr)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyAuthorized
	}
	count, err := t.AuthorizedCount()
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(t.ctx, `INSERT INTO authorized_addresses (ledger, position, address) VALUES ($1, $2, $3)`,
		t.ledger, count, addr.Hex()); err != nil {
		return fmt.Errorf("insert authorized address: %w", err)
	}
	return nil
}

// RemoveAuthorized deletes addr and moves the last member into its position.
func (t *postgresTx) RemoveAuthorized(addr Address) error {
	var position int
	err := t.tx.QueryRow(t.ctx, `DELETE FROM authorized_addresses WHERE ledger = $1 AND address = $2 RETURNING position`,
		t.ledger, addr.Hex()).Scan(&position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotAuthorized
		}
		return err
	}
	last, err := t.AuthorizedCount()
	if err != nil {
		return err
	}
	if position == last {
		return nil
	}
	if _, err := t.tx.Exec(t.ctx, `UPDATE authorized_addresses SET position = $2 WHERE ledger = $1 AND position = $3`,
		t.ledger, position, last); err != nil {
		return fmt.Errorf("compact authorized addresses: %w", err)
	}
	return nil
}

func (t *postgresTx) NonceConsumed(nonce Nonce) (bool, error) {
	var used bool
	err := t.tx.QueryRow(t.ctx, `SELECT EXISTS (SELECT 1 FROM consumed_nonces WHERE ledger = $1 AND nonce = $2)`,
		t.ledger, nonce[:]).Scan(&used)
	return used, err
}

func (t *postgresTx) ConsumeNonce(nonce Nonce) error {
	cmd, err := t.tx.Exec(t.ctx, `INSERT INTO consumed_nonces (ledger, nonce) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		t.ledger, nonce[:])
	if err != nil {
		return fmt.Errorf("consume nonce: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNonceReused
	}
	return nil
}

func (t *postgresTx) Append(e *Event) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("event id: %w", err)
	}
	var nonce []byte
	if e.Nonce != nil {
		nonce = e.Nonce[:]
	}
	const query = `INSERT INTO ledger_events (id, ledger, kind, counterparty, caller, amount, nonce, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8) RETURNING seq`
	if err := t.tx.QueryRow(t.ctx, query, id, t.ledger, e.Kind, e.Counterparty.Hex(), e.Caller.Hex(),
		e.Amount.String(), nonce, e.OccurredAt.UTC()).Scan(&e.Sequence); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	e.Ledger = common.HexToAddress(t.ledger)
	return nil
}

func (t *postgresTx) Events(after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > maxEventPage {
		limit = maxEventPage
	}
	const query = `SELECT seq, id, kind, counterparty, caller, amount::text, nonce, occurred_at
        FROM ledger_events WHERE ledger = $1 AND seq > $2 ORDER BY seq LIMIT $3`
	rows, err := t.tx.Query(t.ctx, query, t.ledger, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e            Event
			id           uuid.UUID
			counterparty string
			caller       string
			amount       string
			nonce        []byte
			occurredAt   time.Time
		)
		if err := rows.Scan(&e.Sequence, &id, &e.Kind, &counterparty, &caller, &amount, &nonce, &occurredAt); err != nil {
			return nil, err
		}
		e.ID = id.String()
		e.Ledger = common.HexToAddress(t.ledger)
		e.Counterparty = common.HexToAddress(counterparty)
		e.Caller = common.HexToAddress(caller)
		if e.Amount, err = parseNumeric(amount); err != nil {
			return nil, err
		}
		if len(nonce) == NonceLength {
			var n Nonce
			copy(n[:], nonce)
			e.Nonce = &n
		}
		e.OccurredAt = occurredAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", s)
	}
	return v, nil
}
