//go:build integration

package custody_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/congo-pay/fundauth/internal/custody"
	"github.com/congo-pay/fundauth/internal/infra"
	"github.com/congo-pay/fundauth/internal/logging"
)

func setupPostgres(t *testing.T) *custody.PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fundauth"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(dsn, logging.Discard()))

	pool, err := infra.NewPostgresPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return custody.NewPostgresStore(pool)
}

func TestPostgresStoreTransferLifecycle(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	ownerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	owner := crypto.PubkeyToAddress(ownerKey.PublicKey)
	relayerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	relayer := crypto.PubkeyToAddress(relayerKey.PublicKey)
	identityKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	identity := crypto.PubkeyToAddress(identityKey.PublicKey)

	l, err := custody.New(ctx, store, identity, owner)
	require.NoError(t, err)

	_, err = l.Deposit(ctx, relayer, big.NewInt(1_000))
	require.NoError(t, err)
	require.NoError(t, l.AddAuthorized(ctx, owner, relayer))
	require.ErrorIs(t, l.AddAuthorized(ctx, owner, relayer), custody.ErrAlreadyAuthorized)

	nonce, err := custody.NonceFromText("1")
	require.NoError(t, err)
	sig, err := custody.SignTransfer(ownerKey, identity, owner, big.NewInt(400), nonce)
	require.NoError(t, err)
	req := custody.TransferRequest{Recipient: owner, Amount: big.NewInt(400), Nonce: nonce, Signature: sig}

	ev, err := l.Transfer(ctx, relayer, req)
	require.NoError(t, err)
	assert.Equal(t, custody.KindFundsTransferred, ev.Kind)

	_, err = l.Transfer(ctx, relayer, req)
	require.ErrorIs(t, err, custody.ErrNonceReused)

	balance, err := l.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance.Int64())

	nonce2, err := custody.NonceFromText("2")
	require.NoError(t, err)
	sig, err = custody.SignTransfer(ownerKey, identity, owner, big.NewInt(601), nonce2)
	require.NoError(t, err)
	_, err = l.Transfer(ctx, relayer, custody.TransferRequest{Recipient: owner, Amount: big.NewInt(601), Nonce: nonce2, Signature: sig})
	require.ErrorIs(t, err, custody.ErrInsufficientFunds)
	used, err := l.NonceUsed(ctx, nonce2)
	require.NoError(t, err)
	assert.False(t, used)

	events, err := l.Events(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, custody.KindFundsReceived, events[0].Kind)
	require.NotNil(t, events[1].Nonce)
	assert.Equal(t, nonce, *events[1].Nonce)

	_, err = custody.New(ctx, store, identity, relayer)
	require.ErrorIs(t, err, custody.ErrOwnerMismatch)
}

func TestPostgresStoreSwapAndPop(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	owner := crypto.PubkeyToAddress(key.PublicKey)
	l, err := custody.New(ctx, store, owner, owner)
	require.NoError(t, err)

	members := make([]custody.Address, 4)
	for i := range members {
		k, err := crypto.GenerateKey()
		require.NoError(t, err)
		members[i] = crypto.PubkeyToAddress(k.PublicKey)
		require.NoError(t, l.AddAuthorized(ctx, owner, members[i]))
	}

	require.NoError(t, l.RemoveAuthorized(ctx, owner, members[1]))
	require.ErrorIs(t, l.RemoveAuthorized(ctx, owner, members[1]), custody.ErrNotAuthorized)

	list, err := l.Authorized(ctx)
	require.NoError(t, err)
	assert.Equal(t, []custody.Address{members[0], members[3], members[2]}, list)

	_, err = l.AuthorizedAt(ctx, 3)
	require.ErrorIs(t, err, custody.ErrIndexOutOfRange)
}
