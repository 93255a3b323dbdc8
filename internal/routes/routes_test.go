package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/fundauth/internal/caller"
	"github.com/congo-pay/fundauth/internal/config"
	"github.com/congo-pay/fundauth/internal/events"
	"github.com/congo-pay/fundauth/internal/logging"
	"github.com/congo-pay/fundauth/internal/middleware"
)

var (
	ledgerAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	ownerAddr  = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	senderAddr = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

const senderKey = "sender-api-key-000000"

func setupApp(t *testing.T) (*fiber.App, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	hash, err := caller.HashKey(senderKey, bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Config{
		AppName:           "FundAuth",
		AppEnv:            "test",
		LedgerAddress:     ledgerAddr,
		OwnerAddress:      ownerAddr,
		CallerCredentials: map[common.Address]string{senderAddr: string(hash)},
		IdempotencyTTL:    time.Minute,
		TransferRateLimit: 60,
		UnitDecimals:      18,
	}
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logger)})
	require.NoError(t, Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logger}))
	return app, cache
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	app := fiber.New()
	err := Setup(app, Deps{Cfg: config.Config{AppEnv: "production"}, Logger: logging.Discard()})
	require.Error(t, err)
}

func TestHealthAndPing(t *testing.T) {
	app, _ := setupApp(t)

	status, body := doJSON(t, app, fiber.MethodGet, "/healthz", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "disabled", "redis": "ok"}, body["status"])

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/ping", "", map[string]string{"X-Request-ID": "req-1"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "req-1", body["request_id"])
}

func TestDepositIsIdempotentAndPublished(t *testing.T) {
	app, cache := setupApp(t)
	headers := map[string]string{
		middleware.CallerAddressHeader: senderAddr.Hex(),
		fiber.HeaderAuthorization:      "Bearer " + senderKey,
		"Idempotency-Key":              "deposit-1",
	}

	status, first := doJSON(t, app, fiber.MethodPost, "/api/v1/ledger/deposits", `{"amount":"500"}`, headers)
	require.Equal(t, fiber.StatusCreated, status, first)
	status, second := doJSON(t, app, fiber.MethodPost, "/api/v1/ledger/deposits", `{"amount":"500"}`, headers)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, first["id"], second["id"])

	status, summary := doJSON(t, app, fiber.MethodGet, "/api/v1/ledger", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "500", summary["balance"])
	assert.Equal(t, ownerAddr.Hex(), summary["owner"])
	assert.Equal(t, ledgerAddr.Hex(), summary["identity"])

	msgs, err := cache.XRange(context.Background(), events.StreamKey(ledgerAddr), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "FundsReceived", msgs[0].Values["kind"])
}

func TestDepositRequiresIdempotencyKey(t *testing.T) {
	app, _ := setupApp(t)
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/ledger/deposits", `{"amount":"1"}`, map[string]string{
		middleware.CallerAddressHeader: senderAddr.Hex(),
		fiber.HeaderAuthorization:      "Bearer " + senderKey,
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"], "Idempotency-Key")
}
