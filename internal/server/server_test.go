package server

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/fundauth/internal/config"
	"github.com/congo-pay/fundauth/internal/logging"
)

func TestServerRendersJSONErrors(t *testing.T) {
	cfg := config.Config{
		AppName:       "FundAuth",
		AppEnv:        "test",
		Port:          "0",
		LedgerAddress: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		OwnerAddress:  common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		UnitDecimals:  18,
	}
	srv, err := New(cfg, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/ledger/authorized/7", nil)
	resp, err := srv.App().Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"error":"index out of range"`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestServerRejectsMissingBackendsInProduction(t *testing.T) {
	cfg := config.Config{AppEnv: "production"}
	if _, err := New(cfg, nil, nil, logging.Discard()); err == nil {
		t.Fatal("expected error without postgres and redis")
	}
}
