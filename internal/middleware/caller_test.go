package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/fundauth/internal/caller"
)

const aliceKey = "alice-api-key-000000"

func callerApp(t *testing.T) *fiber.App {
	t.Helper()
	svc := caller.NewService(caller.NewMemoryRepository())
	if err := svc.Register(context.Background(), common.HexToAddress(aliceHex), aliceKey, bcrypt.MinCost); err != nil {
		t.Fatalf("register: %v", err)
	}
	app := fiber.New()
	app.Get("/whoami", CallerAuth(svc), func(c *fiber.Ctx) error {
		addr, ok := CallerAddress(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(addr.Hex())
	})
	return app
}

func TestCallerAuth(t *testing.T) {
	app := callerApp(t)

	cases := []struct {
		name   string
		addr   string
		authz  string
		status int
	}{
		{"valid", aliceHex, "Bearer " + aliceKey, fiber.StatusOK},
		{"lowercase scheme", aliceHex, "bearer " + aliceKey, fiber.StatusOK},
		{"missing address", "", "Bearer " + aliceKey, fiber.StatusUnauthorized},
		{"bad address", "0x1234", "Bearer " + aliceKey, fiber.StatusUnauthorized},
		{"missing key", aliceHex, "", fiber.StatusUnauthorized},
		{"wrong key", aliceHex, "Bearer not-the-right-key", fiber.StatusUnauthorized},
		{"unknown caller", bobHex, "Bearer " + aliceKey, fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
			if tc.addr != "" {
				req.Header.Set(CallerAddressHeader, tc.addr)
			}
			if tc.authz != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.authz)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.StatusCode)
			}
		})
	}
}
