package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/fundauth/internal/logging"
)

func TestCallerRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Use(asCaller())
	app.Post("/transfers", CallerRateLimit(cache, 2, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func(callerHex string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/transfers", nil)
		req.Header.Set(CallerAddressHeader, callerHex)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	for i := 0; i < 2; i++ {
		if got := send(aliceHex); got != fiber.StatusCreated {
			t.Fatalf("request %d: expected %d got %d", i, fiber.StatusCreated, got)
		}
	}
	if got := send(aliceHex); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d got %d", fiber.StatusTooManyRequests, got)
	}
	if got := send(bobHex); got != fiber.StatusCreated {
		t.Fatalf("other caller should have its own budget, got %d", got)
	}

	// the window resets once the counter expires
	mr.FastForward(61 * time.Second)
	if got := send(aliceHex); got != fiber.StatusCreated {
		t.Fatalf("expected budget reset, got %d", got)
	}
}

func TestCallerRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	mr.Close()

	app := fiber.New()
	app.Post("/transfers", CallerRateLimit(cache, 1, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/transfers", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("expected fail-open, got %d", resp.StatusCode)
		}
	}
}
