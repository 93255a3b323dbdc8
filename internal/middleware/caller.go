package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/fundauth/internal/caller"
)

const (
	// CallerAddressHeader carries the address the request is attributed to.
	CallerAddressHeader = "X-Caller-Address"
	callerLocal         = "caller_address"
)

// CallerAuth authenticates the X-Caller-Address header against the bearer
// API key registered for it and stores the address in request locals.
func CallerAuth(svc *caller.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(CallerAddressHeader))
		if !common.IsHexAddress(raw) {
			return fiber.NewError(http.StatusUnauthorized, "missing or invalid "+CallerAddressHeader+" header")
		}
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer api key")
		}
		key := strings.TrimSpace(authz[len("Bearer "):])
		addr := common.HexToAddress(raw)

		if err := svc.Authenticate(c.UserContext(), addr, key); err != nil {
			if errors.Is(err, caller.ErrUnknownCaller) || errors.Is(err, caller.ErrInvalidKey) {
				return fiber.NewError(http.StatusUnauthorized, "invalid caller credentials")
			}
			return fiber.NewError(http.StatusInternalServerError, "caller lookup failed")
		}

		c.Locals(callerLocal, addr)
		return c.Next()
	}
}

// CallerAddress returns the authenticated caller set by CallerAuth.
func CallerAddress(c *fiber.Ctx) (common.Address, bool) {
	addr, ok := c.Locals(callerLocal).(common.Address)
	return addr, ok
}
