package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/fundauth/internal/custody"
)

type ledgerGuards struct {
	auth        fiber.Handler
	idempotency fiber.Handler
	rateLimit   fiber.Handler
}

// RegisterLedgerRoutes wires the fund authorization ledger endpoints.
func RegisterLedgerRoutes(r fiber.Router, h *custody.Handler, g ledgerGuards) {
	group := r.Group("/ledger")

	group.Get("/", h.Summary)
	group.Post("/deposits", chain(h.Deposit, g.auth, g.idempotency)...)

	// count must be registered before :index
	group.Get("/authorized", h.ListAuthorized)
	group.Get("/authorized/count", h.CountAuthorized)
	group.Get("/authorized/:index", h.AuthorizedAt)
	group.Post("/authorized", chain(h.AddAuthorized, g.auth)...)
	group.Delete("/authorized/:address", chain(h.RemoveAuthorized, g.auth)...)

	group.Post("/transfers", chain(h.Transfer, g.auth, g.rateLimit)...)
	group.Get("/nonces/:nonce", h.NonceStatus)
	group.Get("/events", h.Events)
}

// chain drops nil middleware and appends the final handler.
func chain(final fiber.Handler, mws ...fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(mws)+1)
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return append(out, final)
}
