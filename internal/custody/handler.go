package custody

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/fundauth/internal/middleware"
	"github.com/congo-pay/fundauth/internal/units"
)

const defaultEventPage = 100

// Handler exposes the ledger over HTTP.
type Handler struct {
	ledger   *Ledger
	decimals int32
	validate *validator.Validate
}

// NewHandler builds the ledger HTTP handler. decimals controls the
// formatted amount fields in responses.
func NewHandler(ledger *Ledger, decimals int32) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{ledger: ledger, decimals: decimals, validate: v}
}

type depositRequest struct {
	Amount string `json:"amount" validate:"required,number,max=78"`
}

type authorizeRequest struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

type transferRequest struct {
	Recipient string `json:"recipient" validate:"required,eth_addr"`
	Amount    string `json:"amount" validate:"required,number,max=78"`
	Nonce     string `json:"nonce" validate:"required,hexadecimal,len=66"`
	Signature string `json:"signature" validate:"required,hexadecimal,len=132"`
}

type ledgerResponse struct {
	Identity         string `json:"identity"`
	Owner            string `json:"owner"`
	Balance          string `json:"balance"`
	BalanceFormatted string `json:"balance_formatted"`
	AuthorizedCount  int    `json:"authorized_count"`
}

type eventResponse struct {
	ID              string `json:"id"`
	Sequence        int64  `json:"sequence"`
	Kind            string `json:"kind"`
	Counterparty    string `json:"counterparty"`
	Caller          string `json:"caller"`
	Amount          string `json:"amount"`
	AmountFormatted string `json:"amount_formatted"`
	Nonce           string `json:"nonce,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

func (h *Handler) toEventResponse(e Event) eventResponse {
	out := eventResponse{
		ID:              e.ID,
		Sequence:        e.Sequence,
		Kind:            e.Kind,
		Counterparty:    e.Counterparty.Hex(),
		Caller:          e.Caller.Hex(),
		Amount:          e.Amount.String(),
		AmountFormatted: units.Format(e.Amount, h.decimals),
		OccurredAt:      e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Nonce != nil {
		out.Nonce = e.Nonce.Hex()
	}
	return out
}

// Summary reports identity, owner, balance and authorized set size.
func (h *Handler) Summary(c *fiber.Ctx) error {
	ctx := c.UserContext()
	balance, err := h.ledger.Balance(ctx)
	if err != nil {
		return toHTTPError(err)
	}
	count, err := h.ledger.AuthorizedCount(ctx)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(ledgerResponse{
		Identity:         h.ledger.Identity().Hex(),
		Owner:            h.ledger.Owner().Hex(),
		Balance:          balance.String(),
		BalanceFormatted: units.Format(balance, h.decimals),
		AuthorizedCount:  count,
	})
}

// Deposit credits the pool on behalf of the authenticated caller.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	sender, err := callerOf(c)
	if err != nil {
		return err
	}
	var req depositRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	amount, err := units.ParseInteger(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ev, err := h.ledger.Deposit(c.UserContext(), sender, amount)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(h.toEventResponse(ev))
}

// ListAuthorized enumerates the authorized set.
func (h *Handler) ListAuthorized(c *fiber.Ctx) error {
	members, err := h.ledger.Authorized(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Hex()
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"authorized": out, "count": len(out)})
}

// CountAuthorized returns the authorized set size.
func (h *Handler) CountAuthorized(c *fiber.Ctx) error {
	n, err := h.ledger.AuthorizedCount(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"count": n})
}

// AuthorizedAt returns the member at the :index position.
func (h *Handler) AuthorizedAt(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "index must be an integer")
	}
	addr, err := h.ledger.AuthorizedAt(c.UserContext(), index)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"index": index, "address": addr.Hex()})
}

// AddAuthorized adds an address to the authorized set. Owner only.
func (h *Handler) AddAuthorized(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var req authorizeRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	addr := common.HexToAddress(req.Address)
	if err := h.ledger.AddAuthorized(c.UserContext(), caller, addr); err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"address": addr.Hex()})
}

// RemoveAuthorized drops the :address member. Owner only.
func (h *Handler) RemoveAuthorized(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	raw := c.Params("address")
	if !common.IsHexAddress(raw) {
		return fiber.NewError(http.StatusBadRequest, "address must be a 20 byte hex address")
	}
	if err := h.ledger.RemoveAuthorized(c.UserContext(), caller, common.HexToAddress(raw)); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Transfer relays an owner-signed transfer as the authenticated caller.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	amount, err := units.ParseInteger(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	nonce, err := ParseNonce(req.Nonce)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, fmt.Sprintf("signature: %v", err))
	}

	ev, err := h.ledger.Transfer(c.UserContext(), caller, TransferRequest{
		Recipient: common.HexToAddress(req.Recipient),
		Amount:    amount,
		Nonce:     nonce,
		Signature: sig,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(h.toEventResponse(ev))
}

// NonceStatus reports whether the :nonce was consumed.
func (h *Handler) NonceStatus(c *fiber.Ctx) error {
	nonce, err := ParseNonce(c.Params("nonce"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	used, err := h.ledger.NonceUsed(c.UserContext(), nonce)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"nonce": nonce.Hex(), "used": used})
}

// Events pages through the event log using the after and limit query parameters.
func (h *Handler) Events(c *fiber.Ctx) error {
	after := c.QueryInt("after", 0)
	limit := c.QueryInt("limit", defaultEventPage)
	if after < 0 || limit <= 0 {
		return fiber.NewError(http.StatusBadRequest, "after must be >= 0 and limit > 0")
	}
	if limit > maxEventPage {
		limit = maxEventPage
	}
	events, err := h.ledger.Events(c.UserContext(), int64(after), limit)
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]eventResponse, len(events))
	for i, e := range events {
		out[i] = h.toEventResponse(e)
	}
	next := int64(after)
	if len(events) > 0 {
		next = events[len(events)-1].Sequence
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"events": out, "next_after": next})
}

func (h *Handler) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fiber.NewError(http.StatusBadRequest, fmt.Sprintf("field '%s' failed '%s' validation", fe.Field(), fe.Tag()))
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func callerOf(c *fiber.Ctx) (Address, error) {
	addr, ok := middleware.CallerAddress(c)
	if !ok {
		return Address{}, fiber.NewError(http.StatusUnauthorized, "caller not authenticated")
	}
	return addr, nil
}

func toHTTPError(err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInsufficientFunds):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrIndexOutOfRange), errors.Is(err, ErrLedgerNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrAlreadyAuthorized), errors.Is(err, ErrNonceReused):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalidSignature):
		status = http.StatusUnprocessableEntity
	default:
		return fiber.NewError(status, "internal error")
	}
	return fiber.NewError(status, err.Error())
}
