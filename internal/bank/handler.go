package bank

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/bankledger/internal/amount"
	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/middleware"
	"github.com/congo-pay/bankledger/internal/relay"
	"github.com/congo-pay/bankledger/internal/whitelist"
)

// Handler exposes the ledger over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a bank handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the ledger endpoints on r. Reads are public; every
// mutation runs behind callerMW.
func (h *Handler) Register(r fiber.Router, callerMW ...fiber.Handler) {
	r.Get("/balances/:counterparty/:account", h.Balance)
	r.Get("/accounts/:account", h.Account)
	r.Get("/relays/:id", h.Relay)

	r.Post("/accounts", middleware.Chain(callerMW, h.RegisterAccount)...)
	r.Post("/notifications", middleware.Chain(callerMW, h.Notify)...)
	r.Post("/transfers", middleware.Chain(callerMW, h.Transfer)...)
	r.Post("/relays/:id/complete", middleware.Chain(callerMW, h.CompleteRelay)...)

	whitelist.NewHandler(h.service).Register(r, callerMW...)
}

// Balance returns the amount held for an account on behalf of a counterparty.
func (h *Handler) Balance(c *fiber.Ctx) error {
	counterparty, account := c.Params("counterparty"), c.Params("account")
	balance, err := h.service.BalanceOf(c.UserContext(), counterparty, account)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"counterparty": counterparty,
		"account":      account,
		"balance":      balance,
	})
}

// Account reports whether an account was registered.
func (h *Handler) Account(c *fiber.Ctx) error {
	account := c.Params("account")
	ok, err := h.service.IsRegistered(c.UserContext(), account)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"account": account, "registered": ok})
}

type registerRequest struct {
	Account string `json:"account"`
}

// RegisterAccount registers an account. Owner only.
func (h *Handler) RegisterAccount(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.RegisterAccount(c.UserContext(), middleware.CallerFrom(c), req.Account); err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"account": req.Account, "registered": true})
}

// Notify applies an inbound transfer notification from the authenticated counterparty.
func (h *Handler) Notify(c *fiber.Ctx) error {
	var req Notification
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	receipt, err := h.service.HandleNotification(c.UserContext(), middleware.CallerFrom(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(receipt)
}

// Transfer starts a relay out of the ledger.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.service.Transfer(c.UserContext(), middleware.CallerFrom(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusAccepted).JSON(rec)
}

// Relay returns a relay record.
func (h *Handler) Relay(c *fiber.Ctx) error {
	rec, err := h.service.Relay(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(rec)
}

// CompleteRelay delivers the counterparty's outcome for a relay.
func (h *Handler) CompleteRelay(c *fiber.Ctx) error {
	var outcome relay.Outcome
	if err := c.BodyParser(&outcome); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.service.CompleteRelay(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), outcome)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(rec)
}

func writeError(c *fiber.Ctx, err error) error {
	var insufficient *ledger.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"error":     ErrInsufficientBalance.Error(),
			"account":   insufficient.Key.Account,
			"balance":   insufficient.Balance,
			"requested": insufficient.Requested,
		})
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrMalformedMessage),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidAccount),
		errors.Is(err, ledger.ErrInvalidKey),
		errors.Is(err, amount.ErrInvalid):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrArithmeticOverflow):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, relay.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, relay.ErrAlreadyResolved):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
