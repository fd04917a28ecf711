package token

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/bankledger/internal/amount"
	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/middleware"
	"github.com/congo-pay/bankledger/internal/whitelist"
)

// Handler exposes the token ledger over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a token handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the token endpoints on r.
func (h *Handler) Register(r fiber.Router, callerMW ...fiber.Handler) {
	r.Get("/balances/:account", h.Balance)
	r.Get("/accounts/:account", h.Account)

	r.Post("/accounts", middleware.Chain(callerMW, h.RegisterAccount)...)
	r.Post("/mint", middleware.Chain(callerMW, h.Mint)...)
	r.Post("/credits", middleware.Chain(callerMW, h.Credit)...)
	r.Post("/debits", middleware.Chain(callerMW, h.Debit)...)
	r.Post("/transfers", middleware.Chain(callerMW, h.Transfer)...)
	r.Post("/transfer-calls", middleware.Chain(callerMW, h.TransferCall)...)
	r.Post("/deposits", middleware.Chain(callerMW, h.Deposit)...)
	r.Post("/withdrawals", middleware.Chain(callerMW, h.Withdraw)...)

	whitelist.NewHandler(h.service).Register(r, callerMW...)
}

type accountValue struct {
	Account string        `json:"account"`
	Amount  amount.Amount `json:"amount"`
}

type receiverValue struct {
	Receiver string        `json:"receiver"`
	Amount   amount.Amount `json:"amount"`
	Msg      string        `json:"msg,omitempty"`
}

// Balance returns the tokens held by an account.
func (h *Handler) Balance(c *fiber.Ctx) error {
	account := c.Params("account")
	balance, err := h.service.BalanceOf(c.UserContext(), account)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"account": account, "balance": balance})
}

// Account reports whether an account was opened.
func (h *Handler) Account(c *fiber.Ctx) error {
	account := c.Params("account")
	ok, err := h.service.IsRegistered(c.UserContext(), account)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"account": account, "registered": ok})
}

// RegisterAccount opens an account. Owner only.
func (h *Handler) RegisterAccount(c *fiber.Ctx) error {
	var req accountValue
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.RegisterAccount(c.UserContext(), middleware.CallerFrom(c), req.Account); err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"account": req.Account, "registered": true})
}

// Mint creates value. Owner only.
func (h *Handler) Mint(c *fiber.Ctx) error {
	return h.adjust(c, h.service.CreateValue)
}

// Credit adds value on behalf of a whitelisted caller.
func (h *Handler) Credit(c *fiber.Ctx) error {
	return h.adjust(c, h.service.AddValue)
}

// Debit removes value on behalf of a whitelisted caller.
func (h *Handler) Debit(c *fiber.Ctx) error {
	return h.adjust(c, h.service.RmValue)
}

type adjustFunc func(ctx context.Context, caller, account string, value amount.Amount) (amount.Amount, error)

func (h *Handler) adjust(c *fiber.Ctx, fn adjustFunc) error {
	var req accountValue
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	balance, err := fn(c.UserContext(), middleware.CallerFrom(c), req.Account, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"account": req.Account, "balance": balance})
}

// Transfer moves value between registered accounts.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req receiverValue
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Transfer(c.UserContext(), middleware.CallerFrom(c), req.Receiver, req.Amount); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"receiver": req.Receiver, "amount": req.Amount})
}

// TransferCall delivers value and a message to a receiving ledger.
func (h *Handler) TransferCall(c *fiber.Ctx) error {
	var req receiverValue
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	kept, err := h.service.TransferCall(c.UserContext(), middleware.CallerFrom(c), req.Receiver, req.Amount, req.Msg)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"receiver": req.Receiver, "accepted": kept})
}

// Deposit sends value into a receiving ledger as a deposit.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req receiverValue
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	kept, err := h.service.Deposit(c.UserContext(), middleware.CallerFrom(c), req.Receiver, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"receiver": req.Receiver, "accepted": kept})
}

// Withdraw pulls value back out of a receiving ledger.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req receiverValue
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Withdraw(c.UserContext(), middleware.CallerFrom(c), req.Receiver, req.Amount); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"receiver": req.Receiver, "withdrawn": req.Amount})
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
	case errors.Is(err, ErrNotRegistered), errors.Is(err, ErrUnknownReceiver):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidKey), errors.Is(err, amount.ErrInvalid):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, amount.ErrOverflow):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrRefused):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
