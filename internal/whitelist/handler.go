package whitelist

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/congo-pay/bankledger/internal/middleware"
)

// Ledger is a ledger that exposes whitelist administration.
type Ledger interface {
	Gate() *Gate
	WhitelistContains(ctx context.Context, identity string) (bool, error)
	WhitelistAdd(ctx context.Context, caller, identity string) error
	WhitelistRemove(ctx context.Context, caller, identity string) error
}

// Handler exposes whitelist administration over HTTP.
type Handler struct {
	ledger Ledger
}

// NewHandler constructs a whitelist handler for ledger.
func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// Register mounts the whitelist endpoints under r. Mutations go through
// callerMW so the administrator identity is authenticated.
func (h *Handler) Register(r fiber.Router, callerMW ...fiber.Handler) {
	r.Get("/whitelist", h.List)
	r.Get("/whitelist/:identity", h.Contains)
	r.Put("/whitelist/:identity", middleware.Chain(callerMW, h.Add)...)
	r.Delete("/whitelist/:identity", middleware.Chain(callerMW, h.Remove)...)
}

// List returns every whitelisted identity.
func (h *Handler) List(c *fiber.Ctx) error {
	gate := h.ledger.Gate()
	members, err := gate.Members(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"owner": gate.Owner(), "members": members})
}

// Contains reports membership of a single identity.
func (h *Handler) Contains(c *fiber.Ctx) error {
	identity := c.Params("identity")
	ok, err := h.ledger.WhitelistContains(c.UserContext(), identity)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"identity": identity, "whitelisted": ok})
}

// Add whitelists the identity in the path.
func (h *Handler) Add(c *fiber.Ctx) error {
	// fiber reuses the request buffer; the stored identity must own its bytes.
	identity := utils.CopyString(c.Params("identity"))
	if err := h.ledger.WhitelistAdd(c.UserContext(), middleware.CallerFrom(c), identity); err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"identity": identity, "whitelisted": true})
}

// Remove drops the identity in the path.
func (h *Handler) Remove(c *fiber.Ctx) error {
	identity := utils.CopyString(c.Params("identity"))
	if err := h.ledger.WhitelistRemove(c.UserContext(), middleware.CallerFrom(c), identity); err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"identity": identity, "whitelisted": false})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrEmptyIdentity):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
