package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/bankledger/internal/token"
)

// RegisterTokenRoutes wires the token ledger endpoints.
func RegisterTokenRoutes(r fiber.Router, svc *token.Service, callerMW []fiber.Handler) {
	token.NewHandler(svc).Register(r, callerMW...)
}
