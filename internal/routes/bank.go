package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/bankledger/internal/bank"
)

// RegisterBankRoutes wires the bank ledger endpoints.
func RegisterBankRoutes(r fiber.Router, svc *bank.Service, callerMW []fiber.Handler) {
	bank.NewHandler(svc).Register(r, callerMW...)
}
