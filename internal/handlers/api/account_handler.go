package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/krealm/internal/middlewares"
)

type AccountHandler struct {
	accountService AccountService
}

type verifyOTPRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
	Label  string `json:"label"`
}

type recoveryCodesRequest struct {
	Format string `json:"format"`
	Code   string `json:"code"`
}

type recoveryCodesResponse struct {
	Codes []string `json:"codes"`
}

func (h *AccountHandler) PostSetupOTP(ctx *fiber.Ctx) error {
	setup, err := h.accountService.SetupTOTP(ctx.Context(), middlewares.GetIdentity(ctx))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(setup))
}

func (h *AccountHandler) PostVerifyOTP(ctx *fiber.Ctx) error {
	var body verifyOTPRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	err := h.accountService.EnrollTOTP(ctx.Context(), middlewares.GetIdentity(ctx), body.Secret, body.Code, body.Label)
	if err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *AccountHandler) PostDisableOTP(ctx *fiber.Ctx) error {
	if err := h.accountService.DisableTOTP(ctx.Context(), middlewares.GetIdentity(ctx)); err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *AccountHandler) PostGenerateRecoveryCodes(ctx *fiber.Ctx) error {
	var body recoveryCodesRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	codes, err := h.accountService.GenerateRecoveryCodes(ctx.Context(), middlewares.GetIdentity(ctx), body.Format)
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(recoveryCodesResponse{Codes: codes}))
}

func (h *AccountHandler) PostBurnRecoveryCode(ctx *fiber.Ctx) error {
	var body recoveryCodesRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	err := h.accountService.BurnRecoveryCode(ctx.Context(), middlewares.GetIdentity(ctx), body.Code, body.Format)
	if err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func NewAccountHandler(accountService AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}
