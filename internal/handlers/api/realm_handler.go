package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/krealm/internal/middlewares"
	"github.com/khanghh/krealm/model"
)

type RealmHandler struct {
	realmService RealmService
}

type realmRequest struct {
	Name string `json:"name"`
}

type realmSettingsRequest struct {
	DefaultSigningAlgorithm string `json:"default_signing_algorithm"`
}

func (h *RealmHandler) GetRealms(ctx *fiber.Ctx) error {
	realms, err := h.realmService.ListRealms(ctx.Context(), middlewares.GetIdentity(ctx))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(mapSlice(realms, newRealmResponse)))
}

func (h *RealmHandler) PostRealm(ctx *fiber.Ctx) error {
	var body realmRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	realm, err := h.realmService.CreateRealm(ctx.Context(), middlewares.GetIdentity(ctx), body.Name)
	if err != nil {
		return mapError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newRealmResponse(realm)))
}

func (h *RealmHandler) GetRealm(ctx *fiber.Ctx) error {
	realm, err := h.realmService.GetRealm(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newRealmResponse(realm)))
}

func (h *RealmHandler) PutRealm(ctx *fiber.Ctx) error {
	var body realmRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	realm, err := h.realmService.UpdateRealm(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), body.Name)
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newRealmResponse(realm)))
}

func (h *RealmHandler) DeleteRealm(ctx *fiber.Ctx) error {
	if err := h.realmService.DeleteRealm(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm")); err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func settingsResponse(settings *model.RealmSetting) realmSettingsResponse {
	return realmSettingsResponse{
		RealmID:                 settings.RealmID,
		DefaultSigningAlgorithm: settings.DefaultSigningAlgorithm,
		UpdatedAt:               settings.UpdatedAt,
	}
}

func (h *RealmHandler) GetRealmSettings(ctx *fiber.Ctx) error {
	settings, err := h.realmService.GetRealmSettings(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(settingsResponse(settings)))
}

func (h *RealmHandler) PutRealmSettings(ctx *fiber.Ctx) error {
	var body realmSettingsRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	settings, err := h.realmService.UpdateRealmSettings(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), body.DefaultSigningAlgorithm)
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(settingsResponse(settings)))
}

func NewRealmHandler(realmService RealmService) *RealmHandler {
	return &RealmHandler{realmService: realmService}
}
