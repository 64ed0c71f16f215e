package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/krealm/internal/middlewares"
	"github.com/khanghh/krealm/internal/webhooks"
)

type WebhookHandler struct {
	webhookService WebhookService
}

type webhookRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Endpoint    *string  `json:"endpoint"`
	Triggers    []string `json:"triggers"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *WebhookHandler) GetWebhooks(ctx *fiber.Ctx) error {
	list, err := h.webhookService.ListWebhooks(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(mapSlice(list, newWebhookResponse)))
}

func (h *WebhookHandler) PostWebhook(ctx *fiber.Ctx) error {
	var body webhookRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	webhook, err := h.webhookService.CreateWebhook(ctx.Context(), middlewares.GetIdentity(ctx), webhooks.CreateWebhookParams{
		RealmName:   ctx.Params("realm"),
		Name:        deref(body.Name),
		Description: deref(body.Description),
		Endpoint:    deref(body.Endpoint),
		Triggers:    body.Triggers,
	})
	if err != nil {
		return mapError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newWebhookResponse(webhook)))
}

func (h *WebhookHandler) GetWebhook(ctx *fiber.Ctx) error {
	webhook, err := h.webhookService.GetWebhook(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newWebhookResponse(webhook)))
}

func (h *WebhookHandler) PutWebhook(ctx *fiber.Ctx) error {
	var body webhookRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	webhook, err := h.webhookService.UpdateWebhook(ctx.Context(), middlewares.GetIdentity(ctx), webhooks.UpdateWebhookParams{
		RealmName:   ctx.Params("realm"),
		WebhookID:   ctx.Params("id"),
		Name:        body.Name,
		Description: body.Description,
		Endpoint:    body.Endpoint,
		Triggers:    body.Triggers,
	})
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newWebhookResponse(webhook)))
}

func (h *WebhookHandler) DeleteWebhook(ctx *fiber.Ctx) error {
	if err := h.webhookService.DeleteWebhook(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id")); err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func NewWebhookHandler(webhookService WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}
