package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/krealm/internal/clients"
	"github.com/khanghh/krealm/internal/middlewares"
	"github.com/khanghh/krealm/model"
)

type ClientHandler struct {
	clientService ClientService
	roleService   RoleService
}

type createClientRequest struct {
	ClientID                  string   `json:"client_id"`
	Name                      string   `json:"name"`
	PublicClient              bool     `json:"public_client"`
	ServiceAccountEnabled     bool     `json:"service_account_enabled"`
	DirectAccessGrantsEnabled bool     `json:"direct_access_grants_enabled"`
	RedirectURIs              []string `json:"redirect_uris"`
}

type updateClientRequest struct {
	Name                      *string `json:"name"`
	Enabled                   *bool   `json:"enabled"`
	ServiceAccountEnabled     *bool   `json:"service_account_enabled"`
	DirectAccessGrantsEnabled *bool   `json:"direct_access_grants_enabled"`
}

type redirectURIRequest struct {
	Value   *string `json:"value"`
	Enabled *bool   `json:"enabled"`
}

func (h *ClientHandler) GetClients(ctx *fiber.Ctx) error {
	list, err := h.clientService.ListClients(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(mapSlice(list, func(c *model.Client) clientResponse {
		return newClientResponse(c, false)
	})))
}

func (h *ClientHandler) PostClient(ctx *fiber.Ctx) error {
	var body createClientRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	client, err := h.clientService.CreateClient(ctx.Context(), middlewares.GetIdentity(ctx), clients.CreateClientParams{
		RealmName:                 ctx.Params("realm"),
		ClientID:                  body.ClientID,
		Name:                      body.Name,
		PublicClient:              body.PublicClient,
		ServiceAccountEnabled:     body.ServiceAccountEnabled,
		DirectAccessGrantsEnabled: body.DirectAccessGrantsEnabled,
		RedirectURIs:              body.RedirectURIs,
	})
	if err != nil {
		return mapError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newClientResponse(client, true)))
}

func (h *ClientHandler) GetClient(ctx *fiber.Ctx) error {
	client, err := h.clientService.GetClient(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newClientResponse(client, false)))
}

func (h *ClientHandler) PutClient(ctx *fiber.Ctx) error {
	var body updateClientRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	client, err := h.clientService.UpdateClient(ctx.Context(), middlewares.GetIdentity(ctx), clients.UpdateClientParams{
		RealmName:                 ctx.Params("realm"),
		ID:                        ctx.Params("id"),
		Name:                      body.Name,
		Enabled:                   body.Enabled,
		ServiceAccountEnabled:     body.ServiceAccountEnabled,
		DirectAccessGrantsEnabled: body.DirectAccessGrantsEnabled,
	})
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newClientResponse(client, false)))
}

func (h *ClientHandler) DeleteClient(ctx *fiber.Ctx) error {
	if err := h.clientService.DeleteClient(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id")); err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *ClientHandler) PostClientSecret(ctx *fiber.Ctx) error {
	client, err := h.clientService.RegenerateSecret(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newClientResponse(client, true)))
}

func (h *ClientHandler) GetClientRoles(ctx *fiber.Ctx) error {
	list, err := h.roleService.ListClientRoles(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(mapSlice(list, newRoleResponse)))
}

func (h *ClientHandler) GetRedirectURIs(ctx *fiber.Ctx) error {
	list, err := h.clientService.ListRedirectURIs(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(mapSlice(list, newRedirectURIResponse)))
}

func (h *ClientHandler) PostRedirectURI(ctx *fiber.Ctx) error {
	var body redirectURIRequest
	if err := ctx.BodyParser(&body); err != nil || body.Value == nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	enabled := body.Enabled == nil || *body.Enabled
	uri, err := h.clientService.CreateRedirectURI(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"), *body.Value, enabled)
	if err != nil {
		return mapError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newRedirectURIResponse(uri)))
}

func (h *ClientHandler) PutRedirectURI(ctx *fiber.Ctx) error {
	var body redirectURIRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	uri, err := h.clientService.UpdateRedirectURI(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"), ctx.Params("uri_id"), body.Value, body.Enabled)
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newRedirectURIResponse(uri)))
}

func (h *ClientHandler) DeleteRedirectURI(ctx *fiber.Ctx) error {
	err := h.clientService.DeleteRedirectURI(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"), ctx.Params("uri_id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func NewClientHandler(clientService ClientService, roleService RoleService) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
		roleService:   roleService,
	}
}
