package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/krealm/internal/middlewares"
	"github.com/khanghh/krealm/internal/roles"
)

type RoleHandler struct {
	roleService RoleService
}

type createRoleRequest struct {
	ClientID    *string  `json:"client_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type rolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *RoleHandler) GetRoles(ctx *fiber.Ctx) error {
	list, err := h.roleService.ListRoles(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(mapSlice(list, newRoleResponse)))
}

func (h *RoleHandler) PostRole(ctx *fiber.Ctx) error {
	var body createRoleRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	role, err := h.roleService.CreateRole(ctx.Context(), middlewares.GetIdentity(ctx), roles.CreateRoleParams{
		RealmName:   ctx.Params("realm"),
		ClientID:    body.ClientID,
		Name:        body.Name,
		Description: body.Description,
		Permissions: body.Permissions,
	})
	if err != nil {
		return mapError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newRoleResponse(role)))
}

func (h *RoleHandler) GetRole(ctx *fiber.Ctx) error {
	role, err := h.roleService.GetRole(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newRoleResponse(role)))
}

func (h *RoleHandler) PutRole(ctx *fiber.Ctx) error {
	var body updateRoleRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	role, err := h.roleService.UpdateRole(ctx.Context(), middlewares.GetIdentity(ctx), roles.UpdateRoleParams{
		RealmName:   ctx.Params("realm"),
		RoleID:      ctx.Params("id"),
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newRoleResponse(role)))
}

func (h *RoleHandler) PutRolePermissions(ctx *fiber.Ctx) error {
	var body rolePermissionsRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	role, err := h.roleService.UpdateRolePermissions(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"), body.Permissions)
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newRoleResponse(role)))
}

func (h *RoleHandler) DeleteRole(ctx *fiber.Ctx) error {
	if err := h.roleService.DeleteRole(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id")); err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func NewRoleHandler(roleService RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}
