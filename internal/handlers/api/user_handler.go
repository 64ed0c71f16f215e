package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/krealm/internal/middlewares"
	"github.com/khanghh/krealm/internal/users"
)

type UserHandler struct {
	userService UserService
}

type createUserRequest struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
}

type updateUserRequest struct {
	Email         *string `json:"email"`
	EmailVerified *bool   `json:"email_verified"`
	Firstname     *string `json:"firstname"`
	Lastname      *string `json:"lastname"`
	Enabled       *bool   `json:"enabled"`
}

type bulkDeleteUsersRequest struct {
	IDs []string `json:"ids"`
}

type bulkDeleteUsersResponse struct {
	Count int64 `json:"count"`
}

type resetPasswordRequest struct {
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

func (h *UserHandler) GetUsers(ctx *fiber.Ctx) error {
	list, err := h.userService.ListUsers(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(mapSlice(list, newUserResponse)))
}

func (h *UserHandler) PostUser(ctx *fiber.Ctx) error {
	var body createUserRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	user, err := h.userService.CreateUser(ctx.Context(), middlewares.GetIdentity(ctx), users.CreateUserParams{
		RealmName:     ctx.Params("realm"),
		Username:      body.Username,
		Email:         body.Email,
		EmailVerified: body.EmailVerified,
		Firstname:     body.Firstname,
		Lastname:      body.Lastname,
	})
	if err != nil {
		return mapError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newUserResponse(user)))
}

func (h *UserHandler) DeleteUsers(ctx *fiber.Ctx) error {
	var body bulkDeleteUsersRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	count, err := h.userService.BulkDeleteUsers(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), body.IDs)
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(bulkDeleteUsersResponse{Count: count}))
}

func (h *UserHandler) GetUser(ctx *fiber.Ctx) error {
	user, err := h.userService.GetUser(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newUserResponse(user)))
}

func (h *UserHandler) PutUser(ctx *fiber.Ctx) error {
	var body updateUserRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	user, err := h.userService.UpdateUser(ctx.Context(), middlewares.GetIdentity(ctx), users.UpdateUserParams{
		RealmName:     ctx.Params("realm"),
		UserID:        ctx.Params("id"),
		Email:         body.Email,
		EmailVerified: body.EmailVerified,
		Firstname:     body.Firstname,
		Lastname:      body.Lastname,
		Enabled:       body.Enabled,
	})
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(newUserResponse(user)))
}

func (h *UserHandler) DeleteUser(ctx *fiber.Ctx) error {
	if err := h.userService.DeleteUser(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id")); err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *UserHandler) GetUserRoles(ctx *fiber.Ctx) error {
	list, err := h.userService.GetUserRoles(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(mapSlice(list, newRoleResponse)))
}

func (h *UserHandler) PostUserRole(ctx *fiber.Ctx) error {
	err := h.userService.AssignRole(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"), ctx.Params("role_id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *UserHandler) DeleteUserRole(ctx *fiber.Ctx) error {
	err := h.userService.UnassignRole(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"), ctx.Params("role_id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *UserHandler) PutResetPassword(ctx *fiber.Ctx) error {
	var body resetPasswordRequest
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	err := h.userService.ResetPassword(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"), body.Value, body.Temporary)
	if err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *UserHandler) GetCredentials(ctx *fiber.Ctx) error {
	list, err := h.userService.ListCredentials(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(NewDataResponse(mapSlice(list, newCredentialResponse)))
}

func (h *UserHandler) DeleteCredential(ctx *fiber.Ctx) error {
	err := h.userService.DeleteCredential(ctx.Context(), middlewares.GetIdentity(ctx), ctx.Params("realm"), ctx.Params("id"), ctx.Params("credential_id"))
	if err != nil {
		return mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func NewUserHandler(userService UserService) *UserHandler {
	return &UserHandler{userService: userService}
}
