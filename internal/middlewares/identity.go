package middlewares

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/krealm/internal/policy"
)

const identityLocalKey = "identity"

type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, bearer string) (policy.Identity, error)
}

func bearerToken(ctx *fiber.Ctx) string {
	scheme, token, ok := strings.Cut(ctx.Get(fiber.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireIdentity rejects requests without a valid bearer access token and
// stores the resolved identity for the handlers.
func RequireIdentity(resolver IdentityResolver) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token := bearerToken(ctx)
		if token == "" {
			ctx.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return fiber.NewError(fiber.StatusUnauthorized, "Missing bearer token")
		}
		identity, err := resolver.ResolveIdentity(ctx.UserContext(), token)
		if err != nil {
			ctx.Set(fiber.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid bearer token")
		}
		ctx.Locals(identityLocalKey, identity)
		return ctx.Next()
	}
}

func GetIdentity(ctx *fiber.Ctx) policy.Identity {
	identity, _ := ctx.Locals(identityLocalKey).(policy.Identity)
	return identity
}
