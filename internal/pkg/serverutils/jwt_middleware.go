package serverutils

import (
	"fmt"

	"ai-study-portal-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const ownerLocal = "user_id"

// IdentityMiddleware resolves the caller's owner id from a bearer token in
// the Authorization header or, for browser websockets, the "token" query
// parameter. Requests without a token run as the anonymous owner; a token
// that is present but invalid is rejected.
func IdentityMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := bearerToken(ctx)
		if tokenStr == "" {
			ctx.Locals(ownerLocal, store.AnonymousOwner)
			return ctx.Next()
		}

		userID, err := parseUserID(tokenStr, secret)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		ctx.Locals(ownerLocal, userID)
		return ctx.Next()
	}
}

// Owner returns the identity set by IdentityMiddleware
func Owner(ctx *fiber.Ctx) string {
	if owner, ok := ctx.Locals(ownerLocal).(string); ok && owner != "" {
		return owner
	}
	return store.AnonymousOwner
}

func bearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

func parseUserID(tokenStr, secret string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", fmt.Errorf("token has no user_id")
	}
	return userID, nil
}
