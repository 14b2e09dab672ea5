// Package middleware carries the cross-cutting HTTP concerns: the admin
// bearer guard and the Prometheus request instrumentation
package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/printshop-os/pricing-engine/app/dto"
	"github.com/printshop-os/pricing-engine/app/services"
)

const adminSubjectLocal = "admin_subject"

// AuthMiddleware guards the rule management and cache administration
// endpoints. Pricing endpoints stay open.
type AuthMiddleware struct {
	tokenVerifier services.TokenVerifier
}

func NewAuthMiddleware(tokenVerifier services.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		tokenVerifier: tokenVerifier,
	}
}

// AdminAuthenticate verifies the bearer token minted by the platform identity
// service and exposes the acting subject to downstream handlers.
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "MISSING_AUTHORIZATION_HEADER", "Authorization header is required")
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return unauthorized(c, "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'")
		}
		if token == "" {
			return unauthorized(c, "MISSING_ACCESS_TOKEN", "Access token is required")
		}

		claims, err := m.tokenVerifier.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "TOKEN_EXPIRED", "Access token has expired")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "TOKEN_INVALID", "Invalid access token")
			default:
				return unauthorized(c, "TOKEN_VALIDATION_FAILED", "Token validation failed")
			}
		}

		c.Locals(adminSubjectLocal, claims.Subject)

		return c.Next()
	}
}

// AdminSubjectFromLocals returns the subject stored by AdminAuthenticate.
func AdminSubjectFromLocals(c fiber.Ctx) (string, bool) {
	subject, ok := c.Locals(adminSubjectLocal).(string)
	return subject, ok && subject != ""
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}
