package api

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"storefront-service/internal/backend"
	"storefront-service/internal/entity"
	"storefront-service/internal/service"
)

const actorKey = "actor"

// JwtCustomClaims are the claims the storefront backend puts in its tokens.
type JwtCustomClaims struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func jwtMiddleware(secret []byte) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: secret,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JwtCustomClaims)
		},
		// browsers cannot set headers on websocket upgrades
		TokenLookup: "header:Authorization:Bearer ,query:token",
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		},
	})
}

// withActor turns the verified token into a service.Actor and forwards the
// raw token to backend calls made for this request.
func withActor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := c.Get("user").(*jwt.Token)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		claims, ok := token.Claims.(*JwtCustomClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		userID := claims.UserID
		if userID == "" {
			userID = claims.Subject
		}
		role := entity.Role(claims.Role)
		if role == "" {
			role = entity.RoleUser
		}
		if userID == "" || !role.Valid() {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden"})
		}

		c.Set(actorKey, service.Actor{UserID: userID, Role: role})
		ctx := backend.WithToken(c.Request().Context(), token.Raw)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func requireRole(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := actorFrom(c)
			for _, r := range roles {
				if actor.Role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden"})
		}
	}
}

func actorFrom(c echo.Context) service.Actor {
	actor, _ := c.Get(actorKey).(service.Actor)
	return actor
}
