package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dvote-dapp/dvote/internal/domain"
	"github.com/dvote-dapp/dvote/internal/present/rest/presenter"
	"github.com/dvote-dapp/dvote/internal/service"
)

var tracer = otel.Tracer("auth")

// AccountResolver loads the account behind a validated token.
type AccountResolver interface {
	Get(ctx context.Context, id string) (domain.Account, error)
}

type AuthMiddleware struct {
	auth     *service.AuthService
	accounts AccountResolver
}

func NewAuthMiddleware(
	auth *service.AuthService,
	accounts AccountResolver,
) *AuthMiddleware {
	return &AuthMiddleware{
		auth:     auth,
		accounts: accounts,
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("authorization")
	if authHeader == "" {
		cookie, err := c.Cookie(domain.AccessTokenCookie)
		if err != nil || cookie.Value == "" {
			return "", nil
		}
		return cookie.Value, nil
	}

	split := strings.Split(authHeader, " ")
	if len(split) != 2 {
		return "", fmt.Errorf("invalid authentication header")
	}
	authType, token := split[0], split[1]
	if authType != "Bearer" {
		return "", fmt.Errorf("only Bearer is acceptable")
	}
	return token, nil
}

// IdentifyIdentity puts the requester id into the request context when a
// valid access token is present. It never rejects a request.
func (s *AuthMiddleware) IdentifyIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Service.IdentifyIdentity")
		defer span.End()

		token, err := bearerToken(c)
		if err != nil {
			span.RecordError(err)
			goto skipCheckAuthorization
		}

		if token != "" {
			result, err := s.auth.AuthJwt(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyIdentity: s.auth.AuthJwt failed"))
				goto skipCheckAuthorization
			}

			ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, result.AccountID)
			span.SetAttributes(attribute.String("RequesterId", result.AccountID))
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequireAccount rejects requests without an identified, existing account and
// stores that account on the echo context.
func (s *AuthMiddleware) RequireAccount(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		requesterID, ok := ctx.Value(domain.RequesterIdCtxKey).(string)
		if !ok || requesterID == "" {
			return presenter.Unauthorized(c, "Unauthorized request.")
		}

		account, err := s.accounts.Get(ctx, requesterID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return presenter.Unauthorized(c, "Invalid access token.")
			}
			return presenter.Error(c, err)
		}

		c.Set(domain.RequesterAccountCtxKey, account)
		return next(c)
	}
}

// Requester returns the account stored by RequireAccount.
func Requester(c echo.Context) (domain.Account, bool) {
	account, ok := c.Get(domain.RequesterAccountCtxKey).(domain.Account)
	return account, ok
}
