package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"EduPulse/internal/domain/models"
	xhttp "EduPulse/pkg/http"
	applogger "EduPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ErrUnauthenticated is returned when a request carries no valid credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves the caller of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (models.Identity, error)
}

type identityKey struct{}

// WithIdentity stores who in ctx.
func WithIdentity(ctx context.Context, who models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, who)
}

// IdentityFromContext returns the identity set by Auth.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	who, ok := ctx.Value(identityKey{}).(models.Identity)
	return who, ok
}

// APIKeyAuthenticator maps static API keys read from a header to identities.
type APIKeyAuthenticator struct {
	header string
	keys   map[string]models.Identity
}

func NewAPIKeyAuthenticator(header string, keys map[string]models.Identity) *APIKeyAuthenticator {
	if header == "" {
		header = "X-API-Key"
	}
	return &APIKeyAuthenticator{header: header, keys: keys}
}

func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (models.Identity, error) {
	key := r.Header.Get(a.header)
	if key == "" {
		return models.Identity{}, ErrUnauthenticated
	}
	for k, who := range a.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return who, nil
		}
	}
	return models.Identity{}, ErrUnauthenticated
}

// AnonymousAuthenticator accepts every request as the same identity. Used when auth is disabled.
type AnonymousAuthenticator struct {
	Identity models.Identity
}

func (a AnonymousAuthenticator) Authenticate(*http.Request) (models.Identity, error) {
	if a.Identity.UserID == "" {
		return models.Identity{UserID: "anonymous"}, nil
	}
	return a.Identity, nil
}

// Auth rejects unauthenticated requests with 401 and stores the identity in the request context.
func Auth(a Authenticator, l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			who, err := a.Authenticate(req)
			if err != nil {
				l.Debug("authentication failed",
					applogger.String("path", req.URL.Path),
					applogger.String("ip", c.RealIP()),
					applogger.Error(err),
				)
				return xhttp.UnauthorizedError("missing or invalid API key")
			}
			c.SetRequest(req.WithContext(WithIdentity(req.Context(), who)))
			return next(c)
		}
	}
}
