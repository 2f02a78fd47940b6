package endpoint

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/refitt/refitt-api/internal/apierr"
	"github.com/refitt/refitt-api/internal/domain/auth"
)

// ClientHandler is a Handler that runs on behalf of an authenticated client.
type ClientHandler[T any] func(r *Request, c *auth.Client) (T, error)

// Authenticator resolves request credentials to a client.
type Authenticator interface {
	ResolveToken(ctx context.Context, token string) (*auth.Client, error)
	VerifyCredentials(ctx context.Context, key, secret string) (*auth.Client, error)
}

// Guard authenticates requests for protected routes.
type Guard struct {
	svc      Authenticator
	failures metric.Int64Counter
}

// NewGuard creates a Guard. Rejected requests are counted on meter as
// refitt.auth.failures.
func NewGuard(svc Authenticator, meter metric.Meter) (*Guard, error) {
	failures, err := meter.Int64Counter("refitt.auth.failures",
		metric.WithDescription("Requests rejected by authentication or authorization"),
	)
	if err != nil {
		return nil, err
	}
	return &Guard{svc: svc, failures: failures}, nil
}

func (g *Guard) reject(ctx context.Context, err error) error {
	kind := "internal"
	if e, ok := apierr.As(err); ok {
		kind = e.Kind.String()
	}
	g.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	return err
}

// Authenticated requires a valid bearer token and passes the client it was
// issued to on to next.
func Authenticated[T any](g *Guard, next ClientHandler[T]) Handler[T] {
	return func(r *Request) (T, error) {
		var zero T
		tok, ok := r.Bearer()
		if !ok {
			return zero, g.reject(r.Context(), apierr.New(apierr.TokenNotFound,
				`Expected "Authorization: Bearer <token>" in header`))
		}
		c, err := g.svc.ResolveToken(r.Context(), tok)
		if err != nil {
			return zero, g.reject(r.Context(), err)
		}
		return next(r, c)
	}
}

// Authenticate requires a client key and secret sent as HTTP Basic
// credentials and passes the matching client on to next.
func Authenticate[T any](g *Guard, next ClientHandler[T]) Handler[T] {
	return func(r *Request) (T, error) {
		var zero T
		key, secret, ok := r.BasicAuth()
		if !ok {
			return zero, g.reject(r.Context(), apierr.New(apierr.AuthenticationNotFound,
				"Missing key:secret in header"))
		}
		c, err := g.svc.VerifyCredentials(r.Context(), key, secret)
		if err != nil {
			return zero, g.reject(r.Context(), err)
		}
		return next(r, c)
	}
}

// Authorization lets the request through only if the client's level is at
// most level.
func Authorization[T any](g *Guard, level int, next ClientHandler[T]) ClientHandler[T] {
	return func(r *Request, c *auth.Client) (T, error) {
		if !c.Permits(level) {
			var zero T
			return zero, g.reject(r.Context(), apierr.New(apierr.PermissionDenied,
				"Authorization level insufficient"))
		}
		return next(r, c)
	}
}
