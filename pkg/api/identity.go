package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goware/emailx"
)

// IdentityOptions selects how the caller's identity is established. Authentication itself happens at an
// external identity provider; this only reads its result.
type IdentityOptions struct {
	// JWTSecret verifies HS256 bearer tokens whose email claim is the identity.
	JWTSecret []byte
	// Header is trusted as-is when no secret is configured, typically set by an authenticating proxy.
	Header string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the authenticated identity, or "" when there is none.
func IdentityFrom(ctx context.Context) string {
	v, _ := ctx.Value(identityKey{}).(string)
	return v
}

var errNoIdentity = errors.New("no identity")

func identityMiddleware(opts IdentityOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			identity, err := resolveIdentity(request, opts)
			if err != nil {
				slog.Debug("rejected request", "url", request.URL, "err", err)
				writeJSON(writer, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(writer, request.WithContext(WithIdentity(request.Context(), identity)))
		})
	}
}

func resolveIdentity(request *http.Request, opts IdentityOptions) (string, error) {
	var identity string
	if len(opts.JWTSecret) > 0 {
		token := stripBearer(request.Header.Get("Authorization"))
		if token == "" {
			// browsers cannot set headers on websocket upgrades
			token = request.URL.Query().Get("access_token")
		}
		if token == "" {
			return "", errNoIdentity
		}
		var err error
		if identity, err = identityFromToken(token, opts.JWTSecret); err != nil {
			return "", err
		}
	} else {
		identity = strings.TrimSpace(request.Header.Get(opts.Header))
	}
	if identity == "" {
		return "", errNoIdentity
	}
	if err := emailx.ValidateFast(identity); err != nil {
		return "", fmt.Errorf("invalid identity %q: %w", identity, err)
	}
	return identity, nil
}

func identityFromToken(raw string, secret []byte) (string, error) {
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})); err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		return email, nil
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token carries no email or subject")
	}
	return sub, nil
}

func stripBearer(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
