package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clipstream/accounts"
)

// AccessTokenCookie is the cookie the guard reads before falling back
// to the Authorization header.
const AccessTokenCookie = "accessToken"

type userContextKey struct{}

// UserFromContext returns the authenticated user injected by [Guard].
func UserFromContext(ctx context.Context) (accounts.PublicUser, bool) {
	user, ok := ctx.Value(userContextKey{}).(accounts.PublicUser)
	return user, ok
}

// Guard authenticates each request through the engine. The access
// token is read from the accessToken cookie first, then from a Bearer
// Authorization header. Rejections use the engine's error taxonomy: a
// missing token answers 401, a bad token 403, a vanished user 404.
func Guard(engine *accounts.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := engine.Authenticate(r.Context(), requestToken(r))
			if err != nil {
				http.Error(w, http.StatusText(accounts.HTTPStatus(err)), accounts.HTTPStatus(err))
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	token, _ := bearerToken(r.Header.Get("Authorization"))
	return token
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
