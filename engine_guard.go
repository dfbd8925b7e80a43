package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/clipstream/accounts/internal/flows"
)

// Authenticate resolves an access token to the sanitized user behind
// it. An empty token yields [ErrMissingToken]; a token that fails
// verification or has expired yields [ErrTokenInvalid]; a verified
// token whose user no longer exists yields [ErrUserNotFound].
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (PublicUser, error) {
	start := time.Now()
	res := flows.RunAuthenticate(ctx, accessToken, e.deps.Authenticate)
	e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))

	switch res.Failure {
	case flows.AuthFailureNone:
		return toPublic(res.User), nil
	case flows.AuthFailureNotReady:
		return PublicUser{}, ErrEngineNotReady
	case flows.AuthFailureMissingToken:
		e.metrics.Inc(MetricGuardRejected)
		return PublicUser{}, ErrMissingToken
	case flows.AuthFailureInvalidToken:
		e.metrics.Inc(MetricGuardRejected)
		return PublicUser{}, fmt.Errorf("%w: %v", ErrTokenInvalid, res.Err)
	case flows.AuthFailureUserNotFound:
		e.metrics.Inc(MetricGuardRejected)
		return PublicUser{}, ErrUserNotFound
	default:
		e.logger.Warn("accounts: authenticate failed", "error", res.Err)
		return PublicUser{}, e.internalError(res.Err)
	}
}

// CurrentUser loads the sanitized record for an already authenticated
// user ID.
func (e *Engine) CurrentUser(ctx context.Context, userID string) (PublicUser, error) {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return PublicUser{}, e.internalError(err)
	}
	return user.Public(), nil
}
