package flows

import (
	"context"
	"strings"
)

// AuthFailureKind classifies guard-path failures for root-level
// mapping. Missing and invalid tokens are distinct kinds so transports
// can answer 401 versus 403.
type AuthFailureKind int

const (
	AuthFailureNone AuthFailureKind = iota
	AuthFailureNotReady
	AuthFailureMissingToken
	AuthFailureInvalidToken
	AuthFailureUserNotFound
	AuthFailureStore
)

// AuthResult carries the resolved identity or failure metadata.
type AuthResult struct {
	Failure AuthFailureKind
	Err     error
	UserID  string
	User    *UserRecord
}

// AuthDeps captures guard-path dependencies.
type AuthDeps struct {
	VerifyAccess func(token string) (userID string, err error)
	FindByID     func(ctx context.Context, userID string) (*UserRecord, error)
	IsNotFound   func(error) bool
}

// RunAuthenticate resolves an access token to its user record. The
// token must verify and its subject must still exist; a deleted user
// with a live token is classified as AuthFailureUserNotFound.
func RunAuthenticate(ctx context.Context, token string, deps AuthDeps) AuthResult {
	if deps.VerifyAccess == nil || deps.FindByID == nil {
		return AuthResult{Failure: AuthFailureNotReady}
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return AuthResult{Failure: AuthFailureMissingToken}
	}

	userID, err := deps.VerifyAccess(token)
	if err != nil {
		return AuthResult{
			Failure: AuthFailureInvalidToken,
			Err:     err,
		}
	}

	user, err := deps.FindByID(ctx, userID)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			return AuthResult{
				Failure: AuthFailureUserNotFound,
				Err:     err,
				UserID:  userID,
			}
		}
		return AuthResult{
			Failure: AuthFailureStore,
			Err:     err,
			UserID:  userID,
		}
	}

	return AuthResult{
		Failure: AuthFailureNone,
		UserID:  userID,
		User:    user,
	}
}
