package flows

import (
	"context"
	"strings"
)

// LoginFailureKind classifies login flow failures for root-level
// mapping. UnknownIdentifier and PasswordMismatch are kept distinct
// internally; callers decide how much to reveal.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureNotReady
	LoginFailureValidation
	LoginFailureRateLimited
	LoginFailureUnknownIdentifier
	LoginFailurePasswordMismatch
	LoginFailureStore
	LoginFailureIssue
)

// LoginResult carries either the issued token pair or failure metadata.
type LoginResult struct {
	Failure      LoginFailureKind
	Err          error
	Fields       map[string]string
	User         *UserRecord
	AccessToken  string
	RefreshToken string
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string
	ValidateShape       func(identifier, password string) map[string]string

	CheckLoginRate     func(ctx context.Context, identifier, ip string) error
	IncrementLoginRate func(ctx context.Context, identifier, ip string) error
	ResetLoginRate     func(ctx context.Context, identifier, ip string) error

	FindByIdentifier func(ctx context.Context, identifier string) (*UserRecord, error)
	IsNotFound       func(error) bool
	VerifyPassword   func(password, hash string) (bool, error)

	IssueAccessToken  func(userID string) (string, error)
	IssueRefreshToken func(userID string) (string, error)
	StoreRefreshToken func(ctx context.Context, userID, token string) error

	Warn func(string, ...any)
}

// RunLogin verifies credentials and issues a fresh token pair. The new
// refresh token unconditionally replaces whatever was stored before, so
// a second login invalidates the first session's refresh token.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) LoginResult {
	if deps.FindByIdentifier == nil ||
		deps.VerifyPassword == nil ||
		deps.IssueAccessToken == nil ||
		deps.IssueRefreshToken == nil ||
		deps.StoreRefreshToken == nil {
		return LoginResult{Failure: LoginFailureNotReady}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	identifier = strings.ToLower(strings.TrimSpace(identifier))

	if deps.ValidateShape != nil {
		if fields := deps.ValidateShape(identifier, password); len(fields) > 0 {
			return LoginResult{
				Failure: LoginFailureValidation,
				Fields:  fields,
			}
		}
	}

	var ip string
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, identifier, ip); err != nil {
			return LoginResult{
				Failure: LoginFailureRateLimited,
				Err:     err,
			}
		}
	}

	recordFailure := func() {
		if deps.IncrementLoginRate == nil {
			return
		}
		if err := deps.IncrementLoginRate(ctx, identifier, ip); err != nil {
			deps.Warn("accounts: login limiter increment failed", "error", err)
		}
	}

	user, err := deps.FindByIdentifier(ctx, identifier)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			recordFailure()
			return LoginResult{
				Failure: LoginFailureUnknownIdentifier,
				Err:     err,
			}
		}
		return LoginResult{
			Failure: LoginFailureStore,
			Err:     err,
		}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		recordFailure()
		return LoginResult{
			Failure: LoginFailurePasswordMismatch,
			Err:     err,
		}
	}
	password = ""

	refresh, err := deps.IssueRefreshToken(user.ID)
	if err != nil {
		return LoginResult{
			Failure: LoginFailureIssue,
			Err:     err,
		}
	}
	if err := deps.StoreRefreshToken(ctx, user.ID, refresh); err != nil {
		return LoginResult{
			Failure: LoginFailureStore,
			Err:     err,
		}
	}
	access, err := deps.IssueAccessToken(user.ID)
	if err != nil {
		return LoginResult{
			Failure: LoginFailureIssue,
			Err:     err,
		}
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, identifier, ip); err != nil {
			deps.Warn("accounts: login limiter reset failed", "error", err)
		}
	}

	return LoginResult{
		Failure:      LoginFailureNone,
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}
