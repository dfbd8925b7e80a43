package flows

import "context"

// PasswordFailureKind classifies change-password flow failures for
// root-level mapping.
type PasswordFailureKind int

const (
	PasswordFailureNone PasswordFailureKind = iota
	PasswordFailureNotReady
	PasswordFailureUserNotFound
	PasswordFailureCurrentMismatch
	PasswordFailurePolicy
	PasswordFailureHash
	PasswordFailureStore
)

// PasswordResult carries change-password failure metadata.
type PasswordResult struct {
	Failure PasswordFailureKind
	Err     error
}

// PasswordDeps captures change-password flow dependencies.
type PasswordDeps struct {
	MinPasswordLength  int
	InvalidateSessions bool

	FindByID           func(ctx context.Context, userID string) (*UserRecord, error)
	IsNotFound         func(error) bool
	VerifyPassword     func(password, hash string) (bool, error)
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error
	ClearRefreshToken  func(ctx context.Context, userID string) error
}

// RunChangePassword verifies the current password before re-hashing and
// persisting the new one. When InvalidateSessions is set the stored
// refresh token is cleared as well, forcing re-login elsewhere.
func RunChangePassword(ctx context.Context, userID, current, next string, deps PasswordDeps) PasswordResult {
	if deps.FindByID == nil ||
		deps.VerifyPassword == nil ||
		deps.HashPassword == nil ||
		deps.UpdatePasswordHash == nil {
		return PasswordResult{Failure: PasswordFailureNotReady}
	}

	user, err := deps.FindByID(ctx, userID)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			return PasswordResult{
				Failure: PasswordFailureUserNotFound,
				Err:     err,
			}
		}
		return PasswordResult{
			Failure: PasswordFailureStore,
			Err:     err,
		}
	}

	ok, err := deps.VerifyPassword(current, user.PasswordHash)
	if err != nil || !ok {
		return PasswordResult{
			Failure: PasswordFailureCurrentMismatch,
			Err:     err,
		}
	}
	current = ""

	if len(next) < deps.MinPasswordLength {
		return PasswordResult{Failure: PasswordFailurePolicy}
	}

	hash, err := deps.HashPassword(next)
	if err != nil {
		return PasswordResult{
			Failure: PasswordFailureHash,
			Err:     err,
		}
	}
	next = ""

	if err := deps.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return PasswordResult{
			Failure: PasswordFailureStore,
			Err:     err,
		}
	}

	if deps.InvalidateSessions && deps.ClearRefreshToken != nil {
		if err := deps.ClearRefreshToken(ctx, userID); err != nil {
			if deps.IsNotFound == nil || !deps.IsNotFound(err) {
				return PasswordResult{
					Failure: PasswordFailureStore,
					Err:     err,
				}
			}
		}
	}

	return PasswordResult{Failure: PasswordFailureNone}
}
