package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	ClearRefreshToken func(ctx context.Context, userID string) error
	IsNotFound        func(error) bool
}

// RunLogout clears the stored refresh token. Logout is idempotent: a
// user without a stored token, or one deleted concurrently, still logs
// out successfully.
func RunLogout(ctx context.Context, userID string, deps LogoutDeps) error {
	if deps.ClearRefreshToken == nil {
		return nil
	}

	err := deps.ClearRefreshToken(ctx, userID)
	if err != nil && deps.IsNotFound != nil && deps.IsNotFound(err) {
		return nil
	}
	return err
}
