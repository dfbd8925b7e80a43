package accounts

import (
	"context"
	"errors"
	"fmt"

	internalaudit "github.com/clipstream/accounts/internal/audit"
	"github.com/clipstream/accounts/internal/flows"
)

// Register creates a new account. The username and email are
// normalized to lower case, the password is hashed before anything is
// persisted, and the avatar upload must succeed before the record is
// created. Returns the sanitized user.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (PublicUser, error) {
	in := flows.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	}
	if req.Avatar != nil {
		in.Avatar = &flows.FileInput{Name: req.Avatar.Name, Reader: req.Avatar.Reader}
	}
	if req.CoverImage != nil {
		in.CoverImage = &flows.FileInput{Name: req.CoverImage.Name, Reader: req.CoverImage.Reader}
	}

	res := flows.RunRegister(ctx, in, e.deps.Register)
	switch res.Failure {
	case flows.RegisterFailureNone:
		e.metrics.Inc(MetricRegisterSuccess)
		e.emitAudit(ctx, internalaudit.TypeRegister, true, res.User.ID, nil, map[string]string{
			"username": res.User.Username,
		})
		return toPublic(res.User), nil
	case flows.RegisterFailureNotReady:
		return PublicUser{}, ErrEngineNotReady
	case flows.RegisterFailureValidation:
		return PublicUser{}, NewValidationError(res.Fields)
	case flows.RegisterFailurePasswordPolicy:
		return PublicUser{}, fmt.Errorf("%w: minimum length %d", ErrPasswordPolicy, e.config.Password.MinLength)
	case flows.RegisterFailureAvatarMissing:
		return PublicUser{}, ErrAvatarRequired
	case flows.RegisterFailureUpload:
		e.metrics.Inc(MetricRegisterUploadFailure)
		e.logger.Warn("accounts: register upload failed", "error", res.Err)
		e.emitAudit(ctx, internalaudit.TypeRegister, false, "", ErrUploadFailed, nil)
		return PublicUser{}, e.uploadError(res.Err)
	case flows.RegisterFailureDuplicate:
		e.metrics.Inc(MetricRegisterDuplicate)
		e.emitAudit(ctx, internalaudit.TypeRegister, false, "", ErrAccountExists, nil)
		return PublicUser{}, ErrAccountExists
	default:
		e.logger.Warn("accounts: register failed", "error", res.Err)
		return PublicUser{}, e.internalError(res.Err)
	}
}

// Login verifies credentials and issues a token pair. The identifier
// may be a username or email. Both unknown identifiers and wrong
// passwords surface as [ErrInvalidCredentials]; the wrapped message
// stays internal.
func (e *Engine) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	res := flows.RunLogin(ctx, creds.Identifier, creds.Password, e.deps.Login)
	switch res.Failure {
	case flows.LoginFailureNone:
		e.metrics.Inc(MetricLoginSuccess)
		e.emitAudit(ctx, internalaudit.TypeLogin, true, res.User.ID, nil, nil)
		return &LoginResult{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
			User:         toPublic(res.User),
		}, nil
	case flows.LoginFailureNotReady:
		return nil, ErrEngineNotReady
	case flows.LoginFailureValidation:
		return nil, NewValidationError(res.Fields)
	case flows.LoginFailureRateLimited:
		e.metrics.Inc(MetricLoginRateLimited)
		e.emitAudit(ctx, internalaudit.TypeLogin, false, "", ErrLoginRateLimited, nil)
		return nil, ErrLoginRateLimited
	case flows.LoginFailureUnknownIdentifier:
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, internalaudit.TypeLogin, false, "", ErrInvalidCredentials, map[string]string{
			"reason": "unknown_identifier",
		})
		return nil, fmt.Errorf("%w: unknown identifier", ErrInvalidCredentials)
	case flows.LoginFailurePasswordMismatch:
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, internalaudit.TypeLogin, false, "", ErrInvalidCredentials, map[string]string{
			"reason": "password_mismatch",
		})
		return nil, fmt.Errorf("%w: password mismatch", ErrInvalidCredentials)
	default:
		e.metrics.Inc(MetricLoginFailure)
		e.logger.Warn("accounts: login failed", "error", res.Err)
		return nil, e.internalError(res.Err)
	}
}

// Refresh rotates a refresh token and returns a new pair. A token that
// verifies but was already rotated out yields [ErrRefreshReuse]; the
// stored token is untouched in that case, so the legitimate holder
// keeps working.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	res := flows.RunRefresh(ctx, refreshToken, e.deps.Refresh)
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metrics.Inc(MetricRefreshSuccess)
		e.emitAudit(ctx, internalaudit.TypeRefresh, true, res.UserID, nil, nil)
		return &LoginResult{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
			User:         toPublic(res.User),
		}, nil
	case flows.RefreshFailureNotReady:
		return nil, ErrEngineNotReady
	case flows.RefreshFailureDecode:
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, internalaudit.TypeRefresh, false, "", ErrRefreshInvalid, nil)
		return nil, fmt.Errorf("%w: %v", ErrRefreshInvalid, res.Err)
	case flows.RefreshFailureRateLimited:
		e.metrics.Inc(MetricRefreshRateLimited)
		e.emitAudit(ctx, internalaudit.TypeRefresh, false, res.UserID, ErrRefreshRateLimited, nil)
		return nil, ErrRefreshRateLimited
	case flows.RefreshFailureReuse:
		e.metrics.Inc(MetricRefreshReuseDetected)
		e.metrics.Inc(MetricRefreshFailure)
		e.logger.Warn("accounts: refresh token reuse detected", "user_id", res.UserID)
		e.emitAudit(ctx, internalaudit.TypeRefresh, false, res.UserID, ErrRefreshReuse, nil)
		return nil, ErrRefreshReuse
	case flows.RefreshFailureUserNotFound:
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, internalaudit.TypeRefresh, false, res.UserID, ErrUserNotFound, nil)
		return nil, ErrUserNotFound
	default:
		e.metrics.Inc(MetricRefreshFailure)
		e.logger.Warn("accounts: refresh failed", "error", res.Err)
		return nil, e.internalError(res.Err)
	}
}

// Logout clears the caller's stored refresh token. Idempotent; access
// tokens already issued stay valid until they expire.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if err := flows.RunLogout(ctx, userID, e.deps.Logout); err != nil {
		e.logger.Warn("accounts: logout failed", "error", err)
		return e.internalError(err)
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, internalaudit.TypeLogout, true, userID, nil, nil)
	return nil
}

// ChangePassword verifies the current password and persists a new
// hash. With InvalidateSessionsOnChange set (the default) the stored
// refresh token is cleared too.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next string) error {
	res := flows.RunChangePassword(ctx, userID, current, next, e.deps.Password)
	switch res.Failure {
	case flows.PasswordFailureNone:
		e.metrics.Inc(MetricPasswordChangeSuccess)
		e.emitAudit(ctx, internalaudit.TypePasswordChange, true, userID, nil, nil)
		return nil
	case flows.PasswordFailureNotReady:
		return ErrEngineNotReady
	case flows.PasswordFailureUserNotFound:
		return ErrUserNotFound
	case flows.PasswordFailureCurrentMismatch:
		e.metrics.Inc(MetricPasswordChangeInvalidCurrent)
		e.emitAudit(ctx, internalaudit.TypePasswordChange, false, userID, ErrInvalidCredentials, map[string]string{
			"reason": "current_password_mismatch",
		})
		return fmt.Errorf("%w: current password mismatch", ErrInvalidCredentials)
	case flows.PasswordFailurePolicy:
		return fmt.Errorf("%w: minimum length %d", ErrPasswordPolicy, e.config.Password.MinLength)
	default:
		e.logger.Warn("accounts: password change failed", "error", res.Err)
		return e.internalError(res.Err)
	}
}

// internalError passes through errors already carrying a store wrap and
// flattens everything else to ErrInternal.
func (e *Engine) internalError(err error) error {
	if err == nil {
		return ErrInternal
	}
	if errors.Is(err, ErrStoreUnavailable) || ErrKind(err) != KindInternal {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
