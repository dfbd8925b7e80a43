package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/clipstream/accounts/internal/audit"
	"github.com/clipstream/accounts/internal/flows"
	"github.com/clipstream/accounts/internal/rate"
	"github.com/clipstream/accounts/jwt"
	"github.com/clipstream/accounts/password"
)

// Engine is the assembled account backend. Construct it through
// [Builder.Build]; the zero value is not usable.
type Engine struct {
	config  Config
	logger  *slog.Logger
	hasher  *password.Hasher
	tokens  *jwt.Manager
	limiter *rate.Limiter
	metrics *Metrics
	audit   *internalaudit.Dispatcher

	users         UserStore
	subscriptions SubscriptionStore
	uploader      Uploader
	validator     Validator

	deps flows.Deps
}

func (e *Engine) buildFlows() {
	isNotFound := func(err error) bool { return errors.Is(err, ErrUserNotFound) }

	findByID := func(ctx context.Context, id string) (*flows.UserRecord, error) {
		user, err := e.users.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return toRecord(user), nil
	}

	findByIdentifier := func(ctx context.Context, identifier string) (*flows.UserRecord, error) {
		user, err := e.users.FindByUsernameOrEmail(ctx, identifier)
		if err != nil {
			return nil, err
		}
		return toRecord(user), nil
	}

	issueAccess := func(userID string) (string, error) {
		return e.tokens.Issue(userID, jwt.KindAccess)
	}
	issueRefresh := func(userID string) (string, error) {
		return e.tokens.Issue(userID, jwt.KindRefresh)
	}

	e.deps.Register = flows.RegisterDeps{
		MinPasswordLength: e.config.Password.MinLength,
		ValidateShape:     e.registerShapeValidator(),
		FindByIdentifier:  findByIdentifier,
		IsNotFound:        isNotFound,
		HashPassword:      e.hasher.Hash,
		Upload:            e.uploader.Upload,
		CreateUser: func(ctx context.Context, in flows.CreateRecord) (*flows.UserRecord, error) {
			user, err := e.users.Create(ctx, CreateUserInput{
				Username:      in.Username,
				Email:         in.Email,
				FullName:      in.FullName,
				PasswordHash:  in.PasswordHash,
				AvatarURL:     in.AvatarURL,
				CoverImageURL: in.CoverImageURL,
			})
			if err != nil {
				return nil, err
			}
			return toRecord(user), nil
		},
		IsDuplicate: func(err error) bool { return errors.Is(err, ErrDuplicateUser) },
	}

	e.deps.Login = flows.LoginDeps{
		ClientIPFromContext: clientIPFromContext,
		ValidateShape:       e.loginShapeValidator(),
		CheckLoginRate:      e.limiter.CheckLogin,
		IncrementLoginRate:  e.limiter.IncrementLogin,
		ResetLoginRate:      e.limiter.ResetLogin,
		FindByIdentifier:    findByIdentifier,
		IsNotFound:          isNotFound,
		VerifyPassword:      e.hasher.Verify,
		IssueAccessToken:    issueAccess,
		IssueRefreshToken:   issueRefresh,
		StoreRefreshToken:   e.users.SetRefreshToken,
		Warn:                e.logger.Warn,
	}

	e.deps.Refresh = flows.RefreshDeps{
		VerifyRefresh: func(token string) (string, error) {
			claims, err := e.tokens.Verify(token, jwt.KindRefresh)
			if err != nil {
				return "", err
			}
			return claims.Subject, nil
		},
		CheckRefreshRate:  e.limiter.CheckRefresh,
		IssueRefreshToken: issueRefresh,
		Rotate:            e.users.RotateRefreshToken,
		IsReuse:           func(err error) bool { return errors.Is(err, ErrRefreshReuse) },
		IsNotFound:        isNotFound,
		FindByID:          findByID,
		IssueAccessToken:  issueAccess,
	}

	e.deps.Logout = flows.LogoutDeps{
		ClearRefreshToken: e.users.ClearRefreshToken,
		IsNotFound:        isNotFound,
	}

	e.deps.Password = flows.PasswordDeps{
		MinPasswordLength:  e.config.Password.MinLength,
		InvalidateSessions: e.config.Password.InvalidateSessionsOnChange,
		FindByID:           findByID,
		IsNotFound:         isNotFound,
		VerifyPassword:     e.hasher.Verify,
		HashPassword:       e.hasher.Hash,
		UpdatePasswordHash: e.users.UpdatePasswordHash,
		ClearRefreshToken:  e.users.ClearRefreshToken,
	}

	e.deps.Authenticate = flows.AuthDeps{
		VerifyAccess: func(token string) (string, error) {
			claims, err := e.tokens.Verify(token, jwt.KindAccess)
			if err != nil {
				return "", err
			}
			return claims.Subject, nil
		},
		FindByID:   findByID,
		IsNotFound: isNotFound,
	}

	e.deps.Profile = flows.ProfileDeps{
		FindByUsername: func(ctx context.Context, username string) (*flows.UserRecord, error) {
			user, err := e.users.FindByUsernameOrEmail(ctx, username)
			if err != nil {
				return nil, err
			}
			return toRecord(user), nil
		},
		IsNotFound:        isNotFound,
		CountSubscribers:  e.countSubscribers,
		CountSubscribedTo: e.countSubscribedTo,
		IsSubscriber:      e.isSubscriber,
	}

	e.deps.Image = flows.ImageDeps{
		Upload: e.uploader.Upload,
		UpdateProfile: func(ctx context.Context, userID string, avatarURL, coverURL *string) (*flows.UserRecord, error) {
			user, err := e.users.UpdateProfile(ctx, userID, ProfileUpdate{
				AvatarURL:     avatarURL,
				CoverImageURL: coverURL,
			})
			if err != nil {
				return nil, err
			}
			return toRecord(user), nil
		},
		IsNotFound: isNotFound,
	}
}

func (e *Engine) registerShapeValidator() func(flows.RegisterInput) map[string]string {
	if e.validator == nil {
		return nil
	}
	return func(in flows.RegisterInput) map[string]string {
		return e.validator.ValidateRegister(RegisterRequest{
			Username: in.Username,
			Email:    in.Email,
			FullName: in.FullName,
			Password: in.Password,
		})
	}
}

func (e *Engine) loginShapeValidator() func(identifier, password string) map[string]string {
	if e.validator == nil {
		return nil
	}
	return func(identifier, pw string) map[string]string {
		return e.validator.ValidateLogin(Credentials{
			Identifier: identifier,
			Password:   pw,
		})
	}
}

// Subscription reads fall back to zero counts when no store was wired;
// the profile endpoint still works for plain user lookup.
func (e *Engine) countSubscribers(ctx context.Context, channelID string) (int64, error) {
	if e.subscriptions == nil {
		return 0, nil
	}
	return e.subscriptions.CountSubscribers(ctx, channelID)
}

func (e *Engine) countSubscribedTo(ctx context.Context, subscriberID string) (int64, error) {
	if e.subscriptions == nil {
		return 0, nil
	}
	return e.subscriptions.CountSubscribedTo(ctx, subscriberID)
}

func (e *Engine) isSubscriber(ctx context.Context, channelID, viewerID string) (bool, error) {
	if e.subscriptions == nil {
		return false, nil
	}
	return e.subscriptions.IsSubscriber(ctx, channelID, viewerID)
}

func toRecord(u *User) *flows.UserRecord {
	return &flows.UserRecord{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		PasswordHash:  u.PasswordHash,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
	}
}

func toPublic(r *flows.UserRecord) PublicUser {
	return PublicUser{
		ID:            r.ID,
		Username:      r.Username,
		Email:         r.Email,
		FullName:      r.FullName,
		AvatarURL:     r.AvatarURL,
		CoverImageURL: r.CoverImageURL,
		CreatedAt:     r.CreatedAt,
	}
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID string, cause error, metadata map[string]string) {
	if e.audit == nil {
		return
	}

	event := internalaudit.Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) uploadError(err error) error {
	return fmt.Errorf("%w: %v", ErrUploadFailed, err)
}

// Metrics exposes the engine's counters for exporters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// MetricsSnapshot deep-copies the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events the dispatcher discarded.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// Close shuts down background workers, draining buffered audit events.
func (e *Engine) Close() {
	e.audit.Close()
}
