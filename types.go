package accounts

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/clipstream/accounts/internal/audit"
)

// User is the full account record as held by the credential store. The
// password hash and refresh token never leave the engine; callers receive
// PublicUser instead.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	RefreshToken  string
	CreatedAt     time.Time
}

// Public strips the credential fields, yielding the sanitized
// representation safe to serialize in responses.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
	}
}

// PublicUser is the sanitized user record: no password hash, no refresh
// token, under any field name.
type PublicUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Credentials is the transient login input pair. Identifier may be a
// username or an email; it is never persisted.
type Credentials struct {
	Identifier string
	Password   string
}

// FileRef is a local file reference handed to the upload collaborator.
type FileRef struct {
	Name   string
	Reader io.Reader
}

// RegisterRequest is the input for Engine.Register. Avatar is required;
// CoverImage is optional.
type RegisterRequest struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     *FileRef
	CoverImage *FileRef
}

// LoginResult is returned by Login and Refresh: a fresh token pair plus
// the sanitized user.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         PublicUser
}

// ChannelProfile aggregates the public channel view for a username.
type ChannelProfile struct {
	User              PublicUser `json:"user"`
	SubscriberCount   int64      `json:"subscriberCount"`
	SubscribedToCount int64      `json:"subscribedToCount"`
	IsSubscribed      bool       `json:"isSubscribed"`
}

// CreateUserInput is the record handed to UserStore.Create. Username
// arrives already lowercased.
type CreateUserInput struct {
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
}

// ProfileUpdate carries optional profile mutations; nil fields are left
// untouched.
type ProfileUpdate struct {
	AvatarURL     *string
	CoverImageURL *string
}

// UserStore is the credential-store collaborator. Implementations must
// enforce username/email uniqueness (returning ErrDuplicateUser), return
// ErrUserNotFound for absent records, and make RotateRefreshToken an
// atomic compare-and-set so concurrent refreshes cannot both succeed.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*User, error)
	Create(ctx context.Context, input CreateUserInput) (*User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// SetRefreshToken unconditionally overwrites the stored refresh token,
	// invalidating any previously issued one.
	SetRefreshToken(ctx context.Context, id, token string) error
	// RotateRefreshToken replaces the stored token with next only if the
	// current value equals presented; otherwise it returns ErrRefreshReuse.
	RotateRefreshToken(ctx context.Context, id, presented, next string) error
	// ClearRefreshToken resets the stored token to none.
	ClearRefreshToken(ctx context.Context, id string) error
}

// SubscriptionStore is the subscription-relation collaborator
// (subscriber -> channel).
type SubscriptionStore interface {
	Subscribe(ctx context.Context, channelID, subscriberID string) error
	Unsubscribe(ctx context.Context, channelID, subscriberID string) error
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountSubscribedTo(ctx context.Context, subscriberID string) (int64, error)
	IsSubscriber(ctx context.Context, channelID, subscriberID string) (bool, error)
}

// Uploader is the opaque media-upload collaborator. No retry logic is
// assumed; failures surface as ErrUploadFailed.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

// Validator is the input-shape validation collaborator. A nil return
// means the shape is acceptable.
type Validator interface {
	ValidateRegister(req RegisterRequest) FieldErrors
	ValidateLogin(creds Credentials) FieldErrors
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an AuditSink that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an io.Writer, one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
