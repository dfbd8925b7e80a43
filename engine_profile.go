package accounts

import (
	"context"

	internalaudit "github.com/clipstream/accounts/internal/audit"
	"github.com/clipstream/accounts/internal/flows"
)

// ChannelProfile resolves a channel by username and aggregates its
// subscription counts. viewerID may be empty for anonymous callers;
// IsSubscribed is then always false.
func (e *Engine) ChannelProfile(ctx context.Context, username, viewerID string) (*ChannelProfile, error) {
	res := flows.RunChannelProfile(ctx, username, viewerID, e.deps.Profile)
	switch res.Failure {
	case flows.ProfileFailureNone:
		return &ChannelProfile{
			User:              toPublic(res.User),
			SubscriberCount:   res.SubscriberCount,
			SubscribedToCount: res.SubscribedToCount,
			IsSubscribed:      res.IsSubscribed,
		}, nil
	case flows.ProfileFailureNotReady:
		return nil, ErrEngineNotReady
	case flows.ProfileFailureValidation:
		return nil, NewValidationError(FieldErrors{"username": "is required"})
	case flows.ProfileFailureUserNotFound:
		return nil, ErrUserNotFound
	default:
		e.logger.Warn("accounts: channel profile lookup failed", "error", res.Err)
		return nil, e.internalError(res.Err)
	}
}

// Subscribe records subscriberID following the channel. Subscribing to
// yourself is rejected; re-subscribing is a no-op.
func (e *Engine) Subscribe(ctx context.Context, channelID, subscriberID string) error {
	if e.subscriptions == nil {
		return ErrEngineNotReady
	}
	if channelID == subscriberID {
		return NewValidationError(FieldErrors{"channel": "cannot subscribe to yourself"})
	}

	if err := e.subscriptions.Subscribe(ctx, channelID, subscriberID); err != nil {
		return e.internalError(err)
	}
	return nil
}

// Unsubscribe removes the relation. Removing an absent relation is a
// no-op.
func (e *Engine) Unsubscribe(ctx context.Context, channelID, subscriberID string) error {
	if e.subscriptions == nil {
		return ErrEngineNotReady
	}

	if err := e.subscriptions.Unsubscribe(ctx, channelID, subscriberID); err != nil {
		return e.internalError(err)
	}
	return nil
}

// UpdateAvatar uploads a new avatar for the user and returns the
// refreshed sanitized record.
func (e *Engine) UpdateAvatar(ctx context.Context, userID string, file *FileRef) (PublicUser, error) {
	return e.updateImage(ctx, userID, file, flows.ImageAvatar)
}

// UpdateCoverImage uploads a new cover image for the user and returns
// the refreshed sanitized record.
func (e *Engine) UpdateCoverImage(ctx context.Context, userID string, file *FileRef) (PublicUser, error) {
	return e.updateImage(ctx, userID, file, flows.ImageCover)
}

func (e *Engine) updateImage(ctx context.Context, userID string, file *FileRef, target flows.ImageTarget) (PublicUser, error) {
	var in *flows.FileInput
	if file != nil {
		in = &flows.FileInput{Name: file.Name, Reader: file.Reader}
	}

	res := flows.RunUpdateImage(ctx, userID, in, target, e.deps.Image)
	switch res.Failure {
	case flows.ImageFailureNone:
		e.emitAudit(ctx, internalaudit.TypeProfileUpdate, true, userID, nil, map[string]string{
			"target": imageTargetName(target),
		})
		return toPublic(res.User), nil
	case flows.ImageFailureNotReady:
		return PublicUser{}, ErrEngineNotReady
	case flows.ImageFailureMissingFile:
		return PublicUser{}, NewValidationError(FieldErrors{"file": "is required"})
	case flows.ImageFailureUpload:
		e.logger.Warn("accounts: profile image upload failed", "error", res.Err)
		return PublicUser{}, e.uploadError(res.Err)
	case flows.ImageFailureUserNotFound:
		return PublicUser{}, ErrUserNotFound
	default:
		e.logger.Warn("accounts: profile image update failed", "error", res.Err)
		return PublicUser{}, e.internalError(res.Err)
	}
}

func imageTargetName(target flows.ImageTarget) string {
	if target == flows.ImageCover {
		return "cover_image"
	}
	return "avatar"
}
