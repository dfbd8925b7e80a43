package flows

import (
	"context"
	"strings"
)

// ProfileFailureKind classifies channel-profile lookup failures for
// root-level mapping.
type ProfileFailureKind int

const (
	ProfileFailureNone ProfileFailureKind = iota
	ProfileFailureNotReady
	ProfileFailureValidation
	ProfileFailureUserNotFound
	ProfileFailureStore
)

// ProfileResult carries the aggregated channel view or failure
// metadata.
type ProfileResult struct {
	Failure           ProfileFailureKind
	Err               error
	User              *UserRecord
	SubscriberCount   int64
	SubscribedToCount int64
	IsSubscribed      bool
}

// ProfileDeps captures channel-profile dependencies.
type ProfileDeps struct {
	FindByUsername func(ctx context.Context, username string) (*UserRecord, error)
	IsNotFound     func(error) bool

	CountSubscribers  func(ctx context.Context, channelID string) (int64, error)
	CountSubscribedTo func(ctx context.Context, subscriberID string) (int64, error)
	IsSubscriber      func(ctx context.Context, channelID, viewerID string) (bool, error)
}

// RunChannelProfile resolves a channel by username and aggregates its
// subscription counts. viewerID may be empty for anonymous lookups, in
// which case IsSubscribed stays false.
func RunChannelProfile(ctx context.Context, username, viewerID string, deps ProfileDeps) ProfileResult {
	if deps.FindByUsername == nil ||
		deps.CountSubscribers == nil ||
		deps.CountSubscribedTo == nil {
		return ProfileResult{Failure: ProfileFailureNotReady}
	}

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return ProfileResult{Failure: ProfileFailureValidation}
	}

	user, err := deps.FindByUsername(ctx, username)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			return ProfileResult{
				Failure: ProfileFailureUserNotFound,
				Err:     err,
			}
		}
		return ProfileResult{
			Failure: ProfileFailureStore,
			Err:     err,
		}
	}

	subscribers, err := deps.CountSubscribers(ctx, user.ID)
	if err != nil {
		return ProfileResult{
			Failure: ProfileFailureStore,
			Err:     err,
		}
	}

	subscribedTo, err := deps.CountSubscribedTo(ctx, user.ID)
	if err != nil {
		return ProfileResult{
			Failure: ProfileFailureStore,
			Err:     err,
		}
	}

	var isSubscribed bool
	if viewerID != "" && deps.IsSubscriber != nil {
		isSubscribed, err = deps.IsSubscriber(ctx, user.ID, viewerID)
		if err != nil {
			return ProfileResult{
				Failure: ProfileFailureStore,
				Err:     err,
			}
		}
	}

	return ProfileResult{
		Failure:           ProfileFailureNone,
		User:              user,
		SubscriberCount:   subscribers,
		SubscribedToCount: subscribedTo,
		IsSubscribed:      isSubscribed,
	}
}
