package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/clipstream/accounts"
)

// Subscriptions is a Redis-backed [accounts.SubscriptionStore]. Both
// sides of the relation are kept as sets so counts resolve with a
// single SCARD.
type Subscriptions struct {
	redis  redis.UniversalClient
	prefix string
}

// NewSubscriptions creates a [Subscriptions] store sharing the same
// prefix convention as [Users].
func NewSubscriptions(redisClient redis.UniversalClient, prefix string) *Subscriptions {
	if prefix == "" {
		prefix = "acct"
	}
	return &Subscriptions{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Subscriptions) subscribersKey(channelID string) string {
	return s.prefix + ":subs:" + channelID
}

func (s *Subscriptions) subscribedToKey(subscriberID string) string {
	return s.prefix + ":subto:" + subscriberID
}

// Subscribe records subscriberID following channelID. Both sides are
// written in one transaction; re-subscribing is a no-op.
func (s *Subscriptions) Subscribe(ctx context.Context, channelID, subscriberID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.subscribersKey(channelID), subscriberID)
		pipe.SAdd(ctx, s.subscribedToKey(subscriberID), channelID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}
	return nil
}

// Unsubscribe removes the relation from both sides. Removing an absent
// relation is a no-op.
func (s *Subscriptions) Unsubscribe(ctx context.Context, channelID, subscriberID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, s.subscribersKey(channelID), subscriberID)
		pipe.SRem(ctx, s.subscribedToKey(subscriberID), channelID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}
	return nil
}

// CountSubscribers returns how many users follow channelID.
func (s *Subscriptions) CountSubscribers(ctx context.Context, channelID string) (int64, error) {
	count, err := s.redis.SCard(ctx, s.subscribersKey(channelID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}
	return count, nil
}

// CountSubscribedTo returns how many channels subscriberID follows.
func (s *Subscriptions) CountSubscribedTo(ctx context.Context, subscriberID string) (int64, error) {
	count, err := s.redis.SCard(ctx, s.subscribedToKey(subscriberID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}
	return count, nil
}

// IsSubscriber reports whether subscriberID follows channelID.
func (s *Subscriptions) IsSubscriber(ctx context.Context, channelID, subscriberID string) (bool, error) {
	ok, err := s.redis.SIsMember(ctx, s.subscribersKey(channelID), subscriberID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}
	return ok, nil
}
