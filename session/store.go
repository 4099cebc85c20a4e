package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis failure returned by RedisFacts.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrMarkCorrupt is returned when a stored verified mark cannot be decoded.
var ErrMarkCorrupt = errors.New("verified mark corrupt")

const (
	fieldIdentity = "identity"
	fieldVerified = "verified"
)

const minSlidingTTL = time.Second

// RedisFacts keeps session facts in one Redis hash per session. Every write
// renews the hash TTL; with sliding enabled, reads renew it too.
type RedisFacts struct {
	redis   *redis.Client
	prefix  string
	ttl     time.Duration
	sliding bool
}

// NewRedisFacts returns facts stored under prefix:<sessionKey>. A ttl below
// one second is raised to one second.
func NewRedisFacts(redisClient *redis.Client, prefix string, ttl time.Duration, sliding bool) *RedisFacts {
	if ttl < minSlidingTTL {
		ttl = minSlidingTTL
	}
	return &RedisFacts{
		redis:   redisClient,
		prefix:  prefix,
		ttl:     ttl,
		sliding: sliding,
	}
}

var _ goVerify.SessionFacts = (*RedisFacts)(nil)

func (s *RedisFacts) key(sessionKey string) string {
	return s.prefix + ":" + sessionKey
}

// SetIdentity records the identity the session owner established, for the
// session-bound engine operations.
func (s *RedisFacts) SetIdentity(ctx context.Context, sessionKey, identity string) error {
	if sessionKey == "" || identity == "" {
		return errors.New("session key and identity are required")
	}
	return s.hset(ctx, sessionKey, fieldIdentity, identity)
}

func (s *RedisFacts) Identity(ctx context.Context, sessionKey string) (string, bool, error) {
	id, err := s.hget(ctx, sessionKey, fieldIdentity)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return id, id != "", nil
}

func (s *RedisFacts) SetVerified(ctx context.Context, sessionKey string, mark goVerify.VerifiedMark) error {
	blob, err := EncodeMark(mark)
	if err != nil {
		return err
	}
	return s.hset(ctx, sessionKey, fieldVerified, blob)
}

func (s *RedisFacts) Verified(ctx context.Context, sessionKey string) (goVerify.VerifiedMark, bool, error) {
	raw, err := s.hget(ctx, sessionKey, fieldVerified)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return goVerify.VerifiedMark{}, false, nil
		}
		return goVerify.VerifiedMark{}, false, err
	}
	mark, err := DecodeMark([]byte(raw))
	if err != nil {
		return goVerify.VerifiedMark{}, false, errors.Join(ErrMarkCorrupt, err)
	}
	return mark, true, nil
}

// ClearVerified removes the verified mark and keeps the identity.
func (s *RedisFacts) ClearVerified(ctx context.Context, sessionKey string) error {
	if err := s.redis.HDel(ctx, s.key(sessionKey), fieldVerified).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete removes every fact of the session. Deleting an absent session is
// not an error.
func (s *RedisFacts) Delete(ctx context.Context, sessionKey string) error {
	if err := s.redis.Del(ctx, s.key(sessionKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping reports the Redis round-trip time.
func (s *RedisFacts) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *RedisFacts) hset(ctx context.Context, sessionKey, field string, value interface{}) error {
	key := s.key(sessionKey)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, value)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisFacts) hget(ctx context.Context, sessionKey, field string) (string, error) {
	key := s.key(sessionKey)
	v, err := s.redis.HGet(ctx, key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", redis.Nil
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if s.sliding {
		if err := s.redis.Expire(ctx, key, s.ttl).Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return v, nil
}
