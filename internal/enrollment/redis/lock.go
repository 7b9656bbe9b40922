package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-petevents/internal/logger"
)

const defaultLockTTL = 10 * time.Second

// unlockScript deletes the key only while it still holds the caller's token,
// so a lock that expired and was taken by another request is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Redis{
		Client: client,
		TTL:    ttl,
		Logger: log,
	}
}

func pairKey(eventID, petID string) string {
	return fmt.Sprintf("enroll_lock:%s:%s", eventID, petID)
}

// LockPair takes the (event, pet) lock for token. It returns false when
// another request holds it.
func (r *Redis) LockPair(ctx context.Context, eventID, petID, token string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, pairKey(eventID, petID), token, r.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", pairKey(eventID, petID), err)
	}
	if !ok && r.Logger != nil {
		r.Logger.Debug("REDIS", fmt.Sprintf("Pair %s/%s already locked", eventID, petID))
	}
	return ok, nil
}

// UnlockPair releases the lock if token still owns it. Releasing a lock that
// expired or belongs to someone else is not an error.
func (r *Redis) UnlockPair(ctx context.Context, eventID, petID, token string) error {
	if err := unlockScript.Run(ctx, r.Client, []string{pairKey(eventID, petID)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("unlock %s: %w", pairKey(eventID, petID), err)
	}
	return nil
}
