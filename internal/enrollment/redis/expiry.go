package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"ms-petevents/internal/logger"
)

const pairKeyPrefix = "enroll_lock:"

// ExpiredPairHandler is called for a pair lock that reached its TTL instead
// of being released. Such a request died mid-enrollment, so the event's
// stored count may have drifted.
type ExpiredPairHandler func(ctx context.Context, eventID, petID string)

// parsePairKey splits "enroll_lock:<event>:<pet>" into its ids.
func parsePairKey(key string) (eventID, petID string, ok bool) {
	if !strings.HasPrefix(key, pairKeyPrefix) {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(key, pairKeyPrefix), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// SubscribeLockExpiry listens for expired pair locks on the keyevent channel
// of the client's database until ctx is cancelled. The server must have
// "Ex" keyspace notifications enabled.
func SubscribeLockExpiry(ctx context.Context, client *redis.Client, log *logger.Logger, handler ExpiredPairHandler) {
	val, err := client.ConfigGet(ctx, "notify-keyspace-events").Result()
	if err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to read keyspace config: %v", err))
	} else if len(val) < 2 || !strings.Contains(fmt.Sprint(val[1]), "x") || !strings.Contains(fmt.Sprint(val[1]), "E") {
		log.Warn("REDIS", "Keyspace notifications not configured for expiry events, lock expiry will go unnoticed")
	}

	channel := fmt.Sprintf("__keyevent@%d__:expired", client.Options().DB)
	pubsub := client.PSubscribe(ctx, channel)
	log.Info("REDIS", fmt.Sprintf("Subscribed to %s", channel))

	go func() {
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				dispatchExpired(ctx, msg.Payload, log, handler)
			}
		}
	}()
}

func dispatchExpired(ctx context.Context, key string, log *logger.Logger, handler ExpiredPairHandler) bool {
	eventID, petID, ok := parsePairKey(key)
	if !ok {
		return false
	}
	log.Warn("ENROLL_LOCK", fmt.Sprintf("Lock for event %s pet %s expired before release", eventID, petID))
	handler(ctx, eventID, petID)
	return true
}
