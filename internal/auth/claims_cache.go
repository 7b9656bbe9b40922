package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"

	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
)

const claimsCachePrefix = "auth_claims:"

// CachingVerifier remembers verified claims in Redis so repeated requests
// with the same bearer token skip signature verification. Concurrent misses
// for one token share a single verification.
type CachingVerifier struct {
	Next   TokenVerifier
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger

	inflight singleflight.Group
}

func NewCachingVerifier(next TokenVerifier, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachingVerifier {
	return &CachingVerifier{Next: next, Client: client, TTL: ttl, Logger: log}
}

func (c *CachingVerifier) Verify(ctx context.Context, rawToken string) (*models.Claims, error) {
	key := claimsCachePrefix + tokenDigest(rawToken)

	if claims, ok := c.cached(ctx, key); ok {
		return claims, nil
	}

	v, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		if claims, ok := c.cached(ctx, key); ok {
			return claims, nil
		}
		claims, err := c.Next.Verify(ctx, rawToken)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(claims); err == nil {
			if err := c.Client.Set(ctx, key, payload, c.TTL).Err(); err != nil {
				c.Logger.Warn("AUTH", fmt.Sprintf("claims cache write failed: %v", err))
			}
		}
		return claims, nil
	})
	if err != nil {
		return nil, err
	}
	claims := *v.(*models.Claims)
	return &claims, nil
}

func (c *CachingVerifier) cached(ctx context.Context, key string) (*models.Claims, bool) {
	raw, err := c.Client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.Logger.Warn("AUTH", fmt.Sprintf("claims cache read failed: %v", err))
		}
		return nil, false
	}
	var claims models.Claims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil || claims.Subject == "" {
		return nil, false
	}
	return &claims, true
}

func tokenDigest(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
