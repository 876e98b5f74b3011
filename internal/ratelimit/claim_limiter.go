package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/streamcart/streamcart/internal/config"
)

const keyClaimViewer = "live:claim:viewer:%s:%s"

// ClaimLimiter throttles how fast a single viewer can push claims into
// a broadcast. Disabled entirely when no redis address is configured;
// every check then passes.
type ClaimLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewClaimLimiter(cfg config.Config) *ClaimLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" || cfg.ClaimRatePerMinute <= 0 || cfg.ClaimBurst <= 0 {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})

	return &ClaimLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    float64(cfg.ClaimRatePerMinute) / 60.0,
		burst:   cfg.ClaimBurst,
	}
}

func (l *ClaimLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *ClaimLimiter) AllowClaim(ctx context.Context, broadcastID, viewerID snowflake.ID) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyClaimViewer, broadcastID.String(), viewerID.String())
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
