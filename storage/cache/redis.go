// Package cache provides the redis-backed leaderboard and dashboard cache.
// Constructors accept a nil client so callers can run without redis.
package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/badge"
)

// NewClient opens a redis connection from config. An empty Addr returns a
// nil client, which disables every cache-backed feature.
func NewClient(conf core.RedisConfig) *redis.Client {
	if conf.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
}

const leaderboardKey = "badges:leaderboard"

// Leaderboard keeps the live points ranking in a redis sorted set.
type Leaderboard struct {
	client *redis.Client
}

var _ badge.LeaderboardStore = (*Leaderboard)(nil)

// NewLeaderboard returns a nil store when the client is nil, so the badge
// service falls back to the database.
func NewLeaderboard(client *redis.Client) *Leaderboard {
	if client == nil {
		return nil
	}
	return &Leaderboard{client: client}
}

func (lb *Leaderboard) UpdateScore(ctx context.Context, userID string, points int) error {
	err := lb.client.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(points),
		Member: userID,
	}).Err()
	return errors.Wrap(err, "updating leaderboard score")
}

func (lb *Leaderboard) Top(ctx context.Context, n int) ([]badge.LeaderboardEntry, error) {
	if n <= 0 {
		n = 10
	}
	zs, err := lb.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "reading leaderboard")
	}
	entries := make([]badge.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		uid, _ := z.Member.(string)
		entries = append(entries, badge.LeaderboardEntry{
			Rank:   i + 1,
			UserID: uid,
			Points: int(z.Score),
		})
	}
	return entries, nil
}

func (lb *Leaderboard) Rank(ctx context.Context, userID string) (int, error) {
	rank, err := lb.client.ZRevRank(ctx, leaderboardKey, userID).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, badge.ErrPointsNotFound
		}
		return 0, errors.Wrap(err, "reading leaderboard rank")
	}
	return int(rank) + 1, nil
}

// DashboardCache stores computed analytics dashboards with a TTL.
type DashboardCache struct {
	client *redis.Client
}

func NewDashboardCache(client *redis.Client) *DashboardCache {
	if client == nil {
		return nil
	}
	return &DashboardCache{client: client}
}

func (c *DashboardCache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading cache")
	}
	return raw, nil
}

func (c *DashboardCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Wrap(c.client.Set(ctx, key, value, ttl).Err(), "writing cache")
}
