package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeUsersKey = "active_users"

// RedisPresence mirrors online users into a Redis hash of
// userID -> live connection count.
type RedisPresence struct {
	client *redis.Client
}

var _ PresenceCache = (*RedisPresence)(nil)

// NewRedisPresence accepts either a redis:// URL or a bare host:port.
func NewRedisPresence(ctx context.Context, rawURL string) (*RedisPresence, error) {
	opts := &redis.Options{Addr: rawURL}
	if strings.Contains(rawURL, "://") {
		parsed, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisPresence{client: client}, nil
}

func (r *RedisPresence) SetOnline(ctx context.Context, userID string, connections int) error {
	return r.client.HSet(ctx, activeUsersKey, userID, strconv.Itoa(connections)).Err()
}

func (r *RedisPresence) SetOffline(ctx context.Context, userID string) error {
	return r.client.HDel(ctx, activeUsersKey, userID).Err()
}

func (r *RedisPresence) OnlineUsers(ctx context.Context) ([]string, error) {
	return r.client.HKeys(ctx, activeUsersKey).Result()
}

// Reset drops the mirror; a restarted process has no live connections.
func (r *RedisPresence) Reset(ctx context.Context) error {
	return r.client.Del(ctx, activeUsersKey).Err()
}

func (r *RedisPresence) Close() error {
	return r.client.Close()
}
