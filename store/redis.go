package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	gamerhub "github.com/gamerhub/gamerhub-go"
	"github.com/redis/go-redis/v9"
)

// Redis persists the session in a redis hash, one field per session
// attribute. Meant for headless agents (bots, workers) that need the
// session to survive their own restarts without a local filesystem.
type Redis struct {
	client *redis.Client
	key    string
}

// RedisOptions configures a redis-backed session store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Name distinguishes sessions when several agents share one redis.
	Name string
}

// NewRedis creates a redis-backed store and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Name == "" {
		opts.Name = "default"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Redis{
		client: client,
		key:    "gamerhub:session:" + opts.Name,
	}, nil
}

// NewRedisWithClient wraps an existing redis client, for callers that
// already manage one.
func NewRedisWithClient(client *redis.Client, name string) *Redis {
	if name == "" {
		name = "default"
	}
	return &Redis{client: client, key: "gamerhub:session:" + name}
}

// Close closes the underlying redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Restore reads the persisted session from the hash.
func (r *Redis) Restore() (*gamerhub.Session, error) {
	ctx := context.Background()
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading session from redis: %w", err)
	}
	if len(fields) == 0 || fields["token"] == "" {
		return nil, nil
	}

	session := &gamerhub.Session{
		Token:        fields["token"],
		RefreshToken: fields["refresh_token"],
		UserID:       fields["user_id"],
		Username:     fields["username"],
	}
	session.CreatedAt = parseUnix(fields["created_at"])
	session.ExpiresAt = parseUnix(fields["expires_at"])
	session.RefreshExpiresAt = parseUnix(fields["refresh_expires_at"])

	if raw := fields["vars"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &session.Vars); err != nil {
			return nil, fmt.Errorf("parsing session vars: %w", err)
		}
	}
	return session, nil
}

// Persist replaces the session hash entirely.
func (r *Redis) Persist(session *gamerhub.Session) error {
	ctx := context.Background()
	if session == nil {
		return r.Clear()
	}

	vars, err := json.Marshal(session.Vars)
	if err != nil {
		return fmt.Errorf("encoding session vars: %w", err)
	}

	// Delete-then-set in one pipeline so stale fields never survive.
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key)
	pipe.HSet(ctx, r.key,
		"token", session.Token,
		"refresh_token", session.RefreshToken,
		"user_id", session.UserID,
		"username", session.Username,
		"created_at", formatUnix(session.CreatedAt),
		"expires_at", formatUnix(session.ExpiresAt),
		"refresh_expires_at", formatUnix(session.RefreshExpiresAt),
		"vars", string(vars),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing session to redis: %w", err)
	}
	return nil
}

// Clear removes the session hash.
func (r *Redis) Clear() error {
	if err := r.client.Del(context.Background(), r.key).Err(); err != nil {
		return fmt.Errorf("clearing session in redis: %w", err)
	}
	return nil
}

func parseUnix(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}
	}
	return time.Unix(n, 0)
}

func formatUnix(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.Unix(), 10)
}
