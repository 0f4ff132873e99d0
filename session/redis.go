package session

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"connecto/models"
)

// RedisStore keeps the session in Redis so several headless client workers
// (bots, schedulers) can share one authenticated identity.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore wraps an existing Redis client. prefix defaults to
// "connecto:session" when empty.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "connecto:session"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) tokenKey() string { return s.prefix + ":token" }
func (s *RedisStore) userKey() string  { return s.prefix + ":user" }

// Get returns the stored session. A corrupted persisted user is treated as no
// session at all.
func (s *RedisStore) Get(ctx context.Context) (Session, error) {
	token, err := s.rdb.Get(ctx, s.tokenKey()).Result()
	if err == redis.Nil {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, err
	}

	sess := Session{Token: token}
	raw, err := s.rdb.Get(ctx, s.userKey()).Result()
	switch {
	case err == redis.Nil:
		// token without a cached user is still a valid session
	case err != nil:
		return Session{}, err
	default:
		var user models.User
		if uerr := json.Unmarshal([]byte(raw), &user); uerr != nil {
			log.Printf("session: discarding corrupted session record: %v", uerr)
			return Session{}, nil
		}
		sess.User = &user
	}
	return sess, nil
}

// Set replaces the stored session with the given token and user.
func (s *RedisStore) Set(ctx context.Context, token string, user *models.User) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.tokenKey(), token, 0)
	if user != nil {
		b, err := json.Marshal(user)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.userKey(), b, 0)
	} else {
		pipe.Del(ctx, s.userKey())
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Clear removes the stored session. DEL of absent keys is a no-op, so the call
// is idempotent.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.tokenKey(), s.userKey()).Err()
}

// ParseRedisURL accepts either a plain `host:port` or a `redis://`-style URL
// and returns the connection parameters.
func ParseRedisURL(raw string) (addr, password string, db int) {
	if raw == "" {
		return "localhost:6379", "", 0
	}
	if !strings.HasPrefix(raw, "redis://") && !strings.HasPrefix(raw, "rediss://") {
		return raw, "", 0
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw, "", 0
	}
	addr = u.Host
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			password = pw
		}
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		if dbn, err := strconv.Atoi(p); err == nil {
			db = dbn
		}
	}
	return addr, password, db
}

// NewRedisClient builds a Redis client from a REDIS_URL-like string.
func NewRedisClient(raw string) *redis.Client {
	addr, password, db := ParseRedisURL(raw)
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
