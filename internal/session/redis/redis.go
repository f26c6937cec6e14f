// Package redis keeps the session token in Redis, for clients that run on
// several hosts and share one login.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alphabot-ai/inkpost/internal/session"
)

const defaultPrefix = "inkpost:session:"

type Backend struct {
	rdb *goredis.Client
	key string
	ttl time.Duration
}

type Option func(*Backend)

// WithNamespace separates the sessions of different profiles on one server.
func WithNamespace(ns string) Option {
	return func(b *Backend) { b.key = defaultPrefix + ns + ":" + session.TokenKey }
}

// WithTTL expires the stored token server-side. Zero keeps it until deleted.
func WithTTL(ttl time.Duration) Option {
	return func(b *Backend) { b.ttl = ttl }
}

func New(rdb *goredis.Client, opts ...Option) *Backend {
	b := &Backend{rdb: rdb, key: defaultPrefix + session.TokenKey}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dial parses a redis:// URL and checks the connection.
func Dial(ctx context.Context, url string, opts ...Option) (*Backend, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(o)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return New(rdb, opts...), nil
}

func (b *Backend) Key() string {
	return b.key
}

func (b *Backend) Close() error {
	return b.rdb.Close()
}

func (b *Backend) Load(ctx context.Context) (string, error) {
	v, err := b.rdb.Get(ctx, b.key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return v, err
}

func (b *Backend) Save(ctx context.Context, token string) error {
	return b.rdb.Set(ctx, b.key, token, b.ttl).Err()
}

func (b *Backend) Delete(ctx context.Context) error {
	return b.rdb.Del(ctx, b.key).Err()
}
