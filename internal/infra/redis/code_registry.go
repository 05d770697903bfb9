package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livequiz/internal/domain"
)

// CodeRegistry publishes session codes in Redis so players can find a host by its code alone.
// Keys live at quiz:session:{code} and hold the host's base URL. The TTL bounds how long a
// crashed host keeps its code.
type CodeRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCodeRegistry(client *redis.Client, ttl time.Duration) *CodeRegistry {
	return &CodeRegistry{client: client, ttl: ttl}
}

func (r *CodeRegistry) Claim(ctx context.Context, code, addr string) error {
	ok, err := r.client.SetNX(ctx, r.key(code), addr, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim session code: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrCodeTaken, code)
	}
	return nil
}

func (r *CodeRegistry) Resolve(ctx context.Context, code string) (string, error) {
	addr, err := r.client.Get(ctx, r.key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", domain.ErrCodeNotFound, code)
	}
	if err != nil {
		return "", fmt.Errorf("resolve session code: %w", err)
	}
	return addr, nil
}

func (r *CodeRegistry) Release(ctx context.Context, code string) error {
	return r.client.Del(ctx, r.key(code)).Err()
}

func (r *CodeRegistry) key(code string) string {
	return "quiz:session:" + code
}
