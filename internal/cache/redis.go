package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"miniapp_store/internal/models"
	"miniapp_store/internal/pkg/logger"
)

const keyPrefix = "store:products"

// Config defines connection parameters for Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis is a ProductCache backed by go-redis. Listings are stored as JSON under a
// generation number; Invalidate bumps the generation so stale keys simply expire.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedis returns a Redis cache for the given configuration.
func NewRedis(cfg Config, log *logger.Logger) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: cfg.TTL,
		log: log.Named("redis"),
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases Redis resources.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) GetProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, bool, error) {
	key, err := r.listingKey(ctx, filter)
	if err != nil {
		return nil, false, err
	}

	res, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var products []models.Product
	if err := json.Unmarshal([]byte(res), &products); err != nil {
		r.log.Sugar().Warnf("Dropping unreadable cache entry %s: %s", key, err)
		return nil, false, nil
	}
	return products, true, nil
}

func (r *Redis) SetProducts(ctx context.Context, filter models.ProductFilter, products []models.Product) error {
	key, err := r.listingKey(ctx, filter)
	if err != nil {
		return err
	}

	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context) error {
	if err := r.client.Incr(ctx, generationKey()).Err(); err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}
	r.log.Debug("product cache invalidated")
	return nil
}

func (r *Redis) listingKey(ctx context.Context, filter models.ProductFilter) (string, error) {
	generation, err := r.client.Get(ctx, generationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("redis get generation: %w", err)
	}
	return listingKey(generation, filter), nil
}

func generationKey() string {
	return keyPrefix + ":generation"
}

func listingKey(generation int64, filter models.ProductFilter) string {
	return fmt.Sprintf("%s:%d:%s", keyPrefix, generation, FilterKey(filter))
}

// logged wraps a ProductCache so that cache failures are logged and treated as misses.
type logged struct {
	next ProductCache
	log  *logger.Logger
}

// Logged returns a ProductCache that never fails: errors from next are logged and swallowed.
func Logged(next ProductCache, log *logger.Logger) ProductCache {
	return &logged{next: next, log: log}
}

func (l *logged) GetProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, bool, error) {
	products, ok, err := l.next.GetProducts(ctx, filter)
	if err != nil {
		l.log.Warn("product cache read failed", zap.Error(err))
		return nil, false, nil
	}
	return products, ok, nil
}

func (l *logged) SetProducts(ctx context.Context, filter models.ProductFilter, products []models.Product) error {
	if err := l.next.SetProducts(ctx, filter, products); err != nil {
		l.log.Warn("product cache write failed", zap.Error(err))
	}
	return nil
}

func (l *logged) Invalidate(ctx context.Context) error {
	if err := l.next.Invalidate(ctx); err != nil {
		l.log.Error("product cache invalidation failed", zap.Error(err))
	}
	return nil
}
