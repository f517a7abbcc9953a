// Package cache provides the read-through cache for public product listings.
package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"miniapp_store/internal/models"
)

// ProductCache stores product listings keyed by filter.
// A miss is reported as ok == false with a nil error.
type ProductCache interface {
	GetProducts(ctx context.Context, filter models.ProductFilter) (products []models.Product, ok bool, err error)
	SetProducts(ctx context.Context, filter models.ProductFilter, products []models.Product) error
	// Invalidate drops every cached listing. Called after any catalogue write.
	Invalidate(ctx context.Context) error
}

// FilterKey renders filter as a stable cache key suffix.
func FilterKey(filter models.ProductFilter) string {
	featured := "any"
	if filter.Featured != nil {
		featured = strconv.FormatBool(*filter.Featured)
	}
	return strings.Join([]string{
		"c=" + strings.ToLower(filter.Category),
		"f=" + featured,
		"q=" + strings.ToLower(filter.Search),
	}, "|")
}

// Noop never stores anything.
type Noop struct{}

func (Noop) GetProducts(context.Context, models.ProductFilter) ([]models.Product, bool, error) {
	return nil, false, nil
}

func (Noop) SetProducts(context.Context, models.ProductFilter, []models.Product) error { return nil }

func (Noop) Invalidate(context.Context) error { return nil }

// DefaultMemorySize caps the number of listings held by Memory when no size is given.
const DefaultMemorySize = 256

// Memory is an in-process ProductCache used when Redis is not configured. It holds at most
// size listings, evicting the least recently used, and every entry expires after ttl.
type Memory struct {
	entries *expirable.LRU[string, []models.Product]
}

// NewMemory returns an empty Memory cache. A non-positive size falls back to DefaultMemorySize.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &Memory{entries: expirable.NewLRU[string, []models.Product](size, nil, ttl)}
}

func (m *Memory) GetProducts(_ context.Context, filter models.ProductFilter) ([]models.Product, bool, error) {
	products, ok := m.entries.Get(FilterKey(filter))
	return products, ok, nil
}

func (m *Memory) SetProducts(_ context.Context, filter models.ProductFilter, products []models.Product) error {
	m.entries.Add(FilterKey(filter), products)
	return nil
}

func (m *Memory) Invalidate(context.Context) error {
	m.entries.Purge()
	return nil
}

// Len reports how many listings are cached.
func (m *Memory) Len() int {
	return m.entries.Len()
}
