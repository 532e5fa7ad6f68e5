package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryCache - PathCache в памяти процесса поверх ristretto.
// Используется, когда Redis не настроен. Вытеснение - по политике TinyLFU,
// ёмкость задаётся числом записей.
type MemoryCache struct {
	cache *ristretto.Cache
	stats statsRecorder
}

// NewMemoryCache создаёт кеш на maxEntries записей
func NewMemoryCache(maxEntries int) (*MemoryCache, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        int64(maxEntries) * 10,
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &MemoryCache{cache: c}, nil
}

// Get получает значение по ключу
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer m.stats.recordLatency(start)

	if key == "" {
		return nil, ErrInvalidKey
	}

	val, ok := m.cache.Get(key)
	if !ok {
		m.stats.miss()
		return nil, ErrCacheMiss
	}
	m.stats.hit()
	return val.([]byte), nil
}

// Set сохраняет значение. Запись становится видимой после обработки буфера ristretto.
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	defer m.stats.recordLatency(start)

	if key == "" {
		return ErrInvalidKey
	}

	stored := append([]byte(nil), value...)
	m.cache.SetWithTTL(key, stored, 1, ttl)
	m.cache.Wait()
	return nil
}

// Delete удаляет ключ из кеша
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.cache.Del(key)
	return nil
}

// Close останавливает фоновые горутины ristretto
func (m *MemoryCache) Close() error {
	m.cache.Close()
	return nil
}

// GetMetrics возвращает текущие метрики кеша
func (m *MemoryCache) GetMetrics() *CacheMetrics {
	return m.stats.snapshot()
}
