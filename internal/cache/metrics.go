package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// statsRecorder ведёт счётчики попаданий и latency, общие для всех реализаций
type statsRecorder struct {
	requests int64
	hits     int64
	misses   int64

	latencySum   int64 // в наносекундах
	latencyCount int64
	maxLatency   int64

	mu      sync.RWMutex
	metrics CacheMetrics
}

func (s *statsRecorder) hit()  { atomic.AddInt64(&s.requests, 1); atomic.AddInt64(&s.hits, 1) }
func (s *statsRecorder) miss() { atomic.AddInt64(&s.requests, 1); atomic.AddInt64(&s.misses, 1) }

// recordLatency записывает latency метрику.
func (s *statsRecorder) recordLatency(start time.Time) {
	latency := time.Since(start).Nanoseconds()

	atomic.AddInt64(&s.latencySum, latency)
	count := atomic.AddInt64(&s.latencyCount, 1)

	// Обновляем максимальную latency
	for {
		current := atomic.LoadInt64(&s.maxLatency)
		if latency <= current || atomic.CompareAndSwapInt64(&s.maxLatency, current, latency) {
			break
		}
	}

	// Периодически обновляем среднюю latency в метриках
	if count%100 == 0 {
		s.updateLatencyMetrics()
	}
}

func (s *statsRecorder) updateLatencyMetrics() {
	count := atomic.LoadInt64(&s.latencyCount)
	if count == 0 {
		return
	}

	sum := atomic.LoadInt64(&s.latencySum)
	max := atomic.LoadInt64(&s.maxLatency)

	s.mu.Lock()
	s.metrics.AvgLatencyMs = float64(sum) / float64(count) / 1e6 // нс в мс
	s.metrics.MaxLatencyMs = float64(max) / 1e6
	s.mu.Unlock()
}

// snapshot копирует метрики и досчитывает производные поля
func (s *statsRecorder) snapshot() *CacheMetrics {
	s.updateLatencyMetrics()

	s.mu.RLock()
	m := s.metrics
	s.mu.RUnlock()

	m.TotalRequests = atomic.LoadInt64(&s.requests)
	m.CacheHits = atomic.LoadInt64(&s.hits)
	m.CacheMisses = atomic.LoadInt64(&s.misses)
	if total := m.CacheHits + m.CacheMisses; total > 0 {
		m.HitRatio = float64(m.CacheHits) / float64(total)
	}
	m.LastUpdate = time.Now()
	return &m
}
