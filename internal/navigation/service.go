package navigation

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxelnav/internal/cache"
	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/observability"
	"github.com/annel0/voxelnav/internal/pathfinding"
	"github.com/annel0/voxelnav/internal/vec"
	"github.com/annel0/voxelnav/internal/world"
)

// Route - ответ на запрос маршрута
type Route struct {
	Outcome    pathfinding.Outcome
	Waypoints  []vec.Vec3Float // упрощённая ломаная
	Dense      []vec.Vec3Float // центры всех ячеек пути
	Expansions int
	Version    uint64 // версия снимка мира, на которой считался маршрут
	Cached     bool
}

// cachedRoute - форма Route в кеше
type cachedRoute struct {
	Outcome    int             `json:"outcome"`
	Waypoints  []vec.Vec3Float `json:"waypoints"`
	Dense      []vec.Vec3Float `json:"dense"`
	Expansions int             `json:"expansions"`
}

// Service отвечает на запросы маршрутов поверх текущего снимка мира.
// Каждый запрос фиксирует один снимок и целиком считается на нём.
type Service struct {
	store   *world.Store
	finder  *pathfinding.Pathfinder
	cache   cache.PathCache
	ttl     time.Duration
	metrics *pathfinding.Metrics
	tracer  trace.Tracer
	logger  *logging.Logger
}

// Option настраивает Service
type Option func(*Service)

// WithCache включает кеш маршрутов
func WithCache(c cache.PathCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithMetrics задаёт метрики для длины упрощённого пути
func WithMetrics(m *pathfinding.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer подменяет трассировщик (тесты)
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService создаёт сервис маршрутов
func NewService(store *world.Store, finder *pathfinding.Pathfinder, opts ...Option) *Service {
	s := &Service{
		store:  store,
		finder: finder,
		tracer: observability.Tracer(observability.TracerNavigation),
		logger: logging.GetComponentLogger(logging.ComponentNavigation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindRoute ищет маршрут от start к goal.
// Route возвращается всегда; при отсутствии пути ошибка оборачивает pathfinding.ErrNoPath.
func (s *Service) FindRoute(ctx context.Context, start, goal vec.Vec3Float) (*Route, error) {
	snap := s.store.Snapshot()

	ctx, span := s.tracer.Start(ctx, "navigation.FindRoute", trace.WithAttributes(
		attribute.String("route.start", start.String()),
		attribute.String("route.goal", goal.String()),
		attribute.Int64("world.version", int64(snap.Version())),
	))
	defer span.End()

	key := cache.PathKey(snap.Version(), start, goal)
	route, ok := s.lookup(ctx, key)
	if !ok {
		res := s.finder.Search(snap, start, goal)
		route = &Route{
			Outcome:    res.Outcome,
			Dense:      res.Path,
			Waypoints:  pathfinding.Simplify(res.Path),
			Expansions: res.Expansions,
		}
		s.remember(ctx, key, route)
	}
	route.Version = snap.Version()

	span.SetAttributes(
		attribute.String("route.outcome", route.Outcome.String()),
		attribute.Int("route.expansions", route.Expansions),
		attribute.Int("route.waypoints", len(route.Waypoints)),
		attribute.Bool("route.cached", route.Cached),
	)

	if err := (pathfinding.Result{Outcome: route.Outcome}).Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return route, err
	}
	s.metrics.ObserveWaypoints(len(route.Waypoints))
	return route, nil
}

func (s *Service) lookup(ctx context.Context, key string) (*Route, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			s.logger.Warn("⚠️ Кеш маршрутов недоступен: %v", err)
		}
		return nil, false
	}

	var cr cachedRoute
	if err := json.Unmarshal(data, &cr); err != nil {
		s.logger.Warn("⚠️ Повреждённая запись кеша %s: %v", key, err)
		return nil, false
	}
	return &Route{
		Outcome:    pathfinding.Outcome(cr.Outcome),
		Waypoints:  cr.Waypoints,
		Dense:      cr.Dense,
		Expansions: cr.Expansions,
		Cached:     true,
	}, true
}

func (s *Service) remember(ctx context.Context, key string, r *Route) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(cachedRoute{
		Outcome:    int(r.Outcome),
		Waypoints:  r.Waypoints,
		Dense:      r.Dense,
		Expansions: r.Expansions,
	})
	if err != nil {
		s.logger.Warn("⚠️ Сериализация маршрута: %v", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("⚠️ Запись в кеш маршрутов: %v", err)
	}
}

// World возвращает хранилище, на котором работает сервис
func (s *Service) World() *world.Store {
	return s.store
}
