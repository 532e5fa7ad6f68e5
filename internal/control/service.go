package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxelnav/internal/eventbus"
	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/navigation"
	"github.com/annel0/voxelnav/internal/observability"
	"github.com/annel0/voxelnav/internal/vec"
)

// EventAgentStatus - статус агента, принятый одним из узлов
const EventAgentStatus = "agent.status"

var (
	ErrUnknownAgent = errors.New("агент не присылал статус")
	ErrNoStart      = errors.New("не задана начальная точка и позиция агента неизвестна")
	ErrNoFacing     = errors.New("не задано направление и агент его не сообщал")
	ErrNoGoal       = errors.New("не задана цель маршрута")
)

// Router ищет маршрут; *navigation.Service удовлетворяет интерфейсу
type Router interface {
	FindRoute(ctx context.Context, start, goal vec.Vec3Float) (*navigation.Route, error)
}

// RouteRequest - отправить агента в точку To.
// From и Facing по умолчанию берутся из последнего статуса агента.
type RouteRequest struct {
	Label  string         `json:"label" binding:"required"`
	From   *vec.Vec3Float `json:"from,omitempty"`
	To     *vec.Vec3Float `json:"to" binding:"required"`
	Facing string         `json:"facing,omitempty"`
}

// Dispatch - маршрут, поставленный в очередь агента
type Dispatch struct {
	Route    *navigation.Route
	Commands []string
	Facing   Facing // направление после выполнения команд
	Queued   int    // длина очереди агента после добавления
}

// Service управляет очередями команд и статусами агентов.
// Статусы рассылаются другим узлам через шину; очереди у каждого узла свои.
type Service struct {
	queue  *CommandQueue
	board  *StatusBoard
	router Router
	bus    eventbus.EventBus
	source string
	tracer trace.Tracer
	logger *logging.Logger

	mu  sync.Mutex
	sub eventbus.Subscription
}

// NewService создаёт сервис управления. bus и router могут быть nil:
// тогда статусы не рассылаются, а DispatchRoute недоступен.
func NewService(router Router, bus eventbus.EventBus, source string, maxQueue int) *Service {
	return &Service{
		queue:  NewCommandQueue(maxQueue),
		board:  NewStatusBoard(),
		router: router,
		bus:    bus,
		source: source,
		tracer: observability.Tracer(observability.TracerControl),
		logger: logging.GetComponentLogger(logging.ComponentControl),
	}
}

// Enqueue добавляет команды в очередь агента
func (s *Service) Enqueue(label string, cmds []json.RawMessage) (int, error) {
	n, err := s.queue.Enqueue(label, cmds)
	if err != nil {
		return n, err
	}
	s.logger.Info("📥 %d команд для %s, в очереди %d", len(cmds), label, n)
	return n, nil
}

// Pending возвращает команды, ожидающие агента
func (s *Service) Pending(label string) []json.RawMessage {
	return s.queue.Pending(label)
}

// Next снимает следующую команду агента
func (s *Service) Next(label string) (json.RawMessage, bool) {
	cmd, ok := s.queue.Pop(label)
	if ok {
		s.logger.Debug("📤 %s получает команду %s", label, cmd)
	}
	return cmd, ok
}

// Clear очищает очередь агента
func (s *Service) Clear(label string) int {
	n := s.queue.Clear(label)
	if n > 0 {
		s.logger.Info("🧹 Очередь %s очищена: снято %d команд", label, n)
	}
	return n
}

// UpdateStatus сохраняет статус агента и рассылает его другим узлам
func (s *Service) UpdateStatus(ctx context.Context, st AgentStatus) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	if st.Node == "" {
		st.Node = s.source
	}
	s.board.Put(st)
	s.logger.Debug("📍 %s @ %v | %s | busy=%v | fuel=%d/%d | slots=%d/%d",
		st.Label, st.Position, st.Direction, st.IsBusy, st.FuelLevel, st.MaxFuel,
		st.InventorySlotsUsed, st.InventorySlotsTotal)

	if s.bus == nil {
		return nil
	}
	ev, err := eventbus.NewEnvelope(EventAgentStatus, s.source, st)
	if err != nil {
		return err
	}
	ev.Priority = eventbus.PriorityLow
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.Warn("⚠️ Не удалось разослать статус %s: %v", st.Label, err)
	}
	return nil
}

// Status возвращает последний статус агента
func (s *Service) Status(label string) (AgentStatus, bool) {
	return s.board.Get(label)
}

// Statuses возвращает статусы всех агентов
func (s *Service) Statuses() []AgentStatus {
	return s.board.All()
}

// DispatchRoute ищет маршрут для агента и ставит команды движения в его очередь.
// При отсутствии пути возвращается ошибка поиска (оборачивает pathfinding.ErrNoPath)
// вместе с Dispatch, в котором есть Route.
func (s *Service) DispatchRoute(ctx context.Context, req RouteRequest) (*Dispatch, error) {
	if req.Label == "" {
		return nil, ErrEmptyLabel
	}
	if req.To == nil {
		return nil, ErrNoGoal
	}
	if s.router == nil {
		return nil, fmt.Errorf("поиск маршрутов не подключён")
	}

	ctx, span := s.tracer.Start(ctx, "control.DispatchRoute", trace.WithAttributes(
		attribute.String("agent.label", req.Label),
	))
	defer span.End()

	start, facing, err := s.resolveStart(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	goal := *req.To
	if err := goal.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("цель: %w", err)
	}

	route, err := s.router.FindRoute(ctx, start, goal)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return &Dispatch{Route: route, Facing: facing}, err
	}

	cmds, end, err := CommandsForPath(route.Dense, facing)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	queued, err := s.Enqueue(req.Label, TextCommands(cmds))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("agent.commands", len(cmds)))
	s.logger.Info("🧭 %s: маршрут %s -> %s, %d команд", req.Label, start, goal, len(cmds))
	return &Dispatch{Route: route, Commands: cmds, Facing: end, Queued: queued}, nil
}

// resolveStart дополняет запрос позицией и направлением из статуса агента
func (s *Service) resolveStart(req RouteRequest) (vec.Vec3Float, Facing, error) {
	st, known := s.board.Get(req.Label)

	var start vec.Vec3Float
	switch {
	case req.From != nil:
		start = *req.From
	case known && st.Position != nil:
		start = *st.Position
	default:
		return start, FacingNorth, ErrNoStart
	}
	if err := start.Validate(); err != nil {
		return start, FacingNorth, fmt.Errorf("начальная точка: %w", err)
	}

	direction := req.Facing
	if direction == "" && known {
		direction = st.Direction
	}
	if direction == "" {
		return start, FacingNorth, ErrNoFacing
	}
	facing, err := ParseFacing(direction)
	return start, facing, err
}

// Start подписывается на статусы агентов от других узлов. Повторный вызов ничего не делает.
func (s *Service) Start(ctx context.Context) error {
	if s.bus == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}

	sub, err := s.bus.Subscribe(ctx, eventbus.Filter{
		Types:          []string{EventAgentStatus},
		ExcludeSources: []string{s.source},
	}, s.handle)
	if err != nil {
		return fmt.Errorf("подписка на статусы агентов: %w", err)
	}
	s.sub = sub
	return nil
}

// Stop отписывается от шины
func (s *Service) Stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (s *Service) handle(ctx context.Context, ev *eventbus.Envelope) {
	var st AgentStatus
	if err := ev.Decode(&st); err != nil {
		s.logger.Warn("⚠️ %v", err)
		return
	}
	if err := st.Validate(); err != nil {
		s.logger.Warn("⚠️ Статус от %s отклонён: %v", ev.Source, err)
		return
	}
	s.board.Put(st)
}
