package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/annel0/voxelnav/internal/eventbus"
	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/vec"
)

// Subscriber применяет изменения мира, пришедшие от других узлов
type Subscriber struct {
	bus     eventbus.EventBus
	applier *Applier
	source  string
	logger  *logging.Logger

	mu  sync.Mutex
	sub eventbus.Subscription
}

// NewSubscriber создаёт подписчика. События с Source == source шина не доставляет.
func NewSubscriber(bus eventbus.EventBus, applier *Applier, source string) *Subscriber {
	return &Subscriber{
		bus:     bus,
		applier: applier,
		source:  source,
		logger:  logging.GetIngestLogger(),
	}
}

// Start подписывается на события мира. Повторный вызов ничего не делает.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}

	sub, err := s.bus.Subscribe(ctx, eventbus.Filter{
		Types:          EventTypes,
		ExcludeSources: []string{s.source},
	}, s.handle)
	if err != nil {
		return fmt.Errorf("подписка на события мира: %w", err)
	}
	s.sub = sub
	s.logger.Info("📡 Подписка на события мира (узел %s)", s.source)
	return nil
}

// Stop отписывается от шины
func (s *Subscriber) Stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (s *Subscriber) handle(ctx context.Context, ev *eventbus.Envelope) {
	if err := s.Apply(ev); err != nil {
		s.logger.Warn("⚠️ Событие %s (%s) от %s не применено: %v", ev.EventType, ev.ID, ev.Source, err)
	}
}

// Apply применяет одно событие независимо от источника
func (s *Subscriber) Apply(ev *eventbus.Envelope) error {
	switch ev.EventType {
	case EventBlockPlaced:
		var p BlocksPlaced
		if err := ev.Decode(&p); err != nil {
			return err
		}
		_, err := s.applier.Place(p.Blocks)
		return err
	case EventBlockRemoved:
		var p BlockRemoved
		if err := ev.Decode(&p); err != nil {
			return err
		}
		_, err := s.applier.Remove(vec.Vec3Float{X: p.X, Y: p.Y, Z: p.Z})
		return err
	case EventWorldReset:
		return s.applier.Reset()
	default:
		return fmt.Errorf("неизвестный тип события %q", ev.EventType)
	}
}
