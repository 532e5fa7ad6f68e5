package ingest

import (
	"context"

	"github.com/annel0/voxelnav/internal/eventbus"
	"github.com/annel0/voxelnav/internal/vec"
)

// Publisher рассылает изменения мира другим узлам через шину событий.
// Source события - идентификатор узла; по нему Subscriber отбрасывает собственные события.
// Нулевой Publisher (nil) ничего не отправляет.
type Publisher struct {
	bus    eventbus.EventBus
	source string
}

// NewPublisher создаёт публикатор от имени узла source
func NewPublisher(bus eventbus.EventBus, source string) *Publisher {
	return &Publisher{bus: bus, source: source}
}

// Placed публикует добавленные блоки
func (p *Publisher) Placed(ctx context.Context, records []BlockRecord) error {
	if len(records) == 0 {
		return nil
	}
	return p.publish(ctx, EventBlockPlaced, BlocksPlaced{Blocks: records}, eventbus.PriorityNormal)
}

// Removed публикует удаление блока
func (p *Publisher) Removed(ctx context.Context, point vec.Vec3Float) error {
	return p.publish(ctx, EventBlockRemoved, BlockRemoved{X: point.X, Y: point.Y, Z: point.Z}, eventbus.PriorityNormal)
}

// Reset публикует очистку мира
func (p *Publisher) Reset(ctx context.Context, reason string) error {
	return p.publish(ctx, EventWorldReset, WorldReset{Reason: reason}, eventbus.PriorityCritical)
}

func (p *Publisher) publish(ctx context.Context, eventType string, payload interface{}, priority int) error {
	if p == nil || p.bus == nil {
		return nil
	}
	ev, err := eventbus.NewEnvelope(eventType, p.source, payload)
	if err != nil {
		return err
	}
	ev.Priority = priority
	return p.bus.Publish(ctx, ev)
}
