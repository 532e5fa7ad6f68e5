package eventbus

import (
	"context"

	"github.com/annel0/voxelnav/internal/logging"
)

// Приоритеты событий (0..9)
const (
	PriorityLow      = 2 // при переполнении очереди подписчика отбрасываются
	PriorityNormal   = 5
	PriorityCritical = 9 // пишутся в лог на уровне INFO
)

// StartLoggingListener подписывается на события по фильтру и пишет их в лог компонента eventbus.
// Обычные события идут в DEBUG, критичные (сброс мира) в INFO. Функция неблокирующая.
func StartLoggingListener(bus EventBus, f Filter) (Subscription, error) {
	logger := logging.GetComponentLogger(logging.ComponentEventBus)
	sub, err := bus.Subscribe(context.Background(), f, func(ctx context.Context, ev *Envelope) {
		if ev.Priority >= PriorityCritical {
			logger.Info("🚨 %s от %s (%s)", ev.EventType, ev.Source, ev.ID)
			return
		}
		logger.Debug("%s %s src=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Source, ev.Priority, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	logger.Info("🪵 LoggingListener: подписка активирована")
	return sub, nil
}
