package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/annel0/voxelnav/internal/logging"
)

const (
	// События мира публикуются в voxelnav.world.<EventType>.
	// EventType сам содержит точки (block.placed), поэтому стрим слушает "voxelnav.world.>".
	subjectPrefix = "voxelnav.world"

	headerSource   = "Voxelnav-Source"
	headerPriority = "Voxelnav-Priority"
)

// JetStreamConfig - параметры подключения к NATS
type JetStreamConfig struct {
	URL       string        // nats://127.0.0.1:4222
	Stream    string        // имя стрима, по умолчанию VOXELNAV
	Retention time.Duration // MaxAge сообщений стрима
	Name      string        // имя соединения, видно в мониторинге NATS
}

// JetStreamBus реализует EventBus поверх NATS JetStream.
// Все узлы пишут в один стрим, каждый узел читает его целиком и сам отбрасывает свои события.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	published uint64
	consumed  uint64
	dropped   uint64
}

// NewJetStreamBus подключается к кластеру NATS и создаёт стрим, если его ещё нет.
func NewJetStreamBus(cfg JetStreamConfig) (*JetStreamBus, error) {
	if cfg.Stream == "" {
		cfg.Stream = "VOXELNAV"
	}
	if cfg.Name == "" {
		cfg.Name = "voxelnav"
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn("⚠️ NATS отключён: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info("🔄 NATS переподключён: %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Drain()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err = js.StreamInfo(cfg.Stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:       cfg.Stream,
			Subjects:   []string{subjectFor(">")},
			Retention:  nats.LimitsPolicy,
			MaxAge:     cfg.Retention,
			Storage:    nats.FileStorage,
			Duplicates: 2 * time.Minute,
		})
		if err != nil {
			nc.Drain()
			return nil, fmt.Errorf("add stream: %w", err)
		}
	}

	logging.Info("📡 JetStream подключён: %s, стрим %s", cfg.URL, cfg.Stream)
	return &JetStreamBus{nc: nc, js: js, stream: cfg.Stream}, nil
}

func subjectFor(eventType string) string {
	return subjectPrefix + "." + eventType
}

// Publish сериализует Envelope в JSON. ID события уходит в Nats-Msg-Id,
// и повторная публикация того же события стрим отбрасывает.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(subjectFor(ev.EventType))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, ev.ID)
	msg.Header.Set(headerSource, ev.Source)
	msg.Header.Set(headerPriority, fmt.Sprint(ev.Priority))

	if _, err = jb.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

// Subscribe создаёт consumer, получающий только новые события.
// Подписка всегда одна на весь стрим: порядок "поставлен"/"удалён" между типами
// сохраняется только внутри одного consumer.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := subjectFor(">")
	if len(f.Types) == 1 {
		subj = subjectFor(f.Types[0])
	}

	natSub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		// Свои события отбрасываем по заголовку, не разбирая тело
		if src := msg.Header.Get(headerSource); src != "" && excluded(src, f.ExcludeSources) {
			_ = msg.Ack()
			return
		}

		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			atomic.AddUint64(&jb.dropped, 1)
			_ = msg.Term()
			return
		}
		if matchFilter(&ev, f) {
			h(ctx, &ev)
			atomic.AddUint64(&jb.consumed, 1)
		}
		_ = msg.Ack()
	}, nats.ManualAck(), nats.DeliverNew(), nats.AckWait(30*time.Second))
	if err != nil {
		return nil, err
	}

	return &jetSub{natSub}, nil
}

func excluded(source string, list []string) bool {
	for _, s := range list {
		if s == source {
			return true
		}
	}
	return false
}

// jetSub обёртка вокруг *nats.Subscription
type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics возвращает счётчики шины. Свои события в Consumed не входят.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
		InFlight:  0, // очередь держит сам JetStream
	}
}

// Close дожидается доставки и закрывает соединение
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
