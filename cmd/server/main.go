package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/voxelnav/internal/api"
	"github.com/annel0/voxelnav/internal/cache"
	"github.com/annel0/voxelnav/internal/config"
	"github.com/annel0/voxelnav/internal/control"
	"github.com/annel0/voxelnav/internal/eventbus"
	"github.com/annel0/voxelnav/internal/ingest"
	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/navigation"
	"github.com/annel0/voxelnav/internal/observability"
	"github.com/annel0/voxelnav/internal/pathfinding"
	"github.com/annel0/voxelnav/internal/storage"
	"github.com/annel0/voxelnav/internal/world"
	"github.com/annel0/voxelnav/internal/worldgen"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или VOXELNAV_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	logging.SetLogDir(cfg.Logging.Dir)
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	logging.SetConsoleLevel(logging.ParseLevel(cfg.Logging.Level))
	logging.GetLoggerManager().ApplyLevels(cfg.Logging.Components)
	defer logging.GetLoggerManager().CloseAll()

	hostname, _ := os.Hostname()
	nodeID := fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
	logging.Info("🧭 Запуск voxelnav, узел %s", nodeID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, observability.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			SampleRatio: cfg.Telemetry.SampleRatio,
			NodeID:      nodeID,
		})
		if err != nil {
			logging.Warn("⚠️ OpenTelemetry не инициализирован: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logging.Warn("⚠️ Остановка OpenTelemetry: %v", err)
				}
			}()
		}
	}

	// === МИР ===
	policy, err := world.ParseSurfacePolicy(cfg.Pathfinding.SurfacePolicy)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	store := world.NewStore(policy)

	var persister ingest.Persister
	var occupancy *storage.OccupancyStorage
	if cfg.Storage.Enabled {
		occupancy, err = storage.NewOccupancyStorage(cfg.Storage.DataDir)
		if err != nil {
			log.Fatalf("❌ Ошибка открытия хранилища: %v", err)
		}
		defer occupancy.Close()
		persister = occupancy
	}

	applier := ingest.NewApplier(store, persister)
	if err := loadWorld(cfg, applier, occupancy); err != nil {
		log.Fatalf("❌ Ошибка загрузки мира: %v", err)
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := newEventBus(cfg.EventBus, nodeID)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к шине событий: %v", err)
	}
	defer bus.Close()

	if _, err := eventbus.StartLoggingListener(bus, eventbus.Filter{
		Types: append([]string{control.EventAgentStatus}, ingest.EventTypes...),
	}); err != nil {
		logging.Warn("⚠️ LoggingListener: %v", err)
	}
	busMetrics := eventbus.NewMetricsExporter(bus, nil)
	busMetrics.Start(5 * time.Second)
	defer busMetrics.Stop()

	subscriber := ingest.NewSubscriber(bus, applier, nodeID)
	if err := subscriber.Start(ctx); err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer subscriber.Stop()

	// === ПОИСК ПУТИ ===
	pathCache, err := newPathCache(cfg.Cache)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации кеша путей: %v", err)
	}
	defer pathCache.Close()

	metrics := pathfinding.NewMetrics(nil)
	finder := pathfinding.NewPathfinder(pathfinding.FromConfig(cfg.Pathfinding), metrics)
	navigator := navigation.NewService(store, finder,
		navigation.WithCache(pathCache, cfg.Cache.TTL),
		navigation.WithMetrics(metrics),
	)
	if err := navigation.RegisterWorldMetrics(nil, store); err != nil {
		logging.Warn("⚠️ Метрики мира: %v", err)
	}

	// === АГЕНТЫ ===
	agents := control.NewService(navigator, bus, nodeID, cfg.Control.MaxQueue)
	if err := agents.Start(ctx); err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer agents.Stop()
	if err := control.RegisterMetrics(nil, agents); err != nil {
		logging.Warn("⚠️ Метрики агентов: %v", err)
	}

	// === REST API ===
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	server := api.NewRestServer(api.Config{
		Port:      restPort,
		NodeID:    nodeID,
		Ingest:    ingest.NewService(applier, ingest.NewPublisher(bus, nodeID), cfg.World.BlocksFile),
		Navigator: navigator,
		Control:   agents,
		Cache:     pathCache,
		Bus:       bus,
	})
	if err := server.Start(); err != nil {
		log.Fatalf("❌ Ошибка запуска REST API: %v", err)
	}

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)
	logging.Info("💡 curl 'http://localhost%s/api/path?from=0.5,1,0.5&to=10.5,1,3.5'", restPort)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	if err := server.Stop(context.Background()); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

// loadWorld заполняет мир при старте. Приоритет: хранилище, файл блоков, генерация.
// Мир из файла или генератора сразу сохраняется в хранилище.
func loadWorld(cfg *config.Config, applier *ingest.Applier, occupancy *storage.OccupancyStorage) error {
	if occupancy != nil {
		cells, err := occupancy.LoadAll()
		if err != nil {
			return err
		}
		if len(cells) > 0 {
			applier.Load(cells)
			return nil
		}
	}

	var cells []world.Cell
	if cfg.World.BlocksFile != "" {
		records, err := ingest.LoadFile(cfg.World.BlocksFile)
		if err != nil {
			return err
		}
		cells = ingest.ToCells(records)
	}
	if len(cells) == 0 && cfg.World.GenerateSize > 0 {
		cells = worldgen.NewGenerator(cfg.World.GenerateSeed).Generate(cfg.World.GenerateSize)
	}
	if len(cells) == 0 {
		logging.Info("🕳️ Мир пуст: ожидаем отчёты сканера")
		return nil
	}

	snap := applier.Load(cells)
	if occupancy != nil {
		return occupancy.SaveSnapshot(snap)
	}
	return nil
}

func newEventBus(cfg config.EventBusConfig, nodeID string) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("🚌 In-memory шина событий (ёмкость %d)", cfg.Capacity)
		return eventbus.NewMemoryBus(cfg.Capacity), nil
	}
	bus, err := eventbus.NewJetStreamBus(eventbus.JetStreamConfig{
		URL:       cfg.URL,
		Stream:    cfg.Stream,
		Retention: time.Duration(cfg.Retention) * time.Hour,
		Name:      "voxelnav-" + nodeID,
	})
	if err != nil {
		return nil, err
	}
	return bus, nil
}

func newPathCache(cfg config.CacheConfig) (cache.PathCache, error) {
	if cfg.RedisURL == "" {
		c, err := cache.NewMemoryCache(cfg.MaxEntries)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	c, err := cache.NewRedisCache(cache.RedisConfig{
		URL:      cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
