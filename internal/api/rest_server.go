package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/voxelnav/internal/cache"
	"github.com/annel0/voxelnav/internal/control"
	"github.com/annel0/voxelnav/internal/eventbus"
	"github.com/annel0/voxelnav/internal/ingest"
	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/middleware"
	"github.com/annel0/voxelnav/internal/navigation"
)

// RestServer представляет REST API сервер
type RestServer struct {
	router     *gin.Engine
	httpServer *http.Server
	port       string
	nodeID     string

	ingest    *ingest.Service
	navigator *navigation.Service
	control   *control.Service
	cache     cache.PathCache
	bus       eventbus.EventBus

	metrics *ServerMetrics
	logger  *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port      string              // порт для запуска сервера, например ":8088"
	NodeID    string              // идентификатор узла в /api/stats
	Ingest    *ingest.Service     // приём изменений мира
	Navigator *navigation.Service // поиск маршрутов
	Control   *control.Service    // опционально, очереди команд и статусы агентов
	Cache     cache.PathCache     // опционально, для /api/stats
	Bus       eventbus.EventBus   // опционально, для /api/stats
	// Registry - регистр HTTP-метрик; nil - дефолтный регистр Prometheus
	Registry prometheus.Registerer
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	otelRouter := otelgin.Middleware("voxelnav_api")
	router.Use(otelRouter)

	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	promMw := middleware.NewPrometheusMiddleware("voxelnav_api", config.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:    router,
		port:      config.Port,
		nodeID:    config.NodeID,
		ingest:    config.Ingest,
		navigator: config.Navigator,
		control:   config.Control,
		cache:     config.Cache,
		bus:       config.Bus,
		metrics:   NewServerMetrics(),
		logger:    logging.GetServerLogger(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.Use(corsMiddleware())

	api := rs.router.Group("/api")
	{
		// Отчёты сканера о блоках
		api.POST("/report", rs.handleReport)
		api.GET("/report", rs.handleGetReport)

		// Изменения мира
		api.DELETE("/blocks", rs.handleRemoveBlock)
		api.POST("/reset", rs.handleReset)

		// Маршруты и состояние мира
		api.GET("/path", rs.handlePath)
		api.GET("/world", rs.handleWorld)
		api.GET("/world/cells", rs.handleWorldCells)

		api.GET("/stats", rs.handleStats)
	}
	rs.setupControlRoutes(api)

	rs.router.GET("/health", rs.handleHealth)
}

// Handler возвращает http.Handler сервера (тесты, встраивание)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер в отдельной горутине
func (rs *RestServer) Start() error {
	rs.httpServer = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rs.logger.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()

	rs.logger.Info("✅ REST API сервер запущен на http://localhost%s", rs.port)
	rs.logger.Info("📋 Доступные эндпоинты:")
	rs.logger.Info("   POST   /api/report      - Отчёт о блоках [{x,y,z,name}]")
	rs.logger.Info("   GET    /api/report      - Все известные блоки")
	rs.logger.Info("   DELETE /api/blocks?at=  - Удаление блока")
	rs.logger.Info("   POST   /api/reset       - Очистка мира")
	rs.logger.Info("   GET    /api/path?from=&to= - Поиск маршрута")
	rs.logger.Info("   GET    /api/world       - Состояние мира")
	rs.logger.Info("   GET    /api/stats       - Статистика сервера")
	if rs.control != nil {
		rs.logger.Info("   POST   /api/commands    - Команды агенту {label, commands}")
		rs.logger.Info("   GET    /api/command?label= - Следующая команда агента")
		rs.logger.Info("   POST   /api/commands/route - Маршрут агенту {label, to}")
		rs.logger.Info("   POST   /api/status      - Статус агента")
		rs.logger.Info("   GET    /api/status/all  - Статусы всех агентов")
	}
	return nil
}

// Stop выполняет graceful shutdown
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	rs.logger.Info("🛑 Остановка REST API сервера...")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := rs.httpServer.Shutdown(ctx); err != nil {
		rs.logger.Error("❌ Ошибка при остановке HTTP сервера: %v", err)
		return err
	}
	rs.logger.Info("✅ REST API сервер остановлен")
	return nil
}

// corsMiddleware разрешает запросы из браузерных клиентов
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
