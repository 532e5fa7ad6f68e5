package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
// Любая секция может отсутствовать в файле - тогда действуют значения из Default().
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Pathfinding PathfindingConfig `yaml:"pathfinding"`
	World       WorldConfig       `yaml:"world"`
	Storage     StorageConfig     `yaml:"storage"`
	EventBus    EventBusConfig    `yaml:"eventbus"`
	Cache       CacheConfig       `yaml:"cache"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Control     ControlConfig     `yaml:"control"`
}

type ServerConfig struct {
	RESTPort int `yaml:"rest_port"`
}

type LoggingConfig struct {
	Level      string            `yaml:"level"`
	Dir        string            `yaml:"dir"`
	Components map[string]string `yaml:"components"` // уровень для отдельных компонентов: pathfinding: debug
}

// PathfindingConfig описывает правила движения и бюджет поиска
type PathfindingConfig struct {
	StraightCost    int    `yaml:"straight_cost"`
	DiagonalCost    int    `yaml:"diagonal_cost"`
	JumpCost        int    `yaml:"jump_cost"`
	MaxIterations   int    `yaml:"max_iterations"`
	MaxJumpHeight   int    `yaml:"max_jump_height"`
	MaxFallDistance int    `yaml:"max_fall_distance"`
	MaxAirDrift     int    `yaml:"max_air_drift"`
	SurfacePolicy   string `yaml:"surface_policy"` // approximate | exact
}

type WorldConfig struct {
	BlocksFile   string `yaml:"blocks_file"`
	GenerateSeed int64  `yaml:"generate_seed"`
	GenerateSize int    `yaml:"generate_size"` // 0 - не генерировать
}

type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	DataDir string `yaml:"data_dir"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто - in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Capacity  int    `yaml:"capacity"`
}

type CacheConfig struct {
	RedisURL      string        `yaml:"redis_url"` // пусто - in-memory кеш
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`     // host:port OTLP/HTTP; пусто - localhost:4318
	Insecure    bool    `yaml:"insecure"`     // без TLS
	SampleRatio float64 `yaml:"sample_ratio"` // доля трассируемых запросов, 0 или >=1 - все
}

// ControlConfig - очереди команд агентов
type ControlConfig struct {
	MaxQueue int `yaml:"max_queue"` // команд в очереди одного агента; 0 - без ограничения
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Pathfinding: PathfindingConfig{
			StraightCost:    10,
			DiagonalCost:    14,
			JumpCost:        20,
			MaxIterations:   10000,
			MaxJumpHeight:   1,
			MaxFallDistance: 4,
			MaxAirDrift:     2,
			SurfacePolicy:   "approximate",
		},
		Storage: StorageConfig{DataDir: "data"},
		EventBus: EventBusConfig{
			Stream:    "VOXELNAV",
			Retention: 24,
			Capacity:  1024,
		},
		Cache: CacheConfig{
			TTL:        30 * time.Second,
			MaxEntries: 4096,
		},
		Telemetry: TelemetryConfig{ServiceName: "voxelnav"},
		Control:   ControlConfig{MaxQueue: 1024},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "VOXELNAV_REST_PORT", 8088)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет значения, без которых поиск пути не имеет смысла
func (c *Config) Validate() error {
	p := c.Pathfinding
	if p.StraightCost <= 0 || p.JumpCost <= 0 {
		return fmt.Errorf("pathfinding: стоимости шагов должны быть положительными (straight=%d, jump=%d)", p.StraightCost, p.JumpCost)
	}
	if p.MaxIterations <= 0 {
		return fmt.Errorf("pathfinding: max_iterations должен быть > 0, получено %d", p.MaxIterations)
	}
	switch p.SurfacePolicy {
	case "", "approximate", "exact":
	default:
		return fmt.Errorf("pathfinding: неизвестная surface_policy %q", p.SurfacePolicy)
	}
	if r := c.Telemetry.SampleRatio; r < 0 {
		return fmt.Errorf("telemetry: sample_ratio не может быть отрицательным, получено %v", r)
	}
	if c.World.GenerateSize < 0 {
		return fmt.Errorf("world: generate_size не может быть отрицательным")
	}
	if c.Control.MaxQueue < 0 {
		return fmt.Errorf("control: max_queue не может быть отрицательным, получено %d", c.Control.MaxQueue)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV VOXELNAV_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("VOXELNAV_CONFIG")
		if path == "" {
			return cfg, nil // конфиг не задан - использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
