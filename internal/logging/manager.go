package logging

import (
	"fmt"
	"sort"
	"sync"
)

// Имена компонентов, которые пишут в собственные логи
const (
	ComponentServer      = "server"
	ComponentWorld       = "world"
	ComponentPathfinding = "pathfinding"
	ComponentStorage     = "storage"
	ComponentIngest      = "ingest"
	ComponentEventBus    = "eventbus"
	ComponentHTTP        = "http"
	ComponentNavigation  = "navigation"
	ComponentWorldgen    = "worldgen"
	ComponentControl     = "control"
)

// LoggerManager хранит по одному логгеру на компонент.
// Уровень, заданный для компонента явно, важнее общего консольного уровня.
type LoggerManager struct {
	mu        sync.RWMutex
	loggers   map[string]*Logger
	overrides map[string]LogLevel
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{
			loggers:   make(map[string]*Logger),
			overrides: make(map[string]LogLevel),
		}
	})
	return globalManager
}

// GetLogger возвращает логгер для компонента, создавая его при необходимости
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	if logger, exists := lm.loggers[component]; exists {
		lm.mu.RUnlock()
		return logger, nil
	}
	lm.mu.RUnlock()

	lm.mu.Lock()
	defer lm.mu.Unlock()

	// Могли создать, пока ждали write lock
	if logger, exists := lm.loggers[component]; exists {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger for %s: %w", component, err)
	}
	if level, ok := lm.overrides[component]; ok {
		logger.minConsoleLevel = level
	}

	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger возвращает логгер или консольный fallback, если файл не открылся
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		return &Logger{
			component:       component,
			consoleLogger:   current().consoleLogger,
			minConsoleLevel: INFO,
			minFileLevel:    ERROR,
		}
	}
	return logger
}

// CloseAll закрывает файлы всех логгеров и забывает их.
// Переопределённые уровни сохраняются для логгеров, созданных позже.
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var lastErr error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close logger for %s: %w", component, err)
		}
	}
	lm.loggers = make(map[string]*Logger)
	return lastErr
}

// ListComponents возвращает отсортированный список зарегистрированных компонентов
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// SetComponentLevel закрепляет консольный уровень за компонентом,
// включая логгер, который будет создан позже.
func (lm *LoggerManager) SetComponentLevel(component string, level LogLevel) {
	lm.mu.Lock()
	lm.overrides[component] = level
	logger := lm.loggers[component]
	lm.mu.Unlock()

	if logger != nil {
		logger.SetLevel(level)
	}
}

// ApplyLevels разбирает секцию logging.components конфигурации ("pathfinding": "debug")
func (lm *LoggerManager) ApplyLevels(levels map[string]string) {
	for component, s := range levels {
		lm.SetComponentLevel(component, ParseLevel(s))
	}
}

// SetConsoleLevel задаёт уровень консольного вывода для логгера по умолчанию
// и всех компонентов без собственного уровня, уже созданных и будущих.
func SetConsoleLevel(level LogLevel) {
	logDirMu.Lock()
	consoleLevel = level
	logDirMu.Unlock()

	current().SetLevel(level)

	lm := GetLoggerManager()
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	for component, l := range lm.loggers {
		if _, pinned := lm.overrides[component]; pinned {
			continue
		}
		l.SetLevel(level)
	}
}

// GetComponentLogger - короткая запись для GetLoggerManager().MustGetLogger
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetServerLogger() *Logger      { return GetComponentLogger(ComponentServer) }
func GetWorldLogger() *Logger       { return GetComponentLogger(ComponentWorld) }
func GetPathfindingLogger() *Logger { return GetComponentLogger(ComponentPathfinding) }
func GetStorageLogger() *Logger     { return GetComponentLogger(ComponentStorage) }
func GetIngestLogger() *Logger      { return GetComponentLogger(ComponentIngest) }
