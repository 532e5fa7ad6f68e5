package pathfinding

import "github.com/annel0/voxelnav/internal/config"

// GroundLevel - высота, начиная с которой разрешено продолжать подъём в воздухе
const GroundLevel = 0

// Config задаёт стоимости шагов, ограничения движения и бюджет поиска.
// Нулевые и отрицательные значения MaxJumpHeight, MaxFallDistance и MaxAirDrift
// снимают соответствующее ограничение.
type Config struct {
	StraightCost int // горизонтальный шаг
	DiagonalCost int // зарезервировано: диагональных шагов нет
	JumpCost     int // любой шаг с вертикальной составляющей

	MaxIterations int // максимум раскрытий узлов за один поиск

	MaxJumpHeight   int // на сколько ячеек выше опоры можно подняться
	MaxFallDistance int // как глубоко под ячейкой спуска должна найтись опора
	MaxAirDrift     int // горизонтальных шагов в воздухе с момента отрыва от опоры
}

// DefaultConfig возвращает правила по умолчанию
func DefaultConfig() Config {
	return Config{
		StraightCost:    10,
		DiagonalCost:    14,
		JumpCost:        20,
		MaxIterations:   10000,
		MaxJumpHeight:   1,
		MaxFallDistance: 4,
		MaxAirDrift:     2,
	}
}

// FromConfig переносит секцию pathfinding из конфигурации приложения.
// Неположительные стоимости и бюджет заменяются значениями по умолчанию.
func FromConfig(c config.PathfindingConfig) Config {
	def := DefaultConfig()
	cfg := Config{
		StraightCost:    c.StraightCost,
		DiagonalCost:    c.DiagonalCost,
		JumpCost:        c.JumpCost,
		MaxIterations:   c.MaxIterations,
		MaxJumpHeight:   c.MaxJumpHeight,
		MaxFallDistance: c.MaxFallDistance,
		MaxAirDrift:     c.MaxAirDrift,
	}
	if cfg.StraightCost <= 0 {
		cfg.StraightCost = def.StraightCost
	}
	if cfg.DiagonalCost <= 0 {
		cfg.DiagonalCost = def.DiagonalCost
	}
	if cfg.JumpCost <= 0 {
		cfg.JumpCost = def.JumpCost
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	return cfg
}
