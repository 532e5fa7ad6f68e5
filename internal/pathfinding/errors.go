package pathfinding

import (
	"errors"
	"fmt"
)

// ErrNoPath - общий результат для любого неуспешного поиска.
// Конкретная причина различима через errors.Is.
var ErrNoPath = errors.New("путь не найден")

var (
	ErrGoalBlocked     = fmt.Errorf("%w: целевая ячейка занята", ErrNoPath)
	ErrUnreachable     = fmt.Errorf("%w: цель недостижима", ErrNoPath)
	ErrBudgetExhausted = fmt.Errorf("%w: исчерпан бюджет итераций", ErrNoPath)
)
