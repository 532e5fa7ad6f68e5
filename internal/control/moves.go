package control

import (
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/voxelnav/internal/vec"
)

// Команды перемещения агента (turtle API)
const (
	CmdForward   = "forward"
	CmdUp        = "up"
	CmdDown      = "down"
	CmdTurnLeft  = "turnLeft"
	CmdTurnRight = "turnRight"
)

// ErrUnknownFacing - направление не из north/east/south/west
var ErrUnknownFacing = errors.New("неизвестное направление")

// Facing - направление взгляда агента. Значения идут по часовой стрелке,
// поэтому поворот направо - это +1 по модулю 4.
type Facing int

const (
	FacingNorth Facing = iota // -z
	FacingEast                // +x
	FacingSouth               // +z
	FacingWest                // -x
)

var facingNames = [...]string{"north", "east", "south", "west"}

func (f Facing) String() string {
	if f < FacingNorth || f > FacingWest {
		return fmt.Sprintf("Facing(%d)", int(f))
	}
	return facingNames[f]
}

// ParseFacing разбирает направление: north/east/south/west без учёта регистра
func ParseFacing(s string) (Facing, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range facingNames {
		if n == name {
			return Facing(i), nil
		}
	}
	return FacingNorth, fmt.Errorf("%w %q", ErrUnknownFacing, s)
}

// facingOf возвращает направление горизонтального единичного шага
func facingOf(delta vec.Vec3) (Facing, bool) {
	switch delta {
	case vec.North:
		return FacingNorth, true
	case vec.East:
		return FacingEast, true
	case vec.South:
		return FacingSouth, true
	case vec.West:
		return FacingWest, true
	}
	return FacingNorth, false
}

// turn возвращает повороты от from к to: не больше двух направо или один налево
func turn(from, to Facing) []string {
	switch (to - from + 4) % 4 {
	case 1:
		return []string{CmdTurnRight}
	case 2:
		return []string{CmdTurnRight, CmdTurnRight}
	case 3:
		return []string{CmdTurnLeft}
	default:
		return nil
	}
}

// CommandsForPath переводит плотный путь (центры соседних ячеек) в команды агента.
// Возвращает команды и направление взгляда после последнего шага.
// Каждый шаг пути сдвигает ячейку ровно на 1 по одной оси; другой шаг - ошибка.
func CommandsForPath(path []vec.Vec3Float, facing Facing) ([]string, Facing, error) {
	cmds := make([]string, 0, len(path))
	for i := 1; i < len(path); i++ {
		from, to := path[i-1].Floor(), path[i].Floor()
		delta := to.Sub(from)

		switch delta {
		case vec.Up:
			cmds = append(cmds, CmdUp)
		case vec.Down:
			cmds = append(cmds, CmdDown)
		default:
			f, ok := facingOf(delta)
			if !ok {
				return nil, facing, fmt.Errorf("шаг %d: %s -> %s не является соседним", i, from, to)
			}
			cmds = append(cmds, turn(facing, f)...)
			cmds = append(cmds, CmdForward)
			facing = f
		}
	}
	return cmds, facing, nil
}
