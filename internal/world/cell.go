package world

import (
	"github.com/annel0/voxelnav/internal/vec"
)

// Cell представляет один занятый (твёрдый) воксель
type Cell struct {
	Pos      vec.Vec3      // Позиция ячейки, получена из Origin округлением вниз
	Identity string        // Идентификатор блока, например "minecraft:stone"; не валидируется
	Origin   vec.Vec3Float // Исходная мировая точка, которую прислал слой загрузки чанков
}

// CellFromOrigin создаёт ячейку по мировой точке блока
func CellFromOrigin(origin vec.Vec3Float, identity string) Cell {
	return Cell{
		Pos:      origin.Floor(),
		Identity: identity,
		Origin:   origin,
	}
}

// CellAt создаёт ячейку по целочисленной позиции (Origin - угол ячейки)
func CellAt(pos vec.Vec3, identity string) Cell {
	return Cell{
		Pos:      pos,
		Identity: identity,
		Origin:   vec.Vec3Float{X: float64(pos.X), Y: float64(pos.Y), Z: float64(pos.Z)},
	}
}
