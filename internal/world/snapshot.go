package world

import (
	"maps"
	"sort"

	"github.com/annel0/voxelnav/internal/vec"
)

// Snapshot - неизменяемый срез занятости мира вместе с производным множеством поверхностей.
// Поиск пути и API закрепляют один снимок на всё время вызова; писатели Store
// публикуют новый снимок атомарной подменой и никогда не меняют уже опубликованный.
type Snapshot struct {
	version uint64
	cells   map[vec.Vec3]Cell
	surface SurfaceSet
}

// EmptySnapshot возвращает пустой снимок версии 0
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		cells:   make(map[vec.Vec3]Cell),
		surface: make(SurfaceSet),
	}
}

// NewSnapshot строит снимок с полной перестройкой поверхностей.
// При повторе позиции побеждает последняя ячейка.
func NewSnapshot(version uint64, cells []Cell) *Snapshot {
	index := indexCells(cells)
	return &Snapshot{
		version: version,
		cells:   index,
		surface: RebuildSurfaces(index),
	}
}

func indexCells(cells []Cell) map[vec.Vec3]Cell {
	index := make(map[vec.Vec3]Cell, len(cells))
	for _, c := range cells {
		index[c.Pos] = c
	}
	return index
}

// sameAs - true, если снимок содержит ровно эти ячейки и поверхности
func (s *Snapshot) sameAs(cells map[vec.Vec3]Cell, surface SurfaceSet) bool {
	return maps.Equal(s.cells, cells) && maps.Equal(s.surface, surface)
}

// clone копирует индексы для следующей версии
func (s *Snapshot) clone(version uint64) *Snapshot {
	return &Snapshot{
		version: version,
		cells:   maps.Clone(s.cells),
		surface: maps.Clone(s.surface),
	}
}

// Version возвращает монотонно растущий номер версии
func (s *Snapshot) Version() uint64 {
	return s.version
}

// IsBlocked - true, если позиция занята. Прямой поиск по ключу, O(1).
func (s *Snapshot) IsBlocked(pos vec.Vec3) bool {
	_, ok := s.cells[pos]
	return ok
}

// IsSurface - true, если позиция входит в множество поверхностей
func (s *Snapshot) IsSurface(pos vec.Vec3) bool {
	return s.surface.Contains(pos)
}

// Cell возвращает ячейку по позиции
func (s *Snapshot) Cell(pos vec.Vec3) (Cell, bool) {
	c, ok := s.cells[pos]
	return c, ok
}

// Len возвращает количество занятых ячеек
func (s *Snapshot) Len() int {
	return len(s.cells)
}

// SurfaceCount возвращает размер множества поверхностей
func (s *Snapshot) SurfaceCount() int {
	return len(s.surface)
}

// Surfaces возвращает отсортированный список поверхностей
func (s *Snapshot) Surfaces() []vec.Vec3 {
	return s.surface.Sorted()
}

// Cells возвращает все ячейки в детерминированном порядке
func (s *Snapshot) Cells() []Cell {
	out := make([]Cell, 0, len(s.cells))
	for _, c := range s.cells {
		out = append(out, c)
	}
	sortCells(out)
	return out
}

// QueryBox возвращает занятые ячейки внутри параллелепипеда [min, max] включительно.
// Перебирает либо объём, либо все ячейки - что меньше.
func (s *Snapshot) QueryBox(min, max vec.Vec3) []Cell {
	min, max = normalizeBox(min, max)
	result := make([]Cell, 0)

	if BoxWithin(min, max, len(s.cells)) {
		for x := min.X; x <= max.X; x++ {
			for y := min.Y; y <= max.Y; y++ {
				for z := min.Z; z <= max.Z; z++ {
					if c, ok := s.cells[vec.Vec3{X: x, Y: y, Z: z}]; ok {
						result = append(result, c)
					}
				}
			}
		}
		return result
	}

	for pos, c := range s.cells {
		if pos.X >= min.X && pos.X <= max.X &&
			pos.Y >= min.Y && pos.Y <= max.Y &&
			pos.Z >= min.Z && pos.Z <= max.Z {
			result = append(result, c)
		}
	}
	sortCells(result)
	return result
}

// Bounds возвращает ограничивающий параллелепипед занятых ячеек
func (s *Snapshot) Bounds() (min, max vec.Vec3, ok bool) {
	first := true
	for pos := range s.cells {
		if first {
			min, max = pos, pos
			first = false
			continue
		}
		min = vec.Vec3{X: minInt(min.X, pos.X), Y: minInt(min.Y, pos.Y), Z: minInt(min.Z, pos.Z)}
		max = vec.Vec3{X: maxInt(max.X, pos.X), Y: maxInt(max.Y, pos.Y), Z: maxInt(max.Z, pos.Z)}
	}
	return min, max, !first
}

// BoxWithin - true, если бокс [a, b] содержит не больше limit ячеек.
// Объём считается по осям с проверкой переполнения: бокс на весь диапазон int
// не даёт "нулевой" объём.
func BoxWithin(a, b vec.Vec3, limit int) bool {
	lo, hi := normalizeBox(a, b)
	volume := 1
	for _, n := range [3]int{hi.X - lo.X + 1, hi.Y - lo.Y + 1, hi.Z - lo.Z + 1} {
		if n <= 0 || n > limit || volume > limit/n {
			return false
		}
		volume *= n
	}
	return true
}

func normalizeBox(a, b vec.Vec3) (vec.Vec3, vec.Vec3) {
	return vec.Vec3{X: minInt(a.X, b.X), Y: minInt(a.Y, b.Y), Z: minInt(a.Z, b.Z)},
		vec.Vec3{X: maxInt(a.X, b.X), Y: maxInt(a.Y, b.Y), Z: maxInt(a.Z, b.Z)}
}

func sortCells(cells []Cell) {
	sort.Slice(cells, func(i, j int) bool { return cells[i].Pos.Less(cells[j].Pos) })
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
