package world

import (
	"sort"

	"github.com/annel0/voxelnav/internal/vec"
)

// ChunkColumn группирует ячейки одной колонки чанка 16x16 (по всей высоте).
// Единица сохранения и потоковой загрузки.
type ChunkColumn struct {
	Coords vec.Vec2
	Cells  []Cell
}

// GroupByColumn раскладывает ячейки по колонкам чанков.
// Колонки и ячейки внутри них отсортированы.
func GroupByColumn(cells []Cell) []ChunkColumn {
	byCoords := make(map[vec.Vec2][]Cell)
	for _, c := range cells {
		coords := c.Pos.Column()
		byCoords[coords] = append(byCoords[coords], c)
	}

	columns := make([]ChunkColumn, 0, len(byCoords))
	for coords, group := range byCoords {
		sortCells(group)
		columns = append(columns, ChunkColumn{Coords: coords, Cells: group})
	}
	sort.Slice(columns, func(i, j int) bool {
		a, b := columns[i].Coords, columns[j].Coords
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	return columns
}
