package world

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/annel0/voxelnav/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellsAt(positions ...vec.Vec3) []Cell {
	cells := make([]Cell, 0, len(positions))
	for _, p := range positions {
		cells = append(cells, CellAt(p, "minecraft:stone"))
	}
	return cells
}

func TestCellFromOrigin_FloorRounding(t *testing.T) {
	c := CellFromOrigin(vec.Vec3Float{X: 3.7, Y: -0.2, Z: 0.999}, "minecraft:dirt")

	assert.Equal(t, vec.Vec3{X: 3, Y: -1, Z: 0}, c.Pos)
	assert.Equal(t, "minecraft:dirt", c.Identity)
	assert.Equal(t, 3.7, c.Origin.X, "исходная точка сохраняется")
}

func TestStore_IsBlocked(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	s.SetOccupancy(cellsAt(vec.Vec3{X: 0, Y: 0, Z: 0}, vec.Vec3{X: 2, Y: 0, Z: 0}))

	assert.True(t, s.IsBlocked(vec.Vec3{X: 0, Y: 0, Z: 0}))
	assert.True(t, s.IsBlocked(vec.Vec3{X: 2, Y: 0, Z: 0}))
	assert.False(t, s.IsBlocked(vec.Vec3{X: 1, Y: 0, Z: 0}))
	assert.False(t, s.IsBlocked(vec.Vec3{X: 0, Y: 1, Z: 0}))
}

func TestStore_SetOccupancyRebuildsSurfaces(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	snap := s.SetOccupancy(cellsAt(
		vec.Vec3{X: 0, Y: 0, Z: 0},
		vec.Vec3{X: 0, Y: 1, Z: 0}, // столб высотой 2
		vec.Vec3{X: 1, Y: 0, Z: 0},
	))

	assert.False(t, snap.IsSurface(vec.Vec3{X: 0, Y: 0, Z: 0}), "над ячейкой есть блок")
	assert.True(t, snap.IsSurface(vec.Vec3{X: 0, Y: 1, Z: 0}))
	assert.True(t, snap.IsSurface(vec.Vec3{X: 1, Y: 0, Z: 0}))
	assert.Equal(t, 2, snap.SurfaceCount())
	assert.Equal(t, uint64(1), snap.Version())
}

func TestStore_SetOccupancyReplaces(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	s.SetOccupancy(cellsAt(vec.Vec3{X: 5, Y: 5, Z: 5}))
	s.SetOccupancy(cellsAt(vec.Vec3{X: 1, Y: 1, Z: 1}))

	assert.False(t, s.IsBlocked(vec.Vec3{X: 5, Y: 5, Z: 5}))
	assert.True(t, s.IsBlocked(vec.Vec3{X: 1, Y: 1, Z: 1}))
	assert.Equal(t, uint64(2), s.Snapshot().Version())
}

func TestStore_MergeOccupancyRebuilds(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	s.SetOccupancy(cellsAt(vec.Vec3{X: 0, Y: 0, Z: 0}))
	snap := s.MergeOccupancy(cellsAt(vec.Vec3{X: 0, Y: 1, Z: 0}))

	assert.Equal(t, 2, snap.Len())
	assert.False(t, snap.IsSurface(vec.Vec3{X: 0, Y: 0, Z: 0}), "полная перестройка убирает перекрытую ячейку")
	assert.True(t, snap.IsSurface(vec.Vec3{X: 0, Y: 1, Z: 0}))
}

// Политика approximate повторяет исходное поведение: догруженные ячейки
// попадают в поверхности без проверки того, что над ними.
func TestStore_AddCells_ApproximatePolicyMarksUnconditionally(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	s.SetOccupancy(cellsAt(vec.Vec3{X: 0, Y: 1, Z: 0}))

	snap := s.AddCells(cellsAt(vec.Vec3{X: 0, Y: 0, Z: 0}))

	assert.True(t, snap.IsSurface(vec.Vec3{X: 0, Y: 0, Z: 0}),
		"approximate: перекрытая ячейка всё равно помечена поверхностью")
	assert.True(t, snap.IsSurface(vec.Vec3{X: 0, Y: 1, Z: 0}))
}

func TestStore_AddCells_ExactPolicyRetests(t *testing.T) {
	s := NewStore(SurfaceExact)
	s.SetOccupancy(cellsAt(vec.Vec3{X: 0, Y: 1, Z: 0}, vec.Vec3{X: 3, Y: 0, Z: 0}))

	snap := s.AddCells(cellsAt(
		vec.Vec3{X: 0, Y: 0, Z: 0}, // под существующим блоком
		vec.Vec3{X: 3, Y: 1, Z: 0}, // поверх существующего блока
	))

	assert.False(t, snap.IsSurface(vec.Vec3{X: 0, Y: 0, Z: 0}))
	assert.True(t, snap.IsSurface(vec.Vec3{X: 0, Y: 1, Z: 0}))
	assert.False(t, snap.IsSurface(vec.Vec3{X: 3, Y: 0, Z: 0}), "ячейка под новой теряет статус поверхности")
	assert.True(t, snap.IsSurface(vec.Vec3{X: 3, Y: 1, Z: 0}))

	rebuilt := RebuildSurfaces(snap.cells)
	assert.Equal(t, rebuilt, snap.surface, "exact совпадает с полной перестройкой")
}

func TestStore_RemoveCell(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	s.SetOccupancy(cellsAt(vec.Vec3{X: 0, Y: 0, Z: 0}, vec.Vec3{X: 0, Y: 1, Z: 0}))

	assert.True(t, s.RemoveCell(vec.Vec3{X: 0, Y: 1, Z: 0}))
	assert.False(t, s.RemoveCell(vec.Vec3{X: 0, Y: 1, Z: 0}), "повторное удаление - no-op")

	snap := s.Snapshot()
	assert.False(t, snap.IsBlocked(vec.Vec3{X: 0, Y: 1, Z: 0}))
	assert.False(t, snap.IsSurface(vec.Vec3{X: 0, Y: 1, Z: 0}))
	assert.True(t, snap.IsSurface(vec.Vec3{X: 0, Y: 0, Z: 0}), "открывшаяся ячейка снова поверхность")
}

func TestStore_AddNewCells_FirstWins(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	s.SetOccupancy([]Cell{CellAt(vec.Vec3{X: 0, Y: 0, Z: 0}, "minecraft:stone")})

	added, snap := s.AddNewCells([]Cell{
		CellAt(vec.Vec3{X: 0, Y: 0, Z: 0}, "minecraft:dirt"),
		CellAt(vec.Vec3{X: 1, Y: 0, Z: 0}, "minecraft:grass"),
		CellAt(vec.Vec3{X: 1, Y: 0, Z: 0}, "minecraft:sand"),
	})

	require.Len(t, added, 1)
	assert.Equal(t, "minecraft:grass", added[0].Identity)
	assert.Equal(t, uint64(2), snap.Version())

	c, ok := snap.Cell(vec.Vec3{X: 0, Y: 0, Z: 0})
	require.True(t, ok)
	assert.Equal(t, "minecraft:stone", c.Identity, "существующий блок не перезаписывается")

	added, again := s.AddNewCells(cellsAt(vec.Vec3{X: 1, Y: 0, Z: 0}))
	assert.Empty(t, added)
	assert.Same(t, snap, again, "без новых ячеек версия не растёт")
}

func TestStore_ResetKeepsVersionMonotonic(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	s.SetOccupancy(cellsAt(vec.Vec3{}))
	snap := s.Reset()

	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, 0, snap.SurfaceCount())
	assert.Equal(t, uint64(2), snap.Version())
}

func TestSnapshot_IsImmutableAfterPublish(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	pinned := s.SetOccupancy(cellsAt(vec.Vec3{X: 0, Y: 0, Z: 0}))

	s.AddCells(cellsAt(vec.Vec3{X: 9, Y: 9, Z: 9}))
	s.RemoveCell(vec.Vec3{X: 0, Y: 0, Z: 0})

	assert.True(t, pinned.IsBlocked(vec.Vec3{X: 0, Y: 0, Z: 0}), "закреплённый снимок не меняется")
	assert.False(t, pinned.IsBlocked(vec.Vec3{X: 9, Y: 9, Z: 9}))
	assert.Equal(t, 1, pinned.Len())
}

func TestSnapshot_SurfaceSubsetOfOccupancy(t *testing.T) {
	for _, policy := range []SurfacePolicy{SurfaceApproximate, SurfaceExact} {
		s := NewStore(policy)
		s.SetOccupancy(cellsAt(vec.Vec3{X: 0, Y: 0, Z: 0}, vec.Vec3{X: 1, Y: 0, Z: 0}))
		s.AddCells(cellsAt(vec.Vec3{X: 0, Y: 1, Z: 0}, vec.Vec3{X: 5, Y: 2, Z: 1}))
		s.RemoveCell(vec.Vec3{X: 1, Y: 0, Z: 0})

		snap := s.Snapshot()
		for _, pos := range snap.Surfaces() {
			assert.True(t, snap.IsBlocked(pos), "policy=%s: поверхность %s должна быть занята", policy, pos)
		}
	}
}

func TestSnapshot_QueryBox(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	snap := s.SetOccupancy(cellsAt(
		vec.Vec3{X: 0, Y: 0, Z: 0},
		vec.Vec3{X: 1, Y: 0, Z: 0},
		vec.Vec3{X: 1, Y: 1, Z: 1},
		vec.Vec3{X: 10, Y: 0, Z: 0},
	))

	// Маленький объём (2 ячейки) - перебор по объёму, углы в обратном порядке
	small := snap.QueryBox(vec.Vec3{X: 1, Y: 1, Z: 1}, vec.Vec3{X: 1, Y: 0, Z: 1})
	require.Len(t, small, 1)
	assert.Equal(t, vec.Vec3{X: 1, Y: 1, Z: 1}, small[0].Pos)

	// Большой объём - перебор по ячейкам, результат отсортирован
	big := snap.QueryBox(vec.Vec3{X: -100, Y: -100, Z: -100}, vec.Vec3{X: 100, Y: 100, Z: 100})
	require.Len(t, big, 4)
	assert.Equal(t, vec.Vec3{X: 10, Y: 0, Z: 0}, big[3].Pos)

	min, max, ok := snap.Bounds()
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 0, Y: 0, Z: 0}, min)
	assert.Equal(t, vec.Vec3{X: 10, Y: 1, Z: 1}, max)
}

func TestSnapshot_QueryBoxHugeBoxScansCells(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	snap := s.SetOccupancy(cellsAt(vec.Vec3{X: 0, Y: 0, Z: 0}, vec.Vec3{X: 3, Y: 0, Z: 0}))

	boxes := [][2]vec.Vec3{
		// 2^21 * 2^21 * 2^22 = 2^64: произведение в int обнуляется
		{{}, {X: 1<<21 - 1, Y: 1<<21 - 1, Z: 1<<22 - 1}},
		{{X: math.MinInt, Y: math.MinInt, Z: math.MinInt}, {X: math.MaxInt, Y: math.MaxInt, Z: math.MaxInt}},
	}
	for _, box := range boxes {
		done := make(chan []Cell, 1)
		go func() { done <- snap.QueryBox(box[0], box[1]) }()

		select {
		case cells := <-done:
			assert.Len(t, cells, 2)
		case <-time.After(2 * time.Second):
			t.Fatalf("QueryBox(%s, %s) перебирает объём", box[0], box[1])
		}
	}
}

func TestBoxWithin(t *testing.T) {
	tests := []struct {
		name  string
		a, b  vec.Vec3
		limit int
		want  bool
	}{
		{"одна ячейка", vec.Vec3{}, vec.Vec3{}, 1, true},
		{"ровно предел", vec.Vec3{}, vec.Vec3{X: 1, Y: 1, Z: 1}, 8, true},
		{"больше предела", vec.Vec3{}, vec.Vec3{X: 1, Y: 1, Z: 1}, 7, false},
		{"углы в обратном порядке", vec.Vec3{X: 1, Y: 1, Z: 1}, vec.Vec3{}, 8, true},
		{"пустой снимок", vec.Vec3{}, vec.Vec3{}, 0, false},
		{"переполнение произведения", vec.Vec3{}, vec.Vec3{X: 1<<21 - 1, Y: 1<<21 - 1, Z: 1<<22 - 1}, 1 << 20, false},
		{"переполнение оси", vec.Vec3{X: math.MinInt}, vec.Vec3{X: math.MaxInt}, math.MaxInt, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BoxWithin(tt.a, tt.b, tt.limit))
		})
	}
}

func TestStore_NoOpWritesKeepVersion(t *testing.T) {
	s := NewStore(SurfaceExact)
	cells := cellsAt(vec.Vec3{X: 0, Y: 0, Z: 0}, vec.Vec3{X: 1, Y: 0, Z: 0})
	first := s.SetOccupancy(cells)
	require.Equal(t, uint64(1), first.Version())

	assert.Same(t, first, s.SetOccupancy(cellsAt(vec.Vec3{X: 1, Y: 0, Z: 0}, vec.Vec3{X: 0, Y: 0, Z: 0})))
	assert.Same(t, first, s.MergeOccupancy(nil))
	assert.Same(t, first, s.MergeOccupancy(cells[:1]))
	assert.Equal(t, uint64(1), s.Snapshot().Version())

	// Другой идентификатор блока - это изменение
	changed := s.MergeOccupancy([]Cell{CellAt(vec.Vec3{}, "minecraft:dirt")})
	assert.Equal(t, uint64(2), changed.Version())
}

func TestStore_SetOccupancyRepairsApproximateSurfaces(t *testing.T) {
	s := NewStore(SurfaceApproximate)
	s.SetOccupancy(cellsAt(vec.Vec3{X: 0, Y: 1, Z: 0}))
	s.AddCells(cellsAt(vec.Vec3{X: 0, Y: 0, Z: 0}))
	require.True(t, s.IsSurface(vec.Vec3{X: 0, Y: 0, Z: 0}), "приближённая политика не проверяет ячейку сверху")

	// Те же ячейки, но полная перестройка убирает перекрытую поверхность
	snap := s.SetOccupancy(s.Snapshot().Cells())
	assert.Equal(t, uint64(3), snap.Version())
	assert.False(t, snap.IsSurface(vec.Vec3{X: 0, Y: 0, Z: 0}))
}

func TestStore_ConcurrentReadersDuringWrites(t *testing.T) {
	s := NewStore(SurfaceExact)
	s.SetOccupancy(cellsAt(vec.Vec3{}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.AddCells(cellsAt(vec.Vec3{X: i, Y: 0, Z: 0}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			snap := s.Snapshot()
			_ = snap.IsBlocked(vec.Vec3{X: i, Y: 0, Z: 0})
			_ = snap.SurfaceCount()
		}
	}()
	wg.Wait()

	assert.Equal(t, 200, s.Snapshot().Len())
}

func BenchmarkSnapshot_IsBlocked(b *testing.B) {
	cells := make([]Cell, 0, 64*64)
	for x := 0; x < 64; x++ {
		for z := 0; z < 64; z++ {
			cells = append(cells, CellAt(vec.Vec3{X: x, Y: 0, Z: z}, "minecraft:stone"))
		}
	}
	snap := NewSnapshot(1, cells)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		snap.IsBlocked(vec.Vec3{X: i % 64, Y: 0, Z: (i / 64) % 64})
	}
}
