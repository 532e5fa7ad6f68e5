package pathfinding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelnav/internal/vec"
	"github.com/annel0/voxelnav/internal/world"
)

func collect(it NeighborIter) []Move {
	var out []Move
	for m, ok := it.Next(); ok; m, ok = it.Next() {
		out = append(out, m)
	}
	return out
}

func destinations(moves []Move) []vec.Vec3 {
	out := make([]vec.Vec3, len(moves))
	for i, m := range moves {
		out[i] = m.To
	}
	return out
}

func TestExpand_GroundedOrderIsFixed(t *testing.T) {
	rules := NewRules(snapshotOf(platform(3, 3, 0)...), DefaultConfig())

	moves := collect(rules.Expand(vec.Vec3{X: 1, Y: 1, Z: 1}, 0))
	assert.Equal(t, []vec.Vec3{
		{X: 2, Y: 1, Z: 1}, // +x
		{X: 0, Y: 1, Z: 1}, // -x
		{X: 1, Y: 2, Z: 1}, // +y
		{X: 1, Y: 1, Z: 2}, // +z
		{X: 1, Y: 1, Z: 0}, // -z
	}, destinations(moves), "шаг вниз в пол невозможен")

	for _, m := range moves {
		if m.To.Y == 1 {
			assert.Equal(t, 10, m.Cost)
		} else {
			assert.Equal(t, 20, m.Cost)
		}
		assert.Zero(t, m.Drift)
	}
}

func TestExpand_GroundedNeedsFootingAtDestination(t *testing.T) {
	rules := NewRules(snapshotOf(platform(2, 1, 0)...), DefaultConfig())

	dests := destinations(collect(rules.Expand(vec.Vec3{X: 0, Y: 1, Z: 0}, 0)))
	assert.Equal(t, []vec.Vec3{
		{X: 1, Y: 1, Z: 0},
		{X: 0, Y: 2, Z: 0},
	}, dests, "с края площадки в пустоту не шагнуть")
}

func TestExpand_AirborneDriftIsBounded(t *testing.T) {
	occ := snapshotOf(vec.Vec3{X: 0, Y: 0, Z: 0})
	rules := NewRules(occ, DefaultConfig())
	airborne := vec.Vec3{X: 0, Y: 2, Z: 0}

	fresh := collect(rules.Expand(airborne, 0))
	horizontal := 0
	for _, m := range fresh {
		if m.To.Y == airborne.Y {
			horizontal++
			assert.Equal(t, 1, m.Drift)
		}
	}
	assert.Equal(t, 4, horizontal, "в воздухе можно смещаться в любую сторону")

	spent := collect(rules.Expand(airborne, 2))
	for _, m := range spent {
		assert.NotEqual(t, airborne.Y, m.To.Y, "дрейф исчерпан: горизонтальных шагов нет")
	}
}

func TestExpand_DriftResetsOnLanding(t *testing.T) {
	// Ячейка (1,0,0) - опора под (1,1,0)
	rules := NewRules(snapshotOf(vec.Vec3{X: 1, Y: 0, Z: 0}), DefaultConfig())

	for _, m := range collect(rules.Expand(vec.Vec3{X: 0, Y: 1, Z: 0}, 1)) {
		if m.To == (vec.Vec3{X: 1, Y: 1, Z: 0}) {
			assert.Zero(t, m.Drift)
			return
		}
	}
	t.Fatal("шаг на опору не найден")
}

func TestExpand_UpwardMoveRules(t *testing.T) {
	cfg := DefaultConfig()
	occ := snapshotOf(vec.Vec3{X: 0, Y: 0, Z: 0}, vec.Vec3{X: 5, Y: -3, Z: 0})

	up := func(rules *Rules, pos vec.Vec3) bool {
		for _, m := range collect(rules.Expand(pos, 0)) {
			if m.To == pos.Above(1) {
				return true
			}
		}
		return false
	}

	rules := NewRules(occ, cfg)
	assert.True(t, up(rules, vec.Vec3{X: 0, Y: 1, Z: 0}), "с опоры прыгать можно")
	assert.False(t, up(rules, vec.Vec3{X: 0, Y: 2, Z: 0}), "выше высоты прыжка нельзя")
	assert.False(t, up(rules, vec.Vec3{X: 5, Y: -1, Z: 0}), "ниже уровня земли в воздухе подъёма нет")

	cfg.MaxJumpHeight = 2
	rules = NewRules(occ, cfg)
	assert.True(t, up(rules, vec.Vec3{X: 0, Y: 2, Z: 0}))
	assert.False(t, up(rules, vec.Vec3{X: 0, Y: 3, Z: 0}))

	cfg.MaxJumpHeight = 0
	rules = NewRules(occ, cfg)
	assert.True(t, up(rules, vec.Vec3{X: 0, Y: 7, Z: 0}), "без ограничения подъём разрешён при y > 0")
}

func TestExpand_DownwardMoveRules(t *testing.T) {
	cfg := DefaultConfig()
	occ := snapshotOf(
		vec.Vec3{X: 0, Y: 0, Z: 0},
		vec.Vec3{X: 3, Y: 0, Z: 0},
		vec.Vec3{X: 3, Y: 2, Z: 0}, // потолок над пустой ячейкой (3,1,0)
	)

	down := func(rules *Rules, pos vec.Vec3) bool {
		for _, m := range collect(rules.Expand(pos, 0)) {
			if m.To == pos.Below(1) {
				return true
			}
		}
		return false
	}

	rules := NewRules(occ, cfg)
	assert.True(t, down(rules, vec.Vec3{X: 0, Y: 5, Z: 0}), "опора в пределах дальности падения")
	assert.False(t, down(rules, vec.Vec3{X: 0, Y: 6, Z: 0}), "опора слишком глубоко")
	assert.False(t, down(rules, vec.Vec3{X: 1, Y: 3, Z: 0}), "под ячейкой пустота")
	assert.False(t, down(rules, vec.Vec3{X: 3, Y: 3, Z: 0}), "сквозь твёрдый блок не падаем")

	cfg.MaxFallDistance = 0
	rules = NewRules(occ, cfg)
	assert.True(t, down(rules, vec.Vec3{X: 1, Y: 3, Z: 0}), "проверка приземления отключена")
}

func TestNeighborIter_ResetRestarts(t *testing.T) {
	rules := NewRules(snapshotOf(platform(3, 3, 0)...), DefaultConfig())
	it := rules.Expand(vec.Vec3{X: 1, Y: 1, Z: 1}, 0)

	first, ok := it.Next()
	require.True(t, ok)
	it.Next()

	it.Reset()
	again, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, first, again)
}

func TestGrounded_OnStreamedCells(t *testing.T) {
	store := world.NewStore(world.SurfaceApproximate)
	store.SetOccupancy([]world.Cell{world.CellAt(vec.Vec3{X: 0, Y: 0, Z: 0}, "minecraft:stone")})
	store.AddCells([]world.Cell{world.CellAt(vec.Vec3{X: 1, Y: 0, Z: 0}, "minecraft:stone")})

	rules := NewRules(store.Snapshot(), DefaultConfig())
	assert.True(t, rules.Grounded(vec.Vec3{X: 1, Y: 1, Z: 0}))
	assert.False(t, rules.Grounded(vec.Vec3{X: 2, Y: 1, Z: 0}))
}

func TestHeuristic_NeverOverestimates(t *testing.T) {
	rules := NewRules(snapshotOf(), DefaultConfig())
	goal := vec.Vec3{X: 3, Y: 2, Z: -1}

	for _, dir := range directions {
		from := vec.Vec3{X: 1, Y: 1, Z: 1}
		to := from.Add(dir)
		drop := rules.Heuristic(from, goal) - rules.Heuristic(to, goal)
		assert.LessOrEqual(t, drop, rules.StepCost(dir), "направление %s", dir)
	}
}

func TestHeuristic_NonNegativeAtCoordinateBounds(t *testing.T) {
	rules := NewRules(snapshotOf(), DefaultConfig())
	lo := vec.Vec3Float{X: -vec.MaxCoord, Y: -vec.MaxCoord, Z: -vec.MaxCoord}.Floor()
	hi := vec.Vec3Float{X: vec.MaxCoord, Y: vec.MaxCoord, Z: vec.MaxCoord}.Floor()

	h := rules.Heuristic(lo, hi)
	assert.Equal(t, 10*2*vec.MaxCoord+20*2*vec.MaxCoord, h)
	assert.Equal(t, h, rules.Heuristic(hi, lo))
}
