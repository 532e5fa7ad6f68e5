package pathfinding

import (
	"github.com/annel0/voxelnav/internal/vec"
)

// Occupancy - то, что поиску нужно знать о мире. *world.Snapshot удовлетворяет интерфейсу.
type Occupancy interface {
	IsBlocked(pos vec.Vec3) bool
	IsSurface(pos vec.Vec3) bool
}

// directions - фиксированный порядок перебора: ±x, ±y, ±z.
// От порядка зависит разрешение ничьих, поэтому он часть контракта.
var directions = [...]vec.Vec3{
	vec.East, vec.West,
	vec.Up, vec.Down,
	vec.South, vec.North,
}

// Move - допустимый шаг из текущей позиции
type Move struct {
	To    vec.Vec3
	Drift int // горизонтальных шагов в воздухе после этого шага
	Cost  int
}

// Rules проверяет правила движения на одном снимке занятости
type Rules struct {
	occ Occupancy
	cfg Config
}

// NewRules связывает правила со снимком
func NewRules(occ Occupancy, cfg Config) *Rules {
	return &Rules{occ: occ, cfg: cfg}
}

// supports - true, если на позицию можно опереться (занята или является поверхностью)
func (r *Rules) supports(pos vec.Vec3) bool {
	return r.occ.IsBlocked(pos) || r.occ.IsSurface(pos)
}

// Grounded - под позицией есть опора
func (r *Rules) Grounded(pos vec.Vec3) bool {
	return r.supports(pos.Below(1))
}

// supportWithin ищет опору не глубже depth ячеек под позицией.
// depth <= 0 означает "без ограничения".
func (r *Rules) supportWithin(pos vec.Vec3, depth int) bool {
	if depth <= 0 {
		return true
	}
	for k := 1; k <= depth; k++ {
		if r.supports(pos.Below(k)) {
			return true
		}
	}
	return false
}

// StepCost возвращает стоимость смещения на соседнюю ячейку
func (r *Rules) StepCost(delta vec.Vec3) int {
	if delta.IsHorizontal() {
		return r.cfg.StraightCost
	}
	return r.cfg.JumpCost
}

// Heuristic - расстояние Чебышёва по горизонтали плюс вертикаль по цене прыжка.
// Не переоценивает: горизонтальный шаг уменьшает max(|dx|,|dz|) не более чем на 1,
// вертикальный - |dy| не более чем на 1.
// Координаты ограничены vec.MaxCoord (точки проходят Vec3Float.Validate на входе),
// поэтому разности и произведения на стоимость не переполняют int.
func (r *Rules) Heuristic(from, to vec.Vec3) int {
	dx := absInt(to.X - from.X)
	dy := absInt(to.Y - from.Y)
	dz := absInt(to.Z - from.Z)
	return r.cfg.StraightCost*maxInt(dx, dz) + r.cfg.JumpCost*dy
}

// Expand возвращает ленивый итератор соседей позиции
func (r *Rules) Expand(pos vec.Vec3, drift int) NeighborIter {
	return NeighborIter{rules: r, from: pos, drift: drift}
}

// NeighborIter выдаёт допустимые шаги по одному. Соседи не материализуются заранее:
// поиск может пропустить закрытые состояния, не проверяя правила для остальных.
type NeighborIter struct {
	rules    *Rules
	from     vec.Vec3
	drift    int
	next     int
	grounded bool
	checked  bool
}

// Reset перезапускает перебор с первого направления
func (it *NeighborIter) Reset() {
	it.next = 0
}

// Next возвращает следующий допустимый шаг; false - направления закончились
func (it *NeighborIter) Next() (Move, bool) {
	if !it.checked {
		it.grounded = it.rules.Grounded(it.from)
		it.checked = true
	}
	for it.next < len(directions) {
		dir := directions[it.next]
		it.next++
		if m, ok := it.try(dir); ok {
			return m, true
		}
	}
	return Move{}, false
}

func (it *NeighborIter) try(dir vec.Vec3) (Move, bool) {
	r := it.rules
	to := it.from.Add(dir)
	if r.occ.IsBlocked(to) {
		return Move{}, false
	}

	drift := it.drift
	switch {
	case dir.IsHorizontal():
		if it.grounded {
			// С опоры нельзя шагнуть в пустоту на той же высоте
			if !r.Grounded(to) {
				return Move{}, false
			}
		} else {
			if r.cfg.MaxAirDrift > 0 {
				if drift >= r.cfg.MaxAirDrift {
					return Move{}, false
				}
				drift++
			}
		}
	case dir.Y > 0:
		if !it.grounded {
			if it.from.Y <= GroundLevel || !r.supportWithin(it.from, r.cfg.MaxJumpHeight) {
				return Move{}, false
			}
		}
	default:
		// Шаг вниз: промежуточных ячеек нет, пункт назначения уже проверен.
		// Падать можно только туда, где в пределах досягаемости есть опора.
		if !r.supportWithin(to, r.cfg.MaxFallDistance) {
			return Move{}, false
		}
	}

	if r.Grounded(to) {
		drift = 0
	}
	return Move{To: to, Drift: drift, Cost: r.StepCost(dir)}, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
