package world

import (
	"fmt"
	"sort"
	"strings"

	"github.com/annel0/voxelnav/internal/vec"
)

// SurfacePolicy определяет, как поддерживается множество поверхностей
// при инкрементальной догрузке ячеек.
type SurfacePolicy int

const (
	// SurfaceApproximate: догруженные ячейки считаются поверхностями без проверки
	// того, что над ними. Быстро, но множество может содержать "перекрытые" ячейки
	// до следующей полной перестройки.
	SurfaceApproximate SurfacePolicy = iota
	// SurfaceExact: догруженные ячейки проверяются так же, как при полной перестройке,
	// а ячейка под новой теряет статус поверхности.
	SurfaceExact
)

func (p SurfacePolicy) String() string {
	switch p {
	case SurfaceApproximate:
		return "approximate"
	case SurfaceExact:
		return "exact"
	default:
		return fmt.Sprintf("SurfacePolicy(%d)", int(p))
	}
}

// ParseSurfacePolicy разбирает политику из конфигурации. Пустая строка - approximate.
func ParseSurfacePolicy(s string) (SurfacePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "approximate":
		return SurfaceApproximate, nil
	case "exact":
		return SurfaceExact, nil
	default:
		return SurfaceApproximate, fmt.Errorf("неизвестная политика поверхностей: %q", s)
	}
}

// SurfaceSet - позиции занятых ячеек, над которыми свободно (на них можно стоять).
// Инвариант: SurfaceSet ⊆ множества занятых позиций.
type SurfaceSet map[vec.Vec3]struct{}

// Contains проверяет принадлежность позиции множеству
func (s SurfaceSet) Contains(pos vec.Vec3) bool {
	_, ok := s[pos]
	return ok
}

// Sorted возвращает позиции в детерминированном порядке
func (s SurfaceSet) Sorted() []vec.Vec3 {
	out := make([]vec.Vec3, 0, len(s))
	for pos := range s {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// RebuildSurfaces выполняет полную перестройку за O(n)
func RebuildSurfaces(cells map[vec.Vec3]Cell) SurfaceSet {
	surface := make(SurfaceSet, len(cells))
	for pos := range cells {
		if _, covered := cells[pos.Above(1)]; !covered {
			surface[pos] = struct{}{}
		}
	}
	return surface
}

// extendSurfaces дополняет множество для только что добавленных ячеек.
// cells уже содержит добавленные ячейки.
func extendSurfaces(surface SurfaceSet, cells map[vec.Vec3]Cell, added []Cell, policy SurfacePolicy) {
	switch policy {
	case SurfaceExact:
		for _, c := range added {
			if _, covered := cells[c.Pos.Above(1)]; covered {
				delete(surface, c.Pos)
			} else {
				surface[c.Pos] = struct{}{}
			}
			delete(surface, c.Pos.Below(1))
		}
	default:
		for _, c := range added {
			surface[c.Pos] = struct{}{}
		}
	}
}
