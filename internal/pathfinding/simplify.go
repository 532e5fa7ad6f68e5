package pathfinding

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/voxelnav/internal/vec"
)

const (
	// directionEpsilon - допуск сравнения нормализованных направлений и нулевой длины
	directionEpsilon = 1e-6
	// collinearDot - порог скалярного произведения, выше которого поворот считается пренебрежимым
	collinearDot = 0.999
)

// Simplify превращает плотный путь по центрам ячеек в ломаную из точек смены направления.
//
// Первая и последняя точки сохраняются всегда. Пути короче 3 точек возвращаются как есть.
// Проходы повторяются до неподвижной точки, поэтому Simplify(Simplify(p)) == Simplify(p).
func Simplify(path []vec.Vec3Float) []vec.Vec3Float {
	if len(path) < 3 {
		return path
	}

	out := path
	for {
		next := pruneCollinear(collapseRuns(out))
		// Оба прохода возвращают подпоследовательность входа
		if len(next) == len(out) {
			return next
		}
		out = next
	}
}

// collapseRuns схлопывает серии сегментов одного направления в один сегмент.
// Повторяющиеся точки (сегменты нулевой длины) пропускаются.
func collapseRuns(points []vec.Vec3Float) []vec.Vec3Float {
	out := make([]vec.Vec3Float, 0, len(points))
	out = append(out, points[0])

	var prevDir mgl64.Vec3
	hasPrev := false
	for i := 1; i < len(points); i++ {
		seg := points[i].Mgl().Sub(points[i-1].Mgl())
		if seg.Len() < directionEpsilon {
			continue
		}
		dir := seg.Normalize()
		if hasPrev && dir.ApproxEqualThreshold(prevDir, directionEpsilon) {
			out[len(out)-1] = points[i]
		} else {
			out = append(out, points[i])
		}
		prevDir, hasPrev = dir, true
	}

	if last := points[len(points)-1]; out[len(out)-1] != last {
		out = append(out, last)
	}
	return out
}

// pruneCollinear убирает среднюю из трёх точек, если входящее и исходящее направления
// почти совпадают. Входящее направление берётся от последней сохранённой точки.
func pruneCollinear(points []vec.Vec3Float) []vec.Vec3Float {
	if len(points) < 3 {
		return points
	}

	out := make([]vec.Vec3Float, 0, len(points))
	out = append(out, points[0])
	for i := 1; i < len(points)-1; i++ {
		a := out[len(out)-1].Mgl()
		b := points[i].Mgl()
		c := points[i+1].Mgl()

		in, outDir := b.Sub(a), c.Sub(b)
		if in.Len() < directionEpsilon || outDir.Len() < directionEpsilon {
			continue
		}
		if in.Normalize().Dot(outDir.Normalize()) > collinearDot {
			continue
		}
		out = append(out, points[i])
	}
	return append(out, points[len(points)-1])
}
