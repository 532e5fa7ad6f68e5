package vec

import "fmt"

// Vec3 представляет позицию вокселя: целочисленные координаты ячейки сетки.
// Равенство и хеширование - строго по координатам, без допусков,
// поэтому Vec3 можно использовать как ключ карты.
type Vec3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Направления осей. Диагоналей в мире нет.
var (
	Up    = Vec3{Y: 1}
	Down  = Vec3{Y: -1}
	East  = Vec3{X: 1}
	West  = Vec3{X: -1}
	South = Vec3{Z: 1}
	North = Vec3{Z: -1}
)

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Above возвращает ячейку на n выше
func (v Vec3) Above(n int) Vec3 {
	return Vec3{X: v.X, Y: v.Y + n, Z: v.Z}
}

// Below возвращает ячейку на n ниже
func (v Vec3) Below(n int) Vec3 {
	return Vec3{X: v.X, Y: v.Y - n, Z: v.Z}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v == other
}

// IsHorizontal - true, если у смещения нет вертикальной составляющей
func (v Vec3) IsHorizontal() bool {
	return v.Y == 0
}

// Center возвращает центр ячейки в мировых координатах
func (v Vec3) Center() Vec3Float {
	return Vec3Float{
		X: float64(v.X) + 0.5,
		Y: float64(v.Y) + 0.5,
		Z: float64(v.Z) + 0.5,
	}
}

// Column возвращает координаты колонки чанка, в которую попадает ячейка
func (v Vec3) Column() Vec2 {
	return Vec2{X: v.X, Z: v.Z}.ToChunkCoords()
}

// DistanceSqTo возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceSqTo(other Vec3) int {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// Less задаёт полный порядок (x, затем y, затем z) для детерминированной сортировки
func (v Vec3) Less(other Vec3) bool {
	if v.X != other.X {
		return v.X < other.X
	}
	if v.Y != other.Y {
		return v.Y < other.Y
	}
	return v.Z < other.Z
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}
