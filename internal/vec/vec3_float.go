package vec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxCoord - предел модуля координаты точки. Граница мира Minecraft (±30 млн)
// помещается с запасом, а разности координат и эвристика поиска не переполняют int.
const MaxCoord = 1 << 25

// ErrInvalidPoint - координаты точки не конечны или вне диапазона ±MaxCoord
var ErrInvalidPoint = errors.New("некорректная точка")

// Vec3Float представляет точку мира с плавающими координатами
type Vec3Float struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Floor округляет точку вниз до ячейки, в которой она лежит.
// Отрицательные координаты округляются к -inf, а не к нулю.
func (v Vec3Float) Floor() Vec3 {
	return Vec3{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}

// Sub вычитает вектор
func (v Vec3Float) Sub(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mgl конвертирует точку в mgl64.Vec3 для векторной арифметики
func (v Vec3Float) Mgl() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// FromMgl создаёт Vec3Float из mgl64.Vec3
func FromMgl(m mgl64.Vec3) Vec3Float {
	return Vec3Float{X: m[0], Y: m[1], Z: m[2]}
}

func (v Vec3Float) String() string {
	return fmt.Sprintf("(%.2f,%.2f,%.2f)", v.X, v.Y, v.Z)
}

// ParseVec3Float разбирает строку вида "x,y,z"
func ParseVec3Float(s string) (Vec3Float, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Vec3Float{}, fmt.Errorf("ожидалось 3 координаты, получено %d: %q", len(parts), s)
	}

	var coords [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Vec3Float{}, fmt.Errorf("координата %d: %w", i, err)
		}
		coords[i] = f
	}
	v := Vec3Float{X: coords[0], Y: coords[1], Z: coords[2]}
	if err := v.Validate(); err != nil {
		return Vec3Float{}, err
	}
	return v, nil
}

// Validate проверяет, что все координаты конечны и по модулю не больше MaxCoord.
// Только такие точки можно безопасно округлить до ячейки.
func (v Vec3Float) Validate() error {
	for i, f := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: координата %d: %v не является конечным числом", ErrInvalidPoint, i, f)
		}
		if math.Abs(f) > MaxCoord {
			return fmt.Errorf("%w: координата %d: %v вне диапазона ±%d", ErrInvalidPoint, i, f, MaxCoord)
		}
	}
	return nil
}
