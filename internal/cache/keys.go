package cache

import (
	"strconv"

	"github.com/annel0/voxelnav/internal/vec"
)

const pathKeyPrefix = "voxelnav:path:"

// PathKey строит ключ результата поиска: версия снимка + старт + цель.
// Координаты пишутся без потери точности, чтобы разные точки одной ячейки
// не делили запись (для совпадающих ячеек путь - буквальная цель).
func PathKey(version uint64, start, goal vec.Vec3Float) string {
	buf := make([]byte, 0, 96)
	buf = append(buf, pathKeyPrefix...)
	buf = strconv.AppendUint(buf, version, 10)
	buf = append(buf, ':')
	buf = appendPoint(buf, start)
	buf = append(buf, ':')
	buf = appendPoint(buf, goal)
	return string(buf)
}

func appendPoint(buf []byte, p vec.Vec3Float) []byte {
	buf = strconv.AppendFloat(buf, p.X, 'g', -1, 64)
	buf = append(buf, ',')
	buf = strconv.AppendFloat(buf, p.Y, 'g', -1, 64)
	buf = append(buf, ',')
	return strconv.AppendFloat(buf, p.Z, 'g', -1, 64)
}
