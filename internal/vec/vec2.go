package vec

// Vec2 представляет координаты на горизонтальной плоскости (x, z)
type Vec2 struct {
	X, Z int
}

// ChunkSize - сторона колонки чанка в блоках
const ChunkSize = 16

// ToChunkCoords преобразует глобальные координаты в координаты чанка
func (v Vec2) ToChunkCoords() Vec2 {
	return Vec2{X: v.X >> 4, Z: v.Z >> 4} // Деление на 16, отрицательные тоже к -inf
}

// LocalInChunk возвращает локальные координаты внутри чанка
func (v Vec2) LocalInChunk() Vec2 {
	return Vec2{X: v.X & 0xF, Z: v.Z & 0xF} // Модуль 16
}
