package worldgen

import (
	"github.com/aquilax/go-perlin"
)

// Параметры шума Перлина
const (
	noiseAlpha   = 2.0 // Сглаживание шума
	noiseBeta    = 2.0 // Частота шума
	noiseOctaves = 3   // Количество октав
)

// Noise - генератор шума Перлина со своим сидом.
// Экземпляр только читается после создания, поэтому безопасен для нескольких горутин.
type Noise struct {
	p *perlin.Perlin
}

// NewNoise создаёт генератор шума с указанным сидом
func NewNoise(seed int64) *Noise {
	return &Noise{p: perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed)}
}

// Sample2D возвращает значение шума для указанных координат (от 0 до 1)
func (n *Noise) Sample2D(x, z float64) float64 {
	// Значение шума примерно от -1 до 1
	v := (n.p.Noise2D(x, z) + 1.0) / 2.0
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
