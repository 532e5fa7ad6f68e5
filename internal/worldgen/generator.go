package worldgen

import (
	"math/rand"

	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/vec"
	"github.com/annel0/voxelnav/internal/world"
)

// BiomeType представляет тип биома
type BiomeType int

const (
	BiomePlains BiomeType = iota
	BiomeDesert
	BiomeForest
	BiomeMountains
	BiomeWater
)

// Пороги нормализованной высоты
const (
	WaterMax      = 0.25 // Ниже - вода: твёрдых блоков над дном нет
	MountainStart = 0.75 // Выше - камень
)

// Идентификаторы блоков
const (
	BlockStone = "minecraft:stone"
	BlockDirt  = "minecraft:dirt"
	BlockGrass = "minecraft:grass_block"
	BlockSand  = "minecraft:sand"
	BlockLog   = "minecraft:oak_log"
	BlockClay  = "minecraft:clay"
)

// Generator строит демонстрационный рельеф по карте высот из шума Перлина.
// Результат детерминирован: один сид и одна колонка дают одни и те же ячейки.
type Generator struct {
	Seed        int64
	NoiseScale  float64 // Масштаб основного шума (высота)
	BiomeScale  float64 // Масштаб шума биомов
	MaxHeight   int     // Максимальная высота поверхности; 0 - плоский мир на y=0
	FillDepth   int     // Сколько слоёв под поверхностью заполнять (минимум 1)
	TreeDensity float64 // Шанс ствола дерева на лесной колонке (от 0 до 1)

	height *Noise
	biome  *Noise
	logger *logging.Logger
}

// NewGenerator создаёт генератор с настройками по умолчанию
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Seed:        seed,
		NoiseScale:  0.05, // Настройка сглаженности ландшафта
		BiomeScale:  0.02, // Настройка размера биомов
		MaxHeight:   8,
		FillDepth:   2,
		TreeDensity: 0.08,
		height:      NewNoise(seed),
		biome:       NewNoise(seed + 42),
		logger:      logging.GetComponentLogger(logging.ComponentWorldgen),
	}
}

// SurfaceHeight возвращает y верхнего блока рельефа в точке (x, z) без учёта деревьев
func (g *Generator) SurfaceHeight(x, z int) int {
	if g.MaxHeight <= 0 {
		return 0
	}
	h := g.height.Sample2D(float64(x)*g.NoiseScale, float64(z)*g.NoiseScale)
	return int(h * float64(g.MaxHeight))
}

// StandPoint возвращает точку, где можно стоять над колонкой (x, z)
func (g *Generator) StandPoint(x, z int) vec.Vec3Float {
	top := g.SurfaceHeight(x, z)
	if g.hasTree(x, z) {
		top += treeHeight(g.columnRNG(x, z))
	}
	return vec.Vec3Float{X: float64(x) + 0.5, Y: float64(top + 1), Z: float64(z) + 0.5}
}

// GenerateColumn генерирует ячейки одной колонки чанка 16x16
func (g *Generator) GenerateColumn(coords vec.Vec2) []world.Cell {
	baseX := coords.X * vec.ChunkSize
	baseZ := coords.Z * vec.ChunkSize

	cells := make([]world.Cell, 0, vec.ChunkSize*vec.ChunkSize*(g.fillDepth()+1))
	for dx := 0; dx < vec.ChunkSize; dx++ {
		for dz := 0; dz < vec.ChunkSize; dz++ {
			cells = g.appendColumn(cells, baseX+dx, baseZ+dz)
		}
	}
	return cells
}

// Generate генерирует квадрат size x size блоков с углом в (0, 0)
func (g *Generator) Generate(size int) []world.Cell {
	if size <= 0 {
		return nil
	}
	var cells []world.Cell
	for x := 0; x < size; x++ {
		for z := 0; z < size; z++ {
			cells = g.appendColumn(cells, x, z)
		}
	}
	g.logger.Info("🌍 Сгенерирован рельеф %dx%d (сид %d): %d блоков", size, size, g.Seed, len(cells))
	return cells
}

func (g *Generator) appendColumn(cells []world.Cell, x, z int) []world.Cell {
	top := g.SurfaceHeight(x, z)
	biome := g.biomeAt(x, z, top)

	bottom := top - g.fillDepth() + 1
	for y := bottom; y <= top; y++ {
		id := g.blockFor(biome, y == top)
		cells = append(cells, world.CellAt(vec.Vec3{X: x, Y: y, Z: z}, id))
	}

	if biome == BiomeForest && g.hasTree(x, z) {
		h := treeHeight(g.columnRNG(x, z))
		for y := top + 1; y <= top+h; y++ {
			cells = append(cells, world.CellAt(vec.Vec3{X: x, Y: y, Z: z}, BlockLog))
		}
	}
	return cells
}

func (g *Generator) fillDepth() int {
	if g.FillDepth < 1 {
		return 1
	}
	return g.FillDepth
}

// biomeAt определяет тип биома на основе высоты и шума биомов
func (g *Generator) biomeAt(x, z, top int) BiomeType {
	if g.MaxHeight <= 0 {
		return BiomePlains
	}
	h := float64(top) / float64(g.MaxHeight)
	switch {
	case h < WaterMax:
		return BiomeWater
	case h >= MountainStart:
		return BiomeMountains
	}

	b := g.biome.Sample2D(float64(x)*g.BiomeScale, float64(z)*g.BiomeScale)
	switch {
	case b < 0.35:
		return BiomeDesert
	case b > 0.65:
		return BiomeForest
	default:
		return BiomePlains
	}
}

func (g *Generator) blockFor(biome BiomeType, top bool) string {
	switch biome {
	case BiomeWater:
		return BlockClay
	case BiomeMountains:
		return BlockStone
	case BiomeDesert:
		return BlockSand
	default:
		if top {
			return BlockGrass
		}
		return BlockDirt
	}
}

// hasTree решает, стоит ли на колонке дерево. Только лесной биом.
func (g *Generator) hasTree(x, z int) bool {
	if g.TreeDensity <= 0 || g.biomeAt(x, z, g.SurfaceHeight(x, z)) != BiomeForest {
		return false
	}
	return g.columnRNG(x, z).Float64() < g.TreeDensity
}

// columnRNG - детерминированный генератор для колонки: сид мира плюс координаты
func (g *Generator) columnRNG(x, z int) *rand.Rand {
	return rand.New(rand.NewSource(g.Seed + int64(x)*73856093 + int64(z)*19349663))
}

// treeHeight - высота ствола 3-5 блоков. Первое значение rng уже ушло на hasTree.
func treeHeight(rng *rand.Rand) int {
	rng.Float64()
	return 3 + rng.Intn(3)
}
