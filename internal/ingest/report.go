package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/annel0/voxelnav/internal/vec"
	"github.com/annel0/voxelnav/internal/world"
)

// ErrInvalidReport - отчёт не является JSON-массивом блоков
var ErrInvalidReport = errors.New("некорректный отчёт о блоках")

// BlockRecord - запись отчёта о блоке в формате сканера: {x, y, z, name}
type BlockRecord struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Name string  `json:"name"`
}

// Origin возвращает мировую точку блока
func (r BlockRecord) Origin() vec.Vec3Float {
	return vec.Vec3Float{X: r.X, Y: r.Y, Z: r.Z}
}

// Cell превращает запись в ячейку занятости
func (r BlockRecord) Cell() world.Cell {
	return world.CellFromOrigin(r.Origin(), r.Name)
}

// ParseReport разбирает JSON-массив записей
func ParseReport(r io.Reader) ([]BlockRecord, error) {
	var records []BlockRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	for i, rec := range records {
		if err := rec.Origin().Validate(); err != nil {
			return nil, fmt.Errorf("%w: блок %d: %v", ErrInvalidReport, i, err)
		}
	}
	return records, nil
}

// ToCells переводит записи в ячейки. При повторе позиции остаётся первое вхождение.
func ToCells(records []BlockRecord) []world.Cell {
	cells := make([]world.Cell, 0, len(records))
	seen := make(map[vec.Vec3]struct{}, len(records))
	for _, r := range records {
		c := r.Cell()
		if _, dup := seen[c.Pos]; dup {
			continue
		}
		seen[c.Pos] = struct{}{}
		cells = append(cells, c)
	}
	return cells
}

// RecordsFromCells - обратное преобразование; координаты берутся из исходной точки ячейки
func RecordsFromCells(cells []world.Cell) []BlockRecord {
	records := make([]BlockRecord, len(cells))
	for i, c := range cells {
		records[i] = BlockRecord{X: c.Origin.X, Y: c.Origin.Y, Z: c.Origin.Z, Name: c.Identity}
	}
	return records
}

// LoadFile читает файл блоков. Отсутствующий файл - пустой мир, а не ошибка.
func LoadFile(path string) ([]BlockRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("открытие %s: %w", path, err)
	}
	defer f.Close()

	records, err := ParseReport(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// SaveFile записывает блоки через временный файл, чтобы не оставить обрезанный JSON
func SaveFile(path string, records []BlockRecord) error {
	if records == nil {
		records = []BlockRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("сериализация блоков: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("создание каталога %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("запись %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("переименование %s: %w", tmp, err)
	}
	return nil
}
