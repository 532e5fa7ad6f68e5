package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/vec"
	"github.com/annel0/voxelnav/internal/world"
)

// ErrNotReady возвращается после Close
var ErrNotReady = errors.New("хранилище не готово")

const columnPrefix = "chunk:"

// OccupancyStorage сохраняет занятость мира в BadgerDB.
// Единица хранения - колонка чанка 16x16 по всей высоте:
// ключ "chunk:<cx>:<cz>", значение - zstd(JSON columnRecord).
type OccupancyStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
	logger  *logging.Logger
}

// cellRecord - ячейка в формате хранения
type cellRecord struct {
	X    int     `json:"x"`
	Y    int     `json:"y"`
	Z    int     `json:"z"`
	Name string  `json:"name"`
	OX   float64 `json:"ox"`
	OY   float64 `json:"oy"`
	OZ   float64 `json:"oz"`
}

// columnRecord содержит все ячейки одной колонки чанка
type columnRecord struct {
	CX    int          `json:"cx"`
	CZ    int          `json:"cz"`
	Cells []cellRecord `json:"cells"`
}

// NewOccupancyStorage открывает (или создаёт) хранилище в dataPath/occupancy
func NewOccupancyStorage(dataPath string) (*OccupancyStorage, error) {
	dbPath := filepath.Join(dataPath, "occupancy")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &OccupancyStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
		encoder: encoder,
		decoder: decoder,
		logger:  logging.GetStorageLogger(),
	}, nil
}

// Close закрывает хранилище данных
func (s *OccupancyStorage) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	s.encoder.Close()
	s.decoder.Close()
	return s.db.Close()
}

func columnKey(coords vec.Vec2) []byte {
	return []byte(fmt.Sprintf("%s%d:%d", columnPrefix, coords.X, coords.Z))
}

func (s *OccupancyStorage) encode(coords vec.Vec2, cells []world.Cell) ([]byte, error) {
	rec := columnRecord{CX: coords.X, CZ: coords.Z, Cells: make([]cellRecord, 0, len(cells))}
	for _, c := range cells {
		rec.Cells = append(rec.Cells, cellRecord{
			X: c.Pos.X, Y: c.Pos.Y, Z: c.Pos.Z,
			Name: c.Identity,
			OX:   c.Origin.X, OY: c.Origin.Y, OZ: c.Origin.Z,
		})
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации колонки: %w", err)
	}
	return s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (s *OccupancyStorage) decode(raw []byte) ([]world.Cell, error) {
	data, err := s.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки колонки: %w", err)
	}

	var rec columnRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("ошибка десериализации колонки: %w", err)
	}

	cells := make([]world.Cell, 0, len(rec.Cells))
	for _, c := range rec.Cells {
		cells = append(cells, world.Cell{
			Pos:      vec.Vec3{X: c.X, Y: c.Y, Z: c.Z},
			Identity: c.Name,
			Origin:   vec.Vec3Float{X: c.OX, Y: c.OY, Z: c.OZ},
		})
	}
	return cells, nil
}

// SaveSnapshot полностью перезаписывает сохранённый мир содержимым снимка
func (s *OccupancyStorage) SaveSnapshot(snap *world.Snapshot) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrNotReady
	}

	if err := s.db.DropPrefix([]byte(columnPrefix)); err != nil {
		return fmt.Errorf("ошибка очистки колонок: %w", err)
	}

	columns := world.GroupByColumn(snap.Cells())
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, col := range columns {
		data, err := s.encode(col.Coords, col.Cells)
		if err != nil {
			return err
		}
		if err := wb.Set(columnKey(col.Coords), data); err != nil {
			return fmt.Errorf("ошибка записи колонки %v: %w", col.Coords, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	s.logger.Info("💾 Снимок v%d сохранён: %d ячеек в %d колонках", snap.Version(), snap.Len(), len(columns))
	return nil
}

// SaveCells дописывает ячейки в их колонки (повтор позиции перезаписывает ячейку)
func (s *OccupancyStorage) SaveCells(cells []world.Cell) error {
	if len(cells) == 0 {
		return nil
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrNotReady
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, col := range world.GroupByColumn(cells) {
			existing, err := s.loadColumnTxn(txn, col.Coords)
			if err != nil {
				return err
			}

			merged := make(map[vec.Vec3]world.Cell, len(existing)+len(col.Cells))
			for _, c := range existing {
				merged[c.Pos] = c
			}
			for _, c := range col.Cells {
				merged[c.Pos] = c
			}

			if err := s.writeColumnTxn(txn, col.Coords, merged); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteCell удаляет ячейку; пустая колонка удаляется целиком
func (s *OccupancyStorage) DeleteCell(pos vec.Vec3) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrNotReady
	}

	coords := pos.Column()
	return s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.loadColumnTxn(txn, coords)
		if err != nil {
			return err
		}

		remaining := make(map[vec.Vec3]world.Cell, len(existing))
		for _, c := range existing {
			if c.Pos != pos {
				remaining[c.Pos] = c
			}
		}
		if len(remaining) == len(existing) {
			return nil
		}
		return s.writeColumnTxn(txn, coords, remaining)
	})
}

// Clear удаляет все сохранённые колонки
func (s *OccupancyStorage) Clear() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrNotReady
	}
	return s.db.DropPrefix([]byte(columnPrefix))
}

// LoadColumn загружает ячейки одной колонки; отсутствующая колонка - пустой срез
func (s *OccupancyStorage) LoadColumn(coords vec.Vec2) ([]world.Cell, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrNotReady
	}

	var cells []world.Cell
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		cells, err = s.loadColumnTxn(txn, coords)
		return err
	})
	return cells, err
}

// LoadAll загружает все сохранённые ячейки
func (s *OccupancyStorage) LoadAll() ([]world.Cell, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrNotReady
	}

	var cells []world.Cell
	columns := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(columnPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				decoded, err := s.decode(val)
				if err != nil {
					return fmt.Errorf("колонка %s: %w", strings.TrimPrefix(string(item.Key()), columnPrefix), err)
				}
				cells = append(cells, decoded...)
				return nil
			})
			if err != nil {
				return err
			}
			columns++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	s.logger.Debug("📂 Загружено %d ячеек из %d колонок", len(cells), columns)
	return cells, nil
}

func (s *OccupancyStorage) loadColumnTxn(txn *badger.Txn, coords vec.Vec2) ([]world.Cell, error) {
	item, err := txn.Get(columnKey(coords))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var cells []world.Cell
	err = item.Value(func(val []byte) error {
		cells, err = s.decode(val)
		return err
	})
	return cells, err
}

func (s *OccupancyStorage) writeColumnTxn(txn *badger.Txn, coords vec.Vec2, cells map[vec.Vec3]world.Cell) error {
	key := columnKey(coords)
	if len(cells) == 0 {
		return txn.Delete(key)
	}

	list := make([]world.Cell, 0, len(cells))
	for _, c := range cells {
		list = append(list, c)
	}
	// GroupByColumn сортирует ячейки - запись детерминирована
	data, err := s.encode(coords, world.GroupByColumn(list)[0].Cells)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}
