package world

import (
	"sync"
	"sync/atomic"

	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/vec"
)

// Store владеет занятостью мира на время сессии.
//
// Модель: один писатель за раз (мьютекс) и любое число читателей без блокировок.
// Каждая мутация строит новый Snapshot и публикует его через atomic.Pointer,
// поэтому поиск пути, начатый на старой версии, доигрывается на ней целиком.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	policy  SurfacePolicy
	logger  *logging.Logger
}

// NewStore создаёт пустое хранилище с указанной политикой поверхностей
func NewStore(policy SurfacePolicy) *Store {
	s := &Store{
		policy: policy,
		logger: logging.GetWorldLogger(),
	}
	s.current.Store(EmptySnapshot())
	return s
}

// Policy возвращает политику поддержки поверхностей
func (s *Store) Policy() SurfacePolicy {
	return s.policy
}

// Snapshot возвращает текущий опубликованный снимок
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// IsBlocked проверяет занятость позиции в текущем снимке
func (s *Store) IsBlocked(pos vec.Vec3) bool {
	return s.Snapshot().IsBlocked(pos)
}

// IsSurface проверяет, является ли позиция поверхностью в текущем снимке
func (s *Store) IsSurface(pos vec.Vec3) bool {
	return s.Snapshot().IsSurface(pos)
}

// SetOccupancy полностью заменяет занятость и перестраивает поверхности.
// Если ни ячейки, ни перестроенные поверхности не изменились, версия остаётся прежней.
func (s *Store) SetOccupancy(cells []Cell) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.Snapshot()
	index := indexCells(cells)
	surface := RebuildSurfaces(index)
	if prev.sameAs(index, surface) {
		return prev
	}

	next := &Snapshot{version: prev.Version() + 1, cells: index, surface: surface}
	s.current.Store(next)

	s.logger.Debug("Занятость заменена: %d ячеек, %d поверхностей, версия %d",
		next.Len(), next.SurfaceCount(), next.Version())
	return next
}

// MergeOccupancy добавляет ячейки к существующим с полной перестройкой поверхностей.
// Пустая пачка или пачка из уже известных ячеек версию не меняет, если поверхности
// и так совпадают с полной перестройкой.
func (s *Store) MergeOccupancy(cells []Cell) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.Snapshot()
	next := prev.clone(prev.Version() + 1)
	for _, c := range cells {
		next.cells[c.Pos] = c
	}
	next.surface = RebuildSurfaces(next.cells)
	if prev.sameAs(next.cells, next.surface) {
		return prev
	}
	s.current.Store(next)

	s.logger.Debug("Занятость объединена: +%d ячеек, всего %d, версия %d",
		len(cells), next.Len(), next.Version())
	return next
}

// AddCells - инкрементальная догрузка (потоковая загрузка чанков, установка блоков).
// Поверхности дополняются согласно политике, без полной перестройки.
func (s *Store) AddCells(cells []Cell) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.Snapshot()
	if len(cells) == 0 {
		return prev
	}

	next := prev.clone(prev.Version() + 1)
	for _, c := range cells {
		next.cells[c.Pos] = c
	}
	extendSurfaces(next.surface, next.cells, cells, s.policy)
	s.current.Store(next)

	s.logger.Trace("Догружено %d ячеек (политика %s), версия %d", len(cells), s.policy, next.Version())
	return next
}

// AddNewCells догружает только ячейки на ещё свободных позициях.
// Внутри пачки побеждает первое вхождение позиции. Возвращает реально добавленные ячейки;
// если добавлять нечего, версия не меняется.
func (s *Store) AddNewCells(cells []Cell) ([]Cell, *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.Snapshot()
	added := make([]Cell, 0, len(cells))
	seen := make(map[vec.Vec3]struct{}, len(cells))
	for _, c := range cells {
		if prev.IsBlocked(c.Pos) {
			continue
		}
		if _, dup := seen[c.Pos]; dup {
			continue
		}
		seen[c.Pos] = struct{}{}
		added = append(added, c)
	}
	if len(added) == 0 {
		return added, prev
	}

	next := prev.clone(prev.Version() + 1)
	for _, c := range added {
		next.cells[c.Pos] = c
	}
	extendSurfaces(next.surface, next.cells, added, s.policy)
	s.current.Store(next)

	s.logger.Trace("Добавлено %d новых ячеек из %d, версия %d", len(added), len(cells), next.Version())
	return added, next
}

// RemoveCell удаляет одну ячейку. Ячейка под ней снова становится поверхностью.
// Возвращает false, если позиция и так была свободна.
func (s *Store) RemoveCell(pos vec.Vec3) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.Snapshot()
	if !prev.IsBlocked(pos) {
		return false
	}

	next := prev.clone(prev.Version() + 1)
	delete(next.cells, pos)
	delete(next.surface, pos)
	if below := pos.Below(1); next.IsBlocked(below) {
		next.surface[below] = struct{}{}
	}
	s.current.Store(next)

	s.logger.Trace("Удалена ячейка %s, версия %d", pos, next.Version())
	return true
}

// Reset очищает мир целиком. Версия продолжает расти.
func (s *Store) Reset() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := EmptySnapshot()
	next.version = s.Snapshot().Version() + 1
	s.current.Store(next)

	s.logger.Info("🧹 Мир очищен, версия %d", next.Version())
	return next
}
