package ingest

import (
	"fmt"

	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/vec"
	"github.com/annel0/voxelnav/internal/world"
)

// Persister - долговременное хранилище занятости (storage.OccupancyStorage)
type Persister interface {
	SaveCells(cells []world.Cell) error
	DeleteCell(pos vec.Vec3) error
	Clear() error
}

// Applier применяет изменения мира к хранилищу занятости и, если задан, к Persister.
// Сначала меняется Store, затем диск: поиск пути видит изменение сразу.
type Applier struct {
	store   *world.Store
	persist Persister
	logger  *logging.Logger
}

// NewApplier создаёт Applier. persist может быть nil - тогда изменения живут только в памяти.
func NewApplier(store *world.Store, persist Persister) *Applier {
	return &Applier{
		store:   store,
		persist: persist,
		logger:  logging.GetIngestLogger(),
	}
}

// Store возвращает хранилище занятости
func (a *Applier) Store() *world.Store {
	return a.store
}

// Place добавляет блоки, которых ещё нет в мире. Уже известные позиции не перезаписываются.
// Возвращает реально добавленные записи.
func (a *Applier) Place(records []BlockRecord) ([]BlockRecord, error) {
	added, snap := a.store.AddNewCells(ToCells(records))
	if len(added) == 0 {
		return nil, nil
	}

	if a.persist != nil {
		if err := a.persist.SaveCells(added); err != nil {
			return RecordsFromCells(added), fmt.Errorf("сохранение %d блоков: %w", len(added), err)
		}
	}

	a.logger.Debug("🧱 %d новых блоков, всего %d (версия %d)", len(added), snap.Len(), snap.Version())
	return RecordsFromCells(added), nil
}

// Remove удаляет блок в ячейке, содержащей точку. false - ячейка и так была свободна.
func (a *Applier) Remove(point vec.Vec3Float) (bool, error) {
	pos := point.Floor()
	if !a.store.RemoveCell(pos) {
		return false, nil
	}

	if a.persist != nil {
		if err := a.persist.DeleteCell(pos); err != nil {
			return true, fmt.Errorf("удаление блока %s: %w", pos, err)
		}
	}
	a.logger.Debug("⛏️ Блок %s удалён", pos)
	return true, nil
}

// Reset очищает мир и хранилище
func (a *Applier) Reset() error {
	a.store.Reset()
	if a.persist != nil {
		if err := a.persist.Clear(); err != nil {
			return fmt.Errorf("очистка хранилища: %w", err)
		}
	}
	return nil
}

// Load полностью заменяет занятость (старт сервера, загрузка файла блоков).
// В Persister не пишет: источник и так является сохранённым состоянием.
func (a *Applier) Load(cells []world.Cell) *world.Snapshot {
	snap := a.store.SetOccupancy(cells)
	a.logger.Info("📦 Загружено %d блоков, %d поверхностей", snap.Len(), snap.SurfaceCount())
	return snap
}
