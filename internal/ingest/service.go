package ingest

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/observability"
	"github.com/annel0/voxelnav/internal/vec"
)

// Service - локальная точка входа изменений мира (REST).
// Применяет изменение, рассылает его другим узлам и ведёт файл блоков.
type Service struct {
	applier    *Applier
	publisher  *Publisher
	blocksFile string
	logger     *logging.Logger

	fileMu sync.Mutex
}

// NewService создаёт сервис. publisher может быть nil, blocksFile - пустым.
func NewService(applier *Applier, publisher *Publisher, blocksFile string) *Service {
	return &Service{
		applier:    applier,
		publisher:  publisher,
		blocksFile: blocksFile,
		logger:     logging.GetIngestLogger(),
	}
}

// Report принимает отчёт сканера. Возвращает число новых блоков.
func (s *Service) Report(ctx context.Context, records []BlockRecord) (int, error) {
	ctx, span := observability.Tracer(observability.TracerIngest).Start(ctx, "ingest.Report")
	defer span.End()

	// Ошибка Persister не откатывает память: блоки уже видны поиску,
	// поэтому их всё равно нужно разослать и записать в файл.
	added, persistErr := s.applier.Place(records)
	span.SetAttributes(
		attribute.Int("blocks.reported", len(records)),
		attribute.Int("blocks.new", len(added)),
	)
	if len(added) == 0 {
		s.logger.Debug("Отчёт из %d блоков: новых нет", len(records))
		return 0, nil
	}

	if err := s.publisher.Placed(ctx, added); err != nil {
		s.logger.Warn("⚠️ Не удалось разослать %d блоков: %v", len(added), err)
	}
	s.saveFile()

	if persistErr != nil {
		span.RecordError(persistErr)
		return len(added), persistErr
	}
	s.logger.Info("🔭 %d новых блоков. Всего: %d", len(added), s.applier.Store().Snapshot().Len())
	return len(added), nil
}

// Remove удаляет блок в ячейке, содержащей точку
func (s *Service) Remove(ctx context.Context, point vec.Vec3Float) (bool, error) {
	removed, persistErr := s.applier.Remove(point)
	if !removed {
		return false, nil
	}
	if err := s.publisher.Removed(ctx, point); err != nil {
		s.logger.Warn("⚠️ Не удалось разослать удаление %s: %v", point, err)
	}
	s.saveFile()
	return true, persistErr
}

// Reset очищает мир на всех узлах
func (s *Service) Reset(ctx context.Context, reason string) error {
	persistErr := s.applier.Reset()
	if err := s.publisher.Reset(ctx, reason); err != nil {
		s.logger.Warn("⚠️ Не удалось разослать сброс мира: %v", err)
	}
	s.saveFile()
	return persistErr
}

// Blocks возвращает все известные блоки в порядке позиций
func (s *Service) Blocks() []BlockRecord {
	return RecordsFromCells(s.applier.Store().Snapshot().Cells())
}

func (s *Service) saveFile() {
	if s.blocksFile == "" {
		return
	}
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if err := SaveFile(s.blocksFile, s.Blocks()); err != nil {
		s.logger.Error("❌ Не удалось сохранить %s: %v", s.blocksFile, err)
	}
}
