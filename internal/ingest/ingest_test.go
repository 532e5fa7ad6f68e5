package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelnav/internal/eventbus"
	"github.com/annel0/voxelnav/internal/vec"
	"github.com/annel0/voxelnav/internal/world"
)

type fakePersister struct {
	mu      sync.Mutex
	saved   []world.Cell
	deleted []vec.Vec3
	cleared int
	failAll bool
}

func (f *fakePersister) SaveCells(cells []world.Cell) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("disk full")
	}
	f.saved = append(f.saved, cells...)
	return nil
}

func (f *fakePersister) DeleteCell(pos vec.Vec3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, pos)
	return nil
}

func (f *fakePersister) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

func TestParseReport(t *testing.T) {
	records, err := ParseReport(strings.NewReader(`[
		{"x": 1, "y": 64, "z": -3, "name": "minecraft:stone"},
		{"x": 1.5, "y": 65, "z": -3, "name": "minecraft:dirt"}
	]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, BlockRecord{X: 1, Y: 64, Z: -3, Name: "minecraft:stone"}, records[0])

	_, err = ParseReport(strings.NewReader(`{"x": 1}`))
	assert.ErrorIs(t, err, ErrInvalidReport, "ожидается массив")

	_, err = ParseReport(strings.NewReader(`[{"x": 1e300, "y": 0, "z": 0, "name": "minecraft:stone"}]`))
	assert.ErrorIs(t, err, ErrInvalidReport, "координата вне диапазона")
}

func TestToCells_FirstOccurrenceWins(t *testing.T) {
	cells := ToCells([]BlockRecord{
		{X: 0.2, Y: 0, Z: 0, Name: "minecraft:stone"},
		{X: 0.9, Y: 0.5, Z: 0.1, Name: "minecraft:dirt"}, // та же ячейка
		{X: -0.5, Y: 0, Z: 0, Name: "minecraft:sand"},
	})

	require.Len(t, cells, 2)
	assert.Equal(t, "minecraft:stone", cells[0].Identity)
	assert.Equal(t, vec.Vec3{X: -1, Y: 0, Z: 0}, cells[1].Pos)
}

func TestLoadFile_MissingIsEmpty(t *testing.T) {
	records, err := LoadFile(filepath.Join(t.TempDir(), "blocks.json"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveFile_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blocks.json")
	in := []BlockRecord{
		{X: 1, Y: 2, Z: 3, Name: "minecraft:stone"},
		{X: -4, Y: 0, Z: 7, Name: "minecraft:oak_log"},
	}

	require.NoError(t, SaveFile(path, in))
	out, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestApplier_PlaceDoesNotOverwrite(t *testing.T) {
	store := world.NewStore(world.SurfaceApproximate)
	persist := &fakePersister{}
	a := NewApplier(store, persist)

	added, err := a.Place([]BlockRecord{{X: 0, Y: 0, Z: 0, Name: "minecraft:stone"}})
	require.NoError(t, err)
	assert.Len(t, added, 1)

	added, err = a.Place([]BlockRecord{
		{X: 0, Y: 0, Z: 0, Name: "minecraft:dirt"},
		{X: 1, Y: 0, Z: 0, Name: "minecraft:dirt"},
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, 1.0, added[0].X)

	c, _ := store.Snapshot().Cell(vec.Vec3{})
	assert.Equal(t, "minecraft:stone", c.Identity)
	assert.Len(t, persist.saved, 2, "на диск уходят только новые блоки")
}

func TestApplier_PersistErrorKeepsMemoryState(t *testing.T) {
	store := world.NewStore(world.SurfaceApproximate)
	a := NewApplier(store, &fakePersister{failAll: true})

	_, err := a.Place([]BlockRecord{{X: 3, Y: 0, Z: 3, Name: "minecraft:stone"}})
	assert.Error(t, err)
	assert.True(t, store.IsBlocked(vec.Vec3{X: 3, Y: 0, Z: 3}))
}

func TestApplier_RemoveAndReset(t *testing.T) {
	store := world.NewStore(world.SurfaceApproximate)
	persist := &fakePersister{}
	a := NewApplier(store, persist)
	a.Load(ToCells([]BlockRecord{{X: 0, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}))

	removed, err := a.Remove(vec.Vec3Float{X: 0.5, Y: 1.5, Z: 0.5})
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []vec.Vec3{{X: 0, Y: 1, Z: 0}}, persist.deleted)

	removed, err = a.Remove(vec.Vec3Float{X: 9, Y: 9, Z: 9})
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, a.Reset())
	assert.Zero(t, store.Snapshot().Len())
	assert.Equal(t, 1, persist.cleared)
}

func TestService_ReportCountsNewBlocksAndSavesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "blocks.json")
	svc := NewService(NewApplier(world.NewStore(world.SurfaceApproximate), nil), nil, path)

	n, err := svc.Report(ctx, []BlockRecord{{X: 0, Y: 0, Z: 0, Name: "a"}, {X: 1, Y: 0, Z: 0, Name: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = svc.Report(ctx, []BlockRecord{{X: 1, Y: 0, Z: 0, Name: "c"}})
	require.NoError(t, err)
	assert.Zero(t, n)

	saved, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, svc.Blocks(), saved)
	assert.Len(t, saved, 2)
}

func TestService_PersistErrorStillSavesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "blocks.json")
	store := world.NewStore(world.SurfaceApproximate)
	svc := NewService(NewApplier(store, &fakePersister{failAll: true}), nil, path)

	n, err := svc.Report(ctx, []BlockRecord{{X: 0, Y: 0, Z: 0, Name: "minecraft:stone"}})
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, store.Snapshot().IsBlocked(vec.Vec3{}))

	saved, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, saved, 1, "файл блоков совпадает с памятью")
}

func TestSubscriber_AppliesRemoteEventsOnly(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	// Узел A публикует, узел B применяет
	storeA := world.NewStore(world.SurfaceApproximate)
	nodeA := NewService(NewApplier(storeA, nil), NewPublisher(bus, "node-a"), "")

	storeB := world.NewStore(world.SurfaceApproximate)
	subB := NewSubscriber(bus, NewApplier(storeB, nil), "node-b")
	require.NoError(t, subB.Start(ctx))
	defer subB.Stop()

	// Собственные события A не применяются повторно
	subA := NewSubscriber(bus, NewApplier(storeA, nil), "node-a")
	require.NoError(t, subA.Start(ctx))
	defer subA.Stop()

	_, err := nodeA.Report(ctx, []BlockRecord{{X: 0, Y: 0, Z: 0, Name: "minecraft:stone"}, {X: 1, Y: 0, Z: 0}})
	require.NoError(t, err)
	_, err = nodeA.Remove(ctx, vec.Vec3Float{X: 1, Y: 0, Z: 0})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		snap := storeB.Snapshot()
		return snap.IsBlocked(vec.Vec3{}) && !snap.IsBlocked(vec.Vec3{X: 1}) && snap.Version() == 2
	}, time.Second, 5*time.Millisecond, "удаление применяется после добавления")

	assert.Equal(t, uint64(2), storeA.Snapshot().Version(), "узел A не применяет собственные события")
}

func TestSubscriber_ApplyRejectsUnknownType(t *testing.T) {
	sub := NewSubscriber(eventbus.NewMemoryBus(1), NewApplier(world.NewStore(world.SurfaceApproximate), nil), "n")
	ev, err := eventbus.NewEnvelope("block.exploded", "other", struct{}{})
	require.NoError(t, err)
	assert.Error(t, sub.Apply(ev))
}
