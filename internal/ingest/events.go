package ingest

// Типы событий изменения мира
const (
	EventBlockPlaced  = "block.placed"
	EventBlockRemoved = "block.removed"
	EventWorldReset   = "world.reset"
)

// EventTypes - все типы, на которые подписывается Subscriber
var EventTypes = []string{EventBlockPlaced, EventBlockRemoved, EventWorldReset}

// BlocksPlaced - полезная нагрузка block.placed
type BlocksPlaced struct {
	Blocks []BlockRecord `json:"blocks"`
}

// BlockRemoved - полезная нагрузка block.removed
type BlockRemoved struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// WorldReset - полезная нагрузка world.reset
type WorldReset struct {
	Reason string `json:"reason,omitempty"`
}
