package control

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/voxelnav/internal/vec"
)

// FuelUnlimited - уровень топлива агента, у которого расход топлива отключён
const FuelUnlimited Fuel = -1

// Fuel - уровень топлива. В JSON это число или строка "unlimited".
type Fuel int

func (f Fuel) MarshalJSON() ([]byte, error) {
	if f == FuelUnlimited {
		return []byte(`"unlimited"`), nil
	}
	return json.Marshal(int(f))
}

func (f *Fuel) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = Fuel(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s == "unlimited" {
		*f = FuelUnlimited
		return nil
	}
	return fmt.Errorf("уровень топлива: ожидалось число или \"unlimited\", получено %s", data)
}

// AgentStatus - последнее состояние, которое прислал агент.
// Имена полей совпадают с тем, что шлёт скрипт агента.
type AgentStatus struct {
	Label               string         `json:"label" binding:"required"`
	Position            *vec.Vec3Float `json:"position,omitempty"`
	Direction           string         `json:"direction,omitempty"`
	IsBusy              bool           `json:"isBusy"`
	FuelLevel           Fuel           `json:"fuelLevel"`
	MaxFuel             Fuel           `json:"maxFuel"`
	InventorySlotsUsed  int            `json:"inventorySlotsUsed"`
	InventorySlotsTotal int            `json:"inventorySlotsTotal"`
	EquippedToolLeft    string         `json:"equippedToolLeft,omitempty"`
	EquippedToolRight   string         `json:"equippedToolRight,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
	Node      string    `json:"node,omitempty"` // узел, принявший статус
}

// Validate проверяет метку и позицию
func (s AgentStatus) Validate() error {
	if s.Label == "" {
		return ErrEmptyLabel
	}
	if s.Position != nil {
		if err := s.Position.Validate(); err != nil {
			return fmt.Errorf("позиция агента %s: %w", s.Label, err)
		}
	}
	return nil
}

// StatusBoard хранит последний статус каждого агента
type StatusBoard struct {
	mu     sync.RWMutex
	agents map[string]AgentStatus
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{agents: make(map[string]AgentStatus)}
}

// Put сохраняет статус. Статус старше уже известного отбрасывается (false):
// события от других узлов могут прийти позже локального обновления.
func (b *StatusBoard) Put(st AgentStatus) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.agents[st.Label]; ok && st.UpdatedAt.Before(cur.UpdatedAt) {
		return false
	}
	b.agents[st.Label] = st
	return true
}

// Get возвращает статус агента
func (b *StatusBoard) Get(label string) (AgentStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.agents[label]
	return st, ok
}

// All возвращает статусы всех агентов, отсортированные по метке
func (b *StatusBoard) All() []AgentStatus {
	b.mu.RLock()
	out := make([]AgentStatus, 0, len(b.agents))
	for _, st := range b.agents {
		out = append(out, st)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Len возвращает число известных агентов
func (b *StatusBoard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.agents)
}
