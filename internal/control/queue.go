package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrEmptyLabel = errors.New("не указана метка агента")
	ErrQueueFull  = errors.New("очередь команд агента переполнена")
)

// CommandQueue - FIFO-очереди команд по меткам агентов.
// Команда хранится как исходный JSON: сервер не интерпретирует то, что исполняет агент.
type CommandQueue struct {
	mu     sync.Mutex
	queues map[string][]json.RawMessage
	maxLen int
}

// NewCommandQueue создаёт очереди; maxLen <= 0 - без ограничения длины
func NewCommandQueue(maxLen int) *CommandQueue {
	return &CommandQueue{
		queues: make(map[string][]json.RawMessage),
		maxLen: maxLen,
	}
}

// Enqueue добавляет команды в конец очереди агента и возвращает новую длину.
// Пачка, которая не помещается целиком, отклоняется целиком.
func (q *CommandQueue) Enqueue(label string, cmds []json.RawMessage) (int, error) {
	if label == "" {
		return 0, ErrEmptyLabel
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	cur := q.queues[label]
	if q.maxLen > 0 && len(cur)+len(cmds) > q.maxLen {
		return len(cur), fmt.Errorf("%w: %s (%d + %d > %d)", ErrQueueFull, label, len(cur), len(cmds), q.maxLen)
	}
	if len(cmds) == 0 {
		return len(cur), nil
	}
	q.queues[label] = append(cur, cmds...)
	return len(q.queues[label]), nil
}

// Pending возвращает копию очереди агента; для неизвестного агента - пустой срез
func (q *CommandQueue) Pending(label string) []json.RawMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]json.RawMessage, len(q.queues[label]))
	copy(out, q.queues[label])
	return out
}

// Pop снимает первую команду из очереди агента
func (q *CommandQueue) Pop(label string) (json.RawMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cur := q.queues[label]
	if len(cur) == 0 {
		return nil, false
	}
	cmd := cur[0]
	if len(cur) == 1 {
		delete(q.queues, label)
	} else {
		q.queues[label] = cur[1:]
	}
	return cmd, true
}

// Clear очищает очередь агента и возвращает число снятых команд
func (q *CommandQueue) Clear(label string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.queues[label])
	delete(q.queues, label)
	return n
}

// Total - команд во всех очередях
func (q *CommandQueue) Total() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, cur := range q.queues {
		n += len(cur)
	}
	return n
}

// TextCommands кодирует строковые команды в JSON
func TextCommands(cmds []string) []json.RawMessage {
	out := make([]json.RawMessage, len(cmds))
	for i, c := range cmds {
		data, _ := json.Marshal(c)
		out[i] = data
	}
	return out
}
