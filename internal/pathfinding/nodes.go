package pathfinding

import (
	"container/heap"

	"github.com/annel0/voxelnav/internal/vec"
)

// searchState - вершина неявного графа: позиция плюс накопленный дрейф в воздухе
type searchState struct {
	pos   vec.Vec3
	drift int
}

const noParent = int32(-1)

// node хранится в плотном массиве; ссылки на предка - индексы, а не указатели.
// Индекс узла одновременно служит порядком вставки для разрешения ничьих.
type node struct {
	state   searchState
	g, h    int
	parent  int32
	heapIdx int // позиция в открытом списке, -1 если узел не в нём
	closed  bool
}

func (n *node) f() int { return n.g + n.h }

// nodePool - арена узлов одного поиска
type nodePool struct {
	nodes []node
	index map[searchState]int32
}

func newNodePool(capacity int) *nodePool {
	return &nodePool{
		nodes: make([]node, 0, capacity),
		index: make(map[searchState]int32, capacity),
	}
}

func (p *nodePool) find(s searchState) (int32, bool) {
	idx, ok := p.index[s]
	return idx, ok
}

func (p *nodePool) alloc(s searchState, g, h int, parent int32) int32 {
	idx := int32(len(p.nodes))
	p.nodes = append(p.nodes, node{state: s, g: g, h: h, parent: parent, heapIdx: -1})
	p.index[s] = idx
	return idx
}

func (p *nodePool) get(idx int32) *node {
	return &p.nodes[idx]
}

// path восстанавливает ячейки от старта до узла idx
func (p *nodePool) path(idx int32) []vec.Vec3 {
	n := 0
	for i := idx; i != noParent; i = p.nodes[i].parent {
		n++
	}
	cells := make([]vec.Vec3, n)
	for i := idx; i != noParent; i = p.nodes[i].parent {
		n--
		cells[n] = p.nodes[i].state.pos
	}
	return cells
}

// openList - двоичная куча индексов узлов.
// Полный порядок: fCost, затем hCost, затем порядок вставки.
type openList struct {
	pool  *nodePool
	items []int32
}

func (o *openList) Len() int { return len(o.items) }

func (o *openList) Less(i, j int) bool {
	a, b := o.pool.get(o.items[i]), o.pool.get(o.items[j])
	if af, bf := a.f(), b.f(); af != bf {
		return af < bf
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return o.items[i] < o.items[j]
}

func (o *openList) Swap(i, j int) {
	o.items[i], o.items[j] = o.items[j], o.items[i]
	o.pool.get(o.items[i]).heapIdx = i
	o.pool.get(o.items[j]).heapIdx = j
}

func (o *openList) Push(x interface{}) {
	idx := x.(int32)
	o.pool.get(idx).heapIdx = len(o.items)
	o.items = append(o.items, idx)
}

func (o *openList) Pop() interface{} {
	old := o.items
	n := len(old)
	idx := old[n-1]
	o.items = old[:n-1]
	o.pool.get(idx).heapIdx = -1
	return idx
}

func (o *openList) push(idx int32) { heap.Push(o, idx) }

func (o *openList) pop() int32 { return heap.Pop(o).(int32) }

func (o *openList) fix(idx int32) { heap.Fix(o, o.pool.get(idx).heapIdx) }
