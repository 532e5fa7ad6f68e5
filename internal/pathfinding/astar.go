package pathfinding

import (
	"fmt"

	"github.com/annel0/voxelnav/internal/logging"
	"github.com/annel0/voxelnav/internal/vec"
)

// Outcome - исход одного поиска
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSameCell
	OutcomeGoalBlocked
	OutcomeExhausted      // открытый список пуст: цель структурно недостижима
	OutcomeBudgetExceeded // прерван по лимиту итераций
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSameCell:
		return "same_cell"
	case OutcomeGoalBlocked:
		return "goal_blocked"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeBudgetExceeded:
		return "budget_exceeded"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Found - true для исходов, дающих путь
func (o Outcome) Found() bool {
	return o == OutcomeSuccess || o == OutcomeSameCell
}

// Result - подробный результат поиска
type Result struct {
	Outcome    Outcome
	Cells      []vec.Vec3      // плотный путь по ячейкам, от старта к цели
	Path       []vec.Vec3Float // центры ячеек; для OutcomeSameCell - ровно запрошенная цель
	Expansions int
}

// Err возвращает nil при успехе, иначе одну из ошибок, оборачивающих ErrNoPath
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeSuccess, OutcomeSameCell:
		return nil
	case OutcomeGoalBlocked:
		return ErrGoalBlocked
	case OutcomeBudgetExceeded:
		return ErrBudgetExhausted
	default:
		return ErrUnreachable
	}
}

// Pathfinder - A* по неявному графу соседей.
// Не хранит состояния между вызовами: узлы, открытый и закрытый списки живут в пределах
// одного Search, поэтому один Pathfinder безопасно использовать из нескольких горутин.
type Pathfinder struct {
	cfg     Config
	metrics *Metrics
	logger  *logging.Logger
}

// NewPathfinder создаёт поисковик. metrics может быть nil.
func NewPathfinder(cfg Config, metrics *Metrics) *Pathfinder {
	return &Pathfinder{
		cfg:     cfg,
		metrics: metrics,
		logger:  logging.GetPathfindingLogger(),
	}
}

// Config возвращает действующие правила
func (pf *Pathfinder) Config() Config {
	return pf.cfg
}

// FindPath ищет путь между мировыми точками. Возвращает центры ячеек плотного пути;
// false - пути нет (цель занята, недостижима или исчерпан бюджет).
func (pf *Pathfinder) FindPath(occ Occupancy, start, goal vec.Vec3Float) ([]vec.Vec3Float, bool) {
	res := pf.Search(occ, start, goal)
	return res.Path, res.Outcome.Found()
}

// Search выполняет поиск и возвращает исход вместе с диагностикой
func (pf *Pathfinder) Search(occ Occupancy, start, goal vec.Vec3Float) Result {
	res := pf.search(occ, start, goal)
	pf.metrics.observe(res)

	switch res.Outcome {
	case OutcomeBudgetExceeded:
		pf.logger.Warn("⏱️ Поиск %s → %s прерван: бюджет %d итераций исчерпан",
			start, goal, pf.cfg.MaxIterations)
	case OutcomeExhausted:
		pf.logger.Debug("🚫 Путь %s → %s не существует (раскрыто %d узлов)",
			start, goal, res.Expansions)
	case OutcomeGoalBlocked:
		pf.logger.Debug("🧱 Цель %s занята", goal)
	case OutcomeSuccess:
		pf.logger.Trace("✅ Путь %s → %s: %d ячеек, раскрыто %d узлов",
			start, goal, len(res.Cells), res.Expansions)
	}
	return res
}

func (pf *Pathfinder) search(occ Occupancy, start, goal vec.Vec3Float) Result {
	startCell := start.Floor()
	goalCell := goal.Floor()

	if startCell == goalCell {
		return Result{
			Outcome: OutcomeSameCell,
			Cells:   []vec.Vec3{goalCell},
			Path:    []vec.Vec3Float{goal},
		}
	}
	if occ.IsBlocked(goalCell) {
		return Result{Outcome: OutcomeGoalBlocked}
	}

	rules := NewRules(occ, pf.cfg)
	pool := newNodePool(256)
	open := &openList{pool: pool}

	first := pool.alloc(searchState{pos: startCell}, 0, rules.Heuristic(startCell, goalCell), noParent)
	open.push(first)

	expansions := 0
	for open.Len() > 0 {
		if expansions >= pf.cfg.MaxIterations {
			return Result{Outcome: OutcomeBudgetExceeded, Expansions: expansions}
		}

		cur := open.pop()
		curNode := pool.get(cur)
		curNode.closed = true
		expansions++

		if curNode.state.pos == goalCell {
			cells := pool.path(cur)
			return Result{
				Outcome:    OutcomeSuccess,
				Cells:      cells,
				Path:       centers(cells),
				Expansions: expansions,
			}
		}

		// curNode может стать недействительным после alloc - копируем нужное
		curState, curG := curNode.state, curNode.g
		it := rules.Expand(curState.pos, curState.drift)
		for m, ok := it.Next(); ok; m, ok = it.Next() {
			next := searchState{pos: m.To, drift: m.Drift}
			g := curG + m.Cost

			if idx, seen := pool.find(next); seen {
				n := pool.get(idx)
				if n.closed || g >= n.g {
					continue
				}
				n.g = g
				n.parent = cur
				open.fix(idx)
				continue
			}

			idx := pool.alloc(next, g, rules.Heuristic(m.To, goalCell), cur)
			open.push(idx)
		}
	}

	return Result{Outcome: OutcomeExhausted, Expansions: expansions}
}

func centers(cells []vec.Vec3) []vec.Vec3Float {
	out := make([]vec.Vec3Float, len(cells))
	for i, c := range cells {
		out[i] = c.Center()
	}
	return out
}
