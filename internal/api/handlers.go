package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxelnav/internal/ingest"
	"github.com/annel0/voxelnav/internal/pathfinding"
	"github.com/annel0/voxelnav/internal/vec"
	"github.com/annel0/voxelnav/internal/world"
)

// maxBoxCells - предел объёма запроса /api/world/cells
const maxBoxCells = 1 << 20

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ReportResponse - ответ на отчёт сканера
type ReportResponse struct {
	Status    string `json:"status"`
	NewBlocks int    `json:"new_blocks"`
	Message   string `json:"message,omitempty"`
}

// PathResponse - ответ на запрос маршрута
type PathResponse struct {
	Status     string          `json:"status"`
	Outcome    string          `json:"outcome"`
	Waypoints  []vec.Vec3Float `json:"waypoints"`
	Dense      []vec.Vec3Float `json:"dense,omitempty"`
	Expansions int             `json:"expansions"`
	Version    uint64          `json:"version"`
	Cached     bool            `json:"cached"`
	Message    string          `json:"message,omitempty"`
}

// WorldResponse - сводка по текущему снимку мира
type WorldResponse struct {
	Version  uint64    `json:"version"`
	Cells    int       `json:"cells"`
	Surfaces int       `json:"surfaces"`
	Policy   string    `json:"surface_policy"`
	Min      *vec.Vec3 `json:"min,omitempty"`
	Max      *vec.Vec3 `json:"max,omitempty"`
}

// handleReport принимает JSON-массив блоков. Уже известные позиции не перезаписываются.
func (rs *RestServer) handleReport(c *gin.Context) {
	records, err := ingest.ParseReport(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ReportResponse{Status: "error", Message: "Некорректные данные"})
		return
	}

	n, err := rs.ingest.Report(c.Request.Context(), records)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ReportResponse{Status: "error", NewBlocks: n, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ReportResponse{Status: "ok", NewBlocks: n})
}

// handleGetReport возвращает все известные блоки
func (rs *RestServer) handleGetReport(c *gin.Context) {
	c.JSON(http.StatusOK, rs.ingest.Blocks())
}

// handleRemoveBlock удаляет блок в ячейке точки ?at=x,y,z
func (rs *RestServer) handleRemoveBlock(c *gin.Context) {
	at, err := vec.ParseVec3Float(c.Query("at"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Параметр at: " + err.Error()})
		return
	}

	removed, err := rs.ingest.Remove(c.Request.Context(), at)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Блока в ячейке нет"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Блок удалён",
		Data:    gin.H{"cell": at.Floor()},
	})
}

// handleReset очищает мир
func (rs *RestServer) handleReset(c *gin.Context) {
	if err := rs.ingest.Reset(c.Request.Context(), c.Query("reason")); err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Мир очищен",
		Data:    gin.H{"version": rs.navigator.World().Snapshot().Version()},
	})
}

// handlePath ищет маршрут ?from=x,y,z&to=x,y,z[&dense=1]
func (rs *RestServer) handlePath(c *gin.Context) {
	from, err := vec.ParseVec3Float(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, PathResponse{Status: "error", Message: "Параметр from: " + err.Error()})
		return
	}
	to, err := vec.ParseVec3Float(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, PathResponse{Status: "error", Message: "Параметр to: " + err.Error()})
		return
	}

	route, err := rs.navigator.FindRoute(c.Request.Context(), from, to)
	resp := PathResponse{
		Status:     "ok",
		Outcome:    route.Outcome.String(),
		Waypoints:  route.Waypoints,
		Expansions: route.Expansions,
		Version:    route.Version,
		Cached:     route.Cached,
	}
	if c.Query("dense") == "1" {
		resp.Dense = route.Dense
	}
	if err != nil {
		resp.Status = "error"
		resp.Message = err.Error()
		c.JSON(statusForSearchError(err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// statusForSearchError различает занятую цель, недостижимую цель и исчерпанный бюджет
func statusForSearchError(err error) int {
	switch {
	case errors.Is(err, pathfinding.ErrGoalBlocked):
		return http.StatusConflict
	case errors.Is(err, pathfinding.ErrBudgetExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pathfinding.ErrUnreachable):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// handleWorld возвращает сводку по миру
func (rs *RestServer) handleWorld(c *gin.Context) {
	store := rs.navigator.World()
	snap := store.Snapshot()

	resp := WorldResponse{
		Version:  snap.Version(),
		Cells:    snap.Len(),
		Surfaces: snap.SurfaceCount(),
		Policy:   store.Policy().String(),
	}
	if lo, hi, ok := snap.Bounds(); ok {
		resp.Min, resp.Max = &lo, &hi
	}
	c.JSON(http.StatusOK, resp)
}

// handleWorldCells возвращает блоки в боксе ?min=x,y,z&max=x,y,z
func (rs *RestServer) handleWorldCells(c *gin.Context) {
	lo, err := vec.ParseVec3Float(c.Query("min"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Параметр min: " + err.Error()})
		return
	}
	hi, err := vec.ParseVec3Float(c.Query("max"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Параметр max: " + err.Error()})
		return
	}

	a, b := lo.Floor(), hi.Floor()
	if !world.BoxWithin(a, b, maxBoxCells) {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Слишком большой бокс"})
		return
	}

	cells := rs.navigator.World().Snapshot().QueryBox(a, b)
	c.JSON(http.StatusOK, ingest.RecordsFromCells(cells))
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	snap := rs.navigator.World().Snapshot()
	stats["world"] = gin.H{
		"version":  snap.Version(),
		"cells":    snap.Len(),
		"surfaces": snap.SurfaceCount(),
	}
	if rs.cache != nil {
		stats["path_cache"] = rs.cache.GetMetrics()
	}
	if rs.bus != nil {
		stats["eventbus"] = rs.bus.Metrics()
	}
	if rs.control != nil {
		stats["agents"] = len(rs.control.Statuses())
	}

	stats["server"] = rs.metrics.Snapshot()
	stats["memory_details"] = rs.metrics.GetDetailedMemoryStats()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"node":   rs.nodeID,
		"time":   time.Now().Unix(),
	})
}
