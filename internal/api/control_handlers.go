package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxelnav/internal/control"
	"github.com/annel0/voxelnav/internal/pathfinding"
	"github.com/annel0/voxelnav/internal/vec"
)

// QueueRequest - команды для агента. Команда - произвольный JSON, обычно строка.
type QueueRequest struct {
	Label    string            `json:"label" binding:"required"`
	Commands []json.RawMessage `json:"commands"`
}

// QueueResponse - результат постановки команд
type QueueResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Queued  int    `json:"queued"`
}

// CommandsResponse - очередь агента
type CommandsResponse struct {
	Commands []json.RawMessage `json:"commands"`
}

// CommandResponse - следующая команда; null, если очередь пуста
type CommandResponse struct {
	Command json.RawMessage `json:"command"`
}

// DispatchResponse - маршрут, поставленный агенту
type DispatchResponse struct {
	Status    string          `json:"status"`
	Outcome   string          `json:"outcome,omitempty"`
	Waypoints []vec.Vec3Float `json:"waypoints,omitempty"`
	Commands  []string        `json:"commands,omitempty"`
	Facing    string          `json:"facing,omitempty"`
	Queued    int             `json:"queued"`
	Message   string          `json:"message,omitempty"`
}

func (rs *RestServer) setupControlRoutes(api *gin.RouterGroup) {
	if rs.control == nil {
		return
	}
	// Очереди команд агентов
	api.POST("/commands", rs.handleQueueCommands)
	api.GET("/commands", rs.handleListCommands)
	api.DELETE("/commands", rs.handleClearCommands)
	api.POST("/commands/route", rs.handleDispatchRoute)
	api.GET("/command", rs.handleNextCommand)

	// Статусы агентов
	api.POST("/status", rs.handleAgentStatus)
	api.GET("/status/all", rs.handleAllStatuses)
	api.GET("/status/:label", rs.handleGetStatus)
}

// handleQueueCommands добавляет команды в конец очереди агента
func (rs *RestServer) handleQueueCommands(c *gin.Context) {
	var req QueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, QueueResponse{Status: "error", Message: "Не указана метка агента"})
		return
	}

	n, err := rs.control.Enqueue(req.Label, req.Commands)
	if err != nil {
		c.JSON(controlStatus(err), QueueResponse{Status: "error", Message: err.Error(), Queued: n})
		return
	}
	c.JSON(http.StatusOK, QueueResponse{Status: "ok", Message: "Команды поставлены в очередь", Queued: n})
}

// handleListCommands возвращает очередь агента ?label= без изменения
func (rs *RestServer) handleListCommands(c *gin.Context) {
	c.JSON(http.StatusOK, CommandsResponse{Commands: rs.control.Pending(c.Query("label"))})
}

// handleNextCommand снимает следующую команду агента ?label=
func (rs *RestServer) handleNextCommand(c *gin.Context) {
	cmd, _ := rs.control.Next(c.Query("label"))
	c.JSON(http.StatusOK, CommandResponse{Command: cmd})
}

// handleClearCommands очищает очередь агента ?label=
func (rs *RestServer) handleClearCommands(c *gin.Context) {
	label := c.Query("label")
	if label == "" {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: control.ErrEmptyLabel.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Очередь очищена",
		Data:    gin.H{"removed": rs.control.Clear(label)},
	})
}

// handleDispatchRoute ищет маршрут и ставит агенту команды движения
func (rs *RestServer) handleDispatchRoute(c *gin.Context) {
	var req control.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, DispatchResponse{Status: "error", Message: "Нужны label и to"})
		return
	}

	d, err := rs.control.DispatchRoute(c.Request.Context(), req)
	resp := DispatchResponse{Status: "ok"}
	if d != nil {
		if d.Route != nil {
			resp.Outcome = d.Route.Outcome.String()
			resp.Waypoints = d.Route.Waypoints
		}
		resp.Commands = d.Commands
		resp.Facing = d.Facing.String()
		resp.Queued = d.Queued
	}
	if err != nil {
		resp.Status = "error"
		resp.Message = err.Error()
		c.JSON(controlStatus(err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleAgentStatus принимает статус агента
func (rs *RestServer) handleAgentStatus(c *gin.Context) {
	var st control.AgentStatus
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Некорректный статус"})
		return
	}
	if err := rs.control.UpdateStatus(c.Request.Context(), st); err != nil {
		c.JSON(controlStatus(err), GenericResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Статус принят"})
}

// handleGetStatus возвращает последний статус агента
func (rs *RestServer) handleGetStatus(c *gin.Context) {
	st, ok := rs.control.Status(c.Param("label"))
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: control.ErrUnknownAgent.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

// handleAllStatuses возвращает статусы всех агентов
func (rs *RestServer) handleAllStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, rs.control.Statuses())
}

// controlStatus: ошибки поиска как в /api/path, переполнение очереди - 429,
// ошибки запроса - 400
func controlStatus(err error) int {
	switch {
	case errors.Is(err, pathfinding.ErrNoPath):
		return statusForSearchError(err)
	case errors.Is(err, control.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, control.ErrEmptyLabel),
		errors.Is(err, control.ErrNoGoal),
		errors.Is(err, control.ErrNoStart),
		errors.Is(err, control.ErrNoFacing),
		errors.Is(err, control.ErrUnknownFacing),
		errors.Is(err, vec.ErrInvalidPoint):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
