package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelnav/internal/control"
	"github.com/annel0/voxelnav/internal/ingest"
	"github.com/annel0/voxelnav/internal/navigation"
	"github.com/annel0/voxelnav/internal/pathfinding"
	"github.com/annel0/voxelnav/internal/world"
)

type testServer struct {
	server *RestServer
	store  *world.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := world.NewStore(world.SurfaceApproximate)
	svc := ingest.NewService(ingest.NewApplier(store, nil), nil, "")
	nav := navigation.NewService(store, pathfinding.NewPathfinder(pathfinding.DefaultConfig(), nil))

	rs := NewRestServer(Config{
		NodeID:    "test-node",
		Ingest:    svc,
		Navigator: nav,
		Control:   control.NewService(nav, nil, "test-node", 8),
		Registry:  prometheus.NewRegistry(),
	})
	return &testServer{server: rs, store: store}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

// floorReport - площадка 5x1 на y=0 в формате сканера
const floorReport = `[
	{"x": 0, "y": 0, "z": 0, "name": "minecraft:stone"},
	{"x": 1, "y": 0, "z": 0, "name": "minecraft:stone"},
	{"x": 2, "y": 0, "z": 0, "name": "minecraft:stone"},
	{"x": 3, "y": 0, "z": 0, "name": "minecraft:stone"},
	{"x": 4, "y": 0, "z": 0, "name": "minecraft:stone"}
]`

func TestReport_CountsOnlyNewBlocks(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/report", floorReport)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ReportResponse{Status: "ok", NewBlocks: 5}, resp)

	w = ts.do(t, http.MethodPost, "/api/report", `[{"x": 0, "y": 0, "z": 0, "name": "minecraft:dirt"}]`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.NewBlocks)

	w = ts.do(t, http.MethodGet, "/api/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	var blocks []ingest.BlockRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &blocks))
	require.Len(t, blocks, 5)
	assert.Equal(t, "minecraft:stone", blocks[0].Name, "первое вхождение не перезаписывается")
}

func TestReport_RejectsNonArray(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/report", `{"x": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestPath_FindsAndSimplifies(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/report", floorReport)

	w := ts.do(t, http.MethodGet, "/api/path?from=0.5,1,0.5&to=4.5,1,0.5&dense=1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PathResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Outcome)
	assert.Len(t, resp.Waypoints, 2)
	assert.Len(t, resp.Dense, 5)
	assert.Equal(t, uint64(1), resp.Version)
}

func TestPath_ErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/report", floorReport)

	tests := []struct {
		name    string
		query   string
		status  int
		outcome string
	}{
		{"цель занята", "from=0.5,1,0.5&to=2.5,0.5,0.5", http.StatusConflict, "goal_blocked"},
		{"цель недостижима", "from=0.5,1,0.5&to=30.5,1,0.5", http.StatusNotFound, "exhausted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, "/api/path?"+tt.query, "")
			assert.Equal(t, tt.status, w.Code)

			var resp PathResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.outcome, resp.Outcome)
			assert.Equal(t, "error", resp.Status)
		})
	}

	for _, query := range []string{
		"from=1,2&to=0,0,0",
		"from=NaN,1,0.5&to=NaN,1,0.5",
		"from=0.5,1,0.5&to=1e300,1,0.5",
		"from=-Inf,1,0.5&to=4.5,1,0.5",
	} {
		w := ts.do(t, http.MethodGet, "/api/path?"+query, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
		assert.Contains(t, w.Body.String(), `"status":"error"`, query)
	}
}

func TestRemoveBlockAndReset(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/report", floorReport)

	w := ts.do(t, http.MethodDelete, "/api/blocks?at=2.5,0.5,0.5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, ts.store.Snapshot().Len())

	w = ts.do(t, http.MethodDelete, "/api/blocks?at=2.5,0.5,0.5", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, ts.store.Snapshot().Len())
	assert.Equal(t, uint64(3), ts.store.Snapshot().Version())
}

func TestWorldEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/report", floorReport)

	w := ts.do(t, http.MethodGet, "/api/world", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp WorldResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Cells)
	assert.Equal(t, 5, resp.Surfaces)
	assert.Equal(t, "approximate", resp.Policy)
	require.NotNil(t, resp.Max)
	assert.Equal(t, 4, resp.Max.X)

	w = ts.do(t, http.MethodGet, "/api/world/cells?min=1,0,0&max=2,0,0", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cells []ingest.BlockRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cells))
	assert.Len(t, cells, 2)

	w = ts.do(t, http.MethodGet, "/api/world/cells?min=0,0,0&max=1000,1000,1000", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorldCells_RejectsWrappingBox(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/report", floorReport)

	// 2^21 * 2^21 * 2^22 ячеек: произведение в int обнуляется
	done := make(chan int, 1)
	go func() {
		done <- ts.do(t, http.MethodGet, "/api/world/cells?min=0,0,0&max=2097151,2097151,4194303", "").Code
	}()
	select {
	case code := <-done:
		assert.Equal(t, http.StatusBadRequest, code)
	case <-time.After(2 * time.Second):
		t.Fatal("запрос огромного бокса не завершился")
	}
}

func TestHealthStatsAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test-node")

	w = ts.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp GenericResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	w = ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "voxelnav_api_http_request_duration_seconds")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodOptions, "/api/report", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCommands_QueueAndPop(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/commands", `{"label": "miner", "commands": ["forward", {"type": "scan"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var queued QueueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queued))
	assert.Equal(t, 2, queued.Queued)

	w = ts.do(t, http.MethodGet, "/api/commands?label=miner", "")
	assert.JSONEq(t, `{"commands": ["forward", {"type": "scan"}]}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/command?label=miner", "")
	assert.JSONEq(t, `{"command": "forward"}`, w.Body.String())
	ts.do(t, http.MethodGet, "/api/command?label=miner", "")
	w = ts.do(t, http.MethodGet, "/api/command?label=miner", "")
	assert.JSONEq(t, `{"command": null}`, w.Body.String(), "пустая очередь")

	w = ts.do(t, http.MethodGet, "/api/commands?label=nobody", "")
	assert.JSONEq(t, `{"commands": []}`, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/commands", `{"commands": ["up"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "без метки")

	w = ts.do(t, http.MethodPost, "/api/commands", `{"label": "miner", "commands": ["1","2","3","4","5","6","7","8","9"]}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	ts.do(t, http.MethodPost, "/api/commands", `{"label": "miner", "commands": ["up"]}`)
	w = ts.do(t, http.MethodDelete, "/api/commands?label=miner", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"removed":1`)
}

func TestAgentStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/status", `{
		"label": "miner", "position": {"x": 0.5, "y": 1, "z": 0.5}, "direction": "east",
		"isBusy": false, "fuelLevel": "unlimited", "maxFuel": "unlimited",
		"inventorySlotsUsed": 3, "inventorySlotsTotal": 16
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/status/miner", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st control.AgentStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "east", st.Direction)
	assert.Equal(t, control.FuelUnlimited, st.FuelLevel)
	assert.Equal(t, "test-node", st.Node)

	w = ts.do(t, http.MethodGet, "/api/status/all", "")
	require.Equal(t, http.StatusOK, w.Code)
	var all []control.AgentStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 1)

	w = ts.do(t, http.MethodGet, "/api/status/builder", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/status", `{"direction": "east"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "без метки")

	w = ts.do(t, http.MethodPost, "/api/status", `{"label": "miner", "position": {"x": 1e300, "y": 0, "z": 0}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDispatchRoute(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/report", floorReport)
	ts.do(t, http.MethodPost, "/api/status", `{"label": "miner", "position": {"x": 0.5, "y": 1, "z": 0.5}, "direction": "north"}`)

	w := ts.do(t, http.MethodPost, "/api/commands/route", `{"label": "miner", "to": {"x": 2.5, "y": 1, "z": 0.5}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Outcome)
	assert.Equal(t, []string{"turnRight", "forward", "forward"}, resp.Commands)
	assert.Equal(t, "east", resp.Facing)
	assert.Equal(t, 3, resp.Queued)

	w = ts.do(t, http.MethodGet, "/api/commands?label=miner", "")
	assert.JSONEq(t, `{"commands": ["turnRight", "forward", "forward"]}`, w.Body.String())

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"без цели", `{"label": "miner"}`, http.StatusBadRequest},
		{"неизвестный агент", `{"label": "ghost", "to": {"x": 2.5, "y": 1, "z": 0.5}}`, http.StatusBadRequest},
		{"неизвестное направление", `{"label": "miner", "to": {"x": 2.5, "y": 1, "z": 0.5}, "facing": "up"}`, http.StatusBadRequest},
		{"цель занята", `{"label": "miner", "to": {"x": 2.5, "y": 0.5, "z": 0.5}}`, http.StatusConflict},
		{"цель недостижима", `{"label": "miner", "to": {"x": 30.5, "y": 1, "z": 0.5}}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/commands/route", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"status":"error"`)
		})
	}
}
