package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gamebook-server/internal/dice"
	"gamebook-server/internal/editor"
	"gamebook-server/internal/handler"
	"gamebook-server/internal/markup"
	"gamebook-server/internal/memstore"
	"gamebook-server/internal/metrics"
	"gamebook-server/internal/models"
	"gamebook-server/internal/play"
	"gamebook-server/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	e       *echo.Echo
	store   *memstore.Store
	storyID uuid.UUID
	a, b, c uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{store: store, storyID: uuid.New(), a: uuid.New(), b: uuid.New(), c: uuid.New()}
	store.Seed(models.Story{ID: f.storyID, Title: "Le marais"}, []models.Page{
		{ID: f.a, Content: "Le bord du marais", Choices: []models.Choice{{Text: "Avancer", TargetPageID: f.b}}},
		{ID: f.b, Content: "La cabane"},
		{ID: f.c, Content: "Englouti", IsEnding: true, EndingType: models.EndingFailure},
	})

	logger := zap.NewNop()
	editorSvc := service.NewEditorService(service.EditorDeps{Store: store, Layout: store}, service.EditorConfig{
		Options:     editor.DefaultOptions(),
		Delay:       time.Hour,
		MaxParallel: 2,
		SaveOnClose: true,
	}, logger)
	playSvc := service.NewPlayService(play.Deps{
		Backend:  store,
		Engine:   dice.NewSeededEngine(7),
		Resolver: dice.NewResolver(dice.PrecedenceExplicit),
		Markup:   markup.NewCache(16),
	}, logger)

	f.e = echo.New()
	handler.NewHandler(editorSvc, playSvc, nil, nil, metrics.New().Handler(), logger).RegisterRoutes(f.e)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, strings.NewReader(string(raw)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gamebook_")
}

func TestEditorRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/editor/sessions", map[string]string{"story_id": f.storyID.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var opened struct {
		SessionID uuid.UUID        `json:"session_id"`
		Graph     models.FlowGraph `json:"graph"`
		SaveState models.SaveState `json:"save_state"`
	}
	decode(t, rec, &opened)
	assert.Len(t, opened.Graph.Nodes, 3)
	assert.Equal(t, models.SaveStateClean, opened.SaveState)
	base := "/editor/sessions/" + opened.SessionID.String()

	t.Run("Соединение и переименование ребра", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/edges", map[string]string{"source": f.b.String(), "target": f.c.String()})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var edge models.FlowEdge
		decode(t, rec, &edge)
		assert.Equal(t, models.EdgeID(f.b, f.c), edge.ID)
		assert.Equal(t, editor.DefaultChoiceLabel, edge.Label)

		rec = f.do(t, http.MethodPatch, base+"/edges/"+edge.ID, map[string]string{"label": "Plonger"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &edge)
		assert.Equal(t, "Plonger", edge.Label)

		rec = f.do(t, http.MethodPost, base+"/edges", map[string]string{"source": f.b.String(), "target": f.c.String()})
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = f.do(t, http.MethodDelete, base+"/edges/"+edge.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = f.do(t, http.MethodDelete, base+"/edges/"+edge.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Некорректный идентификатор ребра", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, base+"/edges/e-nope", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Правка страницы и сохранение", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, base+"/pages/"+f.b.String(), map[string]string{"content": "La cabane abandonnée"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(t, http.MethodPut, base+"/pages/"+f.b.String()+"/position", models.Position{X: 40, Y: 80})
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(t, http.MethodGet, base+"/save-state", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var status service.SaveStatus
		decode(t, rec, &status)
		assert.Equal(t, models.SaveStatePending, status.State)

		rec = f.do(t, http.MethodPost, base+"/save", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &status)
		assert.Equal(t, models.SaveStateClean, status.State)

		page, err := f.store.GetPage(t.Context(), f.b)
		require.NoError(t, err)
		assert.Equal(t, "La cabane abandonnée", page.Content)
		positions, err := f.store.GetPositions(t.Context(), f.storyID)
		require.NoError(t, err)
		assert.Equal(t, models.Position{X: 40, Y: 80}, positions[f.b])
	})

	t.Run("Инвариант концовки", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/edges", map[string]string{"source": f.c.String(), "target": f.a.String()})
		assert.Equal(t, http.StatusConflict, rec.Code)
		var apiErr handler.APIError
		decode(t, rec, &apiErr)
		assert.NotEmpty(t, apiErr.Message)
	})

	t.Run("Зоны", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/pages/"+f.a.String()+"/hotspots", map[string]interface{}{
			"rect":           map[string]float64{"x": 100, "y": 50, "width": 200, "height": 100},
			"container":      map[string]float64{"width": 400, "height": 250},
			"label":          "Sentier",
			"target_page_id": f.b.String(),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var hotspot models.Hotspot
		decode(t, rec, &hotspot)
		assert.InDelta(t, 25, hotspot.X, 0.001)
		assert.InDelta(t, 20, hotspot.Y, 0.001)

		rec = f.do(t, http.MethodPost, base+"/pages/"+f.a.String()+"/hotspots", map[string]interface{}{
			"rect":           map[string]float64{"x": 1, "y": 1, "width": 1, "height": 1},
			"container":      map[string]float64{"width": 0, "height": 0},
			"target_page_id": f.b.String(),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		hotspotPath := fmt.Sprintf("%s/pages/%s/hotspots/%s", base, f.a, hotspot.ID)
		rec = f.do(t, http.MethodDelete, hotspotPath, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = f.do(t, http.MethodDelete, hotspotPath, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Добавление и удаление страницы", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/pages", nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var node models.FlowNode
		decode(t, rec, &node)

		rec = f.do(t, http.MethodGet, base+"/pages/"+node.ID.String(), nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodDelete, base+"/pages/"+node.ID.String(), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = f.do(t, http.MethodGet, base+"/pages/"+node.ID.String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Целостность и история", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, base+"/integrity", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var report models.IntegrityReport
		decode(t, rec, &report)
		assert.Contains(t, report.Unreachable, f.c)

		rec = f.do(t, http.MethodPatch, base+"/story", map[string]string{"title": "Le grand marais"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var story models.Story
		decode(t, rec, &story)
		assert.Equal(t, "Le grand marais", story.Title)
	})

	t.Run("Закрытие сессии", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, base, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = f.do(t, http.MethodGet, base+"/graph", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestEditorRouteErrors(t *testing.T) {
	f := newFixture(t)

	t.Run("Неизвестная история", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/editor/sessions", map[string]string{"story_id": uuid.NewString()})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Пустой идентификатор истории", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/editor/sessions", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Некорректный UUID в пути", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/editor/sessions/abc/graph", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Неизвестная сессия", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/editor/sessions/"+uuid.NewString()+"/save-state", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPlayRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/play/sessions", map[string]interface{}{"story_id": f.storyID.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap play.Snapshot
	decode(t, rec, &snap)
	assert.Equal(t, f.a, snap.Page.ID)
	base := "/play/sessions/" + snap.SessionID.String()

	t.Run("Проверка тела запроса", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/choices", map[string]string{"page_id": f.a.String()})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Выбор вне диапазона", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/choices", map[string]interface{}{"page_id": f.a.String(), "choice_index": 3})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Бросок без проверки", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/roll", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Выбор переводит на следующую страницу", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/choices", map[string]interface{}{"page_id": f.a.String(), "choice_index": 0})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var snap play.Snapshot
		decode(t, rec, &snap)
		assert.Equal(t, f.b, snap.Page.ID)

		rec = f.do(t, http.MethodGet, base, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &snap)
		assert.Equal(t, f.b, snap.Page.ID)
	})

	t.Run("Уход со страницы", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, base, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var snap play.Snapshot
		decode(t, rec, &snap)
		assert.Equal(t, play.StateEnded, snap.State)
		assert.Equal(t, models.SessionAbandoned, snap.Status)

		rec = f.do(t, http.MethodDelete, base, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Неизвестная сессия", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/play/sessions/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Список классов", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/play/classes", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Classes []string `json:"classes"`
		}
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Classes)
	})
}
