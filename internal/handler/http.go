package handler

import (
	"errors"
	"fmt"
	"net/http"

	"gamebook-server/internal/models"
	"gamebook-server/internal/service"
	"gamebook-server/internal/websocket"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// APIError стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

// Handler HTTP-поверхность редактора и прохождений.
type Handler struct {
	editor   service.EditorService
	play     service.PlayService
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	metrics  http.Handler
	logger   *zap.Logger
}

// NewHandler создает обработчик. hub и metrics могут быть nil, тогда
// соответствующие маршруты не регистрируются.
func NewHandler(editor service.EditorService, play service.PlayService, hub *websocket.Hub, wsOrigins []string, metrics http.Handler, logger *zap.Logger) *Handler {
	return &Handler{
		editor:   editor,
		play:     play,
		hub:      hub,
		upgrader: websocket.NewUpgrader(wsOrigins),
		metrics:  metrics,
		logger:   logger.Named("Handler"),
	}
}

// RegisterRoutes регистрирует все маршруты.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.health)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
	if h.hub != nil {
		e.GET("/ws", h.serveWS)
	}

	editor := e.Group("/editor/sessions")
	{
		editor.POST("", h.openEditorSession)
		editor.DELETE("/:id", h.closeEditorSession)
		editor.GET("/:id/graph", h.getGraph)
		editor.GET("/:id/integrity", h.getIntegrity)
		editor.POST("/:id/save", h.saveEditorSession)
		editor.GET("/:id/save-state", h.getSaveState)
		editor.PATCH("/:id/story", h.updateStory)

		editor.POST("/:id/pages", h.addPage)
		editor.GET("/:id/pages/:pageId", h.getPage)
		editor.PATCH("/:id/pages/:pageId", h.updatePage)
		editor.DELETE("/:id/pages/:pageId", h.deletePage)
		editor.PUT("/:id/pages/:pageId/position", h.movePage)

		editor.POST("/:id/edges", h.connect)
		editor.PATCH("/:id/edges/:edgeId", h.updateEdge)
		editor.DELETE("/:id/edges/:edgeId", h.deleteEdge)

		editor.POST("/:id/pages/:pageId/hotspots", h.addHotspot)
		editor.PUT("/:id/pages/:pageId/hotspots/:hotspotId", h.updateHotspot)
		editor.DELETE("/:id/pages/:pageId/hotspots/:hotspotId", h.removeHotspot)
	}

	play := e.Group("/play")
	{
		play.GET("/classes", h.listClasses)
		play.POST("/sessions", h.startPlay)
		play.GET("/sessions/:id", h.getPlay)
		play.DELETE("/sessions/:id", h.abandonPlay)
		play.POST("/sessions/:id/class", h.selectClass)
		play.POST("/sessions/:id/choices", h.choose)
		play.POST("/sessions/:id/hotspots", h.chooseHotspot)
		play.POST("/sessions/:id/roll", h.roll)
	}
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// serveWS подписывает соединение на уведомления сессии редактора.
func (h *Handler) serveWS(c echo.Context) error {
	sessionID, err := uuid.Parse(c.QueryParam("session_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "session_id query parameter must be a valid UUID"})
	}
	if _, err := h.editor.Get(sessionID); err != nil {
		return handleServiceError(c, err)
	}
	// При ошибке upgrader уже ответил клиенту
	_ = h.hub.ServeWS(h.upgrader, c.Response(), c.Request(), sessionID)
	return nil
}

// parseUUIDParam читает UUID из параметра пути.
func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: parameter %s must be a valid UUID", models.ErrInvalidInput, name)
	}
	return id, nil
}

// handleServiceError переводит ошибки доменного слоя в HTTP-ответ.
func handleServiceError(c echo.Context, err error) error {
	var statusCode int
	switch {
	case errors.Is(err, models.ErrEditorSessionNotFound),
		errors.Is(err, models.ErrSessionNotFound),
		errors.Is(err, models.ErrPageNotFound),
		errors.Is(err, models.ErrEdgeNotFound),
		errors.Is(err, models.ErrHotspotNotFound),
		errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrChoiceOutOfRange),
		errors.Is(err, models.ErrUnknownClass):
		statusCode = http.StatusBadRequest
	case errors.Is(err, models.ErrValidation):
		statusCode = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrStalePage),
		errors.Is(err, models.ErrChoiceUnavailable),
		errors.Is(err, models.ErrNoPendingRoll),
		errors.Is(err, models.ErrRollPending),
		errors.Is(err, models.ErrSessionEnded),
		errors.Is(err, models.ErrClassNotSelected),
		errors.Is(err, models.ErrClassAlreadyBound),
		errors.Is(err, models.ErrNoChoiceForTarget),
		errors.Is(err, models.ErrDuplicateTarget),
		errors.Is(err, models.ErrEndingHasChoices),
		errors.Is(err, models.ErrSelfLoop),
		errors.Is(err, models.ErrClosed):
		statusCode = http.StatusConflict
	case errors.Is(err, models.ErrNetwork):
		statusCode = http.StatusBadGateway
	default:
		return c.JSON(http.StatusInternalServerError, APIError{Message: "Internal server error"})
	}

	msg := models.UserMessage(err)
	if msg == "" {
		msg = err.Error()
	}
	return c.JSON(statusCode, APIError{Message: msg})
}

func badRequest(c echo.Context, format string, args ...interface{}) error {
	return c.JSON(http.StatusBadRequest, APIError{Message: fmt.Sprintf(format, args...)})
}
