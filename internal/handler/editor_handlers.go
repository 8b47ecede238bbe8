package handler

import (
	"net/http"

	"gamebook-server/internal/editor"
	"gamebook-server/internal/models"
	"gamebook-server/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// editorSession достает сессию редактора по параметру :id.
func (h *Handler) editorSession(c echo.Context) (*service.EditorSession, error) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil, err
	}
	return h.editor.Get(id)
}

func (h *Handler) openEditorSession(c echo.Context) error {
	var req openEditorRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "%v", err)
	}
	sess, err := h.editor.Open(c.Request().Context(), req.StoryID)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, newEditorSessionResponse(sess))
}

// closeEditorSession закрывает сессию. Ошибка финального сохранения
// возвращается клиенту, но сессия уже закрыта.
func (h *Handler) closeEditorSession(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	if err := h.editor.Close(c.Request().Context(), id); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) getGraph(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, sess.Model.Graph())
}

func (h *Handler) getIntegrity(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, sess.Model.Integrity())
}

func (h *Handler) saveEditorSession(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	if err := h.editor.Save(c.Request().Context(), id); err != nil {
		h.logger.Warn("Explicit save failed", zap.Stringer("editorSessionID", id), zap.Error(err))
		return handleServiceError(c, err)
	}
	status, err := h.editor.SaveStatus(id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (h *Handler) getSaveState(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	status, err := h.editor.SaveStatus(id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (h *Handler) updateStory(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	var fields models.StoryFields
	if err := c.Bind(&fields); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	story, err := sess.Model.UpdateStory(c.Request().Context(), fields)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, story)
}

// --- Страницы --- //

func (h *Handler) addPage(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	var req addPageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	node, err := sess.Model.AddPage(c.Request().Context(), req.Position)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, node)
}

func (h *Handler) getPage(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	pageID, err := parseUUIDParam(c, "pageId")
	if err != nil {
		return handleServiceError(c, err)
	}
	page, err := sess.Model.Page(pageID)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) updatePage(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	pageID, err := parseUUIDParam(c, "pageId")
	if err != nil {
		return handleServiceError(c, err)
	}
	var fields models.PageFields
	if err := c.Bind(&fields); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	page, err := sess.Model.UpdateNodeData(pageID, fields)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) deletePage(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	pageID, err := parseUUIDParam(c, "pageId")
	if err != nil {
		return handleServiceError(c, err)
	}
	if err := sess.Model.DeletePage(c.Request().Context(), pageID); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) movePage(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	pageID, err := parseUUIDParam(c, "pageId")
	if err != nil {
		return handleServiceError(c, err)
	}
	var pos models.Position
	if err := c.Bind(&pos); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	if err := sess.Model.MoveNode(pageID, pos); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Ребра --- //

func (h *Handler) connect(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "%v", err)
	}
	edge, err := sess.Model.Connect(req.Source, req.Target)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, edge)
}

func (h *Handler) updateEdge(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	edgeID := c.Param("edgeId")
	source, target, err := parseEdgeID(edgeID)
	if err != nil {
		return handleServiceError(c, err)
	}
	var req updateEdgeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	edge, err := sess.Model.UpdateEdgeLabel(edgeID, req.Label, source, target)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, edge)
}

func (h *Handler) deleteEdge(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	edgeID := c.Param("edgeId")
	source, target, err := parseEdgeID(edgeID)
	if err != nil {
		return handleServiceError(c, err)
	}
	if err := sess.Model.DeleteEdge(edgeID, source, target); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Зоны --- //

func (h *Handler) addHotspot(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	pageID, err := parseUUIDParam(c, "pageId")
	if err != nil {
		return handleServiceError(c, err)
	}
	var req addHotspotRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "%v", err)
	}
	hotspot, err := sess.Model.AddHotspot(pageID, editor.HotspotInput{
		Rect:         req.Rect,
		Container:    req.Container,
		Label:        req.Label,
		TargetPageID: req.TargetPageID,
		DiceRoll:     req.DiceRoll,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, hotspot)
}

func (h *Handler) updateHotspot(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	pageID, err := parseUUIDParam(c, "pageId")
	if err != nil {
		return handleServiceError(c, err)
	}
	hotspotID, err := parseUUIDParam(c, "hotspotId")
	if err != nil {
		return handleServiceError(c, err)
	}
	var hotspot models.Hotspot
	if err := c.Bind(&hotspot); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	hotspot.ID = hotspotID
	updated, err := sess.Model.UpdateHotspot(pageID, hotspot)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) removeHotspot(c echo.Context) error {
	sess, err := h.editorSession(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	pageID, err := parseUUIDParam(c, "pageId")
	if err != nil {
		return handleServiceError(c, err)
	}
	hotspotID, err := parseUUIDParam(c, "hotspotId")
	if err != nil {
		return handleServiceError(c, err)
	}
	if err := sess.Model.RemoveHotspot(pageID, hotspotID); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
