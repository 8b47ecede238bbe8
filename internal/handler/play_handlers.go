package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (h *Handler) listClasses(c echo.Context) error {
	return c.JSON(http.StatusOK, classesResponse{Classes: h.play.Classes()})
}

func (h *Handler) startPlay(c echo.Context) error {
	var req startPlayRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "%v", err)
	}
	snap, err := h.play.Start(c.Request().Context(), req.StoryID, req.Preview)
	if err != nil {
		h.logger.Warn("Failed to start play session", zap.Stringer("storyID", req.StoryID), zap.Error(err))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, snap)
}

// getPlay возвращает снапшот, при необходимости поднимая сессию из бэкенда.
func (h *Handler) getPlay(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	snap, err := h.play.Resume(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) abandonPlay(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	snap, err := h.play.Abandon(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) selectClass(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	var req selectClassRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "%v", err)
	}
	snap, err := h.play.SelectClass(id, req.Class)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) choose(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	var req chooseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "%v", err)
	}
	snap, err := h.play.Choose(c.Request().Context(), id, req.PageID, *req.ChoiceIndex)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) chooseHotspot(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	var req chooseHotspotRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body: %v", err)
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "%v", err)
	}
	snap, err := h.play.ChooseHotspot(c.Request().Context(), id, req.PageID, req.HotspotID)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) roll(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	snap, err := h.play.Roll(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}
