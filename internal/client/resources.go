package client

import (
	"context"
	"fmt"
	"net/http"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

func (c *Client) GetStory(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	var story models.Story
	if err := c.do(ctx, "getStory", http.MethodGet, "/stories/"+id.String(), nil, &story); err != nil {
		return nil, err
	}
	return &story, nil
}

func (c *Client) CreateStory(ctx context.Context, fields models.StoryFields) (*models.Story, error) {
	var story models.Story
	if err := c.do(ctx, "createStory", http.MethodPost, "/stories", fields, &story); err != nil {
		return nil, err
	}
	return &story, nil
}

// UpdateStory может вернуть nil без ошибки, если бэкенд ответил 204.
func (c *Client) UpdateStory(ctx context.Context, id uuid.UUID, fields models.StoryFields) (*models.Story, error) {
	var story *models.Story
	if err := c.do(ctx, "updateStory", http.MethodPatch, "/stories/"+id.String(), fields, &story); err != nil {
		return nil, err
	}
	return story, nil
}

func (c *Client) DeleteStory(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, "deleteStory", http.MethodDelete, "/stories/"+id.String(), nil, nil)
}

func (c *Client) GetPages(ctx context.Context, storyID uuid.UUID) ([]models.Page, error) {
	var pages []models.Page
	if err := c.do(ctx, "getPages", http.MethodGet, fmt.Sprintf("/stories/%s/pages", storyID), nil, &pages); err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []models.Page{}
	}
	return pages, nil
}

func (c *Client) CreatePage(ctx context.Context, storyID uuid.UUID, fields models.PageFields) (*models.Page, error) {
	var page models.Page
	if err := c.do(ctx, "createPage", http.MethodPost, fmt.Sprintf("/stories/%s/pages", storyID), fields, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) UpdatePage(ctx context.Context, id uuid.UUID, fields models.PageFields) (*models.Page, error) {
	var page *models.Page
	if err := c.do(ctx, "updatePage", http.MethodPatch, "/pages/"+id.String(), fields, &page); err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Client) DeletePage(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, "deletePage", http.MethodDelete, "/pages/"+id.String(), nil, nil)
}

func (c *Client) GetPage(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	var page models.Page
	if err := c.do(ctx, "getPage", http.MethodGet, "/pages/"+id.String(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

type startSessionRequest struct {
	StoryID   uuid.UUID `json:"story_id"`
	IsPreview bool      `json:"is_preview"`
}

func (c *Client) StartSession(ctx context.Context, storyID uuid.UUID, preview bool) (*models.GameSession, error) {
	var session models.GameSession
	if err := c.do(ctx, "startSession", http.MethodPost, "/sessions", startSessionRequest{StoryID: storyID, IsPreview: preview}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error) {
	var session models.GameSession
	if err := c.do(ctx, "getSession", http.MethodGet, "/sessions/"+sessionID.String(), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

type makeChoiceRequest struct {
	ChoiceIndex int `json:"choice_index"`
}

func (c *Client) MakeChoice(ctx context.Context, sessionID uuid.UUID, choiceIndex int) (*models.ChoiceOutcome, error) {
	var out models.ChoiceOutcome
	path := fmt.Sprintf("/sessions/%s/choices", sessionID)
	if err := c.do(ctx, "makeChoice", http.MethodPost, path, makeChoiceRequest{ChoiceIndex: choiceIndex}, &out); err != nil {
		return nil, err
	}
	if out.Session == nil {
		return nil, &models.APIError{Op: "makeChoice", StatusCode: http.StatusOK, Message: "response has no session", Kind: models.ErrNetwork}
	}
	return &out, nil
}
