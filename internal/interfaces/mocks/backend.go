package mocks

import (
	"context"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Backend мок полной RPC-поверхности бэкенда.
type Backend struct {
	mock.Mock
}

func (m *Backend) GetStory(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, id)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}

func (m *Backend) CreateStory(ctx context.Context, fields models.StoryFields) (*models.Story, error) {
	args := m.Called(ctx, fields)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}

func (m *Backend) UpdateStory(ctx context.Context, id uuid.UUID, fields models.StoryFields) (*models.Story, error) {
	args := m.Called(ctx, id, fields)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}

func (m *Backend) DeleteStory(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Backend) GetPages(ctx context.Context, storyID uuid.UUID) ([]models.Page, error) {
	args := m.Called(ctx, storyID)
	pages, _ := args.Get(0).([]models.Page)
	return pages, args.Error(1)
}

func (m *Backend) CreatePage(ctx context.Context, storyID uuid.UUID, fields models.PageFields) (*models.Page, error) {
	args := m.Called(ctx, storyID, fields)
	page, _ := args.Get(0).(*models.Page)
	return page, args.Error(1)
}

func (m *Backend) UpdatePage(ctx context.Context, id uuid.UUID, fields models.PageFields) (*models.Page, error) {
	args := m.Called(ctx, id, fields)
	page, _ := args.Get(0).(*models.Page)
	return page, args.Error(1)
}

func (m *Backend) DeletePage(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Backend) GetPage(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	args := m.Called(ctx, id)
	page, _ := args.Get(0).(*models.Page)
	return page, args.Error(1)
}

func (m *Backend) StartSession(ctx context.Context, storyID uuid.UUID, preview bool) (*models.GameSession, error) {
	args := m.Called(ctx, storyID, preview)
	session, _ := args.Get(0).(*models.GameSession)
	return session, args.Error(1)
}

func (m *Backend) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*models.GameSession)
	return session, args.Error(1)
}

func (m *Backend) MakeChoice(ctx context.Context, sessionID uuid.UUID, choiceIndex int) (*models.ChoiceOutcome, error) {
	args := m.Called(ctx, sessionID, choiceIndex)
	outcome, _ := args.Get(0).(*models.ChoiceOutcome)
	return outcome, args.Error(1)
}
