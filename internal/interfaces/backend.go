package interfaces

import (
	"context"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// StoryStore операции внешнего бэкенда над историями.
// Все методы возвращают *models.APIError, различимый через errors.Is
// (models.ErrNotFound, models.ErrValidation, models.ErrNetwork).
//
//go:generate mockery --name StoryStore --output ./mocks --outpkg mocks --case=underscore
type StoryStore interface {
	GetStory(ctx context.Context, id uuid.UUID) (*models.Story, error)
	CreateStory(ctx context.Context, fields models.StoryFields) (*models.Story, error)
	UpdateStory(ctx context.Context, id uuid.UUID, fields models.StoryFields) (*models.Story, error)
	DeleteStory(ctx context.Context, id uuid.UUID) error

	// GetPages возвращает все страницы истории. Порядок стабилен (порядок создания).
	GetPages(ctx context.Context, storyID uuid.UUID) ([]models.Page, error)
}

// PageStore операции внешнего бэкенда над страницами.
//
//go:generate mockery --name PageStore --output ./mocks --outpkg mocks --case=underscore
type PageStore interface {
	CreatePage(ctx context.Context, storyID uuid.UUID, fields models.PageFields) (*models.Page, error)
	UpdatePage(ctx context.Context, id uuid.UUID, fields models.PageFields) (*models.Page, error)
	DeletePage(ctx context.Context, id uuid.UUID) error
	GetPage(ctx context.Context, id uuid.UUID) (*models.Page, error)
}

// SessionStore операции внешнего бэкенда над прохождениями.
//
//go:generate mockery --name SessionStore --output ./mocks --outpkg mocks --case=underscore
type SessionStore interface {
	StartSession(ctx context.Context, storyID uuid.UUID, preview bool) (*models.GameSession, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error)

	// MakeChoice фиксирует выбор на стороне бэкенда и возвращает обновленную сессию
	// (и, если бэкенд ее прислал, следующую страницу).
	MakeChoice(ctx context.Context, sessionID uuid.UUID, choiceIndex int) (*models.ChoiceOutcome, error)
}

// Backend полная типизированная RPC-поверхность внешнего бэкенда.
type Backend interface {
	StoryStore
	PageStore
	SessionStore
}
