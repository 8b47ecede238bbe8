// Package memstore держит истории, страницы, прохождения и раскладку в памяти.
// Используется в режиме BACKEND_MODE=memory и в тестах сервисов.
package memstore

import (
	"context"
	"net/http"
	"sync"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// Store реализует interfaces.Backend и interfaces.LayoutRepository.
// Ошибки возвращаются как *models.APIError, как у настоящего бэкенда.
type Store struct {
	mu sync.RWMutex

	stories     map[uuid.UUID]models.Story
	pages       map[uuid.UUID]models.Page
	pageOrder   map[uuid.UUID][]uuid.UUID // порядок создания страниц истории
	sessions    map[uuid.UUID]models.GameSession
	positions   map[uuid.UUID]map[uuid.UUID]models.Position
	playerID    uuid.UUID
	failUpdates map[uuid.UUID]error
}

// New пустое хранилище.
func New() *Store {
	return &Store{
		stories:     make(map[uuid.UUID]models.Story),
		pages:       make(map[uuid.UUID]models.Page),
		pageOrder:   make(map[uuid.UUID][]uuid.UUID),
		sessions:    make(map[uuid.UUID]models.GameSession),
		positions:   make(map[uuid.UUID]map[uuid.UUID]models.Position),
		playerID:    uuid.New(),
		failUpdates: make(map[uuid.UUID]error),
	}
}

func notFound(op string) error {
	return &models.APIError{Op: op, StatusCode: http.StatusNotFound, Kind: models.ErrNotFound}
}

func invalid(op, msg string) error {
	return &models.APIError{Op: op, StatusCode: http.StatusUnprocessableEntity, Message: msg, Kind: models.ErrValidation}
}

// Seed кладет историю и ее страницы как есть. Порядок страниц сохраняется.
func (s *Store) Seed(story models.Story, pages []models.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}
	if story.Status == "" {
		story.Status = models.StoryStatusDraft
	}
	s.stories[story.ID] = story
	for _, p := range pages {
		p.StoryID = story.ID
		if p.Choices == nil {
			p.Choices = []models.Choice{}
		}
		s.pages[p.ID] = *p.Clone()
		s.pageOrder[story.ID] = append(s.pageOrder[story.ID], p.ID)
	}
}

// FailPageUpdates заставляет UpdatePage для страницы возвращать err (nil снимает сбой).
// Нужен для проверки сценариев ошибок автосохранения.
func (s *Store) FailPageUpdates(pageID uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failUpdates, pageID)
		return
	}
	s.failUpdates[pageID] = err
}

func (s *Store) GetStory(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	story, ok := s.stories[id]
	if !ok {
		return nil, notFound("getStory")
	}
	return &story, nil
}

func (s *Store) CreateStory(ctx context.Context, fields models.StoryFields) (*models.Story, error) {
	if fields.Title == nil || *fields.Title == "" {
		return nil, invalid("createStory", "title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	story := models.Story{ID: uuid.New(), AuthorID: s.playerID, Status: models.StoryStatusDraft}
	fields.ApplyTo(&story)
	s.stories[story.ID] = story
	return &story, nil
}

func (s *Store) UpdateStory(ctx context.Context, id uuid.UUID, fields models.StoryFields) (*models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[id]
	if !ok {
		return nil, notFound("updateStory")
	}
	fields.ApplyTo(&story)
	s.stories[id] = story
	return &story, nil
}

func (s *Store) DeleteStory(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stories[id]; !ok {
		return notFound("deleteStory")
	}
	for _, pid := range s.pageOrder[id] {
		delete(s.pages, pid)
	}
	delete(s.pageOrder, id)
	delete(s.positions, id)
	delete(s.stories, id)
	return nil
}

func (s *Store) GetPages(ctx context.Context, storyID uuid.UUID) ([]models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.stories[storyID]; !ok {
		return nil, notFound("getPages")
	}
	ids := s.pageOrder[storyID]
	out := make([]models.Page, 0, len(ids))
	for _, id := range ids {
		p := s.pages[id]
		out = append(out, *p.Clone())
	}
	return out, nil
}

func (s *Store) CreatePage(ctx context.Context, storyID uuid.UUID, fields models.PageFields) (*models.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stories[storyID]; !ok {
		return nil, notFound("createPage")
	}
	page := models.Page{ID: uuid.New(), StoryID: storyID, Choices: []models.Choice{}}
	fields.ApplyTo(&page)
	s.pages[page.ID] = page
	s.pageOrder[storyID] = append(s.pageOrder[storyID], page.ID)
	return page.Clone(), nil
}

func (s *Store) UpdatePage(ctx context.Context, id uuid.UUID, fields models.PageFields) (*models.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failUpdates[id]; err != nil {
		return nil, err
	}
	page, ok := s.pages[id]
	if !ok {
		return nil, notFound("updatePage")
	}
	fields.ApplyTo(&page)
	s.pages[id] = page
	return page.Clone(), nil
}

func (s *Store) DeletePage(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[id]
	if !ok {
		return notFound("deletePage")
	}
	delete(s.pages, id)
	order := s.pageOrder[page.StoryID]
	for i, pid := range order {
		if pid == id {
			s.pageOrder[page.StoryID] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) GetPage(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[id]
	if !ok {
		return nil, notFound("getPage")
	}
	return page.Clone(), nil
}
