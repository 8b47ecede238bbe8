package memstore

import (
	"context"
	"fmt"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// StartSession начинает прохождение с первой страницы истории.
func (s *Store) StartSession(ctx context.Context, storyID uuid.UUID, preview bool) (*models.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stories[storyID]; !ok {
		return nil, notFound("startSession")
	}
	order := s.pageOrder[storyID]
	if len(order) == 0 {
		return nil, invalid("startSession", "story has no pages")
	}
	session := models.GameSession{
		ID:            uuid.New(),
		PlayerID:      s.playerID,
		StoryID:       storyID,
		CurrentPageID: order[0],
		History:       []uuid.UUID{order[0]},
		Status:        models.SessionInProgress,
		IsPreview:     preview,
	}
	if s.pages[order[0]].IsEnding {
		session.Status = models.SessionCompleted
	}
	s.sessions[session.ID] = session
	out := cloneSession(session)
	return &out, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, notFound("getSession")
	}
	out := cloneSession(session)
	return &out, nil
}

// MakeChoice переводит прохождение на цель выбранного выбора текущей страницы.
// Статистика истории обновляется только для не-превью прохождений.
func (s *Store) MakeChoice(ctx context.Context, sessionID uuid.UUID, choiceIndex int) (*models.ChoiceOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, notFound("makeChoice")
	}
	if session.Status != models.SessionInProgress {
		return nil, invalid("makeChoice", "session is not in progress")
	}
	current := s.pages[session.CurrentPageID]
	if choiceIndex < 0 || choiceIndex >= len(current.Choices) {
		return nil, invalid("makeChoice", fmt.Sprintf("choice index %d out of range", choiceIndex))
	}
	next, ok := s.pages[current.Choices[choiceIndex].TargetPageID]
	if !ok {
		return nil, notFound("makeChoice")
	}

	session.CurrentPageID = next.ID
	session.History = append(append([]uuid.UUID(nil), session.History...), next.ID)
	if next.IsEnding {
		session.Status = models.SessionCompleted
		if !session.IsPreview {
			s.recordCompletionLocked(session.StoryID, next.EndingType)
		}
	}
	s.sessions[session.ID] = session

	out := cloneSession(session)
	return &models.ChoiceOutcome{Session: &out, Page: next.Clone()}, nil
}

func (s *Store) recordCompletionLocked(storyID uuid.UUID, ending models.EndingType) {
	story, ok := s.stories[storyID]
	if !ok {
		return
	}
	story.Stats.Completions++
	if ending != "" {
		endings := make(map[models.EndingType]int, len(story.Stats.Endings)+1)
		for k, v := range story.Stats.Endings {
			endings[k] = v
		}
		endings[ending]++
		story.Stats.Endings = endings
	}
	s.stories[storyID] = story
}

func cloneSession(in models.GameSession) models.GameSession {
	in.History = append([]uuid.UUID(nil), in.History...)
	return in
}
