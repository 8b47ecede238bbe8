package memstore

import (
	"context"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// GetPositions возвращает копию сохраненных позиций истории.
func (s *Store) GetPositions(ctx context.Context, storyID uuid.UUID) (map[uuid.UUID]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]models.Position, len(s.positions[storyID]))
	for id, pos := range s.positions[storyID] {
		out[id] = pos
	}
	return out, nil
}

func (s *Store) SavePositions(ctx context.Context, storyID uuid.UUID, positions map[uuid.UUID]models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.positions[storyID]
	if !ok {
		stored = make(map[uuid.UUID]models.Position, len(positions))
		s.positions[storyID] = stored
	}
	for id, pos := range positions {
		stored[id] = pos
	}
	return nil
}

func (s *Store) DeletePosition(ctx context.Context, storyID, pageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions[storyID], pageID)
	return nil
}
