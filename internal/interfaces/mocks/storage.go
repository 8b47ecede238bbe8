package mocks

import (
	"context"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// LayoutRepository мок хранилища позиций.
type LayoutRepository struct {
	mock.Mock
}

func (m *LayoutRepository) GetPositions(ctx context.Context, storyID uuid.UUID) (map[uuid.UUID]models.Position, error) {
	args := m.Called(ctx, storyID)
	positions, _ := args.Get(0).(map[uuid.UUID]models.Position)
	return positions, args.Error(1)
}

func (m *LayoutRepository) SavePositions(ctx context.Context, storyID uuid.UUID, positions map[uuid.UUID]models.Position) error {
	args := m.Called(ctx, storyID, positions)
	return args.Error(0)
}

func (m *LayoutRepository) DeletePosition(ctx context.Context, storyID uuid.UUID, pageID uuid.UUID) error {
	args := m.Called(ctx, storyID, pageID)
	return args.Error(0)
}

// DraftJournal мок журнала несохраненных изменений.
type DraftJournal struct {
	mock.Mock
}

func (m *DraftJournal) Save(ctx context.Context, storyID uuid.UUID, updates []models.PendingUpdate) error {
	args := m.Called(ctx, storyID, updates)
	return args.Error(0)
}

func (m *DraftJournal) Remove(ctx context.Context, storyID uuid.UUID, pageIDs []uuid.UUID) error {
	args := m.Called(ctx, storyID, pageIDs)
	return args.Error(0)
}

func (m *DraftJournal) Load(ctx context.Context, storyID uuid.UUID) ([]models.PendingUpdate, error) {
	args := m.Called(ctx, storyID)
	updates, _ := args.Get(0).([]models.PendingUpdate)
	return updates, args.Error(1)
}
