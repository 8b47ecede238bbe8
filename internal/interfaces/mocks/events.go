package mocks

import (
	"context"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// PlayEventPublisher мок публикатора событий прохождения.
type PlayEventPublisher struct {
	mock.Mock
}

func (m *PlayEventPublisher) PublishPlayEvent(ctx context.Context, event models.PlayEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// SaveStateNotifier мок доставки состояния сохранения.
type SaveStateNotifier struct {
	mock.Mock
}

func (m *SaveStateNotifier) NotifySaveState(editorSessionID uuid.UUID, state models.SaveState, err error) {
	m.Called(editorSessionID, state, err)
}
