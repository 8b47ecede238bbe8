package interfaces

import (
	"context"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// PlayEventPublisher публикует события прохождения.
type PlayEventPublisher interface {
	PublishPlayEvent(ctx context.Context, event models.PlayEvent) error
}

// SaveStateNotifier доставляет состояние синхронизации редактора в UI.
type SaveStateNotifier interface {
	NotifySaveState(editorSessionID uuid.UUID, state models.SaveState, err error)
}
