package interfaces

import (
	"context"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// LayoutRepository хранит позиции узлов редактора. Это единственные метаданные
// графа, которые не выводятся из страниц.
//
//go:generate mockery --name LayoutRepository --output ./mocks --outpkg mocks --case=underscore
type LayoutRepository interface {
	// GetPositions возвращает сохраненные позиции. Пустая карта, если ничего нет.
	GetPositions(ctx context.Context, storyID uuid.UUID) (map[uuid.UUID]models.Position, error)
	SavePositions(ctx context.Context, storyID uuid.UUID, positions map[uuid.UUID]models.Position) error
	DeletePosition(ctx context.Context, storyID uuid.UUID, pageID uuid.UUID) error
}

// DraftJournal переживающее рестарт хранилище записей, которые не удалось сохранить.
//
//go:generate mockery --name DraftJournal --output ./mocks --outpkg mocks --case=underscore
type DraftJournal interface {
	// Save перезаписывает записи для указанных страниц.
	Save(ctx context.Context, storyID uuid.UUID, updates []models.PendingUpdate) error
	// Remove удаляет записи страниц, которые успешно сохранены.
	Remove(ctx context.Context, storyID uuid.UUID, pageIDs []uuid.UUID) error
	// Load возвращает все несохраненные записи истории.
	Load(ctx context.Context, storyID uuid.UUID) ([]models.PendingUpdate, error)
}

// DBTX общий интерфейс *pgxpool.Pool и pgx.Tx для репозиториев.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}
