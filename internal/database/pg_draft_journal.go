package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	upsertDraftQuery = `
        INSERT INTO draft_journal (story_id, page_id, fields, position, queued_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        ON CONFLICT (story_id, page_id) DO UPDATE SET
            fields = EXCLUDED.fields,
            position = EXCLUDED.position,
            queued_at = EXCLUDED.queued_at,
            updated_at = NOW()
    `
	deleteDraftsQuery = `DELETE FROM draft_journal WHERE story_id = $1 AND page_id = ANY($2::uuid[])`
	listDraftsQuery   = `
        SELECT story_id, page_id, fields, position, queued_at
        FROM draft_journal
        WHERE story_id = $1
        ORDER BY queued_at, page_id
    `
	purgeDraftsQuery = `DELETE FROM draft_journal WHERE updated_at < $1`
)

var _ interfaces.DraftJournal = (*pgDraftJournal)(nil)

// draftRow строка журнала.
type draftRow struct {
	StoryID  uuid.UUID `db:"story_id"`
	PageID   uuid.UUID `db:"page_id"`
	Fields   []byte    `db:"fields"`
	Position []byte    `db:"position"`
	QueuedAt time.Time `db:"queued_at"`
}

type pgDraftJournal struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgDraftJournal создает журнал черновиков в PostgreSQL.
func NewPgDraftJournal(db interfaces.DBTX, logger *zap.Logger) *pgDraftJournal {
	return &pgDraftJournal{
		db:     db,
		logger: logger.Named("PgDraftJournal"),
	}
}

// Save перезаписывает записи страниц одним батчем.
func (j *pgDraftJournal) Save(ctx context.Context, storyID uuid.UUID, updates []models.PendingUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, u := range updates {
		fields, err := json.Marshal(u.Fields)
		if err != nil {
			return fmt.Errorf("marshal draft fields of page %s: %w", u.PageID, err)
		}
		var position []byte
		if u.Position != nil {
			if position, err = json.Marshal(u.Position); err != nil {
				return fmt.Errorf("marshal draft position of page %s: %w", u.PageID, err)
			}
		}
		queuedAt := u.QueuedAt
		if queuedAt.IsZero() {
			queuedAt = time.Now().UTC()
		}
		batch.Queue(upsertDraftQuery, storyID, u.PageID, fields, position, queuedAt)
	}

	br := j.db.SendBatch(ctx, batch)
	defer br.Close()
	for range updates {
		if _, err := br.Exec(); err != nil {
			j.logger.Error("Failed to journal drafts", zap.Stringer("storyID", storyID), zap.Error(err))
			return fmt.Errorf("save drafts for story %s: %w", storyID, err)
		}
	}
	j.logger.Debug("Drafts journaled", zap.Stringer("storyID", storyID), zap.Int("count", len(updates)))
	return nil
}

func (j *pgDraftJournal) Remove(ctx context.Context, storyID uuid.UUID, pageIDs []uuid.UUID) error {
	if len(pageIDs) == 0 {
		return nil
	}
	tag, err := j.db.Exec(ctx, deleteDraftsQuery, storyID, pageIDs)
	if err != nil {
		j.logger.Error("Failed to remove drafts", zap.Stringer("storyID", storyID), zap.Error(err))
		return fmt.Errorf("remove drafts for story %s: %w", storyID, err)
	}
	j.logger.Debug("Drafts removed", zap.Stringer("storyID", storyID), zap.Int64("rows", tag.RowsAffected()))
	return nil
}

func (j *pgDraftJournal) Load(ctx context.Context, storyID uuid.UUID) ([]models.PendingUpdate, error) {
	var rows []draftRow
	if err := pgxscan.Select(ctx, j.db, &rows, listDraftsQuery, storyID); err != nil {
		j.logger.Error("Failed to load drafts", zap.Stringer("storyID", storyID), zap.Error(err))
		return nil, fmt.Errorf("load drafts for story %s: %w", storyID, err)
	}

	updates := make([]models.PendingUpdate, 0, len(rows))
	for _, row := range rows {
		u := models.PendingUpdate{PageID: row.PageID, QueuedAt: row.QueuedAt}
		if err := json.Unmarshal(row.Fields, &u.Fields); err != nil {
			j.logger.Warn("Skipping corrupted draft", zap.Stringer("pageID", row.PageID), zap.Error(err))
			continue
		}
		if len(row.Position) > 0 {
			var pos models.Position
			if err := json.Unmarshal(row.Position, &pos); err != nil {
				j.logger.Warn("Ignoring corrupted draft position", zap.Stringer("pageID", row.PageID), zap.Error(err))
			} else {
				u.Position = &pos
			}
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// Purge удаляет записи, не обновлявшиеся дольше maxAge. Возвращает число удаленных строк.
func (j *pgDraftJournal) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := j.db.Exec(ctx, purgeDraftsQuery, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("purge drafts: %w", err)
	}
	return tag.RowsAffected(), nil
}
