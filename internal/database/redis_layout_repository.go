package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ interfaces.LayoutRepository = (*redisLayoutRepository)(nil)

// redisLayoutRepository хранит позиции узлов в хеше story_layout:{storyID}:
// поле - ID страницы, значение - JSON {"x":..,"y":..}.
type redisLayoutRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLayoutRepository создает репозиторий. ttl > 0 продлевает жизнь
// раскладки при каждом сохранении; 0 - без срока.
func NewRedisLayoutRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) interfaces.LayoutRepository {
	return &redisLayoutRepository{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisLayoutRepo"),
	}
}

func layoutKey(storyID uuid.UUID) string {
	return fmt.Sprintf("story_layout:%s", storyID)
}

func (r *redisLayoutRepository) GetPositions(ctx context.Context, storyID uuid.UUID) (map[uuid.UUID]models.Position, error) {
	raw, err := r.client.HGetAll(ctx, layoutKey(storyID)).Result()
	if err != nil {
		r.logger.Error("Failed to read layout from redis", zap.Stringer("storyID", storyID), zap.Error(err))
		return nil, fmt.Errorf("get layout for story %s: %w", storyID, err)
	}

	positions := make(map[uuid.UUID]models.Position, len(raw))
	for field, value := range raw {
		pageID, err := uuid.Parse(field)
		if err != nil {
			r.logger.Warn("Skipping layout entry with invalid page id", zap.String("field", field))
			continue
		}
		var pos models.Position
		if err := json.Unmarshal([]byte(value), &pos); err != nil {
			r.logger.Warn("Skipping corrupted layout entry", zap.String("field", field), zap.Error(err))
			continue
		}
		positions[pageID] = pos
	}
	return positions, nil
}

// SavePositions дописывает позиции в хеш одной транзакцией.
func (r *redisLayoutRepository) SavePositions(ctx context.Context, storyID uuid.UUID, positions map[uuid.UUID]models.Position) error {
	if len(positions) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(positions))
	for pageID, pos := range positions {
		data, err := json.Marshal(pos)
		if err != nil {
			return fmt.Errorf("marshal position of page %s: %w", pageID, err)
		}
		values[pageID.String()] = data
	}

	key := layoutKey(storyID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, values)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to save layout to redis", zap.Stringer("storyID", storyID), zap.Int("positions", len(positions)), zap.Error(err))
		return fmt.Errorf("save layout for story %s: %w", storyID, err)
	}
	r.logger.Debug("Layout saved", zap.Stringer("storyID", storyID), zap.Int("positions", len(positions)))
	return nil
}

func (r *redisLayoutRepository) DeletePosition(ctx context.Context, storyID, pageID uuid.UUID) error {
	if err := r.client.HDel(ctx, layoutKey(storyID), pageID.String()).Err(); err != nil {
		return fmt.Errorf("delete position of page %s: %w", pageID, err)
	}
	return nil
}
