// Package messaging публикация событий прохождения в RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	publishTimeout  = 10 * time.Second
	publishAttempts = 3
	appID           = "gamebook-server"
)

// Channel часть *amqp.Channel, нужная публикатору.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var (
	_ interfaces.PlayEventPublisher = (*rabbitMQPublisher)(nil)
	_ interfaces.PlayEventPublisher = NopPublisher{}
)

// rabbitMQPublisher пишет события в очередь через exchange по умолчанию.
type rabbitMQPublisher struct {
	channel   Channel
	queueName string
	logger    *zap.Logger
	backoff   time.Duration
}

// NewRabbitMQPlayEventPublisher открывает канал и объявляет durable очередь.
func NewRabbitMQPlayEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (*rabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("play event publisher: не удалось открыть канал: %w", err)
	}
	if _, err = ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("play event publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}
	logger.Info("Play event queue declared", zap.String("queue", queueName))
	return NewPublisherWithChannel(ch, queueName, logger), nil
}

// NewPublisherWithChannel создает публикатор поверх уже открытого канала.
func NewPublisherWithChannel(ch Channel, queueName string, logger *zap.Logger) *rabbitMQPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &rabbitMQPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("PlayEventPublisher"),
		backoff:   100 * time.Millisecond,
	}
}

// PublishPlayEvent сериализует событие и публикует его с повторами.
func (p *rabbitMQPublisher) PublishPlayEvent(ctx context.Context, event models.PlayEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события %s: %w", event.Type, err)
	}
	if err := p.publishMessage(ctx, body, string(event.Type)); err != nil {
		p.logger.Warn("Failed to publish play event",
			zap.String("type", string(event.Type)),
			zap.Stringer("sessionID", event.SessionID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte, messageType string) error {
	if p.channel == nil {
		return errors.New("канал RabbitMQ не инициализирован")
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange по умолчанию
			p.queueName, // routing key = имя очереди
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Type:         messageType,
				Timestamp:    time.Now(),
				AppId:        appID,
			},
		)
		if err == nil {
			p.logger.Debug("Play event published", zap.String("queue", p.queueName), zap.Int("attempt", attempt))
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * p.backoff):
		case <-ctx.Done():
		}
	}
	return fmt.Errorf("ошибка публикации в очередь %s после retries: %w", p.queueName, err)
}

// Close закрывает канал.
func (p *rabbitMQPublisher) Close() error {
	if p.channel == nil {
		return nil
	}
	return p.channel.Close()
}

// NopPublisher используется, когда RabbitMQ не настроен.
type NopPublisher struct{}

func (NopPublisher) PublishPlayEvent(ctx context.Context, event models.PlayEvent) error { return nil }

// Connect подключается к RabbitMQ с несколькими попытками.
func Connect(url string, attempts int, delay time.Duration, logger *zap.Logger) (*amqp.Connection, error) {
	if attempts < 1 {
		attempts = 1
	}
	var conn *amqp.Connection
	var err error
	for i := 0; i < attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Не удалось подключиться к RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return nil, err
}
