package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus статус прохождения истории читателем.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// GameSession прохождение истории читателем, как его хранит внешний бэкенд.
type GameSession struct {
	ID            uuid.UUID     `json:"id"`
	PlayerID      uuid.UUID     `json:"player_id"`
	StoryID       uuid.UUID     `json:"story_id"`
	CurrentPageID uuid.UUID     `json:"current_page_id"`
	History       []uuid.UUID   `json:"history"`
	Status        SessionStatus `json:"status"`
	IsPreview     bool          `json:"is_preview"` // Тестовое прохождение автора, не учитывается в статистике
}

// ChoiceOutcome результат внешнего вызова makeChoice.
// Page может отсутствовать - тогда следующая страница берется из загруженных.
type ChoiceOutcome struct {
	Session *GameSession `json:"session"`
	Page    *Page        `json:"page,omitempty"`
}

// PlayEventType тип события прохождения.
type PlayEventType string

const (
	PlayEventStarted PlayEventType = "session_started"
	PlayEventChoice  PlayEventType = "choice_made"
	PlayEventDice    PlayEventType = "dice_rolled"
	PlayEventEnded   PlayEventType = "session_ended"
)

// PlayEvent событие прохождения для внешних потребителей (аналитика, уведомления).
type PlayEvent struct {
	Type        PlayEventType `json:"type"`
	SessionID   uuid.UUID     `json:"session_id"`
	StoryID     uuid.UUID     `json:"story_id"`
	PageID      uuid.UUID     `json:"page_id"`
	ChoiceIndex *int          `json:"choice_index,omitempty"`
	Roll        *int          `json:"roll,omitempty"`
	Total       *int          `json:"total,omitempty"`
	Success     *bool         `json:"success,omitempty"`
	EndingType  EndingType    `json:"ending_type,omitempty"`
	IsPreview   bool          `json:"is_preview"`
	OccurredAt  time.Time     `json:"occurred_at"`
}
