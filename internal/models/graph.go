package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Position координаты узла в редакторе графа.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FlowNode страница, спроецированная в редактор.
type FlowNode struct {
	ID       uuid.UUID `json:"id"`
	Position Position  `json:"position"`
	Page     *Page     `json:"data"`
}

// FlowEdge выбор, спроецированный в редактор. Label - текст выбора.
type FlowEdge struct {
	ID          string    `json:"id"`
	Source      uuid.UUID `json:"source"`
	Target      uuid.UUID `json:"target"`
	Label       string    `json:"label"`
	ChoiceIndex int       `json:"choice_index"`
}

// FlowGraph производная проекция страниц истории.
type FlowGraph struct {
	StoryID uuid.UUID  `json:"story_id"`
	Story   *Story     `json:"story,omitempty"`
	Nodes   []FlowNode `json:"nodes"`
	Edges   []FlowEdge `json:"edges"`
}

// EdgeID детерминированный идентификатор ребра. Уникален, пока у страницы
// нет двух выборов с одинаковой целью.
func EdgeID(source, target uuid.UUID) string {
	return fmt.Sprintf("e-%s-%s", source, target)
}

// PendingUpdate запись журнала намерений: несохраненные изменения одной страницы.
type PendingUpdate struct {
	PageID   uuid.UUID  `json:"page_id"`
	Fields   PageFields `json:"fields"`
	Position *Position  `json:"position,omitempty"`
	QueuedAt time.Time  `json:"queued_at"`
}

// Merge накладывает более новую запись поверх текущей.
func (u PendingUpdate) Merge(newer PendingUpdate) PendingUpdate {
	out := u
	out.Fields = u.Fields.Merge(newer.Fields)
	if newer.Position != nil {
		pos := *newer.Position
		out.Position = &pos
	}
	if newer.QueuedAt.After(out.QueuedAt) {
		out.QueuedAt = newer.QueuedAt
	}
	return out
}

// IsEmpty - в записи нечего сохранять.
func (u PendingUpdate) IsEmpty() bool {
	return u.Fields.IsEmpty() && u.Position == nil
}

// SaveState наблюдаемое состояние синхронизации редактора.
type SaveState string

const (
	SaveStateClean   SaveState = "clean"
	SaveStatePending SaveState = "pending"
	SaveStateSaving  SaveState = "saving"
	SaveStateError   SaveState = "error"
)

// IntegrityReport структурные проблемы графа, которые автор исправляет вручную.
type IntegrityReport struct {
	DanglingChoices   []ChoiceRef `json:"dangling_choices"`
	DuplicateTargets  []ChoiceRef `json:"duplicate_targets"`
	EndingsWithChoice []uuid.UUID `json:"endings_with_choices"`
	Unreachable       []uuid.UUID `json:"unreachable"`
}

// OK - проблем не найдено.
func (r IntegrityReport) OK() bool {
	return len(r.DanglingChoices) == 0 && len(r.DuplicateTargets) == 0 &&
		len(r.EndingsWithChoice) == 0 && len(r.Unreachable) == 0
}

// ChoiceRef ссылка на выбор конкретной страницы.
type ChoiceRef struct {
	PageID       uuid.UUID `json:"page_id"`
	ChoiceIndex  int       `json:"choice_index"`
	TargetPageID uuid.UUID `json:"target_page_id"`
}
