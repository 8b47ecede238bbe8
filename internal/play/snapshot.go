package play

import (
	"gamebook-server/internal/dice"
	"gamebook-server/internal/markup"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// ChoiceView выбор текущей страницы глазами читателя.
type ChoiceView struct {
	Index        int           `json:"index"`
	Text         string        `json:"text"`
	Label        string        `json:"label"`
	Kind         string        `json:"kind"`
	TargetPageID uuid.UUID     `json:"target_page_id"`
	Available    bool          `json:"available"`
	Hidden       bool          `json:"hidden,omitempty"` // Корзина исхода, достижимая только броском
	LockReason   string        `json:"lock_reason,omitempty"`
	Check        *markup.Check `json:"check,omitempty"`
	RequiresRoll bool          `json:"requires_roll"`
}

// Snapshot копия состояния сессии только для чтения.
type Snapshot struct {
	SessionID      uuid.UUID            `json:"session_id"`
	StoryID        uuid.UUID            `json:"story_id"`
	State          State                `json:"state"`
	Status         models.SessionStatus `json:"status"`
	IsPreview      bool                 `json:"is_preview"`
	Page           *models.Page         `json:"page"`
	Choices        []ChoiceView         `json:"choices"`
	History        []uuid.UUID          `json:"history"`
	Class          *ClassProfile        `json:"class,omitempty"`
	Inventory      []string             `json:"inventory"`
	Buffs          map[markup.Skill]int `json:"buffs,omitempty"`
	Pending        *PendingCheck        `json:"pending_check,omitempty"`
	LastRoll       *dice.CheckResult    `json:"last_roll,omitempty"`
	LastResolution *dice.Resolution     `json:"last_resolution,omitempty"`
}

// Snapshot возвращает текущее состояние.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *Snapshot {
	page, _ := s.currentPage()
	snap := &Snapshot{
		SessionID: s.record.ID,
		StoryID:   s.record.StoryID,
		State:     s.state,
		Status:    s.record.Status,
		IsPreview: s.record.IsPreview,
		Page:      page.Clone(),
		History:   append([]uuid.UUID{}, s.record.History...),
		Inventory: append([]string{}, s.inventory...),
	}
	if s.class != nil {
		c := *s.class
		snap.Class = &c
	}
	if len(s.buffs) > 0 {
		snap.Buffs = make(map[markup.Skill]int, len(s.buffs))
		for k, v := range s.buffs {
			snap.Buffs[k] = v
		}
	}
	if s.pending != nil {
		p := *s.pending
		snap.Pending = &p
	}
	if s.lastRoll != nil {
		r := *s.lastRoll
		snap.LastRoll = &r
	}
	if s.lastRes != nil {
		r := *s.lastRes
		snap.LastResolution = &r
	}

	if page == nil {
		return snap
	}
	rollPage := s.hasRollTrigger(page)
	snap.Choices = make([]ChoiceView, len(page.Choices))
	for i, ch := range page.Choices {
		parsed := s.parse(ch.Text)
		reason := s.lockReason(page, i, parsed)
		if s.state == StateSelectingClass && parsed.ClassOption == "" {
			reason = "select a class first"
		}
		snap.Choices[i] = ChoiceView{
			Index:        i,
			Text:         ch.Text,
			Label:        parsed.Label,
			Kind:         parsed.Kind(),
			TargetPageID: ch.TargetPageID,
			Available:    reason == "" && s.state != StateEnded,
			Hidden:       parsed.IsOutcome() && rollPage,
			LockReason:   reason,
			Check:        parsed.Check,
			RequiresRoll: ch.RequiresRoll() || parsed.Check != nil,
		}
	}
	return snap
}
