package models

import (
	"github.com/google/uuid"
)

// CheckType тип проверки навыка.
type CheckType string

const (
	CheckCombat     CheckType = "combat"
	CheckStealth    CheckType = "stealth"
	CheckPersuasion CheckType = "persuasion"
	CheckCustom     CheckType = "custom"
)

// Valid сообщает, является ли тип проверки известным.
func (c CheckType) Valid() bool {
	switch c {
	case CheckCombat, CheckStealth, CheckPersuasion, CheckCustom:
		return true
	}
	return false
}

const (
	MinDifficulty = 1
	MaxDifficulty = 30
)

// DiceRoll описывает проверку 1d20 + бонус против сложности.
// SuccessPageID/FailurePageID - явные переходы; если их нет, исход определяется
// по диапазонам в тексте соседних выборов.
type DiceRoll struct {
	Enabled       bool       `json:"enabled"`
	Difficulty    int        `json:"difficulty"`
	CheckType     CheckType  `json:"check_type"`
	SuccessPageID *uuid.UUID `json:"success_page_id,omitempty"`
	FailurePageID *uuid.UUID `json:"failure_page_id,omitempty"`
}

// ExplicitTarget возвращает явную страницу для исхода проверки, если она задана.
func (d *DiceRoll) ExplicitTarget(success bool) (uuid.UUID, bool) {
	if d == nil {
		return uuid.Nil, false
	}
	target := d.FailurePageID
	if success {
		target = d.SuccessPageID
	}
	if target == nil || *target == uuid.Nil {
		return uuid.Nil, false
	}
	return *target, true
}

// Condition условие доступности выбора.
type Condition struct {
	Type string `json:"type"` // "has_item"
	Item string `json:"item"`
}

const ConditionHasItem = "has_item"

// Reward награда за выбор.
type Reward struct {
	Type string `json:"type"` // "add_item"
	Item string `json:"item"`
}

const RewardAddItem = "add_item"

// AudioTriggers звуковые эффекты выбора. Воспроизведением занимается клиент.
type AudioTriggers struct {
	OnSelect  string `json:"on_select,omitempty"`
	OnSuccess string `json:"on_success,omitempty"`
	OnFailure string `json:"on_failure,omitempty"`
}

// Choice направленное ребро графа истории.
type Choice struct {
	Text         string         `json:"text"`
	TargetPageID uuid.UUID      `json:"target_page_id"`
	Condition    *Condition     `json:"condition,omitempty"`
	Rewards      []Reward       `json:"rewards,omitempty"`
	DiceRoll     *DiceRoll      `json:"dice_roll,omitempty"`
	Audio        *AudioTriggers `json:"audio,omitempty"`
}

// RequiresRoll сообщает, включена ли у выбора структурная проверка.
func (c Choice) RequiresRoll() bool {
	return c.DiceRoll != nil && c.DiceRoll.Enabled
}

// Hotspot кликабельная зона поверх изображения страницы.
// Геометрия хранится только в процентах от размеров изображения.
type Hotspot struct {
	ID           uuid.UUID `json:"id"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Width        float64   `json:"width"`
	Height       float64   `json:"height"`
	Label        string    `json:"label"`
	TargetPageID uuid.UUID `json:"target_page_id"`
	DiceRoll     *DiceRoll `json:"dice_roll,omitempty"`
}

// Page узел графа истории.
type Page struct {
	ID         uuid.UUID  `json:"id"`
	StoryID    uuid.UUID  `json:"story_id"`
	Content    string     `json:"content"`
	Image      string     `json:"image,omitempty"`
	Choices    []Choice   `json:"choices"`
	IsEnding   bool       `json:"is_ending"`
	EndingType EndingType `json:"ending_type,omitempty"`
	Hotspots   []Hotspot  `json:"hotspots,omitempty"`
}

// IsTerminal - страница является концовкой.
func (p *Page) IsTerminal() bool {
	return p.IsEnding
}

// ViolatesEndingInvariant - концовка не должна иметь выборов.
func (p *Page) ViolatesEndingInvariant() bool {
	return p.IsEnding && len(p.Choices) > 0
}

// ChoiceIndexByTarget возвращает индекс первого выбора, ведущего на target, или -1.
func (p *Page) ChoiceIndexByTarget(target uuid.UUID) int {
	for i, ch := range p.Choices {
		if ch.TargetPageID == target {
			return i
		}
	}
	return -1
}

// HotspotByID ищет зону по ID.
func (p *Page) HotspotByID(id uuid.UUID) (*Hotspot, int) {
	for i := range p.Hotspots {
		if p.Hotspots[i].ID == id {
			return &p.Hotspots[i], i
		}
	}
	return nil, -1
}

// Clone возвращает глубокую копию страницы, чтобы снапшоты не разделяли срезы.
func (p *Page) Clone() *Page {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Choices = cloneChoices(p.Choices)
	if p.Hotspots != nil {
		cp.Hotspots = make([]Hotspot, len(p.Hotspots))
		for i, h := range p.Hotspots {
			h.DiceRoll = cloneDiceRoll(h.DiceRoll)
			cp.Hotspots[i] = h
		}
	}
	return &cp
}

func cloneChoices(in []Choice) []Choice {
	if in == nil {
		return nil
	}
	out := make([]Choice, len(in))
	for i, ch := range in {
		if ch.Condition != nil {
			c := *ch.Condition
			ch.Condition = &c
		}
		if ch.Rewards != nil {
			ch.Rewards = append([]Reward(nil), ch.Rewards...)
		}
		if ch.Audio != nil {
			a := *ch.Audio
			ch.Audio = &a
		}
		ch.DiceRoll = cloneDiceRoll(ch.DiceRoll)
		out[i] = ch
	}
	return out
}

func cloneDiceRoll(d *DiceRoll) *DiceRoll {
	if d == nil {
		return nil
	}
	cp := *d
	if d.SuccessPageID != nil {
		id := *d.SuccessPageID
		cp.SuccessPageID = &id
	}
	if d.FailurePageID != nil {
		id := *d.FailurePageID
		cp.FailurePageID = &id
	}
	return &cp
}

// PageFields частичное обновление страницы. nil-поля не изменяются,
// срезы заменяются целиком.
type PageFields struct {
	Content    *string     `json:"content,omitempty"`
	Image      *string     `json:"image,omitempty"`
	Choices    *[]Choice   `json:"choices,omitempty"`
	IsEnding   *bool       `json:"is_ending,omitempty"`
	EndingType *EndingType `json:"ending_type,omitempty"`
	Hotspots   *[]Hotspot  `json:"hotspots,omitempty"`
}

// IsEmpty возвращает true, если ни одно поле не задано.
func (f PageFields) IsEmpty() bool {
	return f.Content == nil && f.Image == nil && f.Choices == nil &&
		f.IsEnding == nil && f.EndingType == nil && f.Hotspots == nil
}

// Merge накладывает newer поверх f: заданные в newer поля побеждают.
func (f PageFields) Merge(newer PageFields) PageFields {
	out := f
	if newer.Content != nil {
		out.Content = newer.Content
	}
	if newer.Image != nil {
		out.Image = newer.Image
	}
	if newer.Choices != nil {
		out.Choices = newer.Choices
	}
	if newer.IsEnding != nil {
		out.IsEnding = newer.IsEnding
	}
	if newer.EndingType != nil {
		out.EndingType = newer.EndingType
	}
	if newer.Hotspots != nil {
		out.Hotspots = newer.Hotspots
	}
	return out
}

// ApplyTo применяет заданные поля к странице.
func (f PageFields) ApplyTo(p *Page) {
	if f.Content != nil {
		p.Content = *f.Content
	}
	if f.Image != nil {
		p.Image = *f.Image
	}
	if f.Choices != nil {
		p.Choices = cloneChoices(*f.Choices)
		if p.Choices == nil {
			p.Choices = []Choice{}
		}
	}
	if f.IsEnding != nil {
		p.IsEnding = *f.IsEnding
	}
	if f.EndingType != nil {
		p.EndingType = *f.EndingType
	}
	if f.Hotspots != nil {
		p.Hotspots = append([]Hotspot(nil), (*f.Hotspots)...)
	}
}

// ChoicesField упаковывает копию списка выборов в PageFields.
func ChoicesField(choices []Choice) PageFields {
	cp := cloneChoices(choices)
	if cp == nil {
		cp = []Choice{}
	}
	return PageFields{Choices: &cp}
}

// HotspotsField упаковывает копию списка зон в PageFields.
func HotspotsField(hotspots []Hotspot) PageFields {
	cp := append([]Hotspot{}, hotspots...)
	return PageFields{Hotspots: &cp}
}
