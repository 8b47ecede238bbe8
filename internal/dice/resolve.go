package dice

import (
	"fmt"
	"strings"

	"gamebook-server/internal/markup"
	"gamebook-server/internal/models"
)

// ResolveOutcomeChoice возвращает индекс первого выбора, чья корзина исхода
// совпадает с total, в порядке хранения. Если совпадений нет - индекс выбора,
// запустившего бросок. -1 только для пустого списка.
func ResolveOutcomeChoice(texts []string, total, triggerIndex int) int {
	return ResolveParsed(markup.ParseAll(texts), total, triggerIndex)
}

// ResolveParsed то же, что ResolveOutcomeChoice, для заранее разобранных текстов.
func ResolveParsed(parsed []markup.Parsed, total, triggerIndex int) int {
	if len(parsed) == 0 {
		return -1
	}
	if idx := matchOutcome(parsed, total); idx >= 0 {
		return idx
	}
	return clampIndex(triggerIndex, len(parsed))
}

func matchOutcome(parsed []markup.Parsed, total int) int {
	for i, p := range parsed {
		if p.Outcome.Matches(total) {
			return i
		}
	}
	return -1
}

func clampIndex(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// Precedence порядок схем адресации, когда у страницы есть и явные
// success/failure страницы, и корзины в тексте выборов.
type Precedence string

const (
	PrecedenceExplicit Precedence = "explicit" // Явная цель важнее корзин
	PrecedenceRange    Precedence = "range"    // Корзины важнее явной цели
)

// ParsePrecedence разбирает значение из конфигурации. Пустая строка - explicit.
func ParsePrecedence(s string) (Precedence, error) {
	switch Precedence(strings.ToLower(strings.TrimSpace(s))) {
	case "", PrecedenceExplicit:
		return PrecedenceExplicit, nil
	case PrecedenceRange:
		return PrecedenceRange, nil
	}
	return "", fmt.Errorf("unknown dice precedence %q", s)
}

// Source как был выбран итоговый индекс.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceOutcome  Source = "outcome"
	SourceFallback Source = "fallback"
)

// Resolution итог маршрутизации броска.
type Resolution struct {
	ChoiceIndex int    `json:"choice_index"`
	Source      Source `json:"source"`
}

// Resolver выбирает реальный выбор страницы по результату проверки.
type Resolver struct {
	precedence Precedence
}

func NewResolver(precedence Precedence) *Resolver {
	if precedence == "" {
		precedence = PrecedenceExplicit
	}
	return &Resolver{precedence: precedence}
}

func (r *Resolver) Precedence() Precedence {
	return r.precedence
}

// Resolve никогда не паникует. Явная цель разрешается в первый выбор страницы,
// ведущий на нее; если такого нет, используется другая схема, затем triggerIndex.
// ChoiceIndex равен -1 только при пустом списке выборов.
func (r *Resolver) Resolve(choices []models.Choice, parsed []markup.Parsed, trigger *models.DiceRoll, triggerIndex int, result CheckResult) Resolution {
	if len(choices) == 0 {
		return Resolution{ChoiceIndex: -1, Source: SourceFallback}
	}
	if len(parsed) != len(choices) {
		parsed = make([]markup.Parsed, len(choices))
		for i, ch := range choices {
			parsed[i] = markup.Parse(ch.Text)
		}
	}

	explicit := func() int {
		target, ok := trigger.ExplicitTarget(result.Success)
		if !ok {
			return -1
		}
		for i, ch := range choices {
			if ch.TargetPageID == target {
				return i
			}
		}
		return -1
	}

	order := []Source{SourceExplicit, SourceOutcome}
	if r.precedence == PrecedenceRange {
		order = []Source{SourceOutcome, SourceExplicit}
	}
	for _, src := range order {
		idx := -1
		switch src {
		case SourceExplicit:
			idx = explicit()
		case SourceOutcome:
			idx = matchOutcome(parsed, result.Total)
		}
		if idx >= 0 {
			return Resolution{ChoiceIndex: idx, Source: src}
		}
	}
	return Resolution{ChoiceIndex: clampIndex(triggerIndex, len(choices)), Source: SourceFallback}
}
