package editor

import (
	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// Integrity собирает структурные проблемы графа. Ничего не исправляет:
// висящие выборы и дубли целей автор чинит вручную.
// Недостижимые страницы считаются от первой страницы истории.
func (m *Model) Integrity() models.IntegrityReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := models.IntegrityReport{
		DanglingChoices:   []models.ChoiceRef{},
		DuplicateTargets:  []models.ChoiceRef{},
		EndingsWithChoice: []uuid.UUID{},
		Unreachable:       []uuid.UUID{},
	}
	for _, id := range m.order {
		page := m.pages[id]
		if page.ViolatesEndingInvariant() {
			report.EndingsWithChoice = append(report.EndingsWithChoice, id)
		}
		seen := make(map[uuid.UUID]bool, len(page.Choices))
		for i, ch := range page.Choices {
			ref := models.ChoiceRef{PageID: id, ChoiceIndex: i, TargetPageID: ch.TargetPageID}
			if _, ok := m.pages[ch.TargetPageID]; !ok {
				report.DanglingChoices = append(report.DanglingChoices, ref)
			}
			if seen[ch.TargetPageID] {
				report.DuplicateTargets = append(report.DuplicateTargets, ref)
			}
			seen[ch.TargetPageID] = true
		}
	}

	if len(m.order) == 0 {
		return report
	}
	reached := map[uuid.UUID]bool{m.order[0]: true}
	queue := []uuid.UUID{m.order[0]}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		page := m.pages[id]
		targets := make([]uuid.UUID, 0, len(page.Choices)+len(page.Hotspots))
		for _, ch := range page.Choices {
			targets = append(targets, ch.TargetPageID)
			if ch.DiceRoll != nil {
				for _, ok := range []bool{true, false} {
					if t, has := ch.DiceRoll.ExplicitTarget(ok); has {
						targets = append(targets, t)
					}
				}
			}
		}
		for _, h := range page.Hotspots {
			targets = append(targets, h.TargetPageID)
		}
		for _, t := range targets {
			if _, exists := m.pages[t]; exists && !reached[t] {
				reached[t] = true
				queue = append(queue, t)
			}
		}
	}
	for _, id := range m.order {
		if !reached[id] {
			report.Unreachable = append(report.Unreachable, id)
		}
	}
	return report
}
