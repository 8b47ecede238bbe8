package editor

import (
	"context"
	"fmt"
	"strings"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddPage создает пустую страницу в бэкенде (нужен ее id) и добавляет узел
// в заданную позицию или в следующую клетку сетки.
func (m *Model) AddPage(ctx context.Context, pos *models.Position) (*models.FlowNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	content := ""
	isEnding := false
	choices := []models.Choice{}
	page, err := m.store.CreatePage(ctx, m.storyID, models.PageFields{Content: &content, IsEnding: &isEnding, Choices: &choices})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page = page.Clone()
	if page.Choices == nil {
		page.Choices = []models.Choice{}
	}

	at := m.opts.Grid.Position(len(m.order))
	if pos != nil {
		at = *pos
	}
	m.order = append(m.order, page.ID)
	if err := m.commitLocked(page, models.PageFields{}, &at); err != nil {
		// Страница уже создана в бэкенде, узел показываем, позиция будет сеточной
		m.pages[page.ID] = page
		m.positions[page.ID] = at
		m.log.Warn("Failed to queue position of the new page", zap.Stringer("pageID", page.ID), zap.Error(err))
	}
	m.log.Debug("Page added", zap.Stringer("pageID", page.ID))
	return &models.FlowNode{ID: page.ID, Position: at, Page: page.Clone()}, nil
}

// DeletePage удаляет страницу в бэкенде, затем ее узел и все инцидентные ребра.
// Выборы других страниц, ведущие на нее, остаются и становятся висящими:
// модель их не чинит и удаление не блокирует (см. Integrity).
func (m *Model) DeletePage(ctx context.Context, pageID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.pageLocked(pageID); err != nil {
		return err
	}
	if err := m.store.DeletePage(ctx, pageID); err != nil {
		return fmt.Errorf("delete page %s: %w", pageID, err)
	}

	delete(m.pages, pageID)
	delete(m.positions, pageID)
	for i, id := range m.order {
		if id == pageID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.syncer != nil {
		m.syncer.Discard(ctx, pageID)
	}
	if m.layout != nil {
		if err := m.layout.DeletePosition(ctx, m.storyID, pageID); err != nil {
			m.log.Warn("Failed to delete saved position", zap.Stringer("pageID", pageID), zap.Error(err))
		}
	}
	m.log.Info("Page deleted", zap.Stringer("pageID", pageID))
	return nil
}

// Connect единственный способ создать выбор через редактор: ребро с текстом
// по умолчанию и ровно один новый выбор в конце списка исходной страницы.
func (m *Model) Connect(sourceID, targetID uuid.UUID) (*models.FlowEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, err := m.pageLocked(sourceID)
	if err != nil {
		return nil, err
	}
	if _, err := m.pageLocked(targetID); err != nil {
		return nil, err
	}
	if sourceID == targetID {
		return nil, models.ErrSelfLoop
	}
	if source.ChoiceIndexByTarget(targetID) >= 0 {
		return nil, models.ErrDuplicateTarget
	}
	if m.opts.EnforceEndingInvariant && source.IsEnding {
		return nil, models.ErrEndingHasChoices
	}

	next := source.Clone()
	next.Choices = append(next.Choices, models.Choice{Text: m.opts.DefaultChoiceLabel, TargetPageID: targetID})
	if err := m.commitLocked(next, models.ChoicesField(next.Choices), nil); err != nil {
		return nil, err
	}
	return &models.FlowEdge{
		ID:          models.EdgeID(sourceID, targetID),
		Source:      sourceID,
		Target:      targetID,
		Label:       m.opts.DefaultChoiceLabel,
		ChoiceIndex: len(next.Choices) - 1,
	}, nil
}

// choiceForEdge находит выбор ребра по цели. Индекс не используется:
// у страницы не бывает двух выборов с одной целью.
func (m *Model) choiceForEdge(edgeID string, sourceID, targetID uuid.UUID) (*models.Page, int, error) {
	source, err := m.pageLocked(sourceID)
	if err != nil {
		return nil, -1, err
	}
	if edgeID != "" && edgeID != models.EdgeID(sourceID, targetID) {
		return nil, -1, fmt.Errorf("%w: %s does not connect %s to %s", models.ErrEdgeNotFound, edgeID, sourceID, targetID)
	}
	idx := source.ChoiceIndexByTarget(targetID)
	if idx < 0 {
		return nil, -1, models.ErrEdgeNotFound
	}
	return source, idx, nil
}

// UpdateEdgeLabel переименовывает ребро и соответствующий выбор.
func (m *Model) UpdateEdgeLabel(edgeID, text string, sourceID, targetID uuid.UUID) (*models.FlowEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateChoiceText(text); err != nil {
		return nil, invalid(err)
	}
	source, idx, err := m.choiceForEdge(edgeID, sourceID, targetID)
	if err != nil {
		return nil, err
	}
	next := source.Clone()
	next.Choices[idx].Text = text
	if err := m.commitLocked(next, models.ChoicesField(next.Choices), nil); err != nil {
		return nil, err
	}
	return &models.FlowEdge{ID: models.EdgeID(sourceID, targetID), Source: sourceID, Target: targetID, Label: text, ChoiceIndex: idx}, nil
}

// DeleteEdge удаляет ребро вместе с выбором.
func (m *Model) DeleteEdge(edgeID string, sourceID, targetID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, idx, err := m.choiceForEdge(edgeID, sourceID, targetID)
	if err != nil {
		return err
	}
	next := source.Clone()
	next.Choices = append(next.Choices[:idx], next.Choices[idx+1:]...)
	return m.commitLocked(next, models.ChoicesField(next.Choices), nil)
}

// UpdateNodeData сливает частичные поля в страницу. Списки заменяются целиком.
func (m *Model) UpdateNodeData(nodeID uuid.UUID, fields models.PageFields) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, err := m.pageLocked(nodeID)
	if err != nil {
		return nil, err
	}
	if fields.IsEmpty() {
		return page.Clone(), nil
	}
	if err := validatePageFields(fields); err != nil {
		return nil, err
	}

	next := page.Clone()
	fields.ApplyTo(next)
	if m.opts.EnforceEndingInvariant && next.ViolatesEndingInvariant() {
		return nil, models.ErrEndingHasChoices
	}
	if fields.Choices != nil {
		seen := make(map[uuid.UUID]bool, len(next.Choices))
		for _, ch := range next.Choices {
			if seen[ch.TargetPageID] {
				return nil, models.ErrDuplicateTarget
			}
			seen[ch.TargetPageID] = true
		}
	}
	if !next.IsEnding && next.EndingType != "" && fields.IsEnding != nil {
		// Снятие флага концовки сбрасывает ее категорию
		empty := models.EndingType("")
		next.EndingType = empty
		fields.EndingType = &empty
	}
	if err := m.commitLocked(next, fields, nil); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// MoveNode меняет позицию узла. Позиция сохраняется тем же отложенным сбросом.
func (m *Model) MoveNode(nodeID uuid.UUID, pos models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, err := m.pageLocked(nodeID)
	if err != nil {
		return err
	}
	return m.commitLocked(page, models.PageFields{}, &pos)
}

// UpdateStory обновляет метаданные истории напрямую, без очереди.
func (m *Model) UpdateStory(ctx context.Context, fields models.StoryFields) (*models.Story, error) {
	if fields.Title != nil && strings.TrimSpace(*fields.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be blank", models.ErrInvalidInput)
	}
	if fields.Status != nil && *fields.Status != models.StoryStatusDraft && *fields.Status != models.StoryStatusPublished {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, *fields.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	story, err := m.store.UpdateStory(ctx, m.storyID, fields)
	if err != nil {
		return nil, fmt.Errorf("update story %s: %w", m.storyID, err)
	}
	if story == nil {
		// Бэкенд не вернул тело - применяем поля к локальной копии
		if m.story == nil {
			m.story = &models.Story{ID: m.storyID}
		}
		cp := *m.story
		fields.ApplyTo(&cp)
		story = &cp
	}
	m.story = story
	s := *story
	return &s, nil
}
