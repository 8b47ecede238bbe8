// Package editor модель графа истории для визуального редактора.
//
// Источник истины - списки выборов страниц. Узлы и ребра графа - производная
// проекция, которая пересчитывается в Graph(). Отдельно хранятся только позиции узлов.
// Каждая мутация ставит запись в очередь координатора автосохранения
// и перевзводит его таймер; синхронной записи в бэкенд нет (кроме создания
// и удаления страниц, которым нужен ответ бэкенда).
package editor

import (
	"context"
	"fmt"
	"sync"

	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultChoiceLabel текст выбора, созданного соединением узлов.
const DefaultChoiceLabel = "Continuer"

// Syncer очередь записей автосохранения. Реализуется autosave.Coordinator.
type Syncer interface {
	Queue(update models.PendingUpdate) error
	ScheduleSave()
	Discard(ctx context.Context, pageID uuid.UUID)
}

// Store операции бэкенда, нужные редактору.
type Store interface {
	interfaces.StoryStore
	interfaces.PageStore
}

// Options поведение модели.
type Options struct {
	Grid                   GridConfig
	EnforceEndingInvariant bool
	DefaultChoiceLabel     string
}

// DefaultOptions сетка по умолчанию, инвариант концовки включен.
func DefaultOptions() Options {
	return Options{Grid: DefaultGrid(), EnforceEndingInvariant: true, DefaultChoiceLabel: DefaultChoiceLabel}
}

// Deps зависимости модели. Layout и Journal необязательны.
type Deps struct {
	Store   Store
	Layout  interfaces.LayoutRepository
	Journal interfaces.DraftJournal
	Sync    Syncer
	Logger  *zap.Logger
	Options Options
}

// Model граф одной истории в рамках одной сессии редактора.
type Model struct {
	mu     sync.Mutex
	store  Store
	layout interfaces.LayoutRepository
	syncer Syncer
	opts   Options
	log    *zap.Logger

	storyID   uuid.UUID
	story     *models.Story
	pages     map[uuid.UUID]*models.Page
	order     []uuid.UUID
	positions map[uuid.UUID]models.Position
}

// Load загружает историю, страницы и позиции и восстанавливает несохраненные
// записи из журнала. Восстановленные записи ставятся в очередь, но не сбрасываются сами.
func Load(ctx context.Context, deps Deps, storyID uuid.UUID) (*Model, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Options.DefaultChoiceLabel == "" {
		deps.Options.DefaultChoiceLabel = DefaultChoiceLabel
	}
	log := deps.Logger.Named("StoryGraph").With(zap.Stringer("storyID", storyID))

	story, err := deps.Store.GetStory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("get story %s: %w", storyID, err)
	}
	pages, err := deps.Store.GetPages(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("get pages for story %s: %w", storyID, err)
	}

	m := &Model{
		store:     deps.Store,
		layout:    deps.Layout,
		syncer:    deps.Sync,
		opts:      deps.Options,
		log:       log,
		storyID:   storyID,
		story:     story,
		pages:     make(map[uuid.UUID]*models.Page, len(pages)),
		order:     make([]uuid.UUID, 0, len(pages)),
		positions: make(map[uuid.UUID]models.Position, len(pages)),
	}
	for i := range pages {
		p := pages[i].Clone()
		if p.Choices == nil {
			p.Choices = []models.Choice{}
		}
		m.pages[p.ID] = p
		m.order = append(m.order, p.ID)
	}

	var saved map[uuid.UUID]models.Position
	if deps.Layout != nil {
		saved, err = deps.Layout.GetPositions(ctx, storyID)
		if err != nil {
			// Раскладка не критична: узлы без позиции получают место в сетке
			log.Warn("Failed to load saved positions, falling back to grid", zap.Error(err))
			saved = nil
		}
	}
	for i, id := range m.order {
		if pos, ok := saved[id]; ok {
			m.positions[id] = pos
			continue
		}
		m.positions[id] = m.opts.Grid.Position(i)
	}

	if deps.Journal != nil {
		m.recover(ctx, deps.Journal)
	}
	log.Info("Story graph loaded", zap.Int("pages", len(m.order)))
	return m, nil
}

// recover применяет записи журнала поверх загруженных страниц.
func (m *Model) recover(ctx context.Context, journal interfaces.DraftJournal) {
	records, err := journal.Load(ctx, m.storyID)
	if err != nil {
		m.log.Warn("Failed to load draft journal", zap.Error(err))
		return
	}
	var stale []uuid.UUID
	for _, rec := range records {
		page, ok := m.pages[rec.PageID]
		if !ok {
			stale = append(stale, rec.PageID)
			continue
		}
		rec.Fields.ApplyTo(page)
		if rec.Position != nil {
			m.positions[rec.PageID] = *rec.Position
		}
		if m.syncer != nil {
			if err := m.syncer.Queue(rec); err != nil {
				m.log.Warn("Failed to requeue journaled update", zap.Stringer("pageID", rec.PageID), zap.Error(err))
			}
		}
	}
	if len(stale) > 0 {
		if err := journal.Remove(ctx, m.storyID, stale); err != nil {
			m.log.Warn("Failed to drop journal records of deleted pages", zap.Error(err))
		}
	}
	if len(records) > 0 {
		m.log.Info("Recovered unsaved edits from draft journal", zap.Int("records", len(records)-len(stale)))
	}
}

// StoryID идентификатор истории.
func (m *Model) StoryID() uuid.UUID {
	return m.storyID
}

// Story копия метаданных истории.
func (m *Model) Story() *models.Story {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.story == nil {
		return nil
	}
	s := *m.story
	s.Tags = append([]string(nil), m.story.Tags...)
	return &s
}

// Page копия страницы.
func (m *Model) Page(id uuid.UUID) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[id]
	if !ok {
		return nil, models.ErrPageNotFound
	}
	return p.Clone(), nil
}

// Graph пересчитывает проекцию: узел на страницу, ребро на каждый выбор
// с существующей целью. Висящие выборы ребер не дают.
func (m *Model) Graph() *models.FlowGraph {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.graphLocked()
}

func (m *Model) graphLocked() *models.FlowGraph {
	g := &models.FlowGraph{
		StoryID: m.storyID,
		Nodes:   make([]models.FlowNode, 0, len(m.order)),
		Edges:   []models.FlowEdge{},
	}
	if m.story != nil {
		s := *m.story
		g.Story = &s
	}
	for _, id := range m.order {
		page := m.pages[id]
		g.Nodes = append(g.Nodes, models.FlowNode{ID: id, Position: m.positions[id], Page: page.Clone()})
		for i, ch := range page.Choices {
			if _, ok := m.pages[ch.TargetPageID]; !ok {
				continue
			}
			g.Edges = append(g.Edges, models.FlowEdge{
				ID:          models.EdgeID(id, ch.TargetPageID),
				Source:      id,
				Target:      ch.TargetPageID,
				Label:       ch.Text,
				ChoiceIndex: i,
			})
		}
	}
	return g
}

// commitLocked ставит запись в очередь и только потом заменяет страницу в памяти,
// чтобы отказ очереди не оставил частичных изменений.
func (m *Model) commitLocked(next *models.Page, fields models.PageFields, pos *models.Position) error {
	update := models.PendingUpdate{PageID: next.ID, Fields: fields, Position: pos}
	if m.syncer != nil {
		if err := m.syncer.Queue(update); err != nil {
			return err
		}
	}
	m.pages[next.ID] = next
	if pos != nil {
		m.positions[next.ID] = *pos
	}
	if m.syncer != nil {
		m.syncer.ScheduleSave()
	}
	return nil
}

func (m *Model) pageLocked(id uuid.UUID) (*models.Page, error) {
	p, ok := m.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrPageNotFound, id)
	}
	return p, nil
}
