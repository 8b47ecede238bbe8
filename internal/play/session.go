// Package play реализует машину состояний прохождения истории читателем.
//
// Страницы истории загружаются один раз при старте. Дальше сессия живет в памяти,
// а во внешний бэкенд уходят только вызовы makeChoice (и getPage, если следующей
// страницы нет в загруженных).
//
// Инвентарь и временные бонусы - мягкое состояние: они выводятся из текста выборов,
// живут только в памяти сессии и не сохраняются в бэкенде.
package play

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gamebook-server/internal/dice"
	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/markup"
	"gamebook-server/internal/metrics"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State состояние машины прохождения.
type State string

const (
	StateSelectingClass   State = "selecting_class"
	StatePlaying          State = "playing"
	StateAwaitingDiceRoll State = "awaiting_dice_roll"
	StateEnded            State = "ended"
)

// PendingCheck проверка, ожидающая броска.
type PendingCheck struct {
	PageID      uuid.UUID         `json:"page_id"`
	ChoiceIndex int               `json:"choice_index"`
	HotspotID   *uuid.UUID        `json:"hotspot_id,omitempty"`
	CheckType   models.CheckType  `json:"check_type"`
	Difficulty  int               `json:"difficulty"`
	Bonus       int               `json:"bonus"`
	Result      *dice.CheckResult `json:"result,omitempty"` // Уже выпавший результат, если фиксация не удалась

	trigger *models.DiceRoll
}

// Deps зависимости сессии.
type Deps struct {
	Backend  interfaces.Backend
	Engine   *dice.Engine
	Resolver *dice.Resolver
	Rules    *Rules
	Markup   *markup.Cache
	Events   interfaces.PlayEventPublisher // может быть nil
	Metrics  *metrics.Metrics              // может быть nil
	Logger   *zap.Logger
	Now      func() time.Time
}

func (d *Deps) withDefaults() {
	if d.Resolver == nil {
		d.Resolver = dice.NewResolver(dice.PrecedenceExplicit)
	}
	if d.Rules == nil {
		d.Rules = DefaultRules()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Session живое прохождение. Все операции сериализуются мьютексом сессии,
// в том числе на время внешних вызовов.
type Session struct {
	mu   sync.Mutex
	deps Deps
	log  *zap.Logger

	record    models.GameSession
	pages     map[uuid.UUID]*models.Page
	state     State
	class     *ClassProfile
	inventory []string
	buffs     map[markup.Skill]int
	pending   *PendingCheck
	lastRoll  *dice.CheckResult
	lastRes   *dice.Resolution
}

// Start начинает новое прохождение: startSession + getPages.
func Start(ctx context.Context, deps Deps, storyID uuid.UUID, preview bool) (*Session, error) {
	deps.withDefaults()
	gs, err := deps.Backend.StartSession(ctx, storyID, preview)
	if err != nil {
		return nil, fmt.Errorf("start session for story %s: %w", storyID, err)
	}
	s, err := load(ctx, deps, gs)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.PlayEvent{Type: models.PlayEventStarted, PageID: s.record.CurrentPageID})
	return s, nil
}

// Resume восстанавливает прохождение по данным бэкенда. Мягкое состояние
// (класс, инвентарь, бонусы) не восстанавливается.
func Resume(ctx context.Context, deps Deps, sessionID uuid.UUID) (*Session, error) {
	deps.withDefaults()
	gs, err := deps.Backend.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return load(ctx, deps, gs)
}

func load(ctx context.Context, deps Deps, gs *models.GameSession) (*Session, error) {
	if gs == nil {
		return nil, fmt.Errorf("backend returned empty session: %w", models.ErrNetwork)
	}
	pages, err := deps.Backend.GetPages(ctx, gs.StoryID)
	if err != nil {
		return nil, fmt.Errorf("get pages for story %s: %w", gs.StoryID, err)
	}

	s := &Session{
		deps:   deps,
		log:    deps.Logger.Named("PlaySession").With(zap.Stringer("sessionID", gs.ID), zap.Stringer("storyID", gs.StoryID)),
		record: *gs,
		pages:  make(map[uuid.UUID]*models.Page, len(pages)),
		buffs:  make(map[markup.Skill]int),
	}
	s.record.History = append([]uuid.UUID(nil), gs.History...)
	for i := range pages {
		p := pages[i]
		s.pages[p.ID] = &p
	}

	current, err := s.pageFor(ctx, gs.CurrentPageID)
	if err != nil {
		return nil, err
	}
	// getPages может не вернуть текущую страницу, тогда она пришла из getPage
	s.pages[current.ID] = current

	switch {
	case gs.Status != models.SessionInProgress || current.IsTerminal():
		s.state = StateEnded
	case s.offersClass(current):
		s.state = StateSelectingClass
	default:
		s.state = StatePlaying
	}
	s.log.Debug("Play session loaded", zap.Int("pages", len(pages)), zap.String("state", string(s.state)))
	return s, nil
}

// pageFor возвращает страницу из загруженных или через getPage. Кэш не меняется.
func (s *Session) pageFor(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	if p, ok := s.pages[id]; ok {
		return p, nil
	}
	p, err := s.deps.Backend.GetPage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", id, err)
	}
	return p, nil
}

func (s *Session) currentPage() (*models.Page, error) {
	if p := s.pages[s.record.CurrentPageID]; p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("current page %s: %w", s.record.CurrentPageID, models.ErrPageNotFound)
}

func (s *Session) parse(text string) markup.Parsed {
	return s.deps.Markup.Get(text)
}

func (s *Session) parsePage(p *models.Page) []markup.Parsed {
	out := make([]markup.Parsed, len(p.Choices))
	for i, ch := range p.Choices {
		out[i] = s.parse(ch.Text)
	}
	return out
}

func (s *Session) offersClass(p *models.Page) bool {
	for _, ch := range p.Choices {
		if s.parse(ch.Text).ClassOption != "" {
			return true
		}
	}
	return false
}

// hasRollTrigger - на странице есть выбор или зона, запускающие бросок.
// Тогда выборы-корзины не показываются читателю и достигаются только броском.
func (s *Session) hasRollTrigger(p *models.Page) bool {
	for _, ch := range p.Choices {
		if ch.RequiresRoll() || s.parse(ch.Text).Check != nil {
			return true
		}
	}
	for _, h := range p.Hotspots {
		if h.DiceRoll != nil && h.DiceRoll.Enabled {
			return true
		}
	}
	return false
}

func (s *Session) hasItem(item string) bool {
	for _, it := range s.inventory {
		if strings.EqualFold(it, item) {
			return true
		}
	}
	return false
}

// lockReason пустая строка, если выбор доступен.
func (s *Session) lockReason(p *models.Page, idx int, parsed markup.Parsed) string {
	ch := p.Choices[idx]
	if parsed.IsOutcome() && s.hasRollTrigger(p) {
		return "resolved by dice roll"
	}
	if parsed.ClassGate != "" && (s.class == nil || !strings.EqualFold(s.class.Name, parsed.ClassGate)) {
		return "requires class " + parsed.ClassGate
	}
	if parsed.ClassOption != "" && s.class != nil && !strings.EqualFold(s.class.Name, parsed.ClassOption) {
		return "class already chosen"
	}
	if ch.Condition != nil && ch.Condition.Type == models.ConditionHasItem && !s.hasItem(ch.Condition.Item) {
		return "requires item " + ch.Condition.Item
	}
	return ""
}

// resolveClass возвращает профиль для имени класса на текущей странице.
// Класс, предложенный страницей, но не зарегистрированный, получает нулевые бонусы.
func (s *Session) resolveClass(p *models.Page, name string) (*ClassProfile, error) {
	name = strings.TrimSpace(name)
	if profile, ok := s.deps.Rules.Class(name); ok {
		return &profile, nil
	}
	for _, ch := range p.Choices {
		if opt := s.parse(ch.Text).ClassOption; opt != "" && strings.EqualFold(opt, name) {
			return &ClassProfile{Name: opt, Bonuses: map[markup.Skill]int{}}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnknownClass, name)
}

// SelectClass привязывает класс к сессии. Внешних вызовов нет.
func (s *Session) SelectClass(name string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSelectingClass {
		if s.state == StateEnded {
			return nil, models.ErrSessionEnded
		}
		return nil, models.ErrClassAlreadyBound
	}
	page, err := s.currentPage()
	if err != nil {
		return nil, err
	}
	profile, err := s.resolveClass(page, name)
	if err != nil {
		return nil, err
	}
	s.class = profile
	s.state = StatePlaying
	s.log.Info("Class selected", zap.String("class", profile.Name))
	return s.snapshotLocked(), nil
}

func (s *Session) checkActive() error {
	switch s.state {
	case StateEnded:
		return models.ErrSessionEnded
	case StateAwaitingDiceRoll:
		return models.ErrRollPending
	}
	return nil
}

// ChooseOption выбор читателя на странице pageID.
// Выбор с маркером проверки переводит сессию в AwaitingDiceRoll без внешних вызовов.
func (s *Session) ChooseOption(ctx context.Context, pageID uuid.UUID, choiceIndex int) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return nil, err
	}
	if pageID != s.record.CurrentPageID {
		return nil, models.ErrStalePage
	}
	if err := s.chooseLocked(ctx, choiceIndex, nil); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

func (s *Session) chooseLocked(ctx context.Context, idx int, hotspotID *uuid.UUID) error {
	page, err := s.currentPage()
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(page.Choices) {
		return models.ErrChoiceOutOfRange
	}
	choice := page.Choices[idx]
	parsed := s.parse(choice.Text)

	var bindClass *ClassProfile
	if s.state == StateSelectingClass {
		if parsed.ClassOption == "" {
			return models.ErrClassNotSelected
		}
		profile, err := s.resolveClass(page, parsed.ClassOption)
		if err != nil {
			return err
		}
		bindClass = profile
	}
	if reason := s.lockReason(page, idx, parsed); reason != "" {
		return fmt.Errorf("%w: %s", models.ErrChoiceUnavailable, reason)
	}

	var pending *PendingCheck
	switch {
	case choice.RequiresRoll():
		pending = &PendingCheck{CheckType: choice.DiceRoll.CheckType, Difficulty: markup.ClampDifficulty(choice.DiceRoll.Difficulty), trigger: choice.DiceRoll}
	case parsed.Check != nil:
		pending = &PendingCheck{CheckType: parsed.Check.Type, Difficulty: parsed.Check.Difficulty}
	}
	if pending != nil {
		if bindClass != nil {
			s.class = bindClass
		}
		pending.PageID = page.ID
		pending.ChoiceIndex = idx
		pending.HotspotID = hotspotID
		pending.Bonus = s.bonusLocked(pending.CheckType)
		s.pending = pending
		s.state = StateAwaitingDiceRoll
		s.log.Debug("Dice roll required", zap.Int("choiceIndex", idx), zap.String("checkType", string(pending.CheckType)), zap.Int("difficulty", pending.Difficulty))
		return nil
	}

	return s.commitLocked(ctx, idx, commitOpts{class: bindClass})
}

// ChooseHotspot зона на изображении как альтернативный триггер выбора.
func (s *Session) ChooseHotspot(ctx context.Context, pageID, hotspotID uuid.UUID) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return nil, err
	}
	if pageID != s.record.CurrentPageID {
		return nil, models.ErrStalePage
	}
	page, err := s.currentPage()
	if err != nil {
		return nil, err
	}
	h, _ := page.HotspotByID(hotspotID)
	if h == nil {
		return nil, models.ErrHotspotNotFound
	}
	idx := page.ChoiceIndexByTarget(h.TargetPageID)
	if idx < 0 {
		return nil, models.ErrNoChoiceForTarget
	}

	if h.DiceRoll == nil || !h.DiceRoll.Enabled {
		if err := s.chooseLocked(ctx, idx, &hotspotID); err != nil {
			return nil, err
		}
		return s.snapshotLocked(), nil
	}

	if s.state == StateSelectingClass {
		return nil, models.ErrClassNotSelected
	}
	if reason := s.lockReason(page, idx, s.parse(page.Choices[idx].Text)); reason != "" {
		return nil, fmt.Errorf("%w: %s", models.ErrChoiceUnavailable, reason)
	}
	id := hotspotID
	s.pending = &PendingCheck{
		PageID:      page.ID,
		ChoiceIndex: idx,
		HotspotID:   &id,
		CheckType:   h.DiceRoll.CheckType,
		Difficulty:  markup.ClampDifficulty(h.DiceRoll.Difficulty),
		Bonus:       s.bonusLocked(h.DiceRoll.CheckType),
		trigger:     h.DiceRoll,
	}
	s.state = StateAwaitingDiceRoll
	return s.snapshotLocked(), nil
}

// Roll бросает кубик для ожидающей проверки и фиксирует исход.
// Если прошлая фиксация не удалась, используется уже выпавший результат.
func (s *Session) Roll(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingDiceRoll || s.pending == nil {
		return nil, models.ErrNoPendingRoll
	}
	result := s.pending.Result
	if result == nil {
		if s.deps.Engine == nil {
			return nil, fmt.Errorf("dice engine is not configured: %w", models.ErrInvalidInput)
		}
		r := s.deps.Engine.RollCheck(s.pending.Difficulty, s.pending.Bonus)
		result = &r
	}
	if err := s.resolveLocked(ctx, *result); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

// ResolveDiceRoll фиксирует исход по готовому результату проверки.
// Результат, уже запомненный неудачной фиксацией, имеет приоритет.
func (s *Session) ResolveDiceRoll(ctx context.Context, result dice.CheckResult) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingDiceRoll || s.pending == nil {
		return nil, models.ErrNoPendingRoll
	}
	if err := s.resolveLocked(ctx, result); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

// resolveLocked фиксирует исход. Первый результат запоминается в pending:
// повтор после ошибки бэкенда маршрутизируется по нему, а не по новому броску.
func (s *Session) resolveLocked(ctx context.Context, result dice.CheckResult) error {
	page, err := s.currentPage()
	if err != nil {
		return err
	}
	pending := s.pending
	if pending.Result == nil {
		r := result
		pending.Result = &r
		s.deps.Metrics.ObserveDiceCheck(string(pending.CheckType), result.Success)
	}
	result = *pending.Result

	res := s.deps.Resolver.Resolve(page.Choices, s.parsePage(page), pending.trigger, pending.ChoiceIndex, result)
	if res.ChoiceIndex < 0 {
		return models.ErrChoiceOutOfRange
	}

	skill, hasSkill := markup.SkillFor(pending.CheckType)
	err = s.commitLocked(ctx, res.ChoiceIndex, commitOpts{
		consumeSkill: skill,
		consume:      hasSkill,
		roll:         &result,
		resolution:   &res,
	})
	if err != nil {
		return err
	}
	s.log.Info("Dice roll resolved",
		zap.Int("roll", result.Roll),
		zap.Int("total", result.Total),
		zap.Bool("success", result.Success),
		zap.Int("choiceIndex", res.ChoiceIndex),
		zap.String("source", string(res.Source)),
	)
	return nil
}

type commitOpts struct {
	class        *ClassProfile
	consumeSkill markup.Skill
	consume      bool
	roll         *dice.CheckResult
	resolution   *dice.Resolution
}

// commitLocked makeChoice -> следующая страница -> история -> мягкие эффекты.
// Любая ошибка внешнего вызова оставляет состояние нетронутым.
func (s *Session) commitLocked(ctx context.Context, idx int, opts commitOpts) error {
	page, err := s.currentPage()
	if err != nil {
		return err
	}
	choice := page.Choices[idx]

	out, err := s.deps.Backend.MakeChoice(ctx, s.record.ID, idx)
	if err != nil {
		s.log.Warn("makeChoice failed", zap.Int("choiceIndex", idx), zap.Error(err))
		return fmt.Errorf("make choice %d: %w", idx, err)
	}

	nextID := choice.TargetPageID
	if out != nil && out.Session != nil && out.Session.CurrentPageID != uuid.Nil {
		nextID = out.Session.CurrentPageID
	}
	var next *models.Page
	if out != nil && out.Page != nil && out.Page.ID == nextID {
		next = out.Page
	} else {
		next, err = s.pageFor(ctx, nextID)
		if err != nil {
			s.log.Warn("Next page could not be loaded", zap.Stringer("pageID", nextID), zap.Error(err))
			return err
		}
	}

	// Дальше только изменения в памяти
	prevHistory := s.record.History
	if out != nil && out.Session != nil {
		s.record = *out.Session
	}
	s.record.CurrentPageID = nextID
	if out != nil && out.Session != nil && len(out.Session.History) > len(prevHistory) {
		s.record.History = append([]uuid.UUID(nil), out.Session.History...)
	} else {
		s.record.History = append(append([]uuid.UUID(nil), prevHistory...), nextID)
	}
	s.pages[next.ID] = next

	if opts.class != nil {
		s.class = opts.class
	}
	parsed := s.parse(choice.Text)
	for _, item := range parsed.Items {
		s.addItem(item)
	}
	for _, r := range choice.Rewards {
		if r.Type == models.RewardAddItem {
			s.addItem(r.Item)
		}
	}
	if opts.consume {
		delete(s.buffs, opts.consumeSkill)
	}
	for _, b := range parsed.Buffs {
		s.buffs[b.Skill] += b.Amount
	}
	s.pending = nil
	s.lastRoll = opts.roll
	s.lastRes = opts.resolution

	if next.IsTerminal() {
		s.state = StateEnded
		if s.record.Status == models.SessionInProgress || s.record.Status == "" {
			s.record.Status = models.SessionCompleted
		}
	} else {
		s.state = StatePlaying
	}

	s.deps.Metrics.ObserveChoice(s.record.IsPreview)
	ci := idx
	choiceEvent := models.PlayEvent{Type: models.PlayEventChoice, PageID: page.ID, ChoiceIndex: &ci}
	if opts.roll != nil {
		roll, total, success := opts.roll.Roll, opts.roll.Total, opts.roll.Success
		s.publish(ctx, models.PlayEvent{Type: models.PlayEventDice, PageID: page.ID, ChoiceIndex: &ci, Roll: &roll, Total: &total, Success: &success})
	}
	s.publish(ctx, choiceEvent)
	if s.state == StateEnded {
		s.publish(ctx, models.PlayEvent{Type: models.PlayEventEnded, PageID: next.ID, EndingType: next.EndingType})
		s.log.Info("Play session ended", zap.Stringer("pageID", next.ID), zap.String("endingType", string(next.EndingType)))
	}
	return nil
}

func (s *Session) addItem(item string) {
	item = strings.TrimSpace(item)
	if item == "" || s.hasItem(item) {
		return
	}
	s.inventory = append(s.inventory, item)
}

// Bonus бонус к проверке: класс + снаряжение + временные бонусы.
func (s *Session) Bonus(ct models.CheckType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bonusLocked(ct)
}

func (s *Session) bonusLocked(ct models.CheckType) int {
	skill, ok := markup.SkillFor(ct)
	if !ok {
		return 0
	}
	return s.class.Bonus(skill) + s.deps.Rules.EquipmentBonus(s.inventory, skill) + s.buffs[skill]
}

// Abandon локально завершает сессию, когда читатель уходит со страницы.
func (s *Session) Abandon(ctx context.Context) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEnded {
		s.state = StateEnded
		s.pending = nil
		s.record.Status = models.SessionAbandoned
		s.publish(ctx, models.PlayEvent{Type: models.PlayEventEnded, PageID: s.record.CurrentPageID})
		s.log.Info("Play session abandoned")
	}
	return s.snapshotLocked()
}

// ID идентификатор сессии бэкенда.
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.ID
}

// State текущее состояние машины.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) publish(ctx context.Context, ev models.PlayEvent) {
	if s.deps.Events == nil {
		return
	}
	ev.SessionID = s.record.ID
	ev.StoryID = s.record.StoryID
	ev.IsPreview = s.record.IsPreview
	ev.OccurredAt = s.deps.Now().UTC()
	if err := s.deps.Events.PublishPlayEvent(ctx, ev); err != nil {
		s.deps.Metrics.IncPlayEventFailures()
		s.log.Error("Failed to publish play event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
