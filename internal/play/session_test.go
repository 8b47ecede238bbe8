package play_test

import (
	"context"
	"errors"
	"testing"

	"gamebook-server/internal/dice"
	"gamebook-server/internal/interfaces/mocks"
	"gamebook-server/internal/markup"
	"gamebook-server/internal/models"
	"gamebook-server/internal/play"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRoller struct {
	faces []int
	next  int
}

func (s *stubRoller) Intn(n int) int {
	face := s.faces[s.next%len(s.faces)]
	s.next++
	return face - 1
}

// story тестовая история: выбор класса, зал с троллем, оружейная и концовки.
type story struct {
	id                                             uuid.UUID
	start, hall, armory, win, retreat, lose, vault uuid.UUID
	trollHotspot, vaultHotspot                     uuid.UUID
	pages                                          []models.Page
}

func newStory() *story {
	s := &story{
		id: uuid.New(), start: uuid.New(), hall: uuid.New(), armory: uuid.New(),
		win: uuid.New(), retreat: uuid.New(), lose: uuid.New(), vault: uuid.New(),
		trollHotspot: uuid.New(), vaultHotspot: uuid.New(),
	}
	s.pages = []models.Page{
		{ID: s.start, StoryID: s.id, Content: "Qui êtes-vous ?", Choices: []models.Choice{
			{Text: "Classe: Guerrier", TargetPageID: s.hall},
			{Text: "Classe: Mage", TargetPageID: s.hall},
			{Text: "Classe: Nécromancien", TargetPageID: s.hall},
		}},
		{ID: s.hall, StoryID: s.id, Content: "Un troll garde le passage.", Choices: []models.Choice{
			{Text: "Attaquer le troll [COMBAT 12]", TargetPageID: s.win},
			{Text: "≥15 Victoire", TargetPageID: s.win},
			{Text: "10-14 Retraite", TargetPageID: s.retreat},
			{Text: "<10 Défaite", TargetPageID: s.lose},
			{Text: "[CLASSE Mage] Lancer un sort", TargetPageID: s.win},
			{Text: "Fouiller l'armurerie [+Épée] [BONUS +1 COMBAT]", TargetPageID: s.armory},
		}, Hotspots: []models.Hotspot{
			{ID: s.trollHotspot, X: 10, Y: 10, Width: 20, Height: 20, Label: "Troll", TargetPageID: s.win,
				DiceRoll: &models.DiceRoll{Enabled: true, Difficulty: 14, CheckType: models.CheckCombat}},
			{ID: s.vaultHotspot, X: 50, Y: 50, Width: 10, Height: 10, Label: "Coffre", TargetPageID: s.vault},
		}},
		{ID: s.armory, StoryID: s.id, Content: "Des armes partout.", Choices: []models.Choice{
			{Text: "Revenir", TargetPageID: s.hall, Condition: &models.Condition{Type: models.ConditionHasItem, Item: "Épée"}},
			{Text: "Ouvrir le coffre", TargetPageID: s.vault, Condition: &models.Condition{Type: models.ConditionHasItem, Item: "Clé"}},
		}},
		{ID: s.win, StoryID: s.id, Content: "Victoire.", IsEnding: true, EndingType: models.EndingSuccess, Choices: []models.Choice{}},
		{ID: s.retreat, StoryID: s.id, Content: "Retraite.", IsEnding: true, EndingType: models.EndingNeutral, Choices: []models.Choice{}},
		{ID: s.lose, StoryID: s.id, Content: "Défaite.", IsEnding: true, EndingType: models.EndingFailure, Choices: []models.Choice{}},
		{ID: s.vault, StoryID: s.id, Content: "Trésor.", IsEnding: true, EndingType: models.EndingSuccess, Choices: []models.Choice{}},
	}
	return s
}

func (s *story) page(id uuid.UUID) *models.Page {
	for i := range s.pages {
		if s.pages[i].ID == id {
			p := s.pages[i]
			return &p
		}
	}
	return nil
}

func (s *story) session(current uuid.UUID) *models.GameSession {
	return &models.GameSession{
		ID: uuid.New(), PlayerID: uuid.New(), StoryID: s.id,
		CurrentPageID: current, History: []uuid.UUID{current}, Status: models.SessionInProgress,
	}
}

func (s *story) outcome(gs *models.GameSession, next uuid.UUID) *models.ChoiceOutcome {
	updated := *gs
	updated.CurrentPageID = next
	updated.History = append(append([]uuid.UUID{}, gs.History...), next)
	if p := s.page(next); p != nil && p.IsEnding {
		updated.Status = models.SessionCompleted
	}
	return &models.ChoiceOutcome{Session: &updated, Page: s.page(next)}
}

func deps(backend *mocks.Backend, faces ...int) play.Deps {
	if len(faces) == 0 {
		faces = []int{10}
	}
	return play.Deps{
		Backend: backend,
		Engine:  dice.NewEngine(&stubRoller{faces: faces}),
		Markup:  markup.NewCache(0),
		Logger:  zap.NewNop(),
	}
}

func startAt(t *testing.T, st *story, backend *mocks.Backend, current uuid.UUID, faces ...int) (*play.Session, *models.GameSession) {
	t.Helper()
	ctx := context.Background()
	gs := st.session(current)
	backend.On("StartSession", ctx, st.id, false).Return(gs, nil).Once()
	backend.On("GetPages", ctx, st.id).Return(st.pages, nil).Once()
	s, err := play.Start(ctx, deps(backend, faces...), st.id, false)
	require.NoError(t, err)
	return s, gs
}

func TestClassSelection(t *testing.T) {
	ctx := context.Background()

	t.Run("Первая страница с выбором класса", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		s, _ := startAt(t, st, backend, st.start)
		assert.Equal(t, play.StateSelectingClass, s.State())

		snap := s.Snapshot()
		require.Len(t, snap.Choices, 3)
		assert.Equal(t, "class-option", snap.Choices[0].Kind)
		assert.Equal(t, "Guerrier", snap.Choices[0].Label)

		_, err := s.ChooseOption(ctx, st.hall, 0)
		assert.ErrorIs(t, err, models.ErrStalePage)

		snap, err = s.SelectClass("guerrier")
		require.NoError(t, err)
		assert.Equal(t, play.StatePlaying, snap.State)
		require.NotNil(t, snap.Class)
		assert.Equal(t, "Guerrier", snap.Class.Name)
		assert.Equal(t, 3, s.Bonus(models.CheckCombat))
		assert.Equal(t, 0, s.Bonus(models.CheckPersuasion))

		_, err = s.SelectClass("Mage")
		assert.ErrorIs(t, err, models.ErrClassAlreadyBound)
		backend.AssertNotCalled(t, "MakeChoice", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Неизвестный класс", func(t *testing.T) {
		st := newStory()
		s, _ := startAt(t, st, new(mocks.Backend), st.start)
		_, err := s.SelectClass("Paladin")
		assert.ErrorIs(t, err, models.ErrUnknownClass)
		assert.Equal(t, play.StateSelectingClass, s.State())
	})

	t.Run("Класс со страницы без профиля получает нулевые бонусы", func(t *testing.T) {
		st := newStory()
		s, _ := startAt(t, st, new(mocks.Backend), st.start)
		snap, err := s.SelectClass("Nécromancien")
		require.NoError(t, err)
		assert.Equal(t, "Nécromancien", snap.Class.Name)
		assert.Equal(t, 0, s.Bonus(models.CheckCombat))
	})

	t.Run("Выбор класса через выбор страницы фиксирует переход", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		s, gs := startAt(t, st, backend, st.start)

		_, err := s.ChooseOption(ctx, st.start, 5)
		assert.ErrorIs(t, err, models.ErrChoiceOutOfRange)

		backend.On("MakeChoice", ctx, gs.ID, 1).Return(st.outcome(gs, st.hall), nil).Once()
		snap, err := s.ChooseOption(ctx, st.start, 1)
		require.NoError(t, err)
		assert.Equal(t, play.StatePlaying, snap.State)
		assert.Equal(t, "Mage", snap.Class.Name)
		assert.Equal(t, st.hall, snap.Page.ID)
		assert.True(t, snap.Choices[4].Available, "выбор только для мага доступен")
		backend.AssertExpectations(t)
	})
}

func TestChooseOption(t *testing.T) {
	ctx := context.Background()

	t.Run("Ограничения по классу и скрытые корзины", func(t *testing.T) {
		st := newStory()
		s, _ := startAt(t, st, new(mocks.Backend), st.hall)
		snap := s.Snapshot()
		assert.Equal(t, play.StatePlaying, snap.State)
		assert.False(t, snap.Choices[4].Available)
		assert.Equal(t, "requires class Mage", snap.Choices[4].LockReason)
		for _, i := range []int{1, 2, 3} {
			assert.True(t, snap.Choices[i].Hidden)
			assert.False(t, snap.Choices[i].Available)
		}
		assert.True(t, snap.Choices[0].RequiresRoll)

		_, err := s.ChooseOption(ctx, st.hall, 4)
		assert.ErrorIs(t, err, models.ErrChoiceUnavailable)
		_, err = s.ChooseOption(ctx, st.hall, 1)
		assert.ErrorIs(t, err, models.ErrChoiceUnavailable)
	})

	t.Run("Немедленный переход применяет предметы и бонусы", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		s, gs := startAt(t, st, backend, st.hall)
		backend.On("MakeChoice", ctx, gs.ID, 5).Return(st.outcome(gs, st.armory), nil).Once()

		snap, err := s.ChooseOption(ctx, st.hall, 5)
		require.NoError(t, err)
		assert.Equal(t, st.armory, snap.Page.ID)
		assert.Equal(t, []uuid.UUID{st.hall, st.armory}, snap.History)
		assert.Equal(t, []string{"Épée"}, snap.Inventory)
		assert.Equal(t, 1, snap.Buffs[markup.SkillCombat])
		// Épée +2 и временный бонус +1
		assert.Equal(t, 3, s.Bonus(models.CheckCombat))

		assert.True(t, snap.Choices[0].Available)
		assert.False(t, snap.Choices[1].Available)
		assert.Equal(t, "requires item Clé", snap.Choices[1].LockReason)
		backend.AssertExpectations(t)
	})

	t.Run("Следующая страница берется из загруженных, если бэкенд ее не прислал", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		s, gs := startAt(t, st, backend, st.hall)
		out := st.outcome(gs, st.armory)
		out.Page = nil
		backend.On("MakeChoice", ctx, gs.ID, 5).Return(out, nil).Once()

		snap, err := s.ChooseOption(ctx, st.hall, 5)
		require.NoError(t, err)
		assert.Equal(t, st.armory, snap.Page.ID)
		backend.AssertNotCalled(t, "GetPage", mock.Anything, mock.Anything)
	})

	t.Run("Ошибка бэкенда не меняет состояние", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		s, gs := startAt(t, st, backend, st.hall)
		apiErr := &models.APIError{Op: "makeChoice", StatusCode: 503, Kind: models.ErrNetwork}
		backend.On("MakeChoice", ctx, gs.ID, 5).Return(nil, apiErr).Once()

		before := s.Snapshot()
		_, err := s.ChooseOption(ctx, st.hall, 5)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrNetwork))

		after := s.Snapshot()
		assert.Equal(t, before, after)

		backend.On("MakeChoice", ctx, gs.ID, 5).Return(st.outcome(gs, st.armory), nil).Once()
		snap, err := s.ChooseOption(ctx, st.hall, 5)
		require.NoError(t, err)
		assert.Equal(t, st.armory, snap.Page.ID)
		backend.AssertExpectations(t)
	})
}

func TestDiceFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("Маркер проверки требует броска, итог выбирает корзину", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		s, gs := startAt(t, st, backend, st.hall, 16)

		snap, err := s.ChooseOption(ctx, st.hall, 0)
		require.NoError(t, err)
		assert.Equal(t, play.StateAwaitingDiceRoll, snap.State)
		require.NotNil(t, snap.Pending)
		assert.Equal(t, 12, snap.Pending.Difficulty)
		assert.Equal(t, models.CheckCombat, snap.Pending.CheckType)
		backend.AssertNotCalled(t, "MakeChoice", mock.Anything, mock.Anything, mock.Anything)

		_, err = s.ChooseOption(ctx, st.hall, 5)
		assert.ErrorIs(t, err, models.ErrRollPending)

		backend.On("MakeChoice", ctx, gs.ID, 1).Return(st.outcome(gs, st.win), nil).Once()
		snap, err = s.Roll(ctx)
		require.NoError(t, err)
		assert.Equal(t, play.StateEnded, snap.State)
		assert.Equal(t, models.SessionCompleted, snap.Status)
		require.NotNil(t, snap.LastRoll)
		assert.Equal(t, 16, snap.LastRoll.Total)
		assert.True(t, snap.LastRoll.Success)
		assert.Equal(t, dice.SourceOutcome, snap.LastResolution.Source)
		assert.Nil(t, snap.Pending)

		_, err = s.ChooseOption(ctx, st.win, 0)
		assert.ErrorIs(t, err, models.ErrSessionEnded)
		backend.AssertExpectations(t)
	})

	t.Run("Повтор после ошибки использует тот же результат броска", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		s, gs := startAt(t, st, backend, st.hall, 5, 18)

		_, err := s.ChooseOption(ctx, st.hall, 0)
		require.NoError(t, err)

		apiErr := &models.APIError{Op: "makeChoice", StatusCode: 0, Kind: models.ErrNetwork}
		backend.On("MakeChoice", ctx, gs.ID, 3).Return(nil, apiErr).Once()
		_, err = s.Roll(ctx)
		require.ErrorIs(t, err, models.ErrNetwork)

		snap := s.Snapshot()
		assert.Equal(t, play.StateAwaitingDiceRoll, snap.State)
		assert.Equal(t, st.hall, snap.Page.ID)
		require.NotNil(t, snap.Pending.Result)
		assert.Equal(t, 5, snap.Pending.Result.Roll)

		backend.On("MakeChoice", ctx, gs.ID, 3).Return(st.outcome(gs, st.lose), nil).Once()
		snap, err = s.Roll(ctx)
		require.NoError(t, err)
		assert.Equal(t, st.lose, snap.Page.ID)
		assert.Equal(t, 5, snap.LastRoll.Roll)
		backend.AssertExpectations(t)
	})

	t.Run("Готовый результат не перекрывает запомненный бросок", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		s, gs := startAt(t, st, backend, st.hall, 5)

		_, err := s.ChooseOption(ctx, st.hall, 0)
		require.NoError(t, err)

		apiErr := &models.APIError{Op: "makeChoice", StatusCode: 0, Kind: models.ErrNetwork}
		backend.On("MakeChoice", ctx, gs.ID, 3).Return(nil, apiErr).Once()
		_, err = s.Roll(ctx)
		require.ErrorIs(t, err, models.ErrNetwork)

		backend.On("MakeChoice", ctx, gs.ID, 3).Return(st.outcome(gs, st.lose), nil).Once()
		snap, err := s.ResolveDiceRoll(ctx, dice.CheckResult{Roll: 20, Total: 20, Difficulty: 12, Success: true})
		require.NoError(t, err)
		assert.Equal(t, st.lose, snap.Page.ID)
		require.NotNil(t, snap.LastRoll)
		assert.Equal(t, 5, snap.LastRoll.Roll)
		assert.False(t, snap.LastRoll.Success)
		backend.AssertExpectations(t)
	})

	t.Run("Бонус класса и временный бонус расходуется", func(t *testing.T) {
		st := newStory()
		// Между оружейной и залом бонус сохраняется, проверка его расходует
		backend := new(mocks.Backend)
		s, gs := startAt(t, st, backend, st.start, 9)
		_, err := s.SelectClass("Guerrier")
		require.NoError(t, err)

		backend.On("MakeChoice", ctx, gs.ID, 0).Return(st.outcome(gs, st.hall), nil).Once()
		_, err = s.ChooseOption(ctx, st.start, 0)
		require.NoError(t, err)

		atHall := st.outcome(gs, st.hall).Session
		backend.On("MakeChoice", ctx, gs.ID, 5).Return(st.outcome(atHall, st.armory), nil).Once()
		_, err = s.ChooseOption(ctx, st.hall, 5)
		require.NoError(t, err)

		atArmory := st.outcome(atHall, st.armory).Session
		backend.On("MakeChoice", ctx, gs.ID, 0).Return(st.outcome(atArmory, st.hall), nil).Once()
		_, err = s.ChooseOption(ctx, st.armory, 0)
		require.NoError(t, err)

		// Guerrier +3, Épée +2, BONUS +1
		snap, err := s.ChooseOption(ctx, st.hall, 0)
		require.NoError(t, err)
		assert.Equal(t, 6, snap.Pending.Bonus)

		// 9 + 6 = 15 -> "≥15 Victoire"
		backend.On("MakeChoice", ctx, gs.ID, 1).Return(&models.ChoiceOutcome{Page: st.page(st.win)}, nil).Once()
		snap, err = s.Roll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 15, snap.LastRoll.Total)
		assert.Equal(t, st.win, snap.Page.ID)
		assert.Zero(t, snap.Buffs[markup.SkillCombat])
		backend.AssertExpectations(t)
	})

	t.Run("Без ожидающей проверки", func(t *testing.T) {
		st := newStory()
		s, _ := startAt(t, st, new(mocks.Backend), st.hall)
		_, err := s.Roll(ctx)
		assert.ErrorIs(t, err, models.ErrNoPendingRoll)
		_, err = s.ResolveDiceRoll(ctx, dice.Evaluate(10, 10, 0))
		assert.ErrorIs(t, err, models.ErrNoPendingRoll)
	})

	t.Run("Явная цель проверки важнее корзин", func(t *testing.T) {
		st := newStory()
		hall := st.page(st.hall)
		hall.Choices[0].DiceRoll = &models.DiceRoll{Enabled: true, Difficulty: 10, CheckType: models.CheckCombat, FailurePageID: &st.retreat}
		for i := range st.pages {
			if st.pages[i].ID == st.hall {
				st.pages[i] = *hall
			}
		}
		backend := new(mocks.Backend)
		s, gs := startAt(t, st, backend, st.hall)

		_, err := s.ChooseOption(ctx, st.hall, 0)
		require.NoError(t, err)
		// Провал с итогом 3 попал бы в "<10 Défaite", но явная цель ведет на retreat
		backend.On("MakeChoice", ctx, gs.ID, 2).Return(st.outcome(gs, st.retreat), nil).Once()
		snap, err := s.ResolveDiceRoll(ctx, dice.Evaluate(3, 10, 0))
		require.NoError(t, err)
		assert.Equal(t, st.retreat, snap.Page.ID)
		assert.Equal(t, dice.SourceExplicit, snap.LastResolution.Source)
	})
}

func TestChooseHotspot(t *testing.T) {
	ctx := context.Background()

	t.Run("Зона с проверкой", func(t *testing.T) {
		st := newStory()
		s, _ := startAt(t, st, new(mocks.Backend), st.hall)
		snap, err := s.ChooseHotspot(ctx, st.hall, st.trollHotspot)
		require.NoError(t, err)
		assert.Equal(t, play.StateAwaitingDiceRoll, snap.State)
		assert.Equal(t, 14, snap.Pending.Difficulty)
		assert.Equal(t, 0, snap.Pending.ChoiceIndex)
		require.NotNil(t, snap.Pending.HotspotID)
		assert.Equal(t, st.trollHotspot, *snap.Pending.HotspotID)
	})

	t.Run("Нет выбора на цель зоны", func(t *testing.T) {
		st := newStory()
		s, _ := startAt(t, st, new(mocks.Backend), st.hall)
		_, err := s.ChooseHotspot(ctx, st.hall, st.vaultHotspot)
		assert.ErrorIs(t, err, models.ErrNoChoiceForTarget)
		_, err = s.ChooseHotspot(ctx, st.hall, uuid.New())
		assert.ErrorIs(t, err, models.ErrHotspotNotFound)
	})
}

func TestEventsAndLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("События прохождения", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		events := new(mocks.PlayEventPublisher)
		gs := st.session(st.hall)
		gs.IsPreview = true
		backend.On("StartSession", ctx, st.id, true).Return(gs, nil).Once()
		backend.On("GetPages", ctx, st.id).Return(st.pages, nil).Once()
		backend.On("MakeChoice", ctx, gs.ID, 1).Return(st.outcome(gs, st.win), nil).Once()

		for _, typ := range []models.PlayEventType{models.PlayEventStarted, models.PlayEventDice, models.PlayEventChoice, models.PlayEventEnded} {
			typ := typ
			events.On("PublishPlayEvent", ctx, mock.MatchedBy(func(ev models.PlayEvent) bool {
				return ev.Type == typ && ev.IsPreview && ev.SessionID == gs.ID
			})).Return(nil).Once()
		}

		d := deps(backend, 20)
		d.Events = events
		s, err := play.Start(ctx, d, st.id, true)
		require.NoError(t, err)
		_, err = s.ChooseOption(ctx, st.hall, 0)
		require.NoError(t, err)
		_, err = s.Roll(ctx)
		require.NoError(t, err)

		events.AssertExpectations(t)
		backend.AssertExpectations(t)
	})

	t.Run("Ошибка публикации не ломает прохождение", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		events := new(mocks.PlayEventPublisher)
		gs := st.session(st.hall)
		backend.On("StartSession", ctx, st.id, false).Return(gs, nil).Once()
		backend.On("GetPages", ctx, st.id).Return(st.pages, nil).Once()
		events.On("PublishPlayEvent", ctx, mock.Anything).Return(errors.New("broker down"))

		d := deps(backend)
		d.Events = events
		s, err := play.Start(ctx, d, st.id, false)
		require.NoError(t, err)
		assert.Equal(t, play.StatePlaying, s.State())
	})

	t.Run("Abandon", func(t *testing.T) {
		st := newStory()
		s, _ := startAt(t, st, new(mocks.Backend), st.hall)
		snap := s.Abandon(ctx)
		assert.Equal(t, play.StateEnded, snap.State)
		assert.Equal(t, models.SessionAbandoned, snap.Status)
		for _, ch := range snap.Choices {
			assert.False(t, ch.Available)
		}
		_, err := s.ChooseOption(ctx, st.hall, 5)
		assert.ErrorIs(t, err, models.ErrSessionEnded)
	})

	t.Run("Resume завершенной сессии", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		gs := st.session(st.win)
		gs.Status = models.SessionCompleted
		backend.On("GetSession", ctx, gs.ID).Return(gs, nil).Once()
		backend.On("GetPages", ctx, st.id).Return(st.pages, nil).Once()

		s, err := play.Resume(ctx, deps(backend), gs.ID)
		require.NoError(t, err)
		assert.Equal(t, play.StateEnded, s.State())
		assert.Equal(t, gs.ID, s.ID())
	})

	t.Run("Текущая страница догружается через getPage", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		gs := st.session(st.armory)
		var withoutArmory []models.Page
		for _, p := range st.pages {
			if p.ID != st.armory {
				withoutArmory = append(withoutArmory, p)
			}
		}
		backend.On("StartSession", ctx, st.id, false).Return(gs, nil).Once()
		backend.On("GetPages", ctx, st.id).Return(withoutArmory, nil).Once()
		backend.On("GetPage", ctx, st.armory).Return(st.page(st.armory), nil).Once()

		s, err := play.Start(ctx, deps(backend), st.id, false)
		require.NoError(t, err)
		snap := s.Snapshot()
		require.NotNil(t, snap.Page)
		assert.Equal(t, st.armory, snap.Page.ID)

		// Условие "Épée" не выполнено, но выбор не должен паниковать
		_, err = s.ChooseOption(ctx, st.armory, 0)
		assert.ErrorIs(t, err, models.ErrChoiceUnavailable)
		_, err = s.ChooseOption(ctx, st.armory, 7)
		assert.ErrorIs(t, err, models.ErrChoiceOutOfRange)
		backend.AssertExpectations(t)
	})

	t.Run("Ошибка загрузки страниц", func(t *testing.T) {
		st := newStory()
		backend := new(mocks.Backend)
		gs := st.session(st.hall)
		backend.On("StartSession", ctx, st.id, false).Return(gs, nil).Once()
		backend.On("GetPages", ctx, st.id).Return(nil, &models.APIError{Op: "getPages", StatusCode: 404, Kind: models.ErrNotFound}).Once()

		_, err := play.Start(ctx, deps(backend), st.id, false)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
