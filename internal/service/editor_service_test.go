package service_test

import (
	"context"
	"testing"
	"time"

	"gamebook-server/internal/editor"
	"gamebook-server/internal/memstore"
	"gamebook-server/internal/models"
	"gamebook-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedStory(store *memstore.Store) (uuid.UUID, []uuid.UUID) {
	storyID := uuid.New()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	store.Seed(models.Story{ID: storyID, Title: "La tour"}, []models.Page{
		{ID: ids[0], Content: "Au pied de la tour", Choices: []models.Choice{{Text: "Monter", TargetPageID: ids[1]}}},
		{ID: ids[1], Content: "Escalier", Choices: []models.Choice{{Text: "Ouvrir la porte", TargetPageID: ids[2]}}},
		{ID: ids[2], Content: "Sommet", IsEnding: true, EndingType: models.EndingSuccess},
	})
	return storyID, ids
}

func newEditorService(store *memstore.Store, saveOnClose bool) service.EditorService {
	return service.NewEditorService(service.EditorDeps{
		Store:  store,
		Layout: store,
	}, service.EditorConfig{
		Options:     editor.DefaultOptions(),
		Delay:       time.Hour,
		MaxParallel: 2,
		SaveOnClose: saveOnClose,
	}, zap.NewNop())
}

func strPtr(s string) *string { return &s }

func TestEditorServiceOpenAndSave(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	storyID, ids := seedStory(store)
	svc := newEditorService(store, false)

	t.Run("Неизвестная история", func(t *testing.T) {
		_, err := svc.Open(ctx, uuid.New())
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = svc.Open(ctx, uuid.Nil)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Открытие и явное сохранение", func(t *testing.T) {
		sess, err := svc.Open(ctx, storyID)
		require.NoError(t, err)
		assert.Equal(t, storyID, sess.StoryID)
		assert.Len(t, sess.Model.Graph().Nodes, 3)
		assert.Len(t, sess.Model.Graph().Edges, 2)

		got, err := svc.Get(sess.ID)
		require.NoError(t, err)
		assert.Same(t, sess, got)

		_, err = sess.Model.UpdateNodeData(ids[1], models.PageFields{Content: strPtr("Escalier en colimaçon")})
		require.NoError(t, err)

		status, err := svc.SaveStatus(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SaveStatePending, status.State)
		assert.Equal(t, 1, status.Pending)

		require.NoError(t, svc.Save(ctx, sess.ID))
		page, err := store.GetPage(ctx, ids[1])
		require.NoError(t, err)
		assert.Equal(t, "Escalier en colimaçon", page.Content)

		status, err = svc.SaveStatus(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SaveStateClean, status.State)
		assert.Zero(t, status.Pending)
		assert.Empty(t, status.Error)
	})

	t.Run("Неизвестная сессия", func(t *testing.T) {
		_, err := svc.Get(uuid.New())
		assert.ErrorIs(t, err, models.ErrEditorSessionNotFound)
		assert.ErrorIs(t, svc.Save(ctx, uuid.New()), models.ErrEditorSessionNotFound)
		_, err = svc.SaveStatus(uuid.New())
		assert.ErrorIs(t, err, models.ErrEditorSessionNotFound)
	})
}

func TestEditorServiceSaveFailure(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	storyID, ids := seedStory(store)
	svc := newEditorService(store, false)

	sess, err := svc.Open(ctx, storyID)
	require.NoError(t, err)

	store.FailPageUpdates(ids[0], &models.APIError{Op: "updatePage", StatusCode: 503, Message: "Сервис недоступен", Kind: models.ErrNetwork})
	_, err = sess.Model.UpdateNodeData(ids[0], models.PageFields{Content: strPtr("Brouillard")})
	require.NoError(t, err)

	err = svc.Save(ctx, sess.ID)
	assert.ErrorIs(t, err, models.ErrNetwork)

	status, err := svc.SaveStatus(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SaveStateError, status.State)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, "Сервис недоступен", status.Error)

	t.Run("Повторное сохранение после восстановления", func(t *testing.T) {
		store.FailPageUpdates(ids[0], nil)
		require.NoError(t, svc.Save(ctx, sess.ID))
		page, err := store.GetPage(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, "Brouillard", page.Content)
	})
}

func TestEditorServiceClose(t *testing.T) {
	ctx := context.Background()

	t.Run("Финальное сохранение при закрытии", func(t *testing.T) {
		store := memstore.New()
		storyID, ids := seedStory(store)
		svc := newEditorService(store, true)

		sess, err := svc.Open(ctx, storyID)
		require.NoError(t, err)
		_, err = sess.Model.UpdateNodeData(ids[2], models.PageFields{Content: strPtr("Le sommet, enfin")})
		require.NoError(t, err)

		require.NoError(t, svc.Close(ctx, sess.ID))
		page, err := store.GetPage(ctx, ids[2])
		require.NoError(t, err)
		assert.Equal(t, "Le sommet, enfin", page.Content)

		_, err = svc.Get(sess.ID)
		assert.ErrorIs(t, err, models.ErrEditorSessionNotFound)
		assert.ErrorIs(t, svc.Close(ctx, sess.ID), models.ErrEditorSessionNotFound)
	})

	t.Run("Закрытие без сохранения отбрасывает очередь", func(t *testing.T) {
		store := memstore.New()
		storyID, ids := seedStory(store)
		svc := newEditorService(store, false)

		sess, err := svc.Open(ctx, storyID)
		require.NoError(t, err)
		_, err = sess.Model.UpdateNodeData(ids[2], models.PageFields{Content: strPtr("Jamais sauvé")})
		require.NoError(t, err)

		require.NoError(t, svc.Close(ctx, sess.ID))
		page, err := store.GetPage(ctx, ids[2])
		require.NoError(t, err)
		assert.Equal(t, "Sommet", page.Content)
	})

	t.Run("Ошибка финального сохранения не мешает закрытию", func(t *testing.T) {
		store := memstore.New()
		storyID, ids := seedStory(store)
		svc := newEditorService(store, true)

		sess, err := svc.Open(ctx, storyID)
		require.NoError(t, err)
		store.FailPageUpdates(ids[1], &models.APIError{Op: "updatePage", StatusCode: 500, Kind: models.ErrNetwork})
		_, err = sess.Model.UpdateNodeData(ids[1], models.PageFields{Content: strPtr("Perdu")})
		require.NoError(t, err)

		err = svc.Close(ctx, sess.ID)
		assert.ErrorIs(t, err, models.ErrNetwork)
		_, err = svc.Get(sess.ID)
		assert.ErrorIs(t, err, models.ErrEditorSessionNotFound)
	})

	t.Run("CloseAll закрывает все сессии", func(t *testing.T) {
		store := memstore.New()
		storyID, _ := seedStory(store)
		svc := newEditorService(store, true)

		first, err := svc.Open(ctx, storyID)
		require.NoError(t, err)
		second, err := svc.Open(ctx, storyID)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		svc.CloseAll(ctx)
		_, err = svc.Get(first.ID)
		assert.ErrorIs(t, err, models.ErrEditorSessionNotFound)
		_, err = svc.Get(second.ID)
		assert.ErrorIs(t, err, models.ErrEditorSessionNotFound)
	})
}
