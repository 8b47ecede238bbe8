package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gamebook-server/internal/autosave"
	"gamebook-server/internal/editor"
	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/metrics"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EditorSession открытая сессия редактора: граф истории и его автосохранение.
type EditorSession struct {
	ID       uuid.UUID
	StoryID  uuid.UUID
	OpenedAt time.Time
	Model    *editor.Model
	Sync     *autosave.Coordinator
}

// SaveStatus состояние синхронизации для UI.
type SaveStatus struct {
	SessionID uuid.UUID        `json:"session_id"`
	State     models.SaveState `json:"state"`
	Pending   int              `json:"pending"`
	Error     string           `json:"error,omitempty"`
}

// EditorService управляет сессиями редактора.
type EditorService interface {
	Open(ctx context.Context, storyID uuid.UUID) (*EditorSession, error)
	Get(sessionID uuid.UUID) (*EditorSession, error)
	Save(ctx context.Context, sessionID uuid.UUID) error
	SaveStatus(sessionID uuid.UUID) (*SaveStatus, error)
	Close(ctx context.Context, sessionID uuid.UUID) error
	CloseAll(ctx context.Context)
}

// EditorConfig настройки сессий редактора.
type EditorConfig struct {
	Options     editor.Options
	Delay       time.Duration
	MaxParallel int64
	SaveOnClose bool
}

// EditorDeps внешние зависимости. Layout, Journal, Notifier и Metrics необязательны.
type EditorDeps struct {
	Store    editor.Store
	Layout   interfaces.LayoutRepository
	Journal  interfaces.DraftJournal
	Notifier interfaces.SaveStateNotifier
	Metrics  *metrics.Metrics
}

type editorServiceImpl struct {
	deps   EditorDeps
	cfg    EditorConfig
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*EditorSession
}

// NewEditorService создает сервис сессий редактора.
func NewEditorService(deps EditorDeps, cfg EditorConfig, logger *zap.Logger) EditorService {
	return &editorServiceImpl{
		deps:     deps,
		cfg:      cfg,
		logger:   logger.Named("EditorService"),
		sessions: make(map[uuid.UUID]*EditorSession),
	}
}

// Open загружает граф истории и запускает для него координатор автосохранения.
func (s *editorServiceImpl) Open(ctx context.Context, storyID uuid.UUID) (*EditorSession, error) {
	if storyID == uuid.Nil {
		return nil, fmt.Errorf("story id is required: %w", models.ErrInvalidInput)
	}
	sessionID := uuid.New()
	log := s.logger.With(zap.Stringer("storyID", storyID), zap.Stringer("editorSessionID", sessionID))

	coord := autosave.New(autosave.Options{
		StoryID:     storyID,
		SessionID:   sessionID,
		Pages:       s.deps.Store,
		Layout:      s.deps.Layout,
		Journal:     s.deps.Journal,
		Notifier:    s.deps.Notifier,
		Metrics:     s.deps.Metrics,
		Logger:      s.logger,
		Delay:       s.cfg.Delay,
		MaxParallel: s.cfg.MaxParallel,
	})

	model, err := editor.Load(ctx, editor.Deps{
		Store:   s.deps.Store,
		Layout:  s.deps.Layout,
		Journal: s.deps.Journal,
		Sync:    coord,
		Logger:  s.logger,
		Options: s.cfg.Options,
	}, storyID)
	if err != nil {
		coord.Close(ctx)
		log.Warn("Failed to open editor session", zap.Error(err))
		return nil, err
	}

	sess := &EditorSession{
		ID:       sessionID,
		StoryID:  storyID,
		OpenedAt: time.Now().UTC(),
		Model:    model,
		Sync:     coord,
	}

	s.mu.Lock()
	s.sessions[sessionID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	s.deps.Metrics.SetEditorSessions(count)
	log.Info("Editor session opened")
	return sess, nil
}

func (s *editorServiceImpl) Get(sessionID uuid.UUID) (*EditorSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("editor session %s: %w", sessionID, models.ErrEditorSessionNotFound)
	}
	return sess, nil
}

// Save немедленно сбрасывает все записи сессии.
func (s *editorServiceImpl) Save(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	return sess.Sync.SaveAll(ctx)
}

func (s *editorServiceImpl) SaveStatus(sessionID uuid.UUID) (*SaveStatus, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	status := &SaveStatus{
		SessionID: sessionID,
		State:     sess.Sync.State(),
		Pending:   len(sess.Sync.Pending()),
	}
	if lastErr := sess.Sync.LastError(); lastErr != nil && status.State == models.SaveStateError {
		status.Error = models.UserMessage(lastErr)
		if status.Error == "" {
			status.Error = lastErr.Error()
		}
	}
	return status, nil
}

// Close закрывает сессию. Если включен SaveOnClose, сначала выполняется
// финальный сброс; его ошибка возвращается, но сессия все равно закрывается.
func (s *editorServiceImpl) Close(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("editor session %s: %w", sessionID, models.ErrEditorSessionNotFound)
	}
	s.deps.Metrics.SetEditorSessions(count)
	return s.closeSession(ctx, sess)
}

func (s *editorServiceImpl) closeSession(ctx context.Context, sess *EditorSession) error {
	log := s.logger.With(zap.Stringer("editorSessionID", sess.ID))
	var saveErr error
	if s.cfg.SaveOnClose {
		if err := sess.Sync.SaveAll(ctx); err != nil {
			log.Warn("Final save on close failed", zap.Error(err))
			saveErr = fmt.Errorf("final save for editor session %s: %w", sess.ID, err)
		}
	}
	sess.Sync.Close(ctx)
	log.Info("Editor session closed", zap.Duration("openFor", time.Since(sess.OpenedAt)))
	return saveErr
}

// CloseAll закрывает все сессии при остановке сервера.
func (s *editorServiceImpl) CloseAll(ctx context.Context) {
	s.mu.Lock()
	all := make([]*EditorSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.sessions = make(map[uuid.UUID]*EditorSession)
	s.mu.Unlock()

	var errs []error
	for _, sess := range all {
		if err := s.closeSession(ctx, sess); err != nil {
			errs = append(errs, err)
		}
	}
	s.deps.Metrics.SetEditorSessions(0)
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Some editor sessions failed to save on shutdown", zap.Int("sessions", len(all)), zap.Error(err))
	}
}
