package service

import (
	"context"
	"fmt"
	"sync"

	"gamebook-server/internal/models"
	"gamebook-server/internal/play"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlayService управляет живыми прохождениями читателей.
type PlayService interface {
	Start(ctx context.Context, storyID uuid.UUID, preview bool) (*play.Snapshot, error)
	Resume(ctx context.Context, sessionID uuid.UUID) (*play.Snapshot, error)
	Snapshot(sessionID uuid.UUID) (*play.Snapshot, error)
	SelectClass(sessionID uuid.UUID, class string) (*play.Snapshot, error)
	Choose(ctx context.Context, sessionID, pageID uuid.UUID, choiceIndex int) (*play.Snapshot, error)
	ChooseHotspot(ctx context.Context, sessionID, pageID, hotspotID uuid.UUID) (*play.Snapshot, error)
	Roll(ctx context.Context, sessionID uuid.UUID) (*play.Snapshot, error)
	Abandon(ctx context.Context, sessionID uuid.UUID) (*play.Snapshot, error)
	Classes() []string
}

type playServiceImpl struct {
	deps   play.Deps
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*play.Session
}

// NewPlayService создает сервис прохождений. Logger в deps заменяется логгером сервиса.
func NewPlayService(deps play.Deps, logger *zap.Logger) PlayService {
	deps.Logger = logger
	if deps.Rules == nil {
		deps.Rules = play.DefaultRules()
	}
	return &playServiceImpl{
		deps:     deps,
		logger:   logger.Named("PlayService"),
		sessions: make(map[uuid.UUID]*play.Session),
	}
}

// track запоминает живую сессию. Завершенные не хранятся: их итог уже в бэкенде,
// а GET /play/sessions/:id поднимет их через Resume.
func (s *playServiceImpl) track(sess *play.Session) {
	if sess.State() == play.StateEnded {
		return
	}
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	s.deps.Metrics.SetPlaySessions(count)
}

// forget удаляет сессию из памяти и возвращает ее, если она была.
func (s *playServiceImpl) forget(sessionID uuid.UUID) (*play.Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	count := len(s.sessions)
	s.mu.Unlock()
	if ok {
		s.deps.Metrics.SetPlaySessions(count)
	}
	return sess, ok
}

// settle забывает сессию, которую ход привел к концовке.
func (s *playServiceImpl) settle(snap *play.Snapshot, err error) (*play.Snapshot, error) {
	if err == nil && snap.State == play.StateEnded {
		s.forget(snap.SessionID)
		s.logger.Info("Play session finished", zap.Stringer("sessionID", snap.SessionID), zap.String("status", string(snap.Status)))
	}
	return snap, err
}

func (s *playServiceImpl) get(sessionID uuid.UUID) (*play.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("play session %s: %w", sessionID, models.ErrSessionNotFound)
	}
	return sess, nil
}

func (s *playServiceImpl) Start(ctx context.Context, storyID uuid.UUID, preview bool) (*play.Snapshot, error) {
	if storyID == uuid.Nil {
		return nil, fmt.Errorf("story id is required: %w", models.ErrInvalidInput)
	}
	sess, err := play.Start(ctx, s.deps, storyID, preview)
	if err != nil {
		s.logger.Warn("Failed to start play session", zap.Stringer("storyID", storyID), zap.Error(err))
		return nil, err
	}
	s.track(sess)
	s.logger.Info("Play session started", zap.Stringer("sessionID", sess.ID()), zap.Stringer("storyID", storyID), zap.Bool("preview", preview))
	return sess.Snapshot(), nil
}

// Resume возвращает живую сессию, если она уже загружена, иначе поднимает ее из бэкенда.
func (s *playServiceImpl) Resume(ctx context.Context, sessionID uuid.UUID) (*play.Snapshot, error) {
	if sess, err := s.get(sessionID); err == nil {
		return sess.Snapshot(), nil
	}
	sess, err := play.Resume(ctx, s.deps, sessionID)
	if err != nil {
		return nil, err
	}
	s.track(sess)
	s.logger.Info("Play session resumed", zap.Stringer("sessionID", sessionID))
	return sess.Snapshot(), nil
}

func (s *playServiceImpl) Snapshot(sessionID uuid.UUID) (*play.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Snapshot(), nil
}

func (s *playServiceImpl) SelectClass(sessionID uuid.UUID, class string) (*play.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.SelectClass(class)
}

func (s *playServiceImpl) Choose(ctx context.Context, sessionID, pageID uuid.UUID, choiceIndex int) (*play.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.settle(sess.ChooseOption(ctx, pageID, choiceIndex))
}

func (s *playServiceImpl) ChooseHotspot(ctx context.Context, sessionID, pageID, hotspotID uuid.UUID) (*play.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.settle(sess.ChooseHotspot(ctx, pageID, hotspotID))
}

func (s *playServiceImpl) Roll(ctx context.Context, sessionID uuid.UUID) (*play.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.settle(sess.Roll(ctx))
}

// Abandon завершает сессию и забывает ее.
func (s *playServiceImpl) Abandon(ctx context.Context, sessionID uuid.UUID) (*play.Snapshot, error) {
	sess, ok := s.forget(sessionID)
	if !ok {
		return nil, fmt.Errorf("play session %s: %w", sessionID, models.ErrSessionNotFound)
	}
	return sess.Abandon(ctx), nil
}

func (s *playServiceImpl) Classes() []string {
	return s.deps.Rules.ClassNames()
}
