// Package autosave батчит изменения страниц редактора и сбрасывает их во внешний
// бэкенд с отложенным (trailing-edge) дебаунсом.
//
// Координатор принадлежит одной сессии редактора. Добавлять записи может только
// модель графа (Queue), удалять - только сам координатор после успешного сброса.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/metrics"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultDelay       = 1500 * time.Millisecond
	DefaultMaxParallel = 8
)

// Options параметры координатора. Layout, Journal, Notifier и Metrics необязательны.
type Options struct {
	StoryID     uuid.UUID
	SessionID   uuid.UUID // ID сессии редактора для уведомлений
	Pages       interfaces.PageStore
	Layout      interfaces.LayoutRepository
	Journal     interfaces.DraftJournal
	Notifier    interfaces.SaveStateNotifier
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	Delay       time.Duration
	MaxParallel int64
}

// Coordinator журнал намерений (pending-записи по страницам) и его сброс.
type Coordinator struct {
	opts Options
	log  *zap.Logger
	sem  *semaphore.Weighted

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending map[uuid.UUID]models.PendingUpdate
	timer   *time.Timer
	gen     uint64
	state   models.SaveState
	lastErr error
	closed  bool
	// inFlight записи текущего сброса, discarded - те из них, чьи страницы удалены за время сброса
	inFlight  map[uuid.UUID]models.PendingUpdate
	discarded map[uuid.UUID]struct{}

	// flushMu сериализует сбросы: одна и та же страница не сбрасывается дважды одновременно.
	flushMu sync.Mutex
}

func New(opts Options) *Coordinator {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		opts:    opts,
		log:     opts.Logger.Named("Autosave").With(zap.Stringer("storyID", opts.StoryID), zap.Stringer("editorSessionID", opts.SessionID)),
		sem:     semaphore.NewWeighted(opts.MaxParallel),
		baseCtx: ctx,
		cancel:  cancel,
		pending:   make(map[uuid.UUID]models.PendingUpdate),
		discarded: make(map[uuid.UUID]struct{}),
		state:     models.SaveStateClean,
	}
}

// Queue добавляет или сливает запись для страницы. Таймер не трогает.
func (c *Coordinator) Queue(update models.PendingUpdate) error {
	if update.PageID == uuid.Nil {
		return fmt.Errorf("pending update without page id: %w", models.ErrInvalidInput)
	}
	if update.QueuedAt.IsZero() {
		update.QueuedAt = time.Now().UTC()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.ErrClosed
	}
	delete(c.discarded, update.PageID)
	if existing, ok := c.pending[update.PageID]; ok {
		update = existing.Merge(update)
	}
	c.pending[update.PageID] = update
	notify := c.transitionLocked(c.stateAfterQueueLocked(), c.lastErr)
	c.mu.Unlock()

	notify()
	return nil
}

func (c *Coordinator) stateAfterQueueLocked() models.SaveState {
	if c.state == models.SaveStateClean {
		return models.SaveStatePending
	}
	// saving и error сохраняются до конца сброса или следующего успешного сброса
	return c.state
}

// Discard убирает запись удаленной страницы из памяти и журнала.
// Если страница сейчас сбрасывается, ее неудачная запись не вернется в pending.
func (c *Coordinator) Discard(ctx context.Context, pageID uuid.UUID) {
	c.mu.Lock()
	delete(c.pending, pageID)
	if _, ok := c.inFlight[pageID]; ok {
		c.discarded[pageID] = struct{}{}
	}
	var notify func()
	if len(c.pending) == 0 && c.state == models.SaveStatePending {
		notify = c.transitionLocked(models.SaveStateClean, nil)
	}
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
	if c.opts.Journal != nil {
		if err := c.opts.Journal.Remove(ctx, c.opts.StoryID, []uuid.UUID{pageID}); err != nil {
			c.log.Warn("Failed to remove discarded page from draft journal", zap.Stringer("pageID", pageID), zap.Error(err))
		}
	}
}

// ScheduleSave (пере)взводит таймер. Сбрасывает только последний вызов в окне.
func (c *Coordinator) ScheduleSave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.opts.Delay, func() { c.fire(gen) })
}

func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	// Таймер мог сработать одновременно с перевзводом или SaveAll
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	if err := c.flush(c.baseCtx); err != nil {
		c.log.Warn("Debounced flush failed", zap.Error(err))
	}
}

// SaveAll немедленно сбрасывает все записи, отменяя таймер.
func (c *Coordinator) SaveAll(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.ErrClosed
	}
	c.stopTimerLocked()
	c.mu.Unlock()
	return c.flush(ctx)
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

type pageResult struct {
	update models.PendingUpdate
	err    error
}

func (c *Coordinator) flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}
	snapshot := c.pending
	c.pending = make(map[uuid.UUID]models.PendingUpdate)
	c.inFlight = snapshot
	notify := c.transitionLocked(models.SaveStateSaving, c.lastErr)
	c.mu.Unlock()
	notify()

	started := time.Now()
	results := c.push(ctx, snapshot)

	var (
		failed    []models.PendingUpdate
		succeeded []uuid.UUID
		errs      []error
		dropped   int
	)
	c.mu.Lock()
	for _, r := range results {
		if _, gone := c.discarded[r.update.PageID]; gone {
			dropped++
			continue
		}
		if r.err != nil {
			failed = append(failed, r.update)
			errs = append(errs, r.err)
			continue
		}
		succeeded = append(succeeded, r.update.PageID)
	}
	c.inFlight = nil
	clear(c.discarded)
	flushErr := errors.Join(errs...)

	for _, u := range failed {
		// Более новые правки автора побеждают несохраненные старые
		if newer, ok := c.pending[u.PageID]; ok {
			c.pending[u.PageID] = u.Merge(newer)
		} else {
			c.pending[u.PageID] = u
		}
	}
	var next models.SaveState
	switch {
	case flushErr != nil:
		next = models.SaveStateError
	case len(c.pending) > 0:
		next = models.SaveStatePending
	default:
		next = models.SaveStateClean
	}
	if flushErr != nil {
		c.lastErr = flushErr
	} else {
		c.lastErr = nil
	}
	notify = c.transitionLocked(next, c.lastErr)
	c.mu.Unlock()
	notify()

	c.opts.Metrics.ObserveFlush(flushErr == nil, len(succeeded), len(failed), time.Since(started))
	c.syncJournal(ctx, succeeded, failed)

	if flushErr != nil {
		c.log.Error("Flush finished with errors", zap.Int("succeeded", len(succeeded)), zap.Int("failed", len(failed)), zap.Error(flushErr))
		return fmt.Errorf("autosave flush: %w", flushErr)
	}
	c.log.Debug("Flush finished", zap.Int("pages", len(succeeded)), zap.Int("discarded", dropped), zap.Duration("took", time.Since(started)))
	return nil
}

// push отправляет снапшот: updatePage по каждой странице параллельно,
// затем одно сохранение позиций для записей с позициями.
func (c *Coordinator) push(ctx context.Context, snapshot map[uuid.UUID]models.PendingUpdate) []pageResult {
	results := make([]pageResult, 0, len(snapshot))
	var mu sync.Mutex
	record := func(r pageResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	var (
		g         errgroup.Group
		positions = make(map[uuid.UUID]models.Position)
		withPos   []models.PendingUpdate
	)
	for _, u := range snapshot {
		u := u
		if u.Fields.IsEmpty() {
			if u.Position != nil {
				positions[u.PageID] = *u.Position
				withPos = append(withPos, u)
			}
			continue
		}
		g.Go(func() error {
			if err := c.sem.Acquire(ctx, 1); err != nil {
				record(pageResult{update: u, err: err})
				return err
			}
			defer c.sem.Release(1)

			if _, err := c.opts.Pages.UpdatePage(ctx, u.PageID, u.Fields); err != nil {
				err = fmt.Errorf("update page %s: %w", u.PageID, err)
				record(pageResult{update: u, err: err})
				return err
			}
			if u.Position != nil {
				mu.Lock()
				positions[u.PageID] = *u.Position
				withPos = append(withPos, u)
				mu.Unlock()
				return nil
			}
			record(pageResult{update: u})
			return nil
		})
	}
	_ = g.Wait() // ошибки уже разнесены по страницам

	if len(withPos) == 0 {
		return results
	}
	var posErr error
	if c.opts.Layout != nil {
		if err := c.opts.Layout.SavePositions(ctx, c.opts.StoryID, positions); err != nil {
			posErr = fmt.Errorf("save positions: %w", err)
		}
	}
	for _, u := range withPos {
		if posErr != nil {
			// Поля уже сохранены, повторять нужно только позицию
			retry := u
			retry.Fields = models.PageFields{}
			results = append(results, pageResult{update: retry, err: posErr})
			continue
		}
		results = append(results, pageResult{update: u})
	}
	return results
}

func (c *Coordinator) syncJournal(ctx context.Context, succeeded []uuid.UUID, failed []models.PendingUpdate) {
	if c.opts.Journal == nil {
		return
	}
	// Журнал пишется и после отмены сессии, иначе несохраненное теряется
	ctx = context.WithoutCancel(ctx)
	if len(succeeded) > 0 {
		if err := c.opts.Journal.Remove(ctx, c.opts.StoryID, succeeded); err != nil {
			c.log.Warn("Failed to clear saved pages from draft journal", zap.Error(err))
		}
	}
	if len(failed) > 0 {
		if err := c.opts.Journal.Save(ctx, c.opts.StoryID, failed); err != nil {
			c.log.Error("Failed to journal unsaved pages", zap.Int("count", len(failed)), zap.Error(err))
		}
	}
}

// transitionLocked меняет состояние и возвращает уведомление, которое
// вызывается после снятия блокировки.
func (c *Coordinator) transitionLocked(next models.SaveState, err error) func() {
	if next == c.state && next != models.SaveStateError {
		return func() {}
	}
	c.state = next
	notifier := c.opts.Notifier
	if notifier == nil {
		return func() {}
	}
	sessionID := c.opts.SessionID
	return func() { notifier.NotifySaveState(sessionID, next, err) }
}

// State наблюдаемое состояние синхронизации.
func (c *Coordinator) State() models.SaveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError ошибка последнего неудачного сброса (nil после успешного).
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Pending копия несохраненных записей.
func (c *Coordinator) Pending() map[uuid.UUID]models.PendingUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uuid.UUID]models.PendingUpdate, len(c.pending))
	for k, v := range c.pending {
		out[k] = v
	}
	return out
}

// Close отменяет таймер без сброса. Несохраненные записи уходят в журнал,
// если он настроен. Повторный вызов ничего не делает.
func (c *Coordinator) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.cancel()
	leftover := make([]models.PendingUpdate, 0, len(c.pending))
	for _, u := range c.pending {
		leftover = append(leftover, u)
	}
	c.mu.Unlock()

	if len(leftover) > 0 && c.opts.Journal != nil {
		if err := c.opts.Journal.Save(ctx, c.opts.StoryID, leftover); err != nil {
			c.log.Error("Failed to journal pending updates on close", zap.Error(err))
		}
	}
	c.log.Debug("Coordinator closed", zap.Int("leftover", len(leftover)))
}
