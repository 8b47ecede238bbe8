package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gamebook-server/internal/client"
	"gamebook-server/internal/config"
	"gamebook-server/internal/database"
	"gamebook-server/internal/dice"
	"gamebook-server/internal/editor"
	"gamebook-server/internal/handler"
	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/logger"
	"gamebook-server/internal/markup"
	"gamebook-server/internal/memstore"
	"gamebook-server/internal/messaging"
	"gamebook-server/internal/metrics"
	"gamebook-server/internal/middleware"
	"gamebook-server/internal/play"
	"gamebook-server/internal/service"
	"gamebook-server/internal/websocket"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const journalPurgeInterval = time.Hour

func main() {
	_ = godotenv.Load()
	log.Println("Запуск gamebook-server...")

	// Конфиг загружается до логгера
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Encoding:   cfg.LogEncoding,
		OutputPath: cfg.LogOutput,
	})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	cfg.LogSummary(zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appMetrics := metrics.New()

	// --- Внешний бэкенд --- //
	var (
		backend interfaces.Backend
		layout  interfaces.LayoutRepository
	)
	switch cfg.BackendMode {
	case config.BackendModeHTTP:
		backendClient, err := client.New(cfg.BackendURL, cfg.BackendToken, cfg.BackendTimeout, zapLogger)
		if err != nil {
			zapLogger.Fatal("Не удалось создать клиент бэкенда", zap.Error(err))
		}
		backend = backendClient
		// Без Redis позиции узлов живут только в памяти процесса
		layout = memstore.New()
	default:
		store := memstore.New()
		if cfg.MemorySeedFile != "" {
			n, err := store.LoadSeedFile(cfg.MemorySeedFile)
			if err != nil {
				zapLogger.Fatal("Не удалось загрузить истории из seed-файла", zap.String("path", cfg.MemorySeedFile), zap.Error(err))
			}
			zapLogger.Info("Seed-файл загружен", zap.String("path", cfg.MemorySeedFile), zap.Int("stories", n))
		}
		backend = store
		layout = store
	}

	// --- Redis: раскладка узлов --- //
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("Не удалось подключиться к Redis", zap.Error(err))
		}
		defer redisClient.Close()
		layout = database.NewRedisLayoutRepository(redisClient, cfg.LayoutTTL, zapLogger)
	}

	// --- PostgreSQL: журнал несохраненных правок --- //
	var journal interfaces.DraftJournal
	if cfg.JournalEnabled() {
		dbPool, err := database.NewPool(ctx, cfg.GetDSN(), cfg.DBMaxConns, cfg.DBIdleTimeout, zapLogger)
		if err != nil {
			zapLogger.Fatal("Не удалось подключиться к БД", zap.Error(err))
		}
		defer dbPool.Close()
		if err := database.ApplyMigrations(ctx, dbPool, zapLogger); err != nil {
			zapLogger.Fatal("Не удалось применить миграции", zap.Error(err))
		}
		pgJournal := database.NewPgDraftJournal(dbPool, zapLogger)
		journal = pgJournal
		go runJournalPurge(ctx, pgJournal, cfg.JournalRetention, zapLogger)
	}

	// --- RabbitMQ: события прохождений --- //
	var events interfaces.PlayEventPublisher = messaging.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		rabbitConn, err := messaging.Connect(cfg.RabbitMQURL, 5, 5*time.Second, zapLogger)
		if err != nil {
			zapLogger.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
		}
		defer rabbitConn.Close()
		publisher, err := messaging.NewRabbitMQPlayEventPublisher(rabbitConn, cfg.PlayEventsQueue, zapLogger)
		if err != nil {
			zapLogger.Fatal("Не удалось создать PlayEventPublisher", zap.Error(err))
		}
		defer publisher.Close()
		events = publisher
	}

	// --- Кубики --- //
	precedence, err := dice.ParsePrecedence(cfg.DicePrecedence)
	if err != nil {
		zapLogger.Fatal("Некорректный DICE_PRECEDENCE", zap.Error(err))
	}
	var engine *dice.Engine
	if cfg.DiceSeed != 0 {
		engine = dice.NewSeededEngine(cfg.DiceSeed)
		zapLogger.Warn("Используется детерминированный генератор кубиков", zap.Int64("seed", cfg.DiceSeed))
	} else if engine, err = dice.NewRandomEngine(); err != nil {
		zapLogger.Fatal("Не удалось инициализировать генератор кубиков", zap.Error(err))
	}

	hub := websocket.NewHub(zapLogger)
	defer hub.Stop()

	editorOpts := editor.DefaultOptions()
	editorOpts.EnforceEndingInvariant = cfg.EnforceEndingInvariant
	editorService := service.NewEditorService(service.EditorDeps{
		Store:    backend,
		Layout:   layout,
		Journal:  journal,
		Notifier: hub,
		Metrics:  appMetrics,
	}, service.EditorConfig{
		Options:     editorOpts,
		Delay:       cfg.AutosaveDelay,
		MaxParallel: int64(cfg.AutosaveMaxParallel),
		SaveOnClose: cfg.SaveOnEditorClose,
	}, zapLogger)

	playService := service.NewPlayService(play.Deps{
		Backend:  backend,
		Engine:   engine,
		Resolver: dice.NewResolver(precedence),
		Rules:    play.DefaultRules(),
		Markup:   markup.NewCache(cfg.MarkupCacheSize),
		Events:   events,
		Metrics:  appMetrics,
	}, zapLogger)

	h := handler.NewHandler(editorService, playService, hub, cfg.WSOrigins, appMetrics.Handler(), zapLogger)

	// Настройка Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.EchoZapLogger(zapLogger, "/health", "/metrics"))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	h.RegisterRoutes(e)

	go func() {
		zapLogger.Info("HTTP сервер слушает", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Ошибка запуска HTTP сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Получен сигнал завершения, начинаем graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Ошибка при graceful shutdown Echo", zap.Error(err))
	}
	// Несохраненные правки сбрасываются до закрытия соединений с хранилищами
	editorService.CloseAll(shutdownCtx)

	zapLogger.Info("gamebook-server остановлен")
}

// runJournalPurge периодически удаляет устаревшие записи журнала.
func runJournalPurge(ctx context.Context, journal interface {
	Purge(ctx context.Context, maxAge time.Duration) (int64, error)
}, retention time.Duration, logger *zap.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(journalPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := journal.Purge(ctx, retention)
			if err != nil {
				logger.Warn("Не удалось очистить журнал правок", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Устаревшие записи журнала удалены", zap.Int64("rows", n), zap.Duration("retention", retention))
			}
		}
	}
}
