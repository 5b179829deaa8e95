// Точка входа Federation Node — узла репозитория доверия федерации.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/federationserver/federation-node/internal/api/handlers"
	"github.com/federationserver/federation-node/internal/api/middleware"
	"github.com/federationserver/federation-node/internal/cache"
	"github.com/federationserver/federation-node/internal/config"
	"github.com/federationserver/federation-node/internal/database"
	"github.com/federationserver/federation-node/internal/repository"
	"github.com/federationserver/federation-node/internal/server"
	"github.com/federationserver/federation-node/internal/service"
	"github.com/federationserver/federation-node/internal/storage/filestore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Federation Node запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 1. Миграции и подключение к PostgreSQL
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка применения миграций", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 2. Кэш-прослойка
	cacheAdapter, err := buildCache(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации кэша", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := cacheAdapter.Close(); err != nil {
			logger.Warn("Ошибка закрытия кэша", slog.String("error", err.Error()))
		}
	}()

	// 3. Файловое хранилище вложений
	store, err := filestore.New(cfg.StoragePath)
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.UploadTmpPath, 0o750); err != nil {
		logger.Error("Ошибка создания директории загрузок", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Репозитории
	operatorRepo := repository.NewOperatorRepository(pool)
	entityRepo := repository.NewEntityRepository(pool)
	blacklistRepo := repository.NewBlacklistRepository(pool)
	evidenceRepo := repository.NewEvidenceRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)

	// 5. Сервисы
	auditSvc := service.NewAuditService(auditRepo, cfg.IsPublicAuditEntry,
		cfg.AuditLogsPublic, cfg.ListAuditLogsMaxItems, logger)
	operatorSvc := service.NewOperatorService(operatorRepo, cacheAdapter,
		auditSvc, cfg.MasterAPIKey, logger)
	entitySvc := service.NewEntityService(entityRepo, evidenceRepo, attachmentRepo,
		cacheAdapter, auditSvc, store, cfg.EntitiesPublic, logger)
	blacklistSvc := service.NewBlacklistService(blacklistRepo, entityRepo,
		auditSvc, cfg.BlacklistPublic, cfg.ListBlacklistMaxItems, logger)
	evidenceSvc := service.NewEvidenceService(evidenceRepo, attachmentRepo,
		cacheAdapter, auditSvc, store, logger)
	attachmentSvc := service.NewAttachmentService(attachmentRepo, evidenceRepo,
		cacheAdapter, auditSvc, store, cfg.MaxUploadSize, cfg.UploadTmpPath, logger)

	// Корневой оператор создаётся лениво; прогреваем на старте,
	// чтобы ошибка ключа всплыла до приёма трафика
	if _, err := operatorSvc.Master(ctx); err != nil {
		logger.Error("Ошибка инициализации корневого оператора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Handlers
	h := server.Handlers{
		Health:      handlers.NewHealthHandler(database.NewReadinessChecker(pool)),
		Operators:   handlers.NewOperatorHandler(operatorSvc, auditSvc, logger),
		Entities:    handlers.NewEntityHandler(entitySvc, blacklistSvc, evidenceSvc, auditSvc, logger),
		Blacklist:   handlers.NewBlacklistHandler(blacklistSvc, logger),
		Evidence:    handlers.NewEvidenceHandler(evidenceSvc, attachmentSvc, logger),
		Attachments: handlers.NewAttachmentHandler(attachmentSvc, cfg.MaxUploadSize, cfg.UploadTmpPath, logger),
		Audit:       handlers.NewAuditHandler(auditSvc, logger),
	}

	// 7. Middleware: метрики → логирование → аутентификация по API-ключу
	auth := middleware.NewAPIKeyAuth(operatorSvc, logger)

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		auth.Middleware(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Federation Node остановлен")
}

// buildCache создаёт кэш-адаптер согласно конфигурации.
func buildCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cache.Adapter, error) {
	if cfg.CacheBackend == config.CacheBackendDisabled {
		logger.Info("Кэш отключён")
		return cache.Disabled(), nil
	}

	policies := map[cache.Category]cache.Policy{
		cache.CategoryOperators:   toPolicy(cfg.CacheOperators),
		cache.CategoryEntities:    toPolicy(cfg.CacheEntities),
		cache.CategoryAttachments: toPolicy(cfg.CacheAttachments),
		cache.CategoryEvidence:    toPolicy(cfg.CacheEvidence),
	}

	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		backend, err := cache.NewRedisBackend(ctx, cache.RedisOptions{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			Database: cfg.RedisDatabase,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Кэш Redis подключён",
			slog.String("host", cfg.RedisHost),
			slog.Int("port", cfg.RedisPort),
		)
		return cache.New(backend, policies, cfg.CacheThrowOnErrors, cfg.CachePreCacheEnabled), nil
	case config.CacheBackendMemory:
		logger.Info("Кэш in-memory активен")
		return cache.New(cache.NewMemoryBackend(policies), policies,
			cfg.CacheThrowOnErrors, cfg.CachePreCacheEnabled), nil
	default:
		return nil, fmt.Errorf("неизвестный бэкенд кэша: %q", cfg.CacheBackend)
	}
}

func toPolicy(p config.CachePolicy) cache.Policy {
	return cache.Policy{Enabled: p.Enabled, Limit: p.Limit, TTL: p.TTL}
}
