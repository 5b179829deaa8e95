// operators.go — сервис управления операторами федерации.
// Операторы аутентифицируются по API-ключу; корневой оператор
// создаётся лениво из конфигурации при первом обращении.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/federationserver/federation-node/internal/cache"
	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/domain/rbac"
	"github.com/federationserver/federation-node/internal/repository"
)

// OperatorService — сервис управления операторами.
type OperatorService struct {
	repo  repository.OperatorRepository
	cache *cache.Adapter
	audit *AuditService
	// masterKey — ключ корневого оператора из конфигурации (32 символа)
	masterKey string
	logger    *slog.Logger
}

// NewOperatorService создаёт сервис операторов.
func NewOperatorService(
	repo repository.OperatorRepository,
	cacheAdapter *cache.Adapter,
	audit *AuditService,
	masterKey string,
	logger *slog.Logger,
) *OperatorService {
	return &OperatorService{
		repo:      repo,
		cache:     cacheAdapter,
		audit:     audit,
		masterKey: masterKey,
		logger:    logger.With(slog.String("component", "operator_service")),
	}
}

// generateAPIKey возвращает новый API-ключ: 32 hex-символа из crypto/rand.
func generateAPIKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка генерации api-ключа: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Ключи кэша оператора: запись доступна по uuid и по api-ключу.
func operatorUUIDKey(u string) string   { return "uuid:" + u }
func operatorAPIKeyKey(k string) string { return "key:" + k }

// cachePut кладёт оператора в кэш под обоими ключами.
func (s *OperatorService) cachePut(ctx context.Context, op *model.Operator, onWrite bool) {
	data, err := json.Marshal(op)
	if err != nil {
		return
	}
	put := s.cache.Put
	if onWrite {
		put = s.cache.PutOnWrite
	}
	for _, key := range []string{operatorUUIDKey(op.UUID), operatorAPIKeyKey(op.APIKey)} {
		if err := put(ctx, cache.CategoryOperators, key, data); err != nil {
			s.logger.Warn("Ошибка записи оператора в кэш", slog.String("error", err.Error()))
		}
	}
}

// cacheInvalidate удаляет оператора из кэша по обоим ключам.
func (s *OperatorService) cacheInvalidate(ctx context.Context, op *model.Operator) error {
	return s.cache.Invalidate(ctx, cache.CategoryOperators,
		operatorUUIDKey(op.UUID), operatorAPIKeyKey(op.APIKey))
}

// Create создаёт нового оператора. Требует права управления операторами.
func (s *OperatorService) Create(ctx context.Context, actor *model.Operator, name string, manageOperators, manageBlacklist, isClient bool) (*model.Operator, error) {
	if !rbac.Can(actor, rbac.ActionManageOperators) {
		return nil, ErrForbidden
	}
	if name == "" || utf8.RuneCountInString(name) > 255 {
		return nil, fmt.Errorf("%w: имя оператора должно быть от 1 до 255 символов", ErrInvalidArgument)
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	op := &model.Operator{
		UUID:            uuid.Must(uuid.NewV7()).String(),
		APIKey:          apiKey,
		Name:            name,
		ManageOperators: manageOperators,
		ManageBlacklist: manageBlacklist,
		IsClient:        isClient,
	}
	if err := s.repo.Create(ctx, op); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, err
	}

	s.cachePut(ctx, op, true)

	if err := s.audit.Append(ctx, model.AuditOperatorCreated,
		fmt.Sprintf("создан оператор %q (%s)", op.Name, op.UUID),
		&actor.UUID, nil); err != nil {
		return nil, err
	}

	s.logger.Info("Оператор создан",
		slog.String("uuid", op.UUID),
		slog.String("name", op.Name),
		slog.String("actor", actor.UUID),
	)
	return op, nil
}

// Master возвращает корневого оператора, создавая его при первом
// обращении из ключа конфигурации. Идемпотентен: повторные вызовы
// и гонки сводятся к выборке существующей записи.
func (s *OperatorService) Master(ctx context.Context) (*model.Operator, error) {
	op, err := s.repo.GetByAPIKey(ctx, s.masterKey)
	if err == nil {
		return op, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	master := &model.Operator{
		UUID:            uuid.Must(uuid.NewV7()).String(),
		APIKey:          s.masterKey,
		Name:            model.MasterName,
		ManageOperators: true,
		ManageBlacklist: true,
		IsClient:        true,
	}
	if err := s.repo.Create(ctx, master); err != nil {
		// Параллельный bootstrap успел первым
		if errors.Is(err, repository.ErrConflict) {
			return s.repo.GetByAPIKey(ctx, s.masterKey)
		}
		return nil, err
	}

	if err := s.audit.Append(ctx, model.AuditOperatorCreated,
		"создан корневой оператор", nil, nil); err != nil {
		return nil, err
	}

	s.logger.Info("Корневой оператор создан", slog.String("uuid", master.UUID))
	return master, nil
}

// GetByUUID возвращает оператора по UUID (cache-aside).
func (s *OperatorService) GetByUUID(ctx context.Context, uuid string) (*model.Operator, error) {
	if err := requireUUID("operator uuid", uuid); err != nil {
		return nil, err
	}
	return s.getCached(ctx, operatorUUIDKey(uuid), func() (*model.Operator, error) {
		return s.repo.GetByUUID(ctx, uuid)
	})
}

// GetByAPIKey возвращает оператора по API-ключу (cache-aside).
// Вызывается на каждом аутентифицированном запросе.
func (s *OperatorService) GetByAPIKey(ctx context.Context, apiKey string) (*model.Operator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api-ключ не задан", ErrInvalidArgument)
	}
	return s.getCached(ctx, operatorAPIKeyKey(apiKey), func() (*model.Operator, error) {
		return s.repo.GetByAPIKey(ctx, apiKey)
	})
}

// getCached — общая cache-aside выборка оператора.
func (s *OperatorService) getCached(ctx context.Context, key string, load func() (*model.Operator, error)) (*model.Operator, error) {
	if data, ok, err := s.cache.Get(ctx, cache.CategoryOperators, key); err != nil {
		return nil, err
	} else if ok {
		op := &model.Operator{}
		if err := json.Unmarshal(data, op); err == nil {
			return op, nil
		}
		// Повреждённая запись кэша — проваливаемся в БД
	}

	op, err := load()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.cachePut(ctx, op, false)
	return op, nil
}

// List возвращает страницу операторов. Требует права управления операторами.
func (s *OperatorService) List(ctx context.Context, actor *model.Operator, limit, page int) ([]*model.Operator, error) {
	if !rbac.Can(actor, rbac.ActionManageOperators) {
		return nil, ErrForbidden
	}
	if err := validatePagination(limit, page, 0); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, limit, page)
}

// RefreshAPIKey заменяет API-ключ оператора и возвращает обновлённую
// запись. Собственный ключ может обновить любой оператор, чужой —
// только управляющий операторами.
func (s *OperatorService) RefreshAPIKey(ctx context.Context, actor *model.Operator, targetUUID string) (*model.Operator, error) {
	if err := requireUUID("operator uuid", targetUUID); err != nil {
		return nil, err
	}
	if !rbac.CanRefreshAPIKey(actor, targetUUID) {
		return nil, ErrForbidden
	}

	target, err := s.repo.GetByUUID(ctx, targetUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	newKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetAPIKey(ctx, targetUUID, newKey); err != nil {
		return nil, err
	}

	// Старый ключ не должен пережить ротацию ни в кэше, ни в БД
	if err := s.cacheInvalidate(ctx, target); err != nil {
		return nil, err
	}

	if err := s.audit.Append(ctx, model.AuditOperatorPermissionsChanged,
		fmt.Sprintf("обновлён api-ключ оператора %s", targetUUID),
		&actor.UUID, nil); err != nil {
		return nil, err
	}

	target.APIKey = newKey
	s.logger.Info("API-ключ оператора обновлён",
		slog.String("uuid", targetUUID),
		slog.String("actor", actor.UUID),
	)
	return target, nil
}

// mutate — общий каркас мутации оператора: проверка прав,
// выборка цели, изменение, инвалидация кэша, запись аудита.
func (s *OperatorService) mutate(
	ctx context.Context,
	actor *model.Operator,
	targetUUID string,
	change func(target *model.Operator) error,
	auditType model.AuditLogType,
	auditMsg string,
) error {
	if err := requireUUID("operator uuid", targetUUID); err != nil {
		return err
	}
	if !rbac.Can(actor, rbac.ActionManageOperators) {
		return ErrForbidden
	}

	target, err := s.repo.GetByUUID(ctx, targetUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := change(target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.cacheInvalidate(ctx, target); err != nil {
		return err
	}

	return s.audit.Append(ctx, auditType, auditMsg, &actor.UUID, nil)
}

// Enable включает ранее отключённого оператора.
func (s *OperatorService) Enable(ctx context.Context, actor *model.Operator, targetUUID string) error {
	return s.mutate(ctx, actor, targetUUID,
		func(*model.Operator) error { return s.repo.SetDisabled(ctx, targetUUID, false) },
		model.AuditOperatorEnabled,
		fmt.Sprintf("оператор %s включён", targetUUID))
}

// Disable отключает оператора: его ключ перестаёт действовать,
// запись сохраняется.
func (s *OperatorService) Disable(ctx context.Context, actor *model.Operator, targetUUID string) error {
	return s.mutate(ctx, actor, targetUUID,
		func(*model.Operator) error { return s.repo.SetDisabled(ctx, targetUUID, true) },
		model.AuditOperatorDisabled,
		fmt.Sprintf("оператор %s отключён", targetUUID))
}

// SetManageOperators выставляет право управления операторами.
func (s *OperatorService) SetManageOperators(ctx context.Context, actor *model.Operator, targetUUID string, v bool) error {
	return s.mutate(ctx, actor, targetUUID,
		func(*model.Operator) error { return s.repo.SetManageOperators(ctx, targetUUID, v) },
		model.AuditOperatorPermissionsChanged,
		fmt.Sprintf("оператор %s: manage_operators=%v", targetUUID, v))
}

// SetManageBlacklist выставляет право управления чёрным списком.
func (s *OperatorService) SetManageBlacklist(ctx context.Context, actor *model.Operator, targetUUID string, v bool) error {
	return s.mutate(ctx, actor, targetUUID,
		func(*model.Operator) error { return s.repo.SetManageBlacklist(ctx, targetUUID, v) },
		model.AuditOperatorPermissionsChanged,
		fmt.Sprintf("оператор %s: manage_blacklist=%v", targetUUID, v))
}

// SetClient выставляет клиентский флаг.
func (s *OperatorService) SetClient(ctx context.Context, actor *model.Operator, targetUUID string, v bool) error {
	return s.mutate(ctx, actor, targetUUID,
		func(*model.Operator) error { return s.repo.SetClient(ctx, targetUUID, v) },
		model.AuditOperatorPermissionsChanged,
		fmt.Sprintf("оператор %s: is_client=%v", targetUUID, v))
}

// Delete удаляет оператора.
func (s *OperatorService) Delete(ctx context.Context, actor *model.Operator, targetUUID string) error {
	return s.mutate(ctx, actor, targetUUID,
		func(*model.Operator) error { return s.repo.Delete(ctx, targetUUID) },
		model.AuditOperatorDeleted,
		fmt.Sprintf("оператор %s удалён", targetUUID))
}
