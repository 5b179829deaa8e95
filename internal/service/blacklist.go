// blacklist.go — сервис чёрного списка.
// Записи снимаются (lift), а не редактируются: история нарушений
// сохраняется даже после амнистии.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/domain/rbac"
	"github.com/federationserver/federation-node/internal/repository"
)

// BlacklistService — сервис чёрного списка.
type BlacklistService struct {
	repo       repository.BlacklistRepository
	entityRepo repository.EntityRepository
	audit      *AuditService
	// public — разрешено ли анонимное чтение чёрного списка
	public bool
	// maxItems — верхняя граница limit при выборке
	maxItems int
	logger   *slog.Logger
}

// NewBlacklistService создаёт сервис чёрного списка.
func NewBlacklistService(
	repo repository.BlacklistRepository,
	entityRepo repository.EntityRepository,
	audit *AuditService,
	public bool,
	maxItems int,
	logger *slog.Logger,
) *BlacklistService {
	return &BlacklistService{
		repo:       repo,
		entityRepo: entityRepo,
		audit:      audit,
		public:     public,
		maxItems:   maxItems,
		logger:     logger.With(slog.String("component", "blacklist_service")),
	}
}

// Create вносит сущность в чёрный список.
// Требует права управления чёрным списком.
func (s *BlacklistService) Create(ctx context.Context, actor *model.Operator, entityUUID, reason string, visibility model.Visibility) (*model.BlacklistRecord, error) {
	if !rbac.Can(actor, rbac.ActionManageBlacklist) {
		return nil, ErrForbidden
	}
	if err := requireUUID("entity uuid", entityUUID); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: причина внесения обязательна", ErrInvalidArgument)
	}
	if !visibility.Valid() {
		return nil, fmt.Errorf("%w: недопустимая видимость %q", ErrInvalidArgument, visibility)
	}

	if _, err := s.entityRepo.GetByUUID(ctx, entityUUID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rec := &model.BlacklistRecord{
		UUID:       uuid.Must(uuid.NewV7()).String(),
		Entity:     entityUUID,
		Operator:   &actor.UUID,
		Reason:     reason,
		Visibility: visibility,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.audit.Append(ctx, model.AuditBlacklistCreated,
		fmt.Sprintf("сущность %s внесена в чёрный список: %s", entityUUID, reason),
		&actor.UUID, &entityUUID); err != nil {
		return nil, err
	}

	s.logger.Info("Запись чёрного списка создана",
		slog.String("uuid", rec.UUID),
		slog.String("entity", entityUUID),
		slog.String("actor", actor.UUID),
	)
	return rec, nil
}

// Get возвращает запись чёрного списка.
// Анонимный вызывающий видит только публичные записи; приватная
// запись для него неотличима от несуществующей.
func (s *BlacklistService) Get(ctx context.Context, viewer *model.Operator, uuid string) (*model.BlacklistRecord, error) {
	if viewer == nil && !s.public {
		return nil, ErrNotFound
	}
	if err := requireUUID("blacklist uuid", uuid); err != nil {
		return nil, err
	}

	rec, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if viewer == nil && rec.Visibility != model.VisibilityPublic {
		return nil, ErrNotFound
	}
	return rec, nil
}

// ListByEntity возвращает записи чёрного списка сущности.
func (s *BlacklistService) ListByEntity(ctx context.Context, viewer *model.Operator, entityUUID string, limit, page int) ([]*model.BlacklistRecord, error) {
	if viewer == nil && !s.public {
		return nil, ErrNotFound
	}
	if err := requireUUID("entity uuid", entityUUID); err != nil {
		return nil, err
	}
	if err := validatePagination(limit, page, s.maxItems); err != nil {
		return nil, err
	}
	return s.repo.ListByEntity(ctx, entityUUID, viewer == nil, limit, page)
}

// IsBlacklisted сообщает, есть ли у сущности неснятые записи.
func (s *BlacklistService) IsBlacklisted(ctx context.Context, entityUUID string) (bool, error) {
	if err := requireUUID("entity uuid", entityUUID); err != nil {
		return false, err
	}
	return s.repo.HasActive(ctx, entityUUID)
}

// Lift снимает запись чёрного списка, сохраняя её в истории.
func (s *BlacklistService) Lift(ctx context.Context, actor *model.Operator, uuid string) error {
	return s.mutate(ctx, actor, uuid,
		func(rec *model.BlacklistRecord) error { return s.repo.SetLifted(ctx, uuid, true) },
		model.AuditBlacklistLifted, "снята запись чёрного списка %s для сущности %s")
}

// Delete удаляет запись чёрного списка.
func (s *BlacklistService) Delete(ctx context.Context, actor *model.Operator, uuid string) error {
	return s.mutate(ctx, actor, uuid,
		func(rec *model.BlacklistRecord) error { return s.repo.Delete(ctx, uuid) },
		model.AuditBlacklistDeleted, "удалена запись чёрного списка %s для сущности %s")
}

// mutate — общий каркас мутации записи чёрного списка.
func (s *BlacklistService) mutate(
	ctx context.Context,
	actor *model.Operator,
	uuid string,
	change func(rec *model.BlacklistRecord) error,
	auditType model.AuditLogType,
	msgFormat string,
) error {
	if !rbac.Can(actor, rbac.ActionManageBlacklist) {
		return ErrForbidden
	}
	if err := requireUUID("blacklist uuid", uuid); err != nil {
		return err
	}

	rec, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := change(rec); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	return s.audit.Append(ctx, auditType,
		fmt.Sprintf(msgFormat, uuid, rec.Entity),
		&actor.UUID, &rec.Entity)
}
