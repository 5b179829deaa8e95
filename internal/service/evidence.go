// evidence.go — сервис доказательств (evidence).
// Доказательство привязано к сущности и может нести текст,
// заметку, тег и файловые вложения.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/federationserver/federation-node/internal/cache"
	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/domain/rbac"
	"github.com/federationserver/federation-node/internal/repository"
	"github.com/federationserver/federation-node/internal/storage/filestore"
)

// EvidenceService — сервис доказательств.
type EvidenceService struct {
	repo           repository.EvidenceRepository
	attachmentRepo repository.AttachmentRepository
	cache          *cache.Adapter
	audit          *AuditService
	store          *filestore.FileStore
	logger         *slog.Logger
}

// NewEvidenceService создаёт сервис доказательств.
func NewEvidenceService(
	repo repository.EvidenceRepository,
	attachmentRepo repository.AttachmentRepository,
	cacheAdapter *cache.Adapter,
	audit *AuditService,
	store *filestore.FileStore,
	logger *slog.Logger,
) *EvidenceService {
	return &EvidenceService{
		repo:           repo,
		attachmentRepo: attachmentRepo,
		cache:          cacheAdapter,
		audit:          audit,
		store:          store,
		logger:         logger.With(slog.String("component", "evidence_service")),
	}
}

// Create создаёт доказательство для сущности.
// Требует права управления чёрным списком.
func (s *EvidenceService) Create(ctx context.Context, actor *model.Operator, entityUUID, note, textContent, tag string, visibility model.Visibility) (*model.Evidence, error) {
	if !rbac.Can(actor, rbac.ActionManageBlacklist) {
		return nil, ErrForbidden
	}
	if err := requireUUID("entity uuid", entityUUID); err != nil {
		return nil, err
	}
	if !visibility.Valid() {
		return nil, fmt.Errorf("%w: недопустимая видимость %q", ErrInvalidArgument, visibility)
	}

	ev := &model.Evidence{
		UUID:        uuid.Must(uuid.NewV7()).String(),
		Entity:      entityUUID,
		Operator:    &actor.UUID,
		Note:        note,
		TextContent: textContent,
		Tag:         tag,
		Visibility:  visibility,
	}
	if err := s.repo.Create(ctx, ev); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if data, err := json.Marshal(ev); err == nil {
		if err := s.cache.PutOnWrite(ctx, cache.CategoryEvidence, ev.UUID, data); err != nil {
			s.logger.Warn("Ошибка записи доказательства в кэш", slog.String("error", err.Error()))
		}
	}

	if err := s.audit.Append(ctx, model.AuditEvidenceCreated,
		fmt.Sprintf("создано доказательство %s для сущности %s", ev.UUID, entityUUID),
		&actor.UUID, &entityUUID); err != nil {
		return nil, err
	}

	s.logger.Info("Доказательство создано",
		slog.String("uuid", ev.UUID),
		slog.String("entity", entityUUID),
	)
	return ev, nil
}

// Get возвращает доказательство (cache-aside).
// Приватное доказательство для анонима неотличимо от несуществующего.
func (s *EvidenceService) Get(ctx context.Context, viewer *model.Operator, uuid string) (*model.Evidence, error) {
	if err := requireUUID("evidence uuid", uuid); err != nil {
		return nil, err
	}

	ev, err := s.getCached(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if viewer == nil && ev.Visibility != model.VisibilityPublic {
		return nil, ErrNotFound
	}
	return ev, nil
}

// getCached — cache-aside выборка доказательства без проверки видимости.
func (s *EvidenceService) getCached(ctx context.Context, uuid string) (*model.Evidence, error) {
	if data, ok, err := s.cache.Get(ctx, cache.CategoryEvidence, uuid); err != nil {
		return nil, err
	} else if ok {
		ev := &model.Evidence{}
		if err := json.Unmarshal(data, ev); err == nil {
			return ev, nil
		}
	}

	ev, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if data, err := json.Marshal(ev); err == nil {
		if err := s.cache.Put(ctx, cache.CategoryEvidence, uuid, data); err != nil {
			s.logger.Warn("Ошибка записи доказательства в кэш", slog.String("error", err.Error()))
		}
	}
	return ev, nil
}

// ListByEntity возвращает доказательства сущности.
// Аноним видит только публичные.
func (s *EvidenceService) ListByEntity(ctx context.Context, viewer *model.Operator, entityUUID string, limit, page int) ([]*model.Evidence, error) {
	if err := requireUUID("entity uuid", entityUUID); err != nil {
		return nil, err
	}
	if err := validatePagination(limit, page, 0); err != nil {
		return nil, err
	}
	return s.repo.ListByEntity(ctx, entityUUID, viewer == nil, limit, page)
}

// SetVisibility меняет видимость доказательства.
func (s *EvidenceService) SetVisibility(ctx context.Context, actor *model.Operator, uuid string, v model.Visibility) error {
	if !rbac.Can(actor, rbac.ActionManageBlacklist) {
		return ErrForbidden
	}
	if err := requireUUID("evidence uuid", uuid); err != nil {
		return err
	}
	if !v.Valid() {
		return fmt.Errorf("%w: недопустимая видимость %q", ErrInvalidArgument, v)
	}

	if err := s.repo.SetVisibility(ctx, uuid, v); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.cache.Invalidate(ctx, cache.CategoryEvidence, uuid)
}

// Delete удаляет доказательство вместе с файлами вложений.
// Строки вложений каскадно удаляет БД; файлы убираем сами после
// успешного удаления строки-источника.
func (s *EvidenceService) Delete(ctx context.Context, actor *model.Operator, uuid string) error {
	if !rbac.Can(actor, rbac.ActionManageBlacklist) {
		return ErrForbidden
	}
	if err := requireUUID("evidence uuid", uuid); err != nil {
		return err
	}

	ev, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	attachments, err := s.attachmentRepo.ListByEvidence(ctx, uuid)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, uuid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	for _, att := range attachments {
		if err := s.store.Remove(att.UUID); err != nil {
			// Строка уже удалена; осиротевший файл — только в лог
			s.logger.Error("Не удалось удалить файл вложения",
				slog.String("uuid", att.UUID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.cache.Invalidate(ctx, cache.CategoryAttachments, att.UUID); err != nil {
			return err
		}
	}

	if err := s.cache.Invalidate(ctx, cache.CategoryEvidence, uuid); err != nil {
		return err
	}

	if err := s.audit.Append(ctx, model.AuditEvidenceDeleted,
		fmt.Sprintf("удалено доказательство %s сущности %s", uuid, ev.Entity),
		&actor.UUID, &ev.Entity); err != nil {
		return err
	}

	s.logger.Info("Доказательство удалено",
		slog.String("uuid", uuid),
		slog.Int("attachments", len(attachments)),
	)
	return nil
}
