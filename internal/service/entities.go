// entities.go — сервис сущностей федерации.
// Сущность адресуема взаимозаменяемо по UUID и SHA-256 хэшу;
// Resolve принимает любой из двух идентификаторов.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/federationserver/federation-node/internal/cache"
	"github.com/federationserver/federation-node/internal/domain/identifier"
	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/domain/rbac"
	"github.com/federationserver/federation-node/internal/repository"
	"github.com/federationserver/federation-node/internal/storage/filestore"
)

// EntityService — сервис сущностей.
type EntityService struct {
	repo repository.EntityRepository
	// evidenceRepo и attachmentRepo нужны Delete: каскад БД не знает
	// про файлы и кэш, их зачистка — обязанность сервиса
	evidenceRepo   repository.EvidenceRepository
	attachmentRepo repository.AttachmentRepository
	cache          *cache.Adapter
	audit          *AuditService
	store          *filestore.FileStore
	// public — разрешено ли анонимное чтение сущностей
	public bool
	logger *slog.Logger
}

// NewEntityService создаёт сервис сущностей.
func NewEntityService(
	repo repository.EntityRepository,
	evidenceRepo repository.EvidenceRepository,
	attachmentRepo repository.AttachmentRepository,
	cacheAdapter *cache.Adapter,
	audit *AuditService,
	store *filestore.FileStore,
	public bool,
	logger *slog.Logger,
) *EntityService {
	return &EntityService{
		repo:           repo,
		evidenceRepo:   evidenceRepo,
		attachmentRepo: attachmentRepo,
		cache:          cacheAdapter,
		audit:          audit,
		store:          store,
		public:         public,
		logger:         logger.With(slog.String("component", "entity_service")),
	}
}

// Ключи кэша сущности: по uuid и по хэшу.
func entityUUIDKey(u string) string { return "uuid:" + u }
func entityHashKey(h string) string { return "hash:" + h }

// cachePut кладёт сущность в кэш под обоими ключами.
func (s *EntityService) cachePut(ctx context.Context, e *model.Entity, onWrite bool) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	put := s.cache.Put
	if onWrite {
		put = s.cache.PutOnWrite
	}
	for _, key := range []string{entityUUIDKey(e.UUID), entityHashKey(e.Hash)} {
		if err := put(ctx, cache.CategoryEntities, key, data); err != nil {
			s.logger.Warn("Ошибка записи сущности в кэш", slog.String("error", err.Error()))
		}
	}
}

// checkViewer применяет политику анонимного доступа к сущностям.
func (s *EntityService) checkViewer(viewer *model.Operator) error {
	if viewer == nil && !s.public {
		return ErrNotFound
	}
	return nil
}

// Push регистрирует сущность по внешней паре (id, domain).
// Идемпотентен: повторный push той же пары возвращает существующую
// запись без побочных эффектов.
func (s *EntityService) Push(ctx context.Context, actor *model.Operator, id string, domain *string) (*model.Entity, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if id == "" || utf8.RuneCountInString(id) > 255 {
		return nil, fmt.Errorf("%w: id сущности должен быть от 1 до 255 символов", ErrInvalidArgument)
	}
	if domain != nil && (*domain == "" || utf8.RuneCountInString(*domain) > 255) {
		return nil, fmt.Errorf("%w: домен должен быть от 1 до 255 символов", ErrInvalidArgument)
	}

	hash := model.ComputeHash(id, domain)
	if existing, err := s.repo.GetByHash(ctx, hash); err == nil {
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	e := &model.Entity{
		UUID:   uuid.Must(uuid.NewV7()).String(),
		Hash:   hash,
		ID:     id,
		Domain: domain,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		// Гонка параллельных push одной пары
		if errors.Is(err, repository.ErrConflict) {
			return s.repo.GetByHash(ctx, hash)
		}
		return nil, err
	}

	s.cachePut(ctx, e, true)

	if err := s.audit.Append(ctx, model.AuditEntityPushed,
		fmt.Sprintf("добавлена сущность %s", e.UUID),
		&actor.UUID, &e.UUID); err != nil {
		return nil, err
	}

	s.logger.Info("Сущность добавлена",
		slog.String("uuid", e.UUID),
		slog.String("hash", e.Hash),
	)
	return e, nil
}

// Resolve возвращает сущность по UUID либо SHA-256 хэшу.
// Детерминирован и свободен от побочных эффектов (кроме заполнения кэша).
func (s *EntityService) Resolve(ctx context.Context, viewer *model.Operator, ident string) (*model.Entity, error) {
	if err := s.checkViewer(viewer); err != nil {
		return nil, err
	}

	var cacheKey string
	var load func() (*model.Entity, error)

	switch identifier.Classify(ident) {
	case identifier.KindUUID:
		cacheKey = entityUUIDKey(ident)
		load = func() (*model.Entity, error) { return s.repo.GetByUUID(ctx, ident) }
	case identifier.KindHash:
		cacheKey = entityHashKey(ident)
		load = func() (*model.Entity, error) { return s.repo.GetByHash(ctx, ident) }
	default:
		return nil, ErrInvalidIdentifier
	}

	if data, ok, err := s.cache.Get(ctx, cache.CategoryEntities, cacheKey); err != nil {
		return nil, err
	} else if ok {
		e := &model.Entity{}
		if err := json.Unmarshal(data, e); err == nil {
			return e, nil
		}
	}

	e, err := load()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.cachePut(ctx, e, false)
	return e, nil
}

// Exists сообщает, известна ли сущность с данным идентификатором.
func (s *EntityService) Exists(ctx context.Context, viewer *model.Operator, ident string) (bool, error) {
	_, err := s.Resolve(ctx, viewer, ident)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List возвращает страницу сущностей.
func (s *EntityService) List(ctx context.Context, viewer *model.Operator, limit, page int) ([]*model.Entity, error) {
	if err := s.checkViewer(viewer); err != nil {
		return nil, err
	}
	if err := validatePagination(limit, page, 0); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, limit, page)
}

// Delete удаляет сущность и каскадно связанные записи.
// Каскад БД сносит только строки; файлы вложений и кэш-записи
// доказательств зачищает сервис. Требует права управления чёрным
// списком.
func (s *EntityService) Delete(ctx context.Context, actor *model.Operator, entityUUID string) error {
	if err := requireUUID("entity uuid", entityUUID); err != nil {
		return err
	}
	if !rbac.Can(actor, rbac.ActionManageBlacklist) {
		return ErrForbidden
	}

	e, err := s.repo.GetByUUID(ctx, entityUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	// Снимок каскада до удаления: после DELETE строки уже не перечислить
	attachments, err := s.attachmentRepo.ListByEntity(ctx, entityUUID)
	if err != nil {
		return err
	}
	evidenceUUIDs, err := s.evidenceRepo.ListUUIDsByEntity(ctx, entityUUID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, entityUUID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	// Строки уже удалены; осиротевший файл — только в лог
	for _, att := range attachments {
		if err := s.store.Remove(att.UUID); err != nil {
			s.logger.Error("Не удалось удалить файл вложения",
				slog.String("uuid", att.UUID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.cache.Invalidate(ctx, cache.CategoryAttachments, att.UUID); err != nil {
			return err
		}
	}
	if err := s.cache.Invalidate(ctx, cache.CategoryEvidence, evidenceUUIDs...); err != nil {
		return err
	}

	// Запись адресуема по двум ключам — инвалидируем оба
	if err := s.cache.Invalidate(ctx, cache.CategoryEntities,
		entityUUIDKey(e.UUID), entityHashKey(e.Hash)); err != nil {
		return err
	}

	if err := s.audit.Append(ctx, model.AuditEntityDeleted,
		fmt.Sprintf("удалена сущность %s", entityUUID),
		&actor.UUID, nil); err != nil {
		return err
	}

	s.logger.Info("Сущность удалена",
		slog.String("uuid", entityUUID),
		slog.String("actor", actor.UUID),
	)
	return nil
}
