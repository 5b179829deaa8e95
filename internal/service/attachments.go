// attachments.go — конвейер приёма файловых вложений.
// Received → Validated → StagedAtomically → Committed | RolledBack:
// файл либо целиком зафиксирован (на диске и в БД), либо не оставляет
// следов ни там, ни там.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/federationserver/federation-node/internal/cache"
	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/domain/rbac"
	"github.com/federationserver/federation-node/internal/repository"
	"github.com/federationserver/federation-node/internal/storage/filestore"
)

// AttachmentService — сервис файловых вложений.
type AttachmentService struct {
	repo         repository.AttachmentRepository
	evidenceRepo repository.EvidenceRepository
	cache        *cache.Adapter
	audit        *AuditService
	store        *filestore.FileStore
	// maxUploadSize — максимальный размер файла в байтах
	maxUploadSize int64
	// uploadTmpDir — директория транспортных временных файлов;
	// источник загрузки обязан находиться внутри неё
	uploadTmpDir string
	logger       *slog.Logger
}

// NewAttachmentService создаёт сервис вложений.
func NewAttachmentService(
	repo repository.AttachmentRepository,
	evidenceRepo repository.EvidenceRepository,
	cacheAdapter *cache.Adapter,
	audit *AuditService,
	store *filestore.FileStore,
	maxUploadSize int64,
	uploadTmpDir string,
	logger *slog.Logger,
) *AttachmentService {
	return &AttachmentService{
		repo:          repo,
		evidenceRepo:  evidenceRepo,
		cache:         cacheAdapter,
		audit:         audit,
		store:         store,
		maxUploadSize: maxUploadSize,
		uploadTmpDir:  uploadTmpDir,
		logger:        logger.With(slog.String("component", "attachment_service")),
	}
}

// validateSource проверяет файл-источник до каких-либо перемещений:
// обычный файл (не symlink), ненулевой размер в пределах лимита,
// resolved-путь внутри директории временных файлов.
func (s *AttachmentService) validateSource(srcPath string) (int64, error) {
	info, err := os.Lstat(srcPath)
	if err != nil {
		return 0, fmt.Errorf("%w: источник недоступен", ErrInvalidUpload)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return 0, fmt.Errorf("%w: источник является символической ссылкой", ErrPathTraversal)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: источник не является обычным файлом", ErrInvalidUpload)
	}

	size := info.Size()
	if size == 0 {
		return 0, fmt.Errorf("%w: пустой файл", ErrInvalidUpload)
	}
	if size > s.maxUploadSize {
		return 0, fmt.Errorf("%w: размер %d превышает лимит %d", ErrInvalidUpload, size, s.maxUploadSize)
	}

	// Канонизируем оба пути: staged-файл обязан лежать внутри tmp dir
	resolvedSrc, err := filepath.EvalSymlinks(srcPath)
	if err != nil {
		return 0, fmt.Errorf("%w: не удалось канонизировать путь источника", ErrInvalidUpload)
	}
	resolvedTmp, err := filepath.EvalSymlinks(s.uploadTmpDir)
	if err != nil {
		return 0, fmt.Errorf("ошибка канонизации директории временных файлов: %w", err)
	}
	if resolvedSrc != resolvedTmp && !strings.HasPrefix(resolvedSrc, resolvedTmp+string(os.PathSeparator)) {
		return 0, fmt.Errorf("%w: %s", ErrPathTraversal, srcPath)
	}

	return size, nil
}

// Upload принимает файл вложения для доказательства.
// srcPath — транспортный временный файл внутри uploadTmpDir;
// на любом исходе источник удаляется.
func (s *AttachmentService) Upload(ctx context.Context, actor *model.Operator, evidenceUUID, srcPath, originalName string) (*model.FileAttachment, error) {
	// Транспортный файл не должен пережить операцию
	defer os.Remove(srcPath)

	if !rbac.Can(actor, rbac.ActionManageBlacklist) {
		return nil, ErrForbidden
	}
	if err := requireUUID("evidence uuid", evidenceUUID); err != nil {
		return nil, err
	}

	ev, err := s.evidenceRepo.GetByUUID(ctx, evidenceUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	size, err := s.validateSource(srcPath)
	if err != nil {
		return nil, err
	}

	mime, err := filestore.SniffMime(srcPath)
	if err != nil {
		return nil, fmt.Errorf("%w: не удалось определить тип содержимого", ErrInvalidUpload)
	}
	fileName := filestore.SanitizeFileName(originalName)

	// Вложения адресуются случайным UUID v4: момент загрузки
	// не должен восстанавливаться из идентификатора
	attUUID := uuid.New().String()

	if _, err := s.store.Ingest(srcPath, attUUID); err != nil {
		s.store.CleanupStaging(attUUID)
		return nil, fmt.Errorf("ошибка записи файла вложения: %w", err)
	}

	att := &model.FileAttachment{
		UUID:     attUUID,
		Evidence: evidenceUUID,
		FileName: fileName,
		FileSize: size,
		FileMime: mime,
	}
	if err := s.repo.Create(ctx, att); err != nil {
		// Компенсация: файл без строки БД не должен существовать
		if rmErr := s.store.Remove(attUUID); rmErr != nil {
			s.logger.Error("Не удалось откатить файл вложения",
				slog.String("uuid", attUUID),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, err
	}

	if data, err := json.Marshal(att); err == nil {
		if err := s.cache.PutOnWrite(ctx, cache.CategoryAttachments, attUUID, data); err != nil {
			s.logger.Warn("Ошибка записи вложения в кэш", slog.String("error", err.Error()))
		}
	}

	if err := s.audit.Append(ctx, model.AuditAttachmentUploaded,
		fmt.Sprintf("загружено вложение %s (%s, %d байт) к доказательству %s", attUUID, fileName, size, evidenceUUID),
		&actor.UUID, &ev.Entity); err != nil {
		return nil, err
	}

	s.logger.Info("Вложение загружено",
		slog.String("uuid", attUUID),
		slog.String("evidence", evidenceUUID),
		slog.String("mime", mime),
		slog.Int64("size", size),
	)
	return att, nil
}

// Get возвращает метаданные вложения (cache-aside).
// Видимость наследуется от родительского доказательства.
func (s *AttachmentService) Get(ctx context.Context, viewer *model.Operator, uuid string) (*model.FileAttachment, error) {
	if err := requireUUID("attachment uuid", uuid); err != nil {
		return nil, err
	}

	att, err := s.getCached(ctx, uuid)
	if err != nil {
		return nil, err
	}

	ev, err := s.evidenceRepo.GetByUUID(ctx, att.Evidence)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if viewer == nil && ev.Visibility != model.VisibilityPublic {
		return nil, ErrNotFound
	}
	return att, nil
}

// getCached — cache-aside выборка вложения без проверки видимости.
func (s *AttachmentService) getCached(ctx context.Context, uuid string) (*model.FileAttachment, error) {
	if data, ok, err := s.cache.Get(ctx, cache.CategoryAttachments, uuid); err != nil {
		return nil, err
	} else if ok {
		att := &model.FileAttachment{}
		if err := json.Unmarshal(data, att); err == nil {
			return att, nil
		}
	}

	att, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if data, err := json.Marshal(att); err == nil {
		if err := s.cache.Put(ctx, cache.CategoryAttachments, uuid, data); err != nil {
			s.logger.Warn("Ошибка записи вложения в кэш", slog.String("error", err.Error()))
		}
	}
	return att, nil
}

// Open возвращает метаданные вложения и поток содержимого файла.
// Закрытие потока — обязанность вызывающего.
func (s *AttachmentService) Open(ctx context.Context, viewer *model.Operator, uuid string) (*model.FileAttachment, io.ReadCloser, error) {
	att, err := s.Get(ctx, viewer, uuid)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.store.Open(att.UUID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("ошибка открытия файла вложения: %w", err)
	}
	return att, f, nil
}

// ListByEvidence возвращает вложения доказательства.
// Аноним видит вложения только публичных доказательств.
func (s *AttachmentService) ListByEvidence(ctx context.Context, viewer *model.Operator, evidenceUUID string) ([]*model.FileAttachment, error) {
	if err := requireUUID("evidence uuid", evidenceUUID); err != nil {
		return nil, err
	}

	ev, err := s.evidenceRepo.GetByUUID(ctx, evidenceUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if viewer == nil && ev.Visibility != model.VisibilityPublic {
		return nil, ErrNotFound
	}

	return s.repo.ListByEvidence(ctx, evidenceUUID)
}

// Delete удаляет вложение: строку БД, затем файл.
func (s *AttachmentService) Delete(ctx context.Context, actor *model.Operator, uuid string) error {
	if !rbac.Can(actor, rbac.ActionManageBlacklist) {
		return ErrForbidden
	}
	if err := requireUUID("attachment uuid", uuid); err != nil {
		return err
	}

	att, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	ev, err := s.evidenceRepo.GetByUUID(ctx, att.Evidence)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if err := s.repo.Delete(ctx, uuid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.store.Remove(uuid); err != nil {
		s.logger.Error("Не удалось удалить файл вложения",
			slog.String("uuid", uuid),
			slog.String("error", err.Error()),
		)
	}

	if err := s.cache.Invalidate(ctx, cache.CategoryAttachments, uuid); err != nil {
		return err
	}

	var entityUUID *string
	if ev != nil {
		entityUUID = &ev.Entity
	}
	if err := s.audit.Append(ctx, model.AuditAttachmentDeleted,
		fmt.Sprintf("удалено вложение %s (%s)", uuid, att.FileName),
		&actor.UUID, entityUUID); err != nil {
		return err
	}

	s.logger.Info("Вложение удалено", slog.String("uuid", uuid))
	return nil
}
