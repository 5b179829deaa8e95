package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/federationserver/federation-node/internal/domain/model"
)

// AttachmentRepository — интерфейс доступа к таблице file_attachments.
type AttachmentRepository interface {
	// Create регистрирует файловое вложение.
	Create(ctx context.Context, a *model.FileAttachment) error
	// GetByUUID возвращает вложение по UUID.
	GetByUUID(ctx context.Context, uuid string) (*model.FileAttachment, error)
	// ListByEvidence возвращает вложения доказательства.
	ListByEvidence(ctx context.Context, evidenceUUID string) ([]*model.FileAttachment, error)
	// ListByEntity возвращает вложения всех доказательств сущности.
	ListByEntity(ctx context.Context, entityUUID string) ([]*model.FileAttachment, error)
	// Delete удаляет запись вложения.
	Delete(ctx context.Context, uuid string) error
}

// attachmentRepo — реализация AttachmentRepository.
type attachmentRepo struct {
	db DBTX
}

// NewAttachmentRepository создаёт репозиторий файловых вложений.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepo{db: db}
}

const attachmentColumns = `uuid, evidence, file_name, file_size, file_mime, created`

func scanAttachment(row pgx.Row) (*model.FileAttachment, error) {
	a := &model.FileAttachment{}
	err := row.Scan(&a.UUID, &a.Evidence, &a.FileName, &a.FileSize, &a.FileMime, &a.Created)
	return a, err
}

func (r *attachmentRepo) Create(ctx context.Context, a *model.FileAttachment) error {
	query := `
		INSERT INTO file_attachments (uuid, evidence, file_name, file_size, file_mime)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created`

	err := r.db.QueryRow(ctx, query,
		a.UUID, a.Evidence, a.FileName, a.FileSize, a.FileMime,
	).Scan(&a.Created)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: вложение уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации вложения: %w", err)
	}
	return nil
}

func (r *attachmentRepo) GetByUUID(ctx context.Context, uuid string) (*model.FileAttachment, error) {
	query := fmt.Sprintf(`SELECT %s FROM file_attachments WHERE uuid = $1`, attachmentColumns)
	a, err := scanAttachment(r.db.QueryRow(ctx, query, uuid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения вложения: %w", err)
	}
	return a, nil
}

func (r *attachmentRepo) ListByEvidence(ctx context.Context, evidenceUUID string) ([]*model.FileAttachment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM file_attachments
		WHERE evidence = $1
		ORDER BY created DESC, uuid DESC`, attachmentColumns)

	rows, err := r.db.Query(ctx, query, evidenceUUID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения вложений: %w", err)
	}
	defer rows.Close()

	var result []*model.FileAttachment
	for rows.Next() {
		a := &model.FileAttachment{}
		if err := rows.Scan(&a.UUID, &a.Evidence, &a.FileName, &a.FileSize, &a.FileMime, &a.Created); err != nil {
			return nil, fmt.Errorf("ошибка сканирования вложения: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *attachmentRepo) ListByEntity(ctx context.Context, entityUUID string) ([]*model.FileAttachment, error) {
	query := `
		SELECT a.uuid, a.evidence, a.file_name, a.file_size, a.file_mime, a.created
		FROM file_attachments a
		JOIN evidence e ON a.evidence = e.uuid
		WHERE e.entity = $1
		ORDER BY a.created DESC, a.uuid DESC`

	rows, err := r.db.Query(ctx, query, entityUUID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения вложений сущности: %w", err)
	}
	defer rows.Close()

	var result []*model.FileAttachment
	for rows.Next() {
		a := &model.FileAttachment{}
		if err := rows.Scan(&a.UUID, &a.Evidence, &a.FileName, &a.FileSize, &a.FileMime, &a.Created); err != nil {
			return nil, fmt.Errorf("ошибка сканирования вложения: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *attachmentRepo) Delete(ctx context.Context, uuid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM file_attachments WHERE uuid = $1`, uuid)
	if err != nil {
		return fmt.Errorf("ошибка удаления вложения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
