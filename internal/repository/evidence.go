package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/federationserver/federation-node/internal/domain/model"
)

// EvidenceRepository — интерфейс доступа к таблице evidence.
type EvidenceRepository interface {
	// Create создаёт запись доказательства.
	Create(ctx context.Context, ev *model.Evidence) error
	// GetByUUID возвращает доказательство по UUID.
	GetByUUID(ctx context.Context, uuid string) (*model.Evidence, error)
	// ListByEntity возвращает доказательства сущности.
	// Если publicOnly — только записи с visibility = 'public'.
	ListByEntity(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.Evidence, error)
	// ListUUIDsByEntity возвращает UUID всех доказательств сущности.
	ListUUIDsByEntity(ctx context.Context, entityUUID string) ([]string, error)
	// SetVisibility меняет видимость доказательства.
	SetVisibility(ctx context.Context, uuid string, v model.Visibility) error
	// Delete удаляет доказательство. Каскадно удаляются вложения.
	Delete(ctx context.Context, uuid string) error
}

// evidenceRepo — реализация EvidenceRepository.
type evidenceRepo struct {
	db DBTX
}

// NewEvidenceRepository создаёт репозиторий доказательств.
func NewEvidenceRepository(db DBTX) EvidenceRepository {
	return &evidenceRepo{db: db}
}

const evidenceColumns = `uuid, entity, operator, note, text_content, tag, visibility, created`

func scanEvidence(row pgx.Row) (*model.Evidence, error) {
	ev := &model.Evidence{}
	err := row.Scan(
		&ev.UUID, &ev.Entity, &ev.Operator,
		&ev.Note, &ev.TextContent, &ev.Tag, &ev.Visibility, &ev.Created,
	)
	return ev, err
}

func (r *evidenceRepo) Create(ctx context.Context, ev *model.Evidence) error {
	query := `
		INSERT INTO evidence (uuid, entity, operator, note, text_content, tag, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created`

	err := r.db.QueryRow(ctx, query,
		ev.UUID, ev.Entity, ev.Operator,
		ev.Note, ev.TextContent, ev.Tag, ev.Visibility,
	).Scan(&ev.Created)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: доказательство уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания доказательства: %w", err)
	}
	return nil
}

func (r *evidenceRepo) GetByUUID(ctx context.Context, uuid string) (*model.Evidence, error) {
	query := fmt.Sprintf(`SELECT %s FROM evidence WHERE uuid = $1`, evidenceColumns)
	ev, err := scanEvidence(r.db.QueryRow(ctx, query, uuid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения доказательства: %w", err)
	}
	return ev, nil
}

func (r *evidenceRepo) ListByEntity(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.Evidence, error) {
	where := `entity = $1`
	if publicOnly {
		where += ` AND visibility = 'public'`
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM evidence
		WHERE %s
		ORDER BY created DESC, uuid DESC
		LIMIT $2 OFFSET $3`, evidenceColumns, where)

	rows, err := r.db.Query(ctx, query, entityUUID, limit, pageOffset(limit, page))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения доказательств: %w", err)
	}
	defer rows.Close()

	var result []*model.Evidence
	for rows.Next() {
		ev := &model.Evidence{}
		if err := rows.Scan(
			&ev.UUID, &ev.Entity, &ev.Operator,
			&ev.Note, &ev.TextContent, &ev.Tag, &ev.Visibility, &ev.Created,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования доказательства: %w", err)
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func (r *evidenceRepo) ListUUIDsByEntity(ctx context.Context, entityUUID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT uuid FROM evidence WHERE entity = $1`, entityUUID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения доказательств сущности: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, fmt.Errorf("ошибка сканирования доказательства: %w", err)
		}
		result = append(result, uuid)
	}
	return result, rows.Err()
}

func (r *evidenceRepo) SetVisibility(ctx context.Context, uuid string, v model.Visibility) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE evidence SET visibility = $2 WHERE uuid = $1`, uuid, v)
	if err != nil {
		return fmt.Errorf("ошибка изменения видимости доказательства: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *evidenceRepo) Delete(ctx context.Context, uuid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM evidence WHERE uuid = $1`, uuid)
	if err != nil {
		return fmt.Errorf("ошибка удаления доказательства: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
