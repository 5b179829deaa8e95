package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/federationserver/federation-node/internal/domain/model"
)

// BlacklistRepository — интерфейс доступа к таблице blacklist.
type BlacklistRepository interface {
	// Create создаёт запись чёрного списка.
	Create(ctx context.Context, rec *model.BlacklistRecord) error
	// GetByUUID возвращает запись по UUID.
	GetByUUID(ctx context.Context, uuid string) (*model.BlacklistRecord, error)
	// ListByEntity возвращает записи по сущности.
	// Если publicOnly — только записи с visibility = 'public'.
	ListByEntity(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.BlacklistRecord, error)
	// HasActive сообщает, есть ли у сущности неснятые записи.
	HasActive(ctx context.Context, entityUUID string) (bool, error)
	// SetLifted снимает (или восстанавливает) запись.
	SetLifted(ctx context.Context, uuid string, lifted bool) error
	// Delete удаляет запись.
	Delete(ctx context.Context, uuid string) error
}

// blacklistRepo — реализация BlacklistRepository.
type blacklistRepo struct {
	db DBTX
}

// NewBlacklistRepository создаёт репозиторий чёрного списка.
func NewBlacklistRepository(db DBTX) BlacklistRepository {
	return &blacklistRepo{db: db}
}

const blacklistColumns = `uuid, entity, operator, reason, visibility, lifted, created`

func scanBlacklist(row pgx.Row) (*model.BlacklistRecord, error) {
	rec := &model.BlacklistRecord{}
	err := row.Scan(
		&rec.UUID, &rec.Entity, &rec.Operator,
		&rec.Reason, &rec.Visibility, &rec.Lifted, &rec.Created,
	)
	return rec, err
}

func (r *blacklistRepo) Create(ctx context.Context, rec *model.BlacklistRecord) error {
	query := `
		INSERT INTO blacklist (uuid, entity, operator, reason, visibility)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created`

	err := r.db.QueryRow(ctx, query,
		rec.UUID, rec.Entity, rec.Operator, rec.Reason, rec.Visibility,
	).Scan(&rec.Created)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: запись чёрного списка уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи чёрного списка: %w", err)
	}
	return nil
}

func (r *blacklistRepo) GetByUUID(ctx context.Context, uuid string) (*model.BlacklistRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM blacklist WHERE uuid = $1`, blacklistColumns)
	rec, err := scanBlacklist(r.db.QueryRow(ctx, query, uuid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи чёрного списка: %w", err)
	}
	return rec, nil
}

func (r *blacklistRepo) ListByEntity(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.BlacklistRecord, error) {
	where := `entity = $1`
	if publicOnly {
		where += ` AND visibility = 'public'`
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM blacklist
		WHERE %s
		ORDER BY created DESC, uuid DESC
		LIMIT $2 OFFSET $3`, blacklistColumns, where)

	rows, err := r.db.Query(ctx, query, entityUUID, limit, pageOffset(limit, page))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей чёрного списка: %w", err)
	}
	defer rows.Close()

	var result []*model.BlacklistRecord
	for rows.Next() {
		rec := &model.BlacklistRecord{}
		if err := rows.Scan(
			&rec.UUID, &rec.Entity, &rec.Operator,
			&rec.Reason, &rec.Visibility, &rec.Lifted, &rec.Created,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи чёрного списка: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *blacklistRepo) HasActive(ctx context.Context, entityUUID string) (bool, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM blacklist WHERE entity = $1 AND NOT lifted`,
		entityUUID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки чёрного списка: %w", err)
	}
	return count > 0, nil
}

func (r *blacklistRepo) SetLifted(ctx context.Context, uuid string, lifted bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE blacklist SET lifted = $2 WHERE uuid = $1`, uuid, lifted)
	if err != nil {
		return fmt.Errorf("ошибка изменения статуса записи чёрного списка: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *blacklistRepo) Delete(ctx context.Context, uuid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM blacklist WHERE uuid = $1`, uuid)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи чёрного списка: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
