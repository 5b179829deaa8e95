package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/federationserver/federation-node/internal/domain/model"
)

// EntityRepository — интерфейс доступа к таблице entities.
type EntityRepository interface {
	// Create создаёт новую сущность.
	Create(ctx context.Context, e *model.Entity) error
	// GetByUUID возвращает сущность по UUID.
	GetByUUID(ctx context.Context, uuid string) (*model.Entity, error)
	// GetByHash возвращает сущность по SHA-256 хэшу.
	GetByHash(ctx context.Context, hash string) (*model.Entity, error)
	// GetByIDDomain возвращает сущность по паре (id, domain).
	GetByIDDomain(ctx context.Context, id string, domain *string) (*model.Entity, error)
	// List возвращает страницу сущностей в детерминированном порядке.
	List(ctx context.Context, limit, page int) ([]*model.Entity, error)
	// Delete удаляет сущность. Каскадно удаляются blacklist и evidence.
	Delete(ctx context.Context, uuid string) error
}

// entityRepo — реализация EntityRepository.
type entityRepo struct {
	db DBTX
}

// NewEntityRepository создаёт репозиторий сущностей.
func NewEntityRepository(db DBTX) EntityRepository {
	return &entityRepo{db: db}
}

const entityColumns = `uuid, hash, id, domain, created`

// scanEntity сканирует строку результата в модель Entity.
func scanEntity(row pgx.Row) (*model.Entity, error) {
	e := &model.Entity{}
	err := row.Scan(&e.UUID, &e.Hash, &e.ID, &e.Domain, &e.Created)
	return e, err
}

func (r *entityRepo) Create(ctx context.Context, e *model.Entity) error {
	query := `
		INSERT INTO entities (uuid, hash, id, domain)
		VALUES ($1, $2, $3, $4)
		RETURNING created`

	err := r.db.QueryRow(ctx, query, e.UUID, e.Hash, e.ID, e.Domain).Scan(&e.Created)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: сущность уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания сущности: %w", err)
	}
	return nil
}

// getBy выполняет выборку одной сущности по произвольному условию.
func (r *entityRepo) getBy(ctx context.Context, where string, args ...any) (*model.Entity, error) {
	query := fmt.Sprintf(`SELECT %s FROM entities WHERE %s`, entityColumns, where)
	e, err := scanEntity(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сущности: %w", err)
	}
	return e, nil
}

func (r *entityRepo) GetByUUID(ctx context.Context, uuid string) (*model.Entity, error) {
	return r.getBy(ctx, `uuid = $1`, uuid)
}

func (r *entityRepo) GetByHash(ctx context.Context, hash string) (*model.Entity, error) {
	return r.getBy(ctx, `hash = $1`, hash)
}

func (r *entityRepo) GetByIDDomain(ctx context.Context, id string, domain *string) (*model.Entity, error) {
	if domain == nil {
		return r.getBy(ctx, `id = $1 AND domain IS NULL`, id)
	}
	return r.getBy(ctx, `id = $1 AND domain = $2`, id, *domain)
}

func (r *entityRepo) List(ctx context.Context, limit, page int) ([]*model.Entity, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM entities
		ORDER BY created DESC, uuid DESC
		LIMIT $1 OFFSET $2`, entityColumns)

	rows, err := r.db.Query(ctx, query, limit, pageOffset(limit, page))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка сущностей: %w", err)
	}
	defer rows.Close()

	var result []*model.Entity
	for rows.Next() {
		e := &model.Entity{}
		if err := rows.Scan(&e.UUID, &e.Hash, &e.ID, &e.Domain, &e.Created); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сущности: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *entityRepo) Delete(ctx context.Context, uuid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM entities WHERE uuid = $1`, uuid)
	if err != nil {
		return fmt.Errorf("ошибка удаления сущности: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
