package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/federationserver/federation-node/internal/domain/model"
)

// OperatorRepository — интерфейс CRUD для таблицы operators.
type OperatorRepository interface {
	// Create создаёт нового оператора.
	Create(ctx context.Context, op *model.Operator) error
	// GetByUUID возвращает оператора по UUID.
	GetByUUID(ctx context.Context, uuid string) (*model.Operator, error)
	// GetByAPIKey возвращает оператора по API-ключу (уникальный индекс).
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Operator, error)
	// Exists проверяет существование оператора.
	Exists(ctx context.Context, uuid string) (bool, error)
	// List возвращает страницу операторов в детерминированном порядке.
	List(ctx context.Context, limit, page int) ([]*model.Operator, error)
	// SetDisabled включает/отключает оператора.
	SetDisabled(ctx context.Context, uuid string, disabled bool) error
	// SetAPIKey заменяет API-ключ оператора.
	SetAPIKey(ctx context.Context, uuid, apiKey string) error
	// SetManageOperators выставляет флаг manage_operators.
	SetManageOperators(ctx context.Context, uuid string, v bool) error
	// SetManageBlacklist выставляет флаг manage_blacklist.
	SetManageBlacklist(ctx context.Context, uuid string, v bool) error
	// SetClient выставляет флаг is_client.
	SetClient(ctx context.Context, uuid string, v bool) error
	// Delete удаляет оператора.
	Delete(ctx context.Context, uuid string) error
}

// operatorRepo — реализация OperatorRepository.
type operatorRepo struct {
	db DBTX
}

// NewOperatorRepository создаёт репозиторий операторов.
func NewOperatorRepository(db DBTX) OperatorRepository {
	return &operatorRepo{db: db}
}

const operatorColumns = `uuid, api_key, name, disabled,
	manage_operators, manage_blacklist, is_client, created, updated`

// scanOperator сканирует строку результата в модель Operator.
func scanOperator(row pgx.Row) (*model.Operator, error) {
	op := &model.Operator{}
	err := row.Scan(
		&op.UUID, &op.APIKey, &op.Name, &op.Disabled,
		&op.ManageOperators, &op.ManageBlacklist, &op.IsClient,
		&op.Created, &op.Updated,
	)
	return op, err
}

func (r *operatorRepo) Create(ctx context.Context, op *model.Operator) error {
	query := `
		INSERT INTO operators (uuid, api_key, name, manage_operators, manage_blacklist, is_client)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created, updated`

	err := r.db.QueryRow(ctx, query,
		op.UUID, op.APIKey, op.Name,
		op.ManageOperators, op.ManageBlacklist, op.IsClient,
	).Scan(&op.Created, &op.Updated)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: оператор с таким api_key уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания оператора: %w", err)
	}
	return nil
}

func (r *operatorRepo) GetByUUID(ctx context.Context, uuid string) (*model.Operator, error) {
	query := fmt.Sprintf(`SELECT %s FROM operators WHERE uuid = $1`, operatorColumns)
	op, err := scanOperator(r.db.QueryRow(ctx, query, uuid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения оператора: %w", err)
	}
	return op, nil
}

func (r *operatorRepo) GetByAPIKey(ctx context.Context, apiKey string) (*model.Operator, error) {
	query := fmt.Sprintf(`SELECT %s FROM operators WHERE api_key = $1`, operatorColumns)
	op, err := scanOperator(r.db.QueryRow(ctx, query, apiKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения оператора по api_key: %w", err)
	}
	return op, nil
}

func (r *operatorRepo) Exists(ctx context.Context, uuid string) (bool, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM operators WHERE uuid = $1`, uuid).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки существования оператора: %w", err)
	}
	return count > 0, nil
}

func (r *operatorRepo) List(ctx context.Context, limit, page int) ([]*model.Operator, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM operators
		ORDER BY created DESC, uuid DESC
		LIMIT $1 OFFSET $2`, operatorColumns)

	rows, err := r.db.Query(ctx, query, limit, pageOffset(limit, page))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка операторов: %w", err)
	}
	defer rows.Close()

	var result []*model.Operator
	for rows.Next() {
		op := &model.Operator{}
		if err := rows.Scan(
			&op.UUID, &op.APIKey, &op.Name, &op.Disabled,
			&op.ManageOperators, &op.ManageBlacklist, &op.IsClient,
			&op.Created, &op.Updated,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования оператора: %w", err)
		}
		result = append(result, op)
	}
	return result, rows.Err()
}

// updateField выполняет одиночный UPDATE поля оператора.
func (r *operatorRepo) updateField(ctx context.Context, uuid, field string, value any) error {
	query := fmt.Sprintf(`UPDATE operators SET %s = $2, updated = now() WHERE uuid = $1`, field)
	tag, err := r.db.Exec(ctx, query, uuid, value)
	if err != nil {
		return fmt.Errorf("ошибка обновления %s оператора: %w", field, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *operatorRepo) SetDisabled(ctx context.Context, uuid string, disabled bool) error {
	return r.updateField(ctx, uuid, "disabled", disabled)
}

func (r *operatorRepo) SetAPIKey(ctx context.Context, uuid, apiKey string) error {
	err := r.updateField(ctx, uuid, "api_key", apiKey)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: api_key уже существует", ErrConflict)
	}
	return err
}

func (r *operatorRepo) SetManageOperators(ctx context.Context, uuid string, v bool) error {
	return r.updateField(ctx, uuid, "manage_operators", v)
}

func (r *operatorRepo) SetManageBlacklist(ctx context.Context, uuid string, v bool) error {
	return r.updateField(ctx, uuid, "manage_blacklist", v)
}

func (r *operatorRepo) SetClient(ctx context.Context, uuid string, v bool) error {
	return r.updateField(ctx, uuid, "is_client", v)
}

func (r *operatorRepo) Delete(ctx context.Context, uuid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM operators WHERE uuid = $1`, uuid)
	if err != nil {
		return fmt.Errorf("ошибка удаления оператора: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
