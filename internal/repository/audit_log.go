package repository

import (
	"context"
	"fmt"

	"github.com/federationserver/federation-node/internal/domain/model"
)

// AuditLogRepository — интерфейс доступа к журналу аудита.
// Журнал append-only: только вставка и выборка.
type AuditLogRepository interface {
	// Append добавляет запись в журнал.
	Append(ctx context.Context, e *model.AuditLogEntry) error
	// List возвращает страницу журнала.
	// Если publicOnly — только записи с visibility = 'public'.
	List(ctx context.Context, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error)
	// ListByEntity возвращает записи по сущности.
	ListByEntity(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error)
	// ListByOperator возвращает записи по оператору.
	ListByOperator(ctx context.Context, operatorUUID string, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error)
}

// auditLogRepo — реализация AuditLogRepository.
type auditLogRepo struct {
	db DBTX
}

// NewAuditLogRepository создаёт репозиторий журнала аудита.
func NewAuditLogRepository(db DBTX) AuditLogRepository {
	return &auditLogRepo{db: db}
}

const auditLogColumns = `id, type, message, operator, entity, visibility, created`

func (r *auditLogRepo) Append(ctx context.Context, e *model.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (type, message, operator, entity, visibility)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created`

	err := r.db.QueryRow(ctx, query,
		e.Type, e.Message, e.Operator, e.Entity, e.Visibility,
	).Scan(&e.ID, &e.Created)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал аудита: %w", err)
	}
	return nil
}

// list — общая выборка журнала с произвольным фильтром.
// args уже содержат аргументы фильтра; limit/offset добавляются следом.
func (r *auditLogRepo) list(ctx context.Context, where string, publicOnly bool, limit, page int, args ...any) ([]*model.AuditLogEntry, error) {
	if publicOnly {
		if where == "" {
			where = `visibility = 'public'`
		} else {
			where += ` AND visibility = 'public'`
		}
	}
	if where == "" {
		where = "TRUE"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM audit_log
		WHERE %s
		ORDER BY created DESC, id DESC
		LIMIT $%d OFFSET $%d`, auditLogColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, pageOffset(limit, page))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки журнала аудита: %w", err)
	}
	defer rows.Close()

	var result []*model.AuditLogEntry
	for rows.Next() {
		e := &model.AuditLogEntry{}
		if err := rows.Scan(
			&e.ID, &e.Type, &e.Message, &e.Operator, &e.Entity, &e.Visibility, &e.Created,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *auditLogRepo) List(ctx context.Context, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error) {
	return r.list(ctx, "", publicOnly, limit, page)
}

func (r *auditLogRepo) ListByEntity(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error) {
	return r.list(ctx, `entity = $1`, publicOnly, limit, page, entityUUID)
}

func (r *auditLogRepo) ListByOperator(ctx context.Context, operatorUUID string, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error) {
	return r.list(ctx, `operator = $1`, publicOnly, limit, page, operatorUUID)
}
