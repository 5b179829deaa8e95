// audit.go — журнал аудита: запись и выборка.
// Журнал append-only; видимость записи вычисляется в момент создания
// и больше не меняется.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/repository"
)

// AuditService — сервис журнала аудита.
type AuditService struct {
	repo repository.AuditLogRepository
	// isPublicType сообщает, является ли вид события публичным
	isPublicType func(string) bool
	// logsPublic — разрешено ли анонимное чтение журнала
	logsPublic bool
	// maxItems — верхняя граница limit при выборке
	maxItems int
	logger   *slog.Logger
}

// NewAuditService создаёт сервис журнала аудита.
func NewAuditService(
	repo repository.AuditLogRepository,
	isPublicType func(string) bool,
	logsPublic bool,
	maxItems int,
	logger *slog.Logger,
) *AuditService {
	return &AuditService{
		repo:         repo,
		isPublicType: isPublicType,
		logsPublic:   logsPublic,
		maxItems:     maxItems,
		logger:       logger.With(slog.String("component", "audit_service")),
	}
}

// Append добавляет запись в журнал. Видимость вычисляется по виду
// события: типы из конфигурации публичны, остальные приватны.
func (s *AuditService) Append(ctx context.Context, typ model.AuditLogType, message string, operatorUUID, entityUUID *string) error {
	visibility := model.VisibilityPrivate
	if s.isPublicType(string(typ)) {
		visibility = model.VisibilityPublic
	}

	entry := &model.AuditLogEntry{
		Type:       typ,
		Message:    message,
		Operator:   operatorUUID,
		Entity:     entityUUID,
		Visibility: visibility,
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("ошибка записи аудита %s: %w", typ, err)
	}

	s.logger.Debug("Запись аудита добавлена",
		slog.String("type", string(typ)),
		slog.Int64("id", entry.ID),
		slog.String("visibility", string(visibility)),
	)
	return nil
}

// checkViewer проверяет право на чтение журнала.
// Возвращает publicOnly-режим выборки.
func (s *AuditService) checkViewer(viewer *model.Operator) (publicOnly bool, err error) {
	if viewer != nil {
		return false, nil
	}
	if !s.logsPublic {
		// Единообразно скрываем существование журнала от анонимов
		return false, ErrNotFound
	}
	return true, nil
}

// List возвращает страницу журнала. Анонимный вызывающий видит
// только публичные записи.
func (s *AuditService) List(ctx context.Context, viewer *model.Operator, limit, page int) ([]*model.AuditLogEntry, error) {
	publicOnly, err := s.checkViewer(viewer)
	if err != nil {
		return nil, err
	}
	if err := validatePagination(limit, page, s.maxItems); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, publicOnly, limit, page)
}

// ListByEntity возвращает записи журнала по сущности.
func (s *AuditService) ListByEntity(ctx context.Context, viewer *model.Operator, entityUUID string, limit, page int) ([]*model.AuditLogEntry, error) {
	publicOnly, err := s.checkViewer(viewer)
	if err != nil {
		return nil, err
	}
	if err := requireUUID("entity uuid", entityUUID); err != nil {
		return nil, err
	}
	if err := validatePagination(limit, page, s.maxItems); err != nil {
		return nil, err
	}
	return s.repo.ListByEntity(ctx, entityUUID, publicOnly, limit, page)
}

// ListByOperator возвращает записи журнала по оператору-инициатору.
func (s *AuditService) ListByOperator(ctx context.Context, viewer *model.Operator, operatorUUID string, limit, page int) ([]*model.AuditLogEntry, error) {
	publicOnly, err := s.checkViewer(viewer)
	if err != nil {
		return nil, err
	}
	if err := requireUUID("operator uuid", operatorUUID); err != nil {
		return nil, err
	}
	if err := validatePagination(limit, page, s.maxItems); err != nil {
		return nil, err
	}
	return s.repo.ListByOperator(ctx, operatorUUID, publicOnly, limit, page)
}
