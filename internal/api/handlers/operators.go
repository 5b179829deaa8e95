// operators.go — обработчики управления операторами.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/federationserver/federation-node/internal/api/errors"
	"github.com/federationserver/federation-node/internal/api/middleware"
	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/service"
)

// OperatorHandler — обработчики /api/v1/operators.
type OperatorHandler struct {
	operators *service.OperatorService
	audit     *service.AuditService
	logger    *slog.Logger
}

// NewOperatorHandler создаёт обработчик операторов.
func NewOperatorHandler(operators *service.OperatorService, audit *service.AuditService, logger *slog.Logger) *OperatorHandler {
	return &OperatorHandler{
		operators: operators,
		audit:     audit,
		logger:    logger.With(slog.String("component", "operator_handler")),
	}
}

// createOperatorRequest — тело POST /operators.
type createOperatorRequest struct {
	Name            string `json:"name"`
	ManageOperators bool   `json:"manage_operators"`
	ManageBlacklist bool   `json:"manage_blacklist"`
	IsClient        bool   `json:"is_client"`
}

// Create — POST /api/v1/operators.
// Единственный ответ, раскрывающий api-ключ нового оператора.
func (h *OperatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOperatorRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	actor := middleware.OperatorFrom(r.Context())
	op, err := h.operators.Create(r.Context(), actor, req.Name,
		req.ManageOperators, req.ManageBlacklist, req.IsClient)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOperatorResponse(op, true))
}

// List — GET /api/v1/operators.
func (h *OperatorHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, page, err := parsePagination(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	actor := middleware.OperatorFrom(r.Context())
	ops, err := h.operators.List(r.Context(), actor, limit, page)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(ops, limit, page,
		func(op *model.Operator) operatorResponse { return toOperatorResponse(op, false) }))
}

// Get — GET /api/v1/operators/{uuid}.
func (h *OperatorHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := middleware.OperatorFrom(r.Context())
	if actor == nil {
		// Записи операторов не публичны
		apierrors.NotFound(w, "ресурс не найден")
		return
	}

	op, err := h.operators.GetByUUID(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOperatorResponse(op, false))
}

// Self — GET /api/v1/operators/self. Возвращает вызывающего.
func (h *OperatorHandler) Self(w http.ResponseWriter, r *http.Request) {
	actor := middleware.OperatorFrom(r.Context())
	if actor == nil {
		apierrors.Unauthorized(w, "требуется api-ключ")
		return
	}
	writeJSON(w, http.StatusOK, toOperatorResponse(actor, false))
}

// RefreshAPIKey — POST /api/v1/operators/{uuid}/refresh-key.
// Ответ содержит новый api-ключ.
func (h *OperatorHandler) RefreshAPIKey(w http.ResponseWriter, r *http.Request) {
	actor := middleware.OperatorFrom(r.Context())
	op, err := h.operators.RefreshAPIKey(r.Context(), actor, chi.URLParam(r, "uuid"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOperatorResponse(op, true))
}

// Enable — POST /api/v1/operators/{uuid}/enable.
func (h *OperatorHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.runMutation(w, r, h.operators.Enable)
}

// Disable — POST /api/v1/operators/{uuid}/disable.
func (h *OperatorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.runMutation(w, r, h.operators.Disable)
}

// Delete — DELETE /api/v1/operators/{uuid}.
func (h *OperatorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.runMutation(w, r, h.operators.Delete)
}

// permissionsRequest — тело PATCH /operators/{uuid}/permissions.
// Указываются только изменяемые флаги.
type permissionsRequest struct {
	ManageOperators *bool `json:"manage_operators"`
	ManageBlacklist *bool `json:"manage_blacklist"`
	IsClient        *bool `json:"is_client"`
}

// SetPermissions — PATCH /api/v1/operators/{uuid}/permissions.
func (h *OperatorHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionsRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if req.ManageOperators == nil && req.ManageBlacklist == nil && req.IsClient == nil {
		apierrors.ValidationError(w, "ни один флаг не указан")
		return
	}

	actor := middleware.OperatorFrom(r.Context())
	uuid := chi.URLParam(r, "uuid")
	ctx := r.Context()

	if req.ManageOperators != nil {
		if err := h.operators.SetManageOperators(ctx, actor, uuid, *req.ManageOperators); err != nil {
			apierrors.FromService(w, err)
			return
		}
	}
	if req.ManageBlacklist != nil {
		if err := h.operators.SetManageBlacklist(ctx, actor, uuid, *req.ManageBlacklist); err != nil {
			apierrors.FromService(w, err)
			return
		}
	}
	if req.IsClient != nil {
		if err := h.operators.SetClient(ctx, actor, uuid, *req.IsClient); err != nil {
			apierrors.FromService(w, err)
			return
		}
	}

	op, err := h.operators.GetByUUID(ctx, uuid)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOperatorResponse(op, false))
}

// Audit — GET /api/v1/operators/{uuid}/audit.
func (h *OperatorHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, page, err := parsePagination(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	viewer := middleware.OperatorFrom(r.Context())
	entries, err := h.audit.ListByOperator(r.Context(), viewer, chi.URLParam(r, "uuid"), limit, page)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(entries, limit, page, toAuditResponse))
}

// runMutation — общий каркас мутаций без тела запроса и ответа.
func (h *OperatorHandler) runMutation(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, actor *model.Operator, uuid string) error,
) {
	actor := middleware.OperatorFrom(r.Context())
	if err := fn(r.Context(), actor, chi.URLParam(r, "uuid")); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
