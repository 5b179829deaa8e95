// entities.go — обработчики сущностей федерации.
// Сегмент {identifier} принимает как UUID, так и SHA-256 хэш.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/federationserver/federation-node/internal/api/errors"
	"github.com/federationserver/federation-node/internal/api/middleware"
	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/service"
)

// EntityHandler — обработчики /api/v1/entities.
type EntityHandler struct {
	entities  *service.EntityService
	blacklist *service.BlacklistService
	evidence  *service.EvidenceService
	audit     *service.AuditService
	logger    *slog.Logger
}

// NewEntityHandler создаёт обработчик сущностей.
func NewEntityHandler(
	entities *service.EntityService,
	blacklist *service.BlacklistService,
	evidence *service.EvidenceService,
	audit *service.AuditService,
	logger *slog.Logger,
) *EntityHandler {
	return &EntityHandler{
		entities:  entities,
		blacklist: blacklist,
		evidence:  evidence,
		audit:     audit,
		logger:    logger.With(slog.String("component", "entity_handler")),
	}
}

// pushEntityRequest — тело POST /entities.
type pushEntityRequest struct {
	ID     string  `json:"id"`
	Domain *string `json:"domain"`
}

// Push — POST /api/v1/entities. Идемпотентен для существующей пары.
func (h *EntityHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req pushEntityRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	actor := middleware.OperatorFrom(r.Context())
	e, err := h.entities.Push(r.Context(), actor, req.ID, req.Domain)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntityResponse(e))
}

// List — GET /api/v1/entities.
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, page, err := parsePagination(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	viewer := middleware.OperatorFrom(r.Context())
	entities, err := h.entities.List(r.Context(), viewer, limit, page)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(entities, limit, page, toEntityResponse))
}

// Resolve — GET /api/v1/entities/{identifier}.
func (h *EntityHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.OperatorFrom(r.Context())
	e, err := h.entities.Resolve(r.Context(), viewer, chi.URLParam(r, "identifier"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityResponse(e))
}

// Delete — DELETE /api/v1/entities/{identifier}.
// Удаление адресуется любым из двух идентификаторов.
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.OperatorFrom(r.Context())
	ctx := r.Context()

	// Резолвим идентификатор в UUID записи
	e, err := h.entities.Resolve(ctx, actor, chi.URLParam(r, "identifier"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	if err := h.entities.Delete(ctx, actor, e.UUID); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveForViewer — общий шаг вложенных маршрутов: идентификатор → сущность.
func (h *EntityHandler) resolveForViewer(w http.ResponseWriter, r *http.Request) (*model.Entity, bool) {
	viewer := middleware.OperatorFrom(r.Context())
	e, err := h.entities.Resolve(r.Context(), viewer, chi.URLParam(r, "identifier"))
	if err != nil {
		apierrors.FromService(w, err)
		return nil, false
	}
	return e, true
}

// Blacklist — GET /api/v1/entities/{identifier}/blacklist.
func (h *EntityHandler) Blacklist(w http.ResponseWriter, r *http.Request) {
	limit, page, err := parsePagination(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	e, ok := h.resolveForViewer(w, r)
	if !ok {
		return
	}

	viewer := middleware.OperatorFrom(r.Context())
	records, err := h.blacklist.ListByEntity(r.Context(), viewer, e.UUID, limit, page)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(records, limit, page, toBlacklistResponse))
}

// Evidence — GET /api/v1/entities/{identifier}/evidence.
func (h *EntityHandler) Evidence(w http.ResponseWriter, r *http.Request) {
	limit, page, err := parsePagination(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	e, ok := h.resolveForViewer(w, r)
	if !ok {
		return
	}

	viewer := middleware.OperatorFrom(r.Context())
	items, err := h.evidence.ListByEntity(r.Context(), viewer, e.UUID, limit, page)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(items, limit, page, toEvidenceResponse))
}

// Audit — GET /api/v1/entities/{identifier}/audit.
func (h *EntityHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, page, err := parsePagination(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	e, ok := h.resolveForViewer(w, r)
	if !ok {
		return
	}

	viewer := middleware.OperatorFrom(r.Context())
	entries, err := h.audit.ListByEntity(r.Context(), viewer, e.UUID, limit, page)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(entries, limit, page, toAuditResponse))
}
