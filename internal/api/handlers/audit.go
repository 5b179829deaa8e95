// audit.go — обработчики журнала аудита.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/federationserver/federation-node/internal/api/errors"
	"github.com/federationserver/federation-node/internal/api/middleware"
	"github.com/federationserver/federation-node/internal/service"
)

// AuditHandler — обработчики /api/v1/audit.
type AuditHandler struct {
	audit  *service.AuditService
	logger *slog.Logger
}

// NewAuditHandler создаёт обработчик журнала аудита.
func NewAuditHandler(audit *service.AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		audit:  audit,
		logger: logger.With(slog.String("component", "audit_handler")),
	}
}

// List — GET /api/v1/audit.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, page, err := parsePagination(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	viewer := middleware.OperatorFrom(r.Context())
	entries, err := h.audit.List(r.Context(), viewer, limit, page)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(entries, limit, page, toAuditResponse))
}
