// evidence.go — обработчики доказательств.
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

// EvidenceHandler — обработчики /api/v1/evidence.
type EvidenceHandler struct {
	evidence    *service.EvidenceService
	attachments *service.AttachmentService
	logger      *slog.Logger
}

// NewEvidenceHandler создаёт обработчик доказательств.
func NewEvidenceHandler(evidence *service.EvidenceService, attachments *service.AttachmentService, logger *slog.Logger) *EvidenceHandler {
	return &EvidenceHandler{
		evidence:    evidence,
		attachments: attachments,
		logger:      logger.With(slog.String("component", "evidence_handler")),
	}
}

// createEvidenceRequest — тело POST /evidence.
type createEvidenceRequest struct {
	Entity      string `json:"entity"`
	Note        string `json:"note"`
	TextContent string `json:"text_content"`
	Tag         string `json:"tag"`
	Visibility  string `json:"visibility"`
}

// Create — POST /api/v1/evidence.
func (h *EvidenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEvidenceRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if req.Visibility == "" {
		req.Visibility = string(model.VisibilityPublic)
	}

	actor := middleware.OperatorFrom(r.Context())
	ev, err := h.evidence.Create(r.Context(), actor, req.Entity,
		req.Note, req.TextContent, req.Tag, model.Visibility(req.Visibility))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEvidenceResponse(ev))
}

// Get — GET /api/v1/evidence/{uuid}.
func (h *EvidenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.OperatorFrom(r.Context())
	ev, err := h.evidence.Get(r.Context(), viewer, chi.URLParam(r, "uuid"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvidenceResponse(ev))
}

// visibilityRequest — тело PATCH /evidence/{uuid}/visibility.
type visibilityRequest struct {
	Visibility string `json:"visibility"`
}

// SetVisibility — PATCH /api/v1/evidence/{uuid}/visibility.
func (h *EvidenceHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	actor := middleware.OperatorFrom(r.Context())
	if err := h.evidence.SetVisibility(r.Context(), actor, chi.URLParam(r, "uuid"), model.Visibility(req.Visibility)); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete — DELETE /api/v1/evidence/{uuid}. Удаляет и файлы вложений.
func (h *EvidenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.OperatorFrom(r.Context())
	if err := h.evidence.Delete(r.Context(), actor, chi.URLParam(r, "uuid")); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Attachments — GET /api/v1/evidence/{uuid}/attachments.
func (h *EvidenceHandler) Attachments(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.OperatorFrom(r.Context())
	items, err := h.attachments.ListByEvidence(r.Context(), viewer, chi.URLParam(r, "uuid"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}

	out := make([]attachmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toAttachmentResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}
