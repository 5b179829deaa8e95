// blacklist.go — обработчики чёрного списка.
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

// BlacklistHandler — обработчики /api/v1/blacklist.
type BlacklistHandler struct {
	blacklist *service.BlacklistService
	logger    *slog.Logger
}

// NewBlacklistHandler создаёт обработчик чёрного списка.
func NewBlacklistHandler(blacklist *service.BlacklistService, logger *slog.Logger) *BlacklistHandler {
	return &BlacklistHandler{
		blacklist: blacklist,
		logger:    logger.With(slog.String("component", "blacklist_handler")),
	}
}

// createBlacklistRequest — тело POST /blacklist.
type createBlacklistRequest struct {
	Entity     string `json:"entity"`
	Reason     string `json:"reason"`
	Visibility string `json:"visibility"`
}

// Create — POST /api/v1/blacklist.
func (h *BlacklistHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBlacklistRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if req.Visibility == "" {
		req.Visibility = string(model.VisibilityPublic)
	}

	actor := middleware.OperatorFrom(r.Context())
	rec, err := h.blacklist.Create(r.Context(), actor, req.Entity, req.Reason, model.Visibility(req.Visibility))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlacklistResponse(rec))
}

// Get — GET /api/v1/blacklist/{uuid}.
func (h *BlacklistHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.OperatorFrom(r.Context())
	rec, err := h.blacklist.Get(r.Context(), viewer, chi.URLParam(r, "uuid"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBlacklistResponse(rec))
}

// Lift — POST /api/v1/blacklist/{uuid}/lift.
func (h *BlacklistHandler) Lift(w http.ResponseWriter, r *http.Request) {
	actor := middleware.OperatorFrom(r.Context())
	if err := h.blacklist.Lift(r.Context(), actor, chi.URLParam(r, "uuid")); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete — DELETE /api/v1/blacklist/{uuid}.
func (h *BlacklistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.OperatorFrom(r.Context())
	if err := h.blacklist.Delete(r.Context(), actor, chi.URLParam(r, "uuid")); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
