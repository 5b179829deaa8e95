// handler.go — общие помощники обработчиков HTTP API.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/federationserver/federation-node/internal/domain/model"
)

// defaultListLimit — размер страницы, если limit не задан в запросе.
const defaultListLimit = 20

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parsePagination читает limit и page из query-параметров.
// Отсутствующие параметры получают значения по умолчанию;
// нечисловые — ошибку. Границы значений проверяет сервисный слой.
func parsePagination(r *http.Request) (limit, page int, err error) {
	limit, page = defaultListLimit, 1

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("limit: ожидается целое число")
		}
	}
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("page: ожидается целое число")
		}
	}
	return limit, page, nil
}

// decodeBody разбирает JSON-тело запроса, отклоняя неизвестные поля.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("некорректное JSON-тело запроса")
	}
	return nil
}

// fmtTime форматирует время ответа API в RFC3339 UTC.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// --- DTO ответов ---

// operatorResponse — представление оператора в ответах API.
// API-ключ отдаётся только при создании и ротации.
type operatorResponse struct {
	UUID            string `json:"uuid"`
	Name            string `json:"name"`
	APIKey          string `json:"api_key,omitempty"`
	Disabled        bool   `json:"disabled"`
	ManageOperators bool   `json:"manage_operators"`
	ManageBlacklist bool   `json:"manage_blacklist"`
	IsClient        bool   `json:"is_client"`
	Created         string `json:"created"`
	Updated         string `json:"updated"`
}

func toOperatorResponse(op *model.Operator, withKey bool) operatorResponse {
	resp := operatorResponse{
		UUID:            op.UUID,
		Name:            op.Name,
		Disabled:        op.Disabled,
		ManageOperators: op.ManageOperators,
		ManageBlacklist: op.ManageBlacklist,
		IsClient:        op.IsClient,
		Created:         fmtTime(op.Created),
		Updated:         fmtTime(op.Updated),
	}
	if withKey {
		resp.APIKey = op.APIKey
	}
	return resp
}

// entityResponse — представление сущности в ответах API.
type entityResponse struct {
	UUID    string  `json:"uuid"`
	Hash    string  `json:"hash"`
	ID      string  `json:"id"`
	Domain  *string `json:"domain"`
	Created string  `json:"created"`
}

func toEntityResponse(e *model.Entity) entityResponse {
	return entityResponse{
		UUID:    e.UUID,
		Hash:    e.Hash,
		ID:      e.ID,
		Domain:  e.Domain,
		Created: fmtTime(e.Created),
	}
}

// blacklistResponse — представление записи чёрного списка.
type blacklistResponse struct {
	UUID       string  `json:"uuid"`
	Entity     string  `json:"entity"`
	Operator   *string `json:"operator"`
	Reason     string  `json:"reason"`
	Visibility string  `json:"visibility"`
	Lifted     bool    `json:"lifted"`
	Created    string  `json:"created"`
}

func toBlacklistResponse(rec *model.BlacklistRecord) blacklistResponse {
	return blacklistResponse{
		UUID:       rec.UUID,
		Entity:     rec.Entity,
		Operator:   rec.Operator,
		Reason:     rec.Reason,
		Visibility: string(rec.Visibility),
		Lifted:     rec.Lifted,
		Created:    fmtTime(rec.Created),
	}
}

// evidenceResponse — представление доказательства.
type evidenceResponse struct {
	UUID        string  `json:"uuid"`
	Entity      string  `json:"entity"`
	Operator    *string `json:"operator"`
	Note        string  `json:"note"`
	TextContent string  `json:"text_content"`
	Tag         string  `json:"tag"`
	Visibility  string  `json:"visibility"`
	Created     string  `json:"created"`
}

func toEvidenceResponse(ev *model.Evidence) evidenceResponse {
	return evidenceResponse{
		UUID:        ev.UUID,
		Entity:      ev.Entity,
		Operator:    ev.Operator,
		Note:        ev.Note,
		TextContent: ev.TextContent,
		Tag:         ev.Tag,
		Visibility:  string(ev.Visibility),
		Created:     fmtTime(ev.Created),
	}
}

// attachmentResponse — представление файлового вложения.
type attachmentResponse struct {
	UUID     string `json:"uuid"`
	Evidence string `json:"evidence"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	FileMime string `json:"file_mime"`
	Created  string `json:"created"`
}

func toAttachmentResponse(a *model.FileAttachment) attachmentResponse {
	return attachmentResponse{
		UUID:     a.UUID,
		Evidence: a.Evidence,
		FileName: a.FileName,
		FileSize: a.FileSize,
		FileMime: a.FileMime,
		Created:  fmtTime(a.Created),
	}
}

// auditResponse — представление записи журнала аудита.
type auditResponse struct {
	ID         int64   `json:"id"`
	Type       string  `json:"type"`
	Message    string  `json:"message"`
	Operator   *string `json:"operator"`
	Entity     *string `json:"entity"`
	Visibility string  `json:"visibility"`
	Created    string  `json:"created"`
}

func toAuditResponse(e *model.AuditLogEntry) auditResponse {
	return auditResponse{
		ID:         e.ID,
		Type:       string(e.Type),
		Message:    e.Message,
		Operator:   e.Operator,
		Entity:     e.Entity,
		Visibility: string(e.Visibility),
		Created:    fmtTime(e.Created),
	}
}

// listResponse — обёртка страничных ответов.
type listResponse[T any] struct {
	Items []T `json:"items"`
	Limit int `json:"limit"`
	Page  int `json:"page"`
}

func toListResponse[S, T any](items []S, limit, page int, conv func(S) T) listResponse[T] {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, conv(item))
	}
	return listResponse[T]{Items: out, Limit: limit, Page: page}
}
