package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/federationserver/federation-node/internal/api/middleware"
	"github.com/federationserver/federation-node/internal/cache"
	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/repository"
	"github.com/federationserver/federation-node/internal/service"
	"github.com/federationserver/federation-node/internal/storage/filestore"
)

const (
	testEvidenceUUID = "0191d2a4-7c3b-7e11-9a42-5f8e1c6b2d90"
	testEntityUUID   = "0191d2a4-7c3b-7e11-9a42-5f8e1c6b2d91"
)

// stubEvidenceRepo — минимальный EvidenceRepository с одной записью.
type stubEvidenceRepo struct {
	ev *model.Evidence
}

func (s *stubEvidenceRepo) Create(ctx context.Context, ev *model.Evidence) error { return nil }

func (s *stubEvidenceRepo) GetByUUID(ctx context.Context, uuid string) (*model.Evidence, error) {
	if s.ev != nil && s.ev.UUID == uuid {
		cp := *s.ev
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubEvidenceRepo) ListByEntity(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.Evidence, error) {
	return nil, nil
}

func (s *stubEvidenceRepo) ListUUIDsByEntity(ctx context.Context, entityUUID string) ([]string, error) {
	return nil, nil
}

func (s *stubEvidenceRepo) SetVisibility(ctx context.Context, uuid string, v model.Visibility) error {
	return nil
}

func (s *stubEvidenceRepo) Delete(ctx context.Context, uuid string) error { return nil }

// stubAttachmentRepo — AttachmentRepository, накапливающий Create в памяти.
type stubAttachmentRepo struct {
	mu      sync.Mutex
	created []*model.FileAttachment
}

func (s *stubAttachmentRepo) Create(ctx context.Context, a *model.FileAttachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, a)
	return nil
}

func (s *stubAttachmentRepo) GetByUUID(ctx context.Context, uuid string) (*model.FileAttachment, error) {
	return nil, repository.ErrNotFound
}

func (s *stubAttachmentRepo) ListByEvidence(ctx context.Context, evidenceUUID string) ([]*model.FileAttachment, error) {
	return nil, nil
}

func (s *stubAttachmentRepo) ListByEntity(ctx context.Context, entityUUID string) ([]*model.FileAttachment, error) {
	return nil, nil
}

func (s *stubAttachmentRepo) Delete(ctx context.Context, uuid string) error { return nil }

// stubAuditRepo — AuditLogRepository-заглушка, записи никуда не пишет.
type stubAuditRepo struct{}

func (stubAuditRepo) Append(ctx context.Context, e *model.AuditLogEntry) error { return nil }

func (stubAuditRepo) List(ctx context.Context, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error) {
	return nil, nil
}

func (stubAuditRepo) ListByEntity(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error) {
	return nil, nil
}

func (stubAuditRepo) ListByOperator(ctx context.Context, operatorUUID string, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error) {
	return nil, nil
}

// uploadFixture — обработчик загрузки поверх реального filestore и заглушек БД.
type uploadFixture struct {
	router  http.Handler
	attRepo *stubAttachmentRepo
	store   *filestore.FileStore
}

func newUploadFixture(t *testing.T, maxUploadSize int64) *uploadFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	tmpDir := t.TempDir()

	attRepo := &stubAttachmentRepo{}
	evRepo := &stubEvidenceRepo{ev: &model.Evidence{
		UUID:       testEvidenceUUID,
		Entity:     testEntityUUID,
		Visibility: model.VisibilityPublic,
	}}
	audit := service.NewAuditService(stubAuditRepo{}, func(string) bool { return true }, true, 100, logger)
	svc := service.NewAttachmentService(attRepo, evRepo, cache.Disabled(), audit, store,
		maxUploadSize, tmpDir, logger)

	h := NewAttachmentHandler(svc, maxUploadSize, tmpDir, logger)
	r := chi.NewRouter()
	r.Post("/api/v1/evidence/{uuid}/attachments", h.Upload)

	return &uploadFixture{router: r, attRepo: attRepo, store: store}
}

// multipartBody собирает multipart-тело из пар (имя файла, содержимое);
// пустое имя файла — обычное текстовое поле.
func multipartBody(t *testing.T, parts ...[2]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, p := range parts {
		if p[0] == "" {
			if err := w.WriteField("note", p[1]); err != nil {
				t.Fatalf("WriteField: %v", err)
			}
			continue
		}
		fw, err := w.CreateFormFile("file", p[0])
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write([]byte(p[1])); err != nil {
			t.Fatalf("запись части: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("закрытие multipart writer: %v", err)
	}
	return buf, w.FormDataContentType()
}

// doUpload выполняет POST загрузки от имени оператора с правами blacklist.
func doUpload(fx *uploadFixture, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/evidence/"+testEvidenceUUID+"/attachments", body)
	req.Header.Set("Content-Type", contentType)
	actor := &model.Operator{UUID: "0191d2a4-7c3b-7e11-9a42-5f8e1c6b2d92",
		Name: "uploader", ManageBlacklist: true, IsClient: true}
	req = req.WithContext(middleware.WithOperator(req.Context(), actor))

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

// TestAttachmentUpload_StoresFileContent проверяет сквозную загрузку:
// байты части доходят до хранилища без потерь, включая форму с
// нефайловыми полями перед файловой частью.
func TestAttachmentUpload_StoresFileContent(t *testing.T) {
	fx := newUploadFixture(t, 1<<20)

	payload := "содержимое вложения"
	body, ct := multipartBody(t,
		[2]string{"", "контекст загрузки"},
		[2]string{"report.txt", payload},
	)

	rec := doUpload(fx, body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("статус = %d, ожидался 201; тело: %s", rec.Code, rec.Body.String())
	}

	if len(fx.attRepo.created) != 1 {
		t.Fatalf("создано записей вложений = %d, ожидалась 1", len(fx.attRepo.created))
	}
	att := fx.attRepo.created[0]
	if att.FileSize != int64(len(payload)) {
		t.Errorf("размер = %d, ожидался %d", att.FileSize, len(payload))
	}
	if att.FileName != "report.txt" {
		t.Errorf("имя файла = %q, ожидалось %q", att.FileName, "report.txt")
	}

	f, err := fx.store.Open(att.UUID)
	if err != nil {
		t.Fatalf("открытие сохранённого файла: %v", err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("чтение сохранённого файла: %v", err)
	}
	if string(got) != payload {
		t.Errorf("содержимое файла = %q, ожидалось %q", got, payload)
	}
}

// TestAttachmentUpload_RejectsMultipleFiles: две файловые части — 400.
func TestAttachmentUpload_RejectsMultipleFiles(t *testing.T) {
	fx := newUploadFixture(t, 1<<20)

	body, ct := multipartBody(t,
		[2]string{"a.txt", "первый"},
		[2]string{"b.txt", "второй"},
	)

	rec := doUpload(fx, body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("статус = %d, ожидался 400", rec.Code)
	}
	if len(fx.attRepo.created) != 0 {
		t.Error("запись вложения не должна создаваться")
	}
}

// TestAttachmentUpload_RejectsMissingFile: форма без файловой части — 400.
func TestAttachmentUpload_RejectsMissingFile(t *testing.T) {
	fx := newUploadFixture(t, 1<<20)

	body, ct := multipartBody(t, [2]string{"", "только текст"})

	rec := doUpload(fx, body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("статус = %d, ожидался 400", rec.Code)
	}
}

// TestAttachmentUpload_PayloadTooLarge: тело сверх транспортного
// лимита — 413.
func TestAttachmentUpload_PayloadTooLarge(t *testing.T) {
	fx := newUploadFixture(t, 16)

	// Лимит тела = maxUploadSize + 1 MiB; превышаем его с запасом
	big := bytes.Repeat([]byte("x"), 16+(1<<20)+(1<<10))
	body, ct := multipartBody(t, [2]string{"big.bin", string(big)})

	rec := doUpload(fx, body, ct)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("статус = %d, ожидался 413", rec.Code)
	}
}
