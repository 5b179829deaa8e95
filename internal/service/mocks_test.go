package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/federationserver/federation-node/internal/cache"
	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/repository"
)

// --- Mock repositories ---

// mockOperatorRepo — мок OperatorRepository для unit-тестов.
type mockOperatorRepo struct {
	createFn             func(ctx context.Context, op *model.Operator) error
	getByUUIDFn          func(ctx context.Context, uuid string) (*model.Operator, error)
	getByAPIKeyFn        func(ctx context.Context, apiKey string) (*model.Operator, error)
	existsFn             func(ctx context.Context, uuid string) (bool, error)
	listFn               func(ctx context.Context, limit, page int) ([]*model.Operator, error)
	setDisabledFn        func(ctx context.Context, uuid string, disabled bool) error
	setAPIKeyFn          func(ctx context.Context, uuid, apiKey string) error
	setManageOperatorsFn func(ctx context.Context, uuid string, v bool) error
	setManageBlacklistFn func(ctx context.Context, uuid string, v bool) error
	setClientFn          func(ctx context.Context, uuid string, v bool) error
	deleteFn             func(ctx context.Context, uuid string) error
}

func (m *mockOperatorRepo) Create(ctx context.Context, op *model.Operator) error {
	if m.createFn != nil {
		return m.createFn(ctx, op)
	}
	return nil
}

func (m *mockOperatorRepo) GetByUUID(ctx context.Context, uuid string) (*model.Operator, error) {
	if m.getByUUIDFn != nil {
		return m.getByUUIDFn(ctx, uuid)
	}
	return nil, repository.ErrNotFound
}

func (m *mockOperatorRepo) GetByAPIKey(ctx context.Context, apiKey string) (*model.Operator, error) {
	if m.getByAPIKeyFn != nil {
		return m.getByAPIKeyFn(ctx, apiKey)
	}
	return nil, repository.ErrNotFound
}

func (m *mockOperatorRepo) Exists(ctx context.Context, uuid string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, uuid)
	}
	return false, nil
}

func (m *mockOperatorRepo) List(ctx context.Context, limit, page int) ([]*model.Operator, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, page)
	}
	return nil, nil
}

func (m *mockOperatorRepo) SetDisabled(ctx context.Context, uuid string, disabled bool) error {
	if m.setDisabledFn != nil {
		return m.setDisabledFn(ctx, uuid, disabled)
	}
	return nil
}

func (m *mockOperatorRepo) SetAPIKey(ctx context.Context, uuid, apiKey string) error {
	if m.setAPIKeyFn != nil {
		return m.setAPIKeyFn(ctx, uuid, apiKey)
	}
	return nil
}

func (m *mockOperatorRepo) SetManageOperators(ctx context.Context, uuid string, v bool) error {
	if m.setManageOperatorsFn != nil {
		return m.setManageOperatorsFn(ctx, uuid, v)
	}
	return nil
}

func (m *mockOperatorRepo) SetManageBlacklist(ctx context.Context, uuid string, v bool) error {
	if m.setManageBlacklistFn != nil {
		return m.setManageBlacklistFn(ctx, uuid, v)
	}
	return nil
}

func (m *mockOperatorRepo) SetClient(ctx context.Context, uuid string, v bool) error {
	if m.setClientFn != nil {
		return m.setClientFn(ctx, uuid, v)
	}
	return nil
}

func (m *mockOperatorRepo) Delete(ctx context.Context, uuid string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, uuid)
	}
	return nil
}

// mockEntityRepo — мок EntityRepository.
type mockEntityRepo struct {
	createFn        func(ctx context.Context, e *model.Entity) error
	getByUUIDFn     func(ctx context.Context, uuid string) (*model.Entity, error)
	getByHashFn     func(ctx context.Context, hash string) (*model.Entity, error)
	getByIDDomainFn func(ctx context.Context, id string, domain *string) (*model.Entity, error)
	listFn          func(ctx context.Context, limit, page int) ([]*model.Entity, error)
	deleteFn        func(ctx context.Context, uuid string) error
}

func (m *mockEntityRepo) Create(ctx context.Context, e *model.Entity) error {
	if m.createFn != nil {
		return m.createFn(ctx, e)
	}
	return nil
}

func (m *mockEntityRepo) GetByUUID(ctx context.Context, uuid string) (*model.Entity, error) {
	if m.getByUUIDFn != nil {
		return m.getByUUIDFn(ctx, uuid)
	}
	return nil, repository.ErrNotFound
}

func (m *mockEntityRepo) GetByHash(ctx context.Context, hash string) (*model.Entity, error) {
	if m.getByHashFn != nil {
		return m.getByHashFn(ctx, hash)
	}
	return nil, repository.ErrNotFound
}

func (m *mockEntityRepo) GetByIDDomain(ctx context.Context, id string, domain *string) (*model.Entity, error) {
	if m.getByIDDomainFn != nil {
		return m.getByIDDomainFn(ctx, id, domain)
	}
	return nil, repository.ErrNotFound
}

func (m *mockEntityRepo) List(ctx context.Context, limit, page int) ([]*model.Entity, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, page)
	}
	return nil, nil
}

func (m *mockEntityRepo) Delete(ctx context.Context, uuid string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, uuid)
	}
	return nil
}

// mockBlacklistRepo — мок BlacklistRepository.
type mockBlacklistRepo struct {
	createFn       func(ctx context.Context, rec *model.BlacklistRecord) error
	getByUUIDFn    func(ctx context.Context, uuid string) (*model.BlacklistRecord, error)
	listByEntityFn func(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.BlacklistRecord, error)
	hasActiveFn    func(ctx context.Context, entityUUID string) (bool, error)
	setLiftedFn    func(ctx context.Context, uuid string, lifted bool) error
	deleteFn       func(ctx context.Context, uuid string) error
}

func (m *mockBlacklistRepo) Create(ctx context.Context, rec *model.BlacklistRecord) error {
	if m.createFn != nil {
		return m.createFn(ctx, rec)
	}
	return nil
}

func (m *mockBlacklistRepo) GetByUUID(ctx context.Context, uuid string) (*model.BlacklistRecord, error) {
	if m.getByUUIDFn != nil {
		return m.getByUUIDFn(ctx, uuid)
	}
	return nil, repository.ErrNotFound
}

func (m *mockBlacklistRepo) ListByEntity(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.BlacklistRecord, error) {
	if m.listByEntityFn != nil {
		return m.listByEntityFn(ctx, entityUUID, publicOnly, limit, page)
	}
	return nil, nil
}

func (m *mockBlacklistRepo) HasActive(ctx context.Context, entityUUID string) (bool, error) {
	if m.hasActiveFn != nil {
		return m.hasActiveFn(ctx, entityUUID)
	}
	return false, nil
}

func (m *mockBlacklistRepo) SetLifted(ctx context.Context, uuid string, lifted bool) error {
	if m.setLiftedFn != nil {
		return m.setLiftedFn(ctx, uuid, lifted)
	}
	return nil
}

func (m *mockBlacklistRepo) Delete(ctx context.Context, uuid string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, uuid)
	}
	return nil
}

// mockEvidenceRepo — мок EvidenceRepository.
type mockEvidenceRepo struct {
	createFn            func(ctx context.Context, ev *model.Evidence) error
	getByUUIDFn         func(ctx context.Context, uuid string) (*model.Evidence, error)
	listByEntityFn      func(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.Evidence, error)
	listUUIDsByEntityFn func(ctx context.Context, entityUUID string) ([]string, error)
	setVisibilityFn     func(ctx context.Context, uuid string, v model.Visibility) error
	deleteFn            func(ctx context.Context, uuid string) error
}

func (m *mockEvidenceRepo) Create(ctx context.Context, ev *model.Evidence) error {
	if m.createFn != nil {
		return m.createFn(ctx, ev)
	}
	return nil
}

func (m *mockEvidenceRepo) GetByUUID(ctx context.Context, uuid string) (*model.Evidence, error) {
	if m.getByUUIDFn != nil {
		return m.getByUUIDFn(ctx, uuid)
	}
	return nil, repository.ErrNotFound
}

func (m *mockEvidenceRepo) ListByEntity(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.Evidence, error) {
	if m.listByEntityFn != nil {
		return m.listByEntityFn(ctx, entityUUID, publicOnly, limit, page)
	}
	return nil, nil
}

func (m *mockEvidenceRepo) ListUUIDsByEntity(ctx context.Context, entityUUID string) ([]string, error) {
	if m.listUUIDsByEntityFn != nil {
		return m.listUUIDsByEntityFn(ctx, entityUUID)
	}
	return nil, nil
}

func (m *mockEvidenceRepo) SetVisibility(ctx context.Context, uuid string, v model.Visibility) error {
	if m.setVisibilityFn != nil {
		return m.setVisibilityFn(ctx, uuid, v)
	}
	return nil
}

func (m *mockEvidenceRepo) Delete(ctx context.Context, uuid string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, uuid)
	}
	return nil
}

// mockAttachmentRepo — мок AttachmentRepository.
type mockAttachmentRepo struct {
	createFn         func(ctx context.Context, a *model.FileAttachment) error
	getByUUIDFn      func(ctx context.Context, uuid string) (*model.FileAttachment, error)
	listByEvidenceFn func(ctx context.Context, evidenceUUID string) ([]*model.FileAttachment, error)
	listByEntityFn   func(ctx context.Context, entityUUID string) ([]*model.FileAttachment, error)
	deleteFn         func(ctx context.Context, uuid string) error
}

func (m *mockAttachmentRepo) Create(ctx context.Context, a *model.FileAttachment) error {
	if m.createFn != nil {
		return m.createFn(ctx, a)
	}
	return nil
}

func (m *mockAttachmentRepo) GetByUUID(ctx context.Context, uuid string) (*model.FileAttachment, error) {
	if m.getByUUIDFn != nil {
		return m.getByUUIDFn(ctx, uuid)
	}
	return nil, repository.ErrNotFound
}

func (m *mockAttachmentRepo) ListByEvidence(ctx context.Context, evidenceUUID string) ([]*model.FileAttachment, error) {
	if m.listByEvidenceFn != nil {
		return m.listByEvidenceFn(ctx, evidenceUUID)
	}
	return nil, nil
}

func (m *mockAttachmentRepo) ListByEntity(ctx context.Context, entityUUID string) ([]*model.FileAttachment, error) {
	if m.listByEntityFn != nil {
		return m.listByEntityFn(ctx, entityUUID)
	}
	return nil, nil
}

func (m *mockAttachmentRepo) Delete(ctx context.Context, uuid string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, uuid)
	}
	return nil
}

// mockAuditRepo — мок AuditLogRepository, накапливает записи в памяти.
type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*model.AuditLogEntry
	listFn  func(ctx context.Context, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error)
}

func (m *mockAuditRepo) Append(ctx context.Context, e *model.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	e.Created = time.Now().UTC()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, publicOnly, limit, page)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.AuditLogEntry(nil), m.entries...), nil
}

func (m *mockAuditRepo) ListByEntity(ctx context.Context, entityUUID string, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error) {
	return m.List(ctx, publicOnly, limit, page)
}

func (m *mockAuditRepo) ListByOperator(ctx context.Context, operatorUUID string, publicOnly bool, limit, page int) ([]*model.AuditLogEntry, error) {
	return m.List(ctx, publicOnly, limit, page)
}

// last возвращает последнюю добавленную запись.
func (m *mockAuditRepo) last(t *testing.T) *model.AuditLogEntry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		t.Fatal("журнал аудита пуст")
	}
	return m.entries[len(m.entries)-1]
}

// --- Общие помощники ---

// alwaysPublic и neverPublic — классификаторы видов аудита для тестов.
func alwaysPublic(string) bool { return true }
func neverPublic(string) bool  { return false }

// newTestAudit создаёт AuditService поверх мока-накопителя.
func newTestAudit(isPublic func(string) bool) (*AuditService, *mockAuditRepo) {
	repo := &mockAuditRepo{}
	return NewAuditService(repo, isPublic, true, 100, slog.Default()), repo
}

// newTestCache создаёт memory-кэш со всеми включёнными категориями.
func newTestCache() *cache.Adapter {
	policies := map[cache.Category]cache.Policy{
		cache.CategoryOperators:   {Enabled: true, Limit: 100, TTL: time.Minute},
		cache.CategoryEntities:    {Enabled: true, Limit: 100, TTL: time.Minute},
		cache.CategoryAttachments: {Enabled: true, Limit: 100, TTL: time.Minute},
		cache.CategoryEvidence:    {Enabled: true, Limit: 100, TTL: time.Minute},
	}
	return cache.New(cache.NewMemoryBackend(policies), policies, true, true)
}

// админ, рядовой оператор и отключённый оператор для проверок прав.
func adminOperator() *model.Operator {
	return &model.Operator{UUID: "op-admin", APIKey: "admin-key", Name: "admin",
		ManageOperators: true, ManageBlacklist: true, IsClient: true}
}

func plainOperator() *model.Operator {
	return &model.Operator{UUID: "op-plain", APIKey: "plain-key", Name: "plain", IsClient: true}
}

func disabledOperator() *model.Operator {
	op := adminOperator()
	op.UUID = "op-disabled"
	op.Disabled = true
	return op
}
