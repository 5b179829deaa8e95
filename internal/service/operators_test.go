package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/repository"
)

const testMasterKey = "00112233445566778899aabbccddeeff"

func newOperatorService(repo *mockOperatorRepo, audit *AuditService) *OperatorService {
	return NewOperatorService(repo, newTestCache(), audit, testMasterKey, slog.Default())
}

// TestOperatorCreate проверяет создание оператора: генерацию
// идентификатора, ключа и запись аудита.
func TestOperatorCreate(t *testing.T) {
	audit, auditRepo := newTestAudit(neverPublic)
	var created *model.Operator
	repo := &mockOperatorRepo{
		createFn: func(_ context.Context, op *model.Operator) error {
			created = op
			return nil
		},
	}
	svc := newOperatorService(repo, audit)

	op, err := svc.Create(context.Background(), adminOperator(), "partner-node", false, true, true)
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	if created == nil {
		t.Fatal("репозиторий не вызван")
	}
	if len(op.UUID) != 36 {
		t.Errorf("UUID = %q, ожидался канонический формат", op.UUID)
	}
	if len(op.APIKey) != 32 {
		t.Errorf("длина api-ключа = %d, ожидалось 32", len(op.APIKey))
	}
	if op.ManageOperators || !op.ManageBlacklist || !op.IsClient {
		t.Errorf("флаги не переданы: %+v", op)
	}

	entry := auditRepo.last(t)
	if entry.Type != model.AuditOperatorCreated {
		t.Errorf("вид аудита = %s, ожидался OPERATOR_CREATED", entry.Type)
	}
	if entry.Visibility != model.VisibilityPrivate {
		t.Errorf("видимость аудита = %s, ожидалась private", entry.Visibility)
	}
}

// TestOperatorCreate_Validation проверяет валидацию имени до I/O.
func TestOperatorCreate_Validation(t *testing.T) {
	audit, _ := newTestAudit(neverPublic)
	repo := &mockOperatorRepo{
		createFn: func(_ context.Context, _ *model.Operator) error {
			t.Fatal("репозиторий не должен вызываться при ошибке валидации")
			return nil
		},
	}
	svc := newOperatorService(repo, audit)

	tests := []struct {
		name    string
		opName  string
		wantErr error
	}{
		{"пустое имя", "", ErrInvalidArgument},
		{"имя длиннее 255", strings.Repeat("x", 256), ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), adminOperator(), tt.opName, false, false, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create(%q) = %v, ожидался %v", tt.opName, err, tt.wantErr)
			}
		})
	}

	// Имя из 255 символов проходит
	okRepo := &mockOperatorRepo{}
	okSvc := newOperatorService(okRepo, audit)
	if _, err := okSvc.Create(context.Background(), adminOperator(), strings.Repeat("x", 255), false, false, false); err != nil {
		t.Errorf("Create(255 символов) ошибка: %v", err)
	}
}

// TestOperatorCreate_Forbidden проверяет отказ без прав и для
// отключённого оператора.
func TestOperatorCreate_Forbidden(t *testing.T) {
	audit, _ := newTestAudit(neverPublic)
	svc := newOperatorService(&mockOperatorRepo{}, audit)

	for _, actor := range []*model.Operator{nil, plainOperator(), disabledOperator()} {
		if _, err := svc.Create(context.Background(), actor, "x", false, false, false); !errors.Is(err, ErrForbidden) {
			t.Errorf("Create(actor=%v) = %v, ожидался ErrForbidden", actor, err)
		}
	}
}

// TestOperatorMaster_Bootstrap проверяет ленивое создание корневого
// оператора и идемпотентность повторных вызовов.
func TestOperatorMaster_Bootstrap(t *testing.T) {
	audit, _ := newTestAudit(neverPublic)

	var stored *model.Operator
	repo := &mockOperatorRepo{
		getByAPIKeyFn: func(_ context.Context, key string) (*model.Operator, error) {
			if stored != nil && stored.APIKey == key {
				return stored, nil
			}
			return nil, repository.ErrNotFound
		},
		createFn: func(_ context.Context, op *model.Operator) error {
			if stored != nil {
				return repository.ErrConflict
			}
			stored = op
			return nil
		},
	}
	svc := newOperatorService(repo, audit)

	master, err := svc.Master(context.Background())
	if err != nil {
		t.Fatalf("Master() ошибка: %v", err)
	}
	if master.Name != model.MasterName {
		t.Errorf("имя = %q, ожидалось %q", master.Name, model.MasterName)
	}
	if master.APIKey != testMasterKey {
		t.Errorf("api-ключ = %q, ожидался ключ конфигурации", master.APIKey)
	}
	if !master.ManageOperators || !master.ManageBlacklist || !master.IsClient {
		t.Errorf("корневой оператор без полных прав: %+v", master)
	}

	// Повторный вызов не создаёт новой записи
	again, err := svc.Master(context.Background())
	if err != nil {
		t.Fatalf("повторный Master() ошибка: %v", err)
	}
	if again.UUID != master.UUID {
		t.Errorf("повторный bootstrap создал новую запись: %q != %q", again.UUID, master.UUID)
	}
}

// TestOperatorMaster_BootstrapRace проверяет сведение гонки
// параллельного bootstrap к выборке существующей записи.
func TestOperatorMaster_BootstrapRace(t *testing.T) {
	audit, _ := newTestAudit(neverPublic)

	winner := &model.Operator{UUID: "op-winner", APIKey: testMasterKey, Name: model.MasterName}
	calls := 0
	repo := &mockOperatorRepo{
		getByAPIKeyFn: func(_ context.Context, _ string) (*model.Operator, error) {
			calls++
			// Первая выборка — промах, после конфликта запись уже есть
			if calls == 1 {
				return nil, repository.ErrNotFound
			}
			return winner, nil
		},
		createFn: func(_ context.Context, _ *model.Operator) error {
			return repository.ErrConflict
		},
	}
	svc := newOperatorService(repo, audit)

	master, err := svc.Master(context.Background())
	if err != nil {
		t.Fatalf("Master() ошибка: %v", err)
	}
	if master.UUID != "op-winner" {
		t.Errorf("вернулась не существующая запись: %q", master.UUID)
	}
}

// TestOperatorGetByUUID_CacheAside проверяет, что повторная выборка
// не обращается к репозиторию.
func TestOperatorGetByUUID_CacheAside(t *testing.T) {
	audit, _ := newTestAudit(neverPublic)

	stored := &model.Operator{UUID: "op-1", APIKey: "key-1", Name: "one"}
	calls := 0
	repo := &mockOperatorRepo{
		getByUUIDFn: func(_ context.Context, _ string) (*model.Operator, error) {
			calls++
			return stored, nil
		},
	}
	svc := newOperatorService(repo, audit)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		op, err := svc.GetByUUID(ctx, "op-1")
		if err != nil {
			t.Fatalf("GetByUUID() ошибка: %v", err)
		}
		if op.Name != "one" {
			t.Errorf("Name = %q", op.Name)
		}
	}
	if calls != 1 {
		t.Errorf("репозиторий вызван %d раз, ожидался 1 (cache-aside)", calls)
	}

	// Запись доступна и по api-ключу без обращения к БД:
	// cachePut кладёт под оба ключа
	if _, err := svc.GetByAPIKey(ctx, "key-1"); err != nil {
		t.Fatalf("GetByAPIKey() ошибка: %v", err)
	}
	if calls != 1 {
		t.Errorf("GetByAPIKey пошёл в БД: %d вызовов", calls)
	}
}

// TestOperatorRefreshAPIKey проверяет ротацию ключа: свой ключ —
// всегда, чужой — только с правом управления операторами.
func TestOperatorRefreshAPIKey(t *testing.T) {
	audit, _ := newTestAudit(neverPublic)

	target := plainOperator()
	var newKey string
	repo := &mockOperatorRepo{
		getByUUIDFn: func(_ context.Context, uuid string) (*model.Operator, error) {
			if uuid == target.UUID {
				cp := *target
				return &cp, nil
			}
			return nil, repository.ErrNotFound
		},
		setAPIKeyFn: func(_ context.Context, _, key string) error {
			newKey = key
			return nil
		},
	}
	svc := newOperatorService(repo, audit)
	ctx := context.Background()

	// Собственный ключ — разрешено даже без manage_operators
	got, err := svc.RefreshAPIKey(ctx, target, target.UUID)
	if err != nil {
		t.Fatalf("RefreshAPIKey(свой) ошибка: %v", err)
	}
	if got.APIKey != newKey || len(newKey) != 32 {
		t.Errorf("новый ключ %q не согласован с репозиторием %q", got.APIKey, newKey)
	}
	if newKey == target.APIKey {
		t.Error("ключ не изменился")
	}

	// Чужой ключ без прав — отказ
	other := plainOperator()
	other.UUID = "op-other"
	if _, err := svc.RefreshAPIKey(ctx, other, target.UUID); !errors.Is(err, ErrForbidden) {
		t.Errorf("RefreshAPIKey(чужой без прав) = %v, ожидался ErrForbidden", err)
	}

	// Чужой ключ с правами — разрешено
	if _, err := svc.RefreshAPIKey(ctx, adminOperator(), target.UUID); err != nil {
		t.Errorf("RefreshAPIKey(админ) ошибка: %v", err)
	}
}

// TestOperatorRefreshAPIKey_InvalidatesCache проверяет, что после
// ротации старый ключ не резолвится из кэша.
func TestOperatorRefreshAPIKey_InvalidatesCache(t *testing.T) {
	audit, _ := newTestAudit(neverPublic)

	stored := &model.Operator{UUID: "op-rot", APIKey: "old-key", Name: "rot"}
	repo := &mockOperatorRepo{
		getByUUIDFn: func(_ context.Context, _ string) (*model.Operator, error) {
			cp := *stored
			return &cp, nil
		},
		getByAPIKeyFn: func(_ context.Context, key string) (*model.Operator, error) {
			if key == stored.APIKey {
				cp := *stored
				return &cp, nil
			}
			return nil, repository.ErrNotFound
		},
		setAPIKeyFn: func(_ context.Context, _, key string) error {
			stored.APIKey = key
			return nil
		},
	}
	svc := newOperatorService(repo, audit)
	ctx := context.Background()

	// Прогреваем кэш по старому ключу
	if _, err := svc.GetByAPIKey(ctx, "old-key"); err != nil {
		t.Fatalf("прогрев кэша: %v", err)
	}

	actor := adminOperator()
	if _, err := svc.RefreshAPIKey(ctx, actor, "op-rot"); err != nil {
		t.Fatalf("RefreshAPIKey() ошибка: %v", err)
	}

	// Старый ключ мёртв и в кэше, и в БД
	if _, err := svc.GetByAPIKey(ctx, "old-key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("старый ключ всё ещё действует: %v", err)
	}
}

// TestOperatorMutations_Audit проверяет, что каждая мутация создаёт
// ровно одну запись аудита нужного вида.
func TestOperatorMutations_Audit(t *testing.T) {
	audit, auditRepo := newTestAudit(neverPublic)

	target := plainOperator()
	repo := &mockOperatorRepo{
		getByUUIDFn: func(_ context.Context, _ string) (*model.Operator, error) {
			cp := *target
			return &cp, nil
		},
	}
	svc := newOperatorService(repo, audit)
	ctx := context.Background()
	admin := adminOperator()

	tests := []struct {
		name     string
		run      func() error
		wantType model.AuditLogType
	}{
		{"Disable", func() error { return svc.Disable(ctx, admin, target.UUID) }, model.AuditOperatorDisabled},
		{"Enable", func() error { return svc.Enable(ctx, admin, target.UUID) }, model.AuditOperatorEnabled},
		{"SetManageOperators", func() error { return svc.SetManageOperators(ctx, admin, target.UUID, true) }, model.AuditOperatorPermissionsChanged},
		{"SetManageBlacklist", func() error { return svc.SetManageBlacklist(ctx, admin, target.UUID, true) }, model.AuditOperatorPermissionsChanged},
		{"SetClient", func() error { return svc.SetClient(ctx, admin, target.UUID, false) }, model.AuditOperatorPermissionsChanged},
		{"Delete", func() error { return svc.Delete(ctx, admin, target.UUID) }, model.AuditOperatorDeleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(auditRepo.entries)
			if err := tt.run(); err != nil {
				t.Fatalf("%s ошибка: %v", tt.name, err)
			}
			if len(auditRepo.entries) != before+1 {
				t.Fatalf("%s: записей аудита %d, ожидалось %d", tt.name, len(auditRepo.entries), before+1)
			}
			if got := auditRepo.last(t).Type; got != tt.wantType {
				t.Errorf("%s: вид аудита %s, ожидался %s", tt.name, got, tt.wantType)
			}
		})
	}
}

// TestOperatorList_Pagination проверяет валидацию пагинации до I/O.
func TestOperatorList_Pagination(t *testing.T) {
	audit, _ := newTestAudit(neverPublic)
	repo := &mockOperatorRepo{
		listFn: func(_ context.Context, _, _ int) ([]*model.Operator, error) {
			t.Fatal("репозиторий не должен вызываться при некорректной пагинации")
			return nil, nil
		},
	}
	svc := newOperatorService(repo, audit)
	ctx := context.Background()
	admin := adminOperator()

	for _, tc := range []struct{ limit, page int }{{0, 1}, {-1, 1}, {10, 0}, {10, -5}} {
		if _, err := svc.List(ctx, admin, tc.limit, tc.page); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("List(%d, %d) = %v, ожидался ErrInvalidArgument", tc.limit, tc.page, err)
		}
	}

	if _, err := svc.List(ctx, plainOperator(), 10, 1); !errors.Is(err, ErrForbidden) {
		t.Errorf("List без прав = %v, ожидался ErrForbidden", err)
	}
}
