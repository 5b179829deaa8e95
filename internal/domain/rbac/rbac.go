// Пакет rbac — проверка прав оператора на действие.
// Права задаются флагами capability на записи оператора:
// manage_operators, manage_blacklist. Отключённый оператор
// не может ничего, независимо от флагов.
package rbac

import "github.com/federationserver/federation-node/internal/domain/model"

// Action — действие, требующее проверки прав.
type Action int

const (
	// ActionManageOperators — создание/включение/отключение/удаление
	// операторов и смена capability-флагов другого оператора.
	ActionManageOperators Action = iota
	// ActionManageBlacklist — мутации blacklist, evidence и вложений.
	ActionManageBlacklist
)

// Can проверяет, разрешено ли оператору действие.
// nil-оператор (нет аутентификации) не может ничего.
func Can(op *model.Operator, action Action) bool {
	if op == nil || op.Disabled {
		return false
	}

	switch action {
	case ActionManageOperators:
		return op.ManageOperators
	case ActionManageBlacklist:
		return op.ManageBlacklist
	default:
		return false
	}
}

// CanRefreshAPIKey проверяет право обновить API-ключ оператора target.
// Собственный ключ оператор может обновить всегда,
// чужой — только при manage_operators.
func CanRefreshAPIKey(op *model.Operator, targetUUID string) bool {
	if op == nil || op.Disabled {
		return false
	}
	if op.UUID == targetUUID {
		return true
	}
	return op.ManageOperators
}
