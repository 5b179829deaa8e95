// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — ресурс не найден либо скрыт от анонимного вызывающего.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrForbidden — у оператора нет прав на операцию.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrUnauthorized — операция требует аутентификации.
	ErrUnauthorized = errors.New("требуется аутентификация")
	// ErrInvalidArgument — некорректные входные данные.
	ErrInvalidArgument = errors.New("некорректные входные данные")
	// ErrInvalidIdentifier — идентификатор не является ни UUID, ни SHA-256 хэшем.
	ErrInvalidIdentifier = errors.New("некорректный идентификатор: ожидается UUID или SHA-256 хэш")
	// ErrInvalidUpload — загружаемый файл не прошёл валидацию.
	ErrInvalidUpload = errors.New("некорректный загружаемый файл")
	// ErrPathTraversal — путь источника выходит за пределы разрешённой директории.
	ErrPathTraversal = errors.New("путь файла вне разрешённой директории")
)

// validatePagination проверяет параметры страничной выборки до любого I/O.
// maxLimit <= 0 означает отсутствие верхней границы.
func validatePagination(limit, page, maxLimit int) error {
	if limit < 1 {
		return fmt.Errorf("%w: limit должен быть >= 1", ErrInvalidArgument)
	}
	if page < 1 {
		return fmt.Errorf("%w: page должен быть >= 1", ErrInvalidArgument)
	}
	if maxLimit > 0 && limit > maxLimit {
		return fmt.Errorf("%w: limit превышает максимум %d", ErrInvalidArgument, maxLimit)
	}
	return nil
}

// requireUUID проверяет, что идентификатор не пуст.
func requireUUID(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s не задан", ErrInvalidArgument, name)
	}
	return nil
}
