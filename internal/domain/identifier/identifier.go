// Пакет identifier — классификация идентификаторов сущностей федерации.
// Сущность адресуется либо UUID (RFC 4122), либо SHA-256 хэшем содержимого.
// Чистые функции без состояния и I/O.
package identifier

// Kind — вид идентификатора.
type Kind int

const (
	// KindInvalid — строка не является ни UUID, ни SHA-256 хэшем.
	KindInvalid Kind = iota
	// KindUUID — канонический UUID формата 8-4-4-4-12.
	KindUUID
	// KindHash — SHA-256 хэш, ровно 64 hex-символа.
	KindHash
)

// String возвращает текстовое представление вида идентификатора.
func (k Kind) String() string {
	switch k {
	case KindUUID:
		return "uuid"
	case KindHash:
		return "hash"
	default:
		return "invalid"
	}
}

// Classify определяет вид идентификатора.
// UUID распознаётся по канонической hex-раскладке 8-4-4-4-12
// (регистр не важен), хэш — по ровно 64 hex-символам.
func Classify(s string) Kind {
	switch {
	case IsUUID(s):
		return KindUUID
	case IsHash(s):
		return KindHash
	default:
		return KindInvalid
	}
}

// Позиции дефисов в каноническом UUID.
var uuidDashes = map[int]bool{8: true, 13: true, 18: true, 23: true}

// IsUUID проверяет каноническую форму UUID: 36 символов,
// дефисы на позициях 8, 13, 18, 23, остальное — hex в любом регистре.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if uuidDashes[i] {
			if s[i] != '-' {
				return false
			}
			continue
		}
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

// IsHash проверяет SHA-256 хэш: ровно 64 hex-символа в любом регистре.
func IsHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
