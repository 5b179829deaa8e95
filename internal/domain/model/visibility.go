package model

// Visibility — класс видимости записи.
// Публичные записи доступны неаутентифицированным читателям,
// если соответствующий public-флаг включён в конфигурации.
type Visibility string

const (
	// VisibilityPublic — запись видна без аутентификации.
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate — запись видна только аутентифицированным операторам.
	VisibilityPrivate Visibility = "private"
)

// Valid проверяет, что значение является допустимым классом видимости.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}
