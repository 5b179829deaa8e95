package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entity — субъект федерации, адресуемый взаимозаменяемо
// по UUID или SHA-256 хэшу. Хранится в таблице entities.
type Entity struct {
	// UUID — идентификатор записи (UUID v7)
	UUID string
	// Hash — SHA-256 хэш содержимого, 64 hex-символа, уникален
	Hash string
	// ID — внешний идентификатор субъекта (например, имя пользователя)
	ID string
	// Domain — домен субъекта; nil для глобальных сущностей
	Domain *string
	// Created — время создания записи
	Created time.Time
}

// ComputeHash вычисляет канонический SHA-256 хэш сущности.
// Для доменных сущностей хэшируется "id@domain", иначе — id.
func ComputeHash(id string, domain *string) string {
	input := id
	if domain != nil {
		input = id + "@" + *domain
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
