package model

import "time"

// BlacklistRecord — вердикт против сущности федерации.
// Хранится в таблице blacklist, принадлежит сущности (ON DELETE CASCADE).
type BlacklistRecord struct {
	// UUID — идентификатор записи (UUID v7)
	UUID string
	// Entity — UUID сущности, против которой вынесен вердикт
	Entity string
	// Operator — UUID оператора, создавшего запись;
	// nil после удаления автора
	Operator *string
	// Reason — причина занесения в blacklist
	Reason string
	// Visibility — класс видимости (public/private)
	Visibility Visibility
	// Lifted — вердикт снят без удаления записи
	Lifted bool
	// Created — время создания записи
	Created time.Time
}
