package model

import "time"

// Operator — участник федерации, аутентифицируемый по API-ключу.
// Хранится в таблице operators.
type Operator struct {
	// UUID — идентификатор записи (UUID v7, упорядочен по времени)
	UUID string
	// APIKey — bearer-учётные данные, уникальны в пределах таблицы
	APIKey string
	// Name — человекочитаемое имя оператора
	Name string
	// Disabled — оператор отозван без удаления записи
	Disabled bool
	// ManageOperators — право управлять другими операторами
	ManageOperators bool
	// ManageBlacklist — право изменять blacklist, evidence и вложения
	ManageBlacklist bool
	// IsClient — оператор является клиентом федерации
	IsClient bool
	// Created — время создания записи
	Created time.Time
	// Updated — время последнего изменения
	Updated time.Time
}

// MasterName — имя корневого оператора, создаваемого лениво из конфигурации.
const MasterName = "root"
