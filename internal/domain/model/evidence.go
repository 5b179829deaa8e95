package model

import "time"

// Evidence — подтверждающие материалы по сущности.
// Родитель для нуля и более файловых вложений.
type Evidence struct {
	// UUID — идентификатор записи (UUID v7)
	UUID string
	// Entity — UUID сущности, к которой относятся материалы
	Entity string
	// Operator — UUID оператора, создавшего запись;
	// nil после удаления автора
	Operator *string
	// Note — краткое описание материалов
	Note string
	// TextContent — текстовое содержимое (логи, переписка и т.п.)
	TextContent string
	// Tag — произвольная метка для группировки
	Tag string
	// Visibility — класс видимости (public/private)
	Visibility Visibility
	// Created — время создания записи
	Created time.Time
}
