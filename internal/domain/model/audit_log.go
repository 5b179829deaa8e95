package model

import "time"

// AuditLogType — вид события аудита.
type AuditLogType string

// Виды событий аудита. Каждая мутация создаёт ровно одну запись.
const (
	AuditOperatorCreated            AuditLogType = "OPERATOR_CREATED"
	AuditOperatorDeleted            AuditLogType = "OPERATOR_DELETED"
	AuditOperatorDisabled           AuditLogType = "OPERATOR_DISABLED"
	AuditOperatorEnabled            AuditLogType = "OPERATOR_ENABLED"
	AuditOperatorPermissionsChanged AuditLogType = "OPERATOR_PERMISSIONS_CHANGED"
	AuditEntityPushed               AuditLogType = "ENTITY_PUSHED"
	AuditEntityDeleted              AuditLogType = "ENTITY_DELETED"
	AuditBlacklistCreated           AuditLogType = "BLACKLIST_CREATED"
	AuditBlacklistLifted            AuditLogType = "BLACKLIST_LIFTED"
	AuditBlacklistDeleted           AuditLogType = "BLACKLIST_DELETED"
	AuditEvidenceCreated            AuditLogType = "EVIDENCE_CREATED"
	AuditEvidenceDeleted            AuditLogType = "EVIDENCE_DELETED"
	AuditAttachmentUploaded         AuditLogType = "ATTACHMENT_UPLOADED"
	AuditAttachmentDeleted          AuditLogType = "ATTACHMENT_DELETED"
)

// AuditLogEntry — неизменяемая запись журнала аудита.
// Журнал append-only: операции обновления и удаления не существуют.
// Порядок — по времени создания, ничьи разрешает автоинкрементный ID.
type AuditLogEntry struct {
	// ID — автоинкрементный идентификатор (разрешение ничьих при сортировке)
	ID int64
	// Type — вид события
	Type AuditLogType
	// Message — свободный текст с деталями события
	Message string
	// Operator — UUID оператора-инициатора; nil для системных событий
	Operator *string
	// Entity — UUID затронутой сущности; nil если событие не про сущность
	Entity *string
	// Visibility — класс видимости, вычисляется при создании
	Visibility Visibility
	// Created — время создания записи
	Created time.Time
}
