package model

import "time"

// FileAttachment — файловое вложение к evidence-записи.
// Физические байты лежат в content-addressed пути {storage}/{uuid};
// строка в БД и файл создаются и удаляются совместно.
type FileAttachment struct {
	// UUID — идентификатор записи и имя файла в хранилище.
	// UUID v4 (случайный): порядок загрузки не должен
	// восстанавливаться из идентификатора.
	UUID string
	// Evidence — UUID родительской evidence-записи
	Evidence string
	// FileName — санитизированное клиентское имя файла
	FileName string
	// FileSize — размер файла в байтах
	FileSize int64
	// FileMime — MIME-тип, определённый сниффингом содержимого
	FileMime string
	// Created — время создания записи
	Created time.Time
}
