// attachments.go — обработчики файловых вложений.
// Загрузка — multipart/form-data с ровно одним файловым полем "file".
// Тело сначала полностью выгружается в транспортный временный файл,
// затем передаётся конвейеру приёма.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/federationserver/federation-node/internal/api/errors"
	"github.com/federationserver/federation-node/internal/api/middleware"
	"github.com/federationserver/federation-node/internal/service"
)

// AttachmentHandler — обработчики /api/v1/attachments.
type AttachmentHandler struct {
	attachments *service.AttachmentService
	// maxUploadSize — лимит размера файла в байтах
	maxUploadSize int64
	// tmpDir — директория транспортных временных файлов
	tmpDir string
	logger *slog.Logger
}

// NewAttachmentHandler создаёт обработчик вложений.
func NewAttachmentHandler(attachments *service.AttachmentService, maxUploadSize int64, tmpDir string, logger *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachments:   attachments,
		maxUploadSize: maxUploadSize,
		tmpDir:        tmpDir,
		logger:        logger.With(slog.String("component", "attachment_handler")),
	}
}

// Upload — POST /api/v1/evidence/{uuid}/attachments.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Жёсткий предел на всё тело: файл + накладные расходы multipart
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)

	reader, err := r.MultipartReader()
	if err != nil {
		apierrors.ValidationError(w, "ожидается multipart/form-data")
		return
	}

	// Выгружаем файл в транспортный временный файл
	tmp, err := os.CreateTemp(h.tmpDir, "upload_*")
	if err != nil {
		h.logger.Error("Не удалось создать временный файл", slog.String("error", err.Error()))
		apierrors.InternalError(w, "внутренняя ошибка сервера")
		return
	}
	tmpPath := tmp.Name()
	// Сервис удаляет источник сам; подстраховка на ранний выход
	defer os.Remove(tmpPath)

	fileName, copyErr := h.receiveFile(reader, tmp)
	closeErr := tmp.Close()
	if copyErr != nil {
		h.writeUploadError(w, copyErr)
		return
	}
	if closeErr != nil {
		h.logger.Error("Не удалось записать временный файл", slog.String("error", closeErr.Error()))
		apierrors.InternalError(w, "внутренняя ошибка сервера")
		return
	}

	actor := middleware.OperatorFrom(r.Context())
	att, err := h.attachments.Upload(r.Context(), actor, chi.URLParam(r, "uuid"), tmpPath, fileName)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttachmentResponse(att))
}

// errMultipleFiles и errNoFile — нарушения контракта «ровно один файл».
var (
	errMultipleFiles = errors.New("ожидается ровно одно файловое поле")
	errNoFile        = errors.New("файловое поле не найдено")
)

// receiveFile копирует единственную файловую часть формы в dst и
// возвращает имя файла из заголовка части. Содержимое копируется в
// момент обнаружения части: NextPart закрывает предыдущую часть, и
// откладывать чтение нельзя. Ноль или больше одной файловой части —
// ошибка.
func (h *AttachmentHandler) receiveFile(reader *multipart.Reader, dst io.Writer) (string, error) {
	var fileName string
	seen := false
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if part.FileName() == "" {
			// Нефайловые поля формы игнорируем
			continue
		}
		if seen {
			return "", errMultipleFiles
		}
		if _, err := io.Copy(dst, part); err != nil {
			return "", err
		}
		fileName = part.FileName()
		seen = true
	}
	if !seen {
		return "", errNoFile
	}
	return fileName, nil
}

func (h *AttachmentHandler) writeUploadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		apierrors.PayloadTooLarge(w,
			"размер файла превышает лимит "+strconv.FormatInt(h.maxUploadSize, 10)+" байт")
		return
	}
	if errors.Is(err, errMultipleFiles) || errors.Is(err, errNoFile) {
		apierrors.ValidationError(w, err.Error())
		return
	}
	apierrors.ValidationError(w, "ошибка чтения тела запроса")
}

// Get — GET /api/v1/attachments/{uuid}. Метаданные вложения.
func (h *AttachmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.OperatorFrom(r.Context())
	att, err := h.attachments.Get(r.Context(), viewer, chi.URLParam(r, "uuid"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttachmentResponse(att))
}

// Download — GET /api/v1/attachments/{uuid}/download. Содержимое файла.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.OperatorFrom(r.Context())
	att, file, err := h.attachments.Open(r.Context(), viewer, chi.URLParam(r, "uuid"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", att.FileMime)
	w.Header().Set("Content-Length", strconv.FormatInt(att.FileSize, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+att.FileName+`"`)
	if _, err := io.Copy(w, file); err != nil {
		h.logger.Warn("Прерывание передачи вложения",
			slog.String("uuid", att.UUID),
			slog.String("error", err.Error()),
		)
	}
}

// Delete — DELETE /api/v1/attachments/{uuid}.
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.OperatorFrom(r.Context())
	if err := h.attachments.Delete(r.Context(), actor, chi.URLParam(r, "uuid")); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
