// Пакет filestore — физическое хранилище файловых вложений.
// Файлы адресуются по UUID вложения (content-addressed путь),
// клиентское имя в путь не попадает. Запись — staging-файл внутри
// директории хранения с последующим атомарным rename: частично
// записанный файл никогда не виден под финальным именем.
package filestore

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Режимы доступа: директория rwxr-x---, файлы rw-r-----.
const (
	dirMode  = 0o750
	fileMode = 0o640
)

// FileStore — управление файлами вложений на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (FED_STORAGE_PATH)
	dataDir string
}

// New создаёт FileStore. Директория создаётся с ограничительными
// правами, если не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, dirMode); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранения %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// Ingest перемещает проверенный файл srcPath в хранилище под именем uuid.
//
// Паттерн: staging-файл tmp_{uuid} внутри директории хранения →
// chmod → атомарный rename в финальный путь. Staging внутри dataDir
// гарантирует rename в пределах одной файловой системы.
// Вызывающий обязан вызвать Remove(uuid) при откате и удалить
// staging-остатки через CleanupStaging на любом исходе.
func (fs *FileStore) Ingest(srcPath, uuid string) (string, error) {
	finalPath := filepath.Join(fs.dataDir, uuid)
	stagingPath := filepath.Join(fs.dataDir, "tmp_"+uuid)

	if err := moveFile(srcPath, stagingPath); err != nil {
		return "", fmt.Errorf("ошибка staging-перемещения файла: %w", err)
	}

	if err := os.Chmod(stagingPath, fileMode); err != nil {
		_ = os.Remove(stagingPath)
		return "", fmt.Errorf("ошибка установки прав staging-файла: %w", err)
	}

	if err := os.Rename(stagingPath, finalPath); err != nil {
		_ = os.Remove(stagingPath)
		return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return finalPath, nil
}

// CleanupStaging удаляет staging-файл вложения, если он остался.
// Best effort: вызывается на каждом пути выхода пайплайна.
func (fs *FileStore) CleanupStaging(uuid string) {
	_ = os.Remove(filepath.Join(fs.dataDir, "tmp_"+uuid))
}

// Open открывает файл вложения для чтения.
// Вызывающий код обязан закрыть ReadCloser.
func (fs *FileStore) Open(uuid string) (*os.File, error) {
	f, err := os.Open(filepath.Join(fs.dataDir, uuid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл вложения не найден: %s", uuid)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", uuid, err)
	}
	return f, nil
}

// Remove удаляет файл вложения с диска.
// Возвращает nil, если файл уже не существует.
func (fs *FileStore) Remove(uuid string) error {
	err := os.Remove(filepath.Join(fs.dataDir, uuid))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", uuid, err)
	}
	return nil
}

// Exists проверяет существование файла вложения.
func (fs *FileStore) Exists(uuid string) bool {
	_, err := os.Stat(filepath.Join(fs.dataDir, uuid))
	return err == nil
}

// Path возвращает абсолютный путь файла вложения.
func (fs *FileStore) Path(uuid string) string {
	return filepath.Join(fs.dataDir, uuid)
}

// DataDir возвращает путь к директории хранения.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// moveFile перемещает файл rename-ом; при EXDEV (другая файловая
// система у transport tmp директории) — копирование с fsync и
// удаление источника.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	return os.Remove(src)
}

// SniffMime определяет MIME-тип по первым 512 байтам содержимого.
// Клиентский Content-Type не учитывается.
func SniffMime(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ошибка открытия файла для сниффинга: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("ошибка чтения файла для сниффинга: %w", err)
	}

	mime := http.DetectContentType(buf[:n])
	// Убираем параметры (charset и т.д.)
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime, nil
}

// SanitizeFileName приводит клиентское имя файла к безопасному виду:
// отбрасывает путь, управляющие символы, заменяет всё вне
// [A-Za-z0-9._-] на подчёркивание и ограничивает длину 255 байтами,
// сохраняя расширение.
func SanitizeFileName(name string) string {
	// Отбрасываем компоненты пути (включая windows-разделители)
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x20 || c == 0x7F {
			continue // управляющие символы удаляются
		}
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-' {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	name = b.String()

	if name == "" || name == "." || name == ".." {
		return "unnamed"
	}

	if len(name) > 255 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		base := strings.TrimSuffix(name, ext)
		name = base[:255-len(ext)] + ext
	}

	return name
}
