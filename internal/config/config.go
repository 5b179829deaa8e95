// Пакет config — загрузка и валидация конфигурации Federation Node
// из переменных окружения. В dev-окружении переменные могут
// подхватываться из .env (godotenv, без перезаписи окружения).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// CacheBackend — тип бэкенда кэш-прослойки.
const (
	CacheBackendRedis    = "redis"
	CacheBackendMemory   = "memory"
	CacheBackendDisabled = "disabled"
)

// CachePolicy — политика одной категории кэша.
type CachePolicy struct {
	// Категория кэшируется
	Enabled bool
	// Максимум живых ключей; <=0 — без предела
	Limit int
	// Срок жизни записи
	TTL time.Duration
}

// Config содержит все параметры конфигурации Federation Node.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Федерация ---

	// API-ключ корневого оператора (ровно 32 символа);
	// root создаётся лениво при первом обращении
	MasterAPIKey string
	// Базовый URL узла (для ссылок на вложения)
	BaseURL string
	// Сущности доступны для чтения без аутентификации
	EntitiesPublic bool
	// Blacklist доступен для чтения без аутентификации
	BlacklistPublic bool
	// Журнал аудита доступен для чтения без аутентификации
	AuditLogsPublic bool
	// Максимум записей на страницу списка журнала аудита
	ListAuditLogsMaxItems int
	// Максимум записей на страницу списка blacklist
	ListBlacklistMaxItems int
	// Виды событий аудита, видимые без аутентификации
	PublicAuditEntries []string

	// --- Вложения ---

	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64
	// Директория хранения файлов вложений
	StoragePath string
	// Директория временных файлов загрузки (transport tmp)
	UploadTmpPath string

	// --- Кэш ---

	// Бэкенд кэша: redis, memory, disabled
	CacheBackend string
	// Хост Redis
	RedisHost string
	// Порт Redis
	RedisPort int
	// Пароль Redis (пустая строка — без аутентификации)
	RedisPassword string
	// Номер базы Redis
	RedisDatabase int
	// Ошибки кэш-бэкенда всплывают вместо тихого промаха
	CacheThrowOnErrors bool
	// Кэш заполняется синхронно при записи (pre-cache)
	CachePreCacheEnabled bool
	// Политики категорий
	CacheOperators   CachePolicy
	CacheEntities    CachePolicy
	CacheAttachments CachePolicy
	CacheEvidence    CachePolicy
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	// .env подхватывается только если присутствует; окружение не перезаписывается
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FED_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("FED_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FED_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FED_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// FED_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FED_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FED_LOG_LEVEL: %w", err)
	}

	// FED_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FED_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FED_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// FED_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FED_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FED_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// FED_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("FED_DB_HOST")
	if err != nil {
		return nil, err
	}

	// FED_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("FED_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FED_DB_PORT: %w", err)
	}

	// FED_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("FED_DB_NAME")
	if err != nil {
		return nil, err
	}

	// FED_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("FED_DB_USER")
	if err != nil {
		return nil, err
	}

	// FED_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("FED_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// FED_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("FED_DB_SSL_MODE", "disable")

	// --- Федерация ---

	// FED_API_KEY — ключ корневого оператора, ровно 32 символа
	cfg.MasterAPIKey, err = getEnvRequired("FED_API_KEY")
	if err != nil {
		return nil, err
	}
	if len(cfg.MasterAPIKey) != 32 {
		return nil, fmt.Errorf("FED_API_KEY: длина %d, требуется ровно 32 символа", len(cfg.MasterAPIKey))
	}

	// FED_BASE_URL — базовый URL узла (по умолчанию http://localhost:<port>)
	cfg.BaseURL = strings.TrimRight(getEnvDefault("FED_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")

	// FED_ENTITIES_PUBLIC / FED_BLACKLIST_PUBLIC / FED_AUDIT_LOGS_PUBLIC
	cfg.EntitiesPublic, err = getEnvBool("FED_ENTITIES_PUBLIC", true)
	if err != nil {
		return nil, fmt.Errorf("FED_ENTITIES_PUBLIC: %w", err)
	}
	cfg.BlacklistPublic, err = getEnvBool("FED_BLACKLIST_PUBLIC", true)
	if err != nil {
		return nil, fmt.Errorf("FED_BLACKLIST_PUBLIC: %w", err)
	}
	cfg.AuditLogsPublic, err = getEnvBool("FED_AUDIT_LOGS_PUBLIC", true)
	if err != nil {
		return nil, fmt.Errorf("FED_AUDIT_LOGS_PUBLIC: %w", err)
	}

	// FED_LIST_AUDIT_LOGS_MAX_ITEMS / FED_LIST_BLACKLIST_MAX_ITEMS
	cfg.ListAuditLogsMaxItems, err = getEnvInt("FED_LIST_AUDIT_LOGS_MAX_ITEMS", 100)
	if err != nil {
		return nil, fmt.Errorf("FED_LIST_AUDIT_LOGS_MAX_ITEMS: %w", err)
	}
	if cfg.ListAuditLogsMaxItems < 1 {
		return nil, fmt.Errorf("FED_LIST_AUDIT_LOGS_MAX_ITEMS: значение должно быть >= 1")
	}
	cfg.ListBlacklistMaxItems, err = getEnvInt("FED_LIST_BLACKLIST_MAX_ITEMS", 100)
	if err != nil {
		return nil, fmt.Errorf("FED_LIST_BLACKLIST_MAX_ITEMS: %w", err)
	}
	if cfg.ListBlacklistMaxItems < 1 {
		return nil, fmt.Errorf("FED_LIST_BLACKLIST_MAX_ITEMS: значение должно быть >= 1")
	}

	// FED_PUBLIC_AUDIT_ENTRIES — виды событий, видимые публично (CSV)
	cfg.PublicAuditEntries = parseCSV(getEnvDefault("FED_PUBLIC_AUDIT_ENTRIES",
		"ENTITY_PUSHED,BLACKLIST_CREATED,BLACKLIST_LIFTED"))

	// --- Вложения ---

	// FED_MAX_UPLOAD_SIZE — максимум байт на файл (по умолчанию 50 МиБ)
	maxUpload, err := getEnvInt("FED_MAX_UPLOAD_SIZE", 50*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("FED_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload < 1 {
		return nil, fmt.Errorf("FED_MAX_UPLOAD_SIZE: значение должно быть >= 1")
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// FED_STORAGE_PATH — обязательный
	cfg.StoragePath, err = getEnvRequired("FED_STORAGE_PATH")
	if err != nil {
		return nil, err
	}

	// FED_UPLOAD_TMP_PATH — временная директория загрузок (по умолчанию системная)
	cfg.UploadTmpPath = getEnvDefault("FED_UPLOAD_TMP_PATH", os.TempDir())

	// --- Кэш ---

	// FED_CACHE_BACKEND — redis, memory или disabled (по умолчанию disabled)
	cfg.CacheBackend = getEnvDefault("FED_CACHE_BACKEND", CacheBackendDisabled)
	switch cfg.CacheBackend {
	case CacheBackendRedis, CacheBackendMemory, CacheBackendDisabled:
	default:
		return nil, fmt.Errorf("FED_CACHE_BACKEND: недопустимое значение %q, допустимые: redis, memory, disabled", cfg.CacheBackend)
	}

	if cfg.CacheBackend == CacheBackendRedis {
		cfg.RedisHost, err = getEnvRequired("FED_REDIS_HOST")
		if err != nil {
			return nil, err
		}
		cfg.RedisPort, err = getEnvInt("FED_REDIS_PORT", 6379)
		if err != nil {
			return nil, fmt.Errorf("FED_REDIS_PORT: %w", err)
		}
		cfg.RedisPassword = getEnvDefault("FED_REDIS_PASSWORD", "")
		cfg.RedisDatabase, err = getEnvInt("FED_REDIS_DATABASE", 0)
		if err != nil {
			return nil, fmt.Errorf("FED_REDIS_DATABASE: %w", err)
		}
	}

	cfg.CacheThrowOnErrors, err = getEnvBool("FED_CACHE_THROW_ON_ERRORS", false)
	if err != nil {
		return nil, fmt.Errorf("FED_CACHE_THROW_ON_ERRORS: %w", err)
	}
	cfg.CachePreCacheEnabled, err = getEnvBool("FED_CACHE_PRECACHE", false)
	if err != nil {
		return nil, fmt.Errorf("FED_CACHE_PRECACHE: %w", err)
	}

	// Политики категорий: FED_CACHE_<CATEGORY>_{ENABLED,LIMIT,TTL}
	cfg.CacheOperators, err = loadCachePolicy("OPERATORS")
	if err != nil {
		return nil, err
	}
	cfg.CacheEntities, err = loadCachePolicy("ENTITIES")
	if err != nil {
		return nil, err
	}
	cfg.CacheAttachments, err = loadCachePolicy("ATTACHMENTS")
	if err != nil {
		return nil, err
	}
	cfg.CacheEvidence, err = loadCachePolicy("EVIDENCE")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadCachePolicy читает политику одной категории кэша.
// По умолчанию: enabled, limit 1000, ttl 5m.
func loadCachePolicy(category string) (CachePolicy, error) {
	p := CachePolicy{}
	var err error

	p.Enabled, err = getEnvBool("FED_CACHE_"+category+"_ENABLED", true)
	if err != nil {
		return p, fmt.Errorf("FED_CACHE_%s_ENABLED: %w", category, err)
	}
	p.Limit, err = getEnvInt("FED_CACHE_"+category+"_LIMIT", 1000)
	if err != nil {
		return p, fmt.Errorf("FED_CACHE_%s_LIMIT: %w", category, err)
	}
	p.TTL, err = getEnvDuration("FED_CACHE_"+category+"_TTL", 5*time.Minute)
	if err != nil {
		return p, fmt.Errorf("FED_CACHE_%s_TTL: %w", category, err)
	}
	return p, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// IsPublicAuditEntry сообщает, относится ли вид события к публично видимым.
func (c *Config) IsPublicAuditEntry(entryType string) bool {
	for _, t := range c.PublicAuditEntries {
		if t == entryType {
			return true
		}
	}
	return false
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
