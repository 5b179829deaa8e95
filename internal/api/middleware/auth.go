// auth.go — аутентификация операторов по API-ключу.
// Ключ передаётся в Authorization: Bearer <key> либо X-API-Key.
// Отсутствие ключа запрос не отклоняет: публичность чтения решает
// обработчик; предъявленный недействительный или отозванный ключ — 401.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/federationserver/federation-node/internal/api/errors"
	"github.com/federationserver/federation-node/internal/domain/model"
	"github.com/federationserver/federation-node/internal/service"
)

// contextKey — приватный тип ключей контекста пакета.
type contextKey int

const operatorKey contextKey = iota

// OperatorFrom извлекает аутентифицированного оператора из контекста.
// nil — запрос анонимный.
func OperatorFrom(ctx context.Context) *model.Operator {
	op, _ := ctx.Value(operatorKey).(*model.Operator)
	return op
}

// WithOperator кладёт оператора в контекст. Используется в тестах обработчиков.
func WithOperator(ctx context.Context, op *model.Operator) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// APIKeyAuth — middleware аутентификации по API-ключу.
type APIKeyAuth struct {
	operators *service.OperatorService
	logger    *slog.Logger
}

// NewAPIKeyAuth создаёт middleware аутентификации.
func NewAPIKeyAuth(operators *service.OperatorService, logger *slog.Logger) *APIKeyAuth {
	return &APIKeyAuth{
		operators: operators,
		logger:    logger.With(slog.String("component", "api_key_auth")),
	}
}

// extractKey достаёт API-ключ из запроса.
// Authorization: Bearer имеет приоритет над X-API-Key.
func extractKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if key, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(key)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// Middleware возвращает HTTP middleware аутентификации.
func (a *APIKeyAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractKey(r)
			if key == "" {
				// Анонимный запрос: решение о доступе — за обработчиком
				next.ServeHTTP(w, r)
				return
			}

			op, err := a.operators.GetByAPIKey(r.Context(), key)
			if err != nil {
				if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrInvalidArgument) {
					apierrors.Unauthorized(w, "недействительный api-ключ")
					return
				}
				a.logger.Error("Ошибка проверки api-ключа", slog.String("error", err.Error()))
				apierrors.InternalError(w, "внутренняя ошибка сервера")
				return
			}

			if op.Disabled {
				apierrors.Unauthorized(w, "оператор отключён")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
		})
	}
}
