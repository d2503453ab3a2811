// openapi.go — валидация входящих запросов по OpenAPI контракту (kin-openapi).
// Параметры, нарушающие схему (limit > 1000, skip < 0, пустой reg_user),
// отклоняются с 400 VALIDATION_ERROR до вызова обработчика.
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/josuejuca/freeswitch-logs/internal/api/errors"
)

// OpenAPIValidator возвращает middleware валидации запросов.
// Запросы к путям вне контракта пропускаются без проверки (404/405 отдаёт chi).
func OpenAPIValidator(doc *openapi3.T, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	// Сервер может быть опубликован под любым хостом.
	doc.Servers = nil

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("построение OpenAPI роутера: %w", err)
	}

	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := r
			if p := r.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
				req = r.Clone(r.Context())
				req.URL.Path = strings.TrimSuffix(p, "/")
			}

			route, pathParams, err := router.FindRoute(req)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    req,
				PathParams: pathParams,
				Route:      route,
				Options:    options,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				var reqErr *openapi3filter.RequestError
				if errors.As(err, &reqErr) {
					apierrors.ValidationError(w, reqErr.Error())
					return
				}
				logger.Warn("Запрос отклонён валидатором OpenAPI",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, err.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
