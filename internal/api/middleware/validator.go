// validator.go — проверка параметров запроса по OpenAPI-контракту.
// Маршрут определяется chi, операция и параметры пути берутся из контекста chi,
// тело запроса (multipart) не валидируется.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/datashare/internal/api/errors"
)

// RequestValidator проверяет запросы по операциям OpenAPI-документа.
type RequestValidator struct {
	// routes — операции по ключу "METHOD /path/{param}"
	routes  map[string]*routers.Route
	options *openapi3filter.Options
}

// NewRequestValidator строит таблицу операций документа.
func NewRequestValidator(doc *openapi3.T) *RequestValidator {
	routes := make(map[string]*routers.Route)
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			routes[routeKey(method, path)] = &routers.Route{
				Spec:      doc,
				Path:      path,
				PathItem:  item,
				Method:    method,
				Operation: op,
			}
		}
	}

	return &RequestValidator{
		routes: routes,
		options: &openapi3filter.Options{
			ExcludeRequestBody: true,
			// Аутентификация выполняется JWT middleware
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
}

func routeKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Middleware возвращает middleware уровня операции. Должен выполняться
// внутри маршрута chi: шаблон пути берётся из chi.RouteContext.
func (v *RequestValidator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rctx := chi.RouteContext(r.Context())
			if rctx == nil {
				next.ServeHTTP(w, r)
				return
			}

			route, ok := v.routes[routeKey(r.Method, rctx.RoutePattern())]
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			pathParams := make(map[string]string, len(rctx.URLParams.Keys))
			for i, key := range rctx.URLParams.Keys {
				pathParams[key] = rctx.URLParams.Values[i]
			}

			err := openapi3filter.ValidateRequest(r.Context(), &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    v.options,
			})
			if err != nil {
				apierrors.ValidationError(w, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validationMessage формирует короткое сообщение об ошибке параметра.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.Parameter != nil {
		return fmt.Sprintf("Некорректный параметр %s", reqErr.Parameter.Name)
	}
	return "Некорректный запрос: " + err.Error()
}
