package generated

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface — обработчики всех операций openapi.yaml.
type ServerInterface interface {
	// Загрузка файла и создание ссылки
	// (POST /api/files/upload)
	UploadFile(w http.ResponseWriter, r *http.Request)
	// Список файлов владельца
	// (GET /api/files)
	ListFiles(w http.ResponseWriter, r *http.Request)
	// Удаление файла владельцем
	// (DELETE /api/files/{fileId})
	DeleteFile(w http.ResponseWriter, r *http.Request, fileId FileId)
	// Удаление файла владельцем (устаревший маршрут)
	// (POST /api/files/delete/{fileId})
	DeleteFileLegacy(w http.ResponseWriter, r *http.Request, fileId FileId)
	// Публичные метаданные файла по ссылке
	// (GET /api/share/{token})
	GetShareMetadata(w http.ResponseWriter, r *http.Request, token ShareToken)
	// Скачивание файла по ссылке
	// (GET /api/download/{token})
	DownloadShare(w http.ResponseWriter, r *http.Request, token ShareToken)
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /api/openapi.json)
	GetOpenAPISpec(w http.ResponseWriter, r *http.Request)
}

// MiddlewareFunc — middleware отдельной операции.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper связывает параметры пути и вызывает ServerInterface.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError — параметр не удалось привести к типу из контракта.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("некорректный формат параметра %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// serve применяет middleware операции и вызывает обработчик.
func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	var handler http.Handler = h
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// authenticated помечает контекст запроса как требующий bearerAuth.
func authenticated(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), BearerAuthScopes, []string{})
	return r.WithContext(ctx)
}

// bindPath связывает simple-параметр пути.
func (siw *ServerInterfaceWrapper) bindPath(w http.ResponseWriter, r *http.Request, name string, dest *string) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

// UploadFile operation middleware
func (siw *ServerInterfaceWrapper) UploadFile(w http.ResponseWriter, r *http.Request) {
	r = authenticated(r)
	siw.serve(w, r, siw.Handler.UploadFile)
}

// ListFiles operation middleware
func (siw *ServerInterfaceWrapper) ListFiles(w http.ResponseWriter, r *http.Request) {
	r = authenticated(r)
	siw.serve(w, r, siw.Handler.ListFiles)
}

// DeleteFile operation middleware
func (siw *ServerInterfaceWrapper) DeleteFile(w http.ResponseWriter, r *http.Request) {
	var fileId FileId //nolint:revive // имя из OpenAPI
	if !siw.bindPath(w, r, "fileId", &fileId) {
		return
	}
	r = authenticated(r)
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteFile(w, r, fileId)
	})
}

// DeleteFileLegacy operation middleware
func (siw *ServerInterfaceWrapper) DeleteFileLegacy(w http.ResponseWriter, r *http.Request) {
	var fileId FileId //nolint:revive // имя из OpenAPI
	if !siw.bindPath(w, r, "fileId", &fileId) {
		return
	}
	r = authenticated(r)
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteFileLegacy(w, r, fileId)
	})
}

// GetShareMetadata operation middleware
func (siw *ServerInterfaceWrapper) GetShareMetadata(w http.ResponseWriter, r *http.Request) {
	var token ShareToken
	if !siw.bindPath(w, r, "token", &token) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetShareMetadata(w, r, token)
	})
}

// DownloadShare operation middleware
func (siw *ServerInterfaceWrapper) DownloadShare(w http.ResponseWriter, r *http.Request) {
	var token ShareToken
	if !siw.bindPath(w, r, "token", &token) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DownloadShare(w, r, token)
	})
}

// HealthLive operation middleware
func (siw *ServerInterfaceWrapper) HealthLive(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthLive)
}

// HealthReady operation middleware
func (siw *ServerInterfaceWrapper) HealthReady(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthReady)
}

// GetOpenAPISpec operation middleware
func (siw *ServerInterfaceWrapper) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetOpenAPISpec)
}

// ChiServerOptions — параметры монтирования маршрутов.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux монтирует маршруты на существующий chi.Router.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions монтирует маршруты с дополнительными параметрами.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/files/upload", wrapper.UploadFile)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/files", wrapper.ListFiles)
	})
	r.Group(func(r chi.Router) {
		r.Delete(options.BaseURL+"/api/files/{fileId}", wrapper.DeleteFile)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/files/delete/{fileId}", wrapper.DeleteFileLegacy)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/share/{token}", wrapper.GetShareMetadata)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/download/{token}", wrapper.DownloadShare)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/live", wrapper.HealthLive)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/ready", wrapper.HealthReady)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/openapi.json", wrapper.GetOpenAPISpec)
	})

	return r
}
