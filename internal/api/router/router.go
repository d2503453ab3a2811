// Пакет router — ServerInterface HTTP API и его привязка к chi.
// Параметры запроса разбираются через oapi-codegen runtime по стилям
// из openapi.yaml (query: form/explode, path: simple).
package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/josuejuca/freeswitch-logs/internal/api/errors"
)

// ListParams — параметры пагинации списков.
type ListParams struct {
	// Skip — сколько записей пропустить (>= 0)
	Skip *int `form:"skip,omitempty" json:"skip,omitempty"`
	// Limit — максимум записей (1..1000, по умолчанию 100)
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// HistoryParams — параметры GET /history.
type HistoryParams struct {
	// RegUser — фильтр по endpoint
	RegUser *string `form:"reg_user,omitempty" json:"reg_user,omitempty"`
	Skip    *int    `form:"skip,omitempty" json:"skip,omitempty"`
	Limit   *int    `form:"limit,omitempty" json:"limit,omitempty"`
}

// ServerInterface — обработчики всех операций openapi.yaml.
type ServerInterface interface {
	// GET /registrations
	ListRegistrations(w http.ResponseWriter, r *http.Request, params ListParams)
	// GET /history
	ListHistory(w http.ResponseWriter, r *http.Request, params HistoryParams)
	// GET /active
	GetActiveCount(w http.ResponseWriter, r *http.Request)
	// GET /current
	GetCurrentRegistrations(w http.ResponseWriter, r *http.Request)
	// GET /users/unique
	ListUniqueUsers(w http.ResponseWriter, r *http.Request, params ListParams)
	// GET /users/online
	ListOnlineUsers(w http.ResponseWriter, r *http.Request, params ListParams)
	// GET /users/offline
	ListOfflineUsers(w http.ResponseWriter, r *http.Request, params ListParams)
	// GET /users/count
	CountUsers(w http.ResponseWriter, r *http.Request)
	// GET /users/{reg_user}/history
	GetUserHistory(w http.ResponseWriter, r *http.Request, regUser string, params ListParams)
	// GET /users/{reg_user}/details
	GetUserDetails(w http.ResponseWriter, r *http.Request, regUser string)
	// GET /health/live
	HealthLive(w http.ResponseWriter, r *http.Request)
	// GET /health/ready
	HealthReady(w http.ResponseWriter, r *http.Request)
	// GET /metrics
	GetMetrics(w http.ResponseWriter, r *http.Request)
}

// InvalidParamFormatError — параметр не удалось разобрать.
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

// serverInterfaceWrapper разбирает параметры и вызывает ServerInterface.
type serverInterfaceWrapper struct {
	handler          ServerInterface
	errorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *serverInterfaceWrapper) bindList(w http.ResponseWriter, r *http.Request) (ListParams, bool) {
	var params ListParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "skip", query, &params.Skip); err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "skip", Err: err})
		return params, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return params, false
	}
	return params, true
}

func (siw *serverInterfaceWrapper) bindRegUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	var regUser string
	err := runtime.BindStyledParameterWithOptions("simple", "reg_user", chi.URLParam(r, "reg_user"), &regUser,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "reg_user", Err: err})
		return "", false
	}
	return regUser, true
}

func (siw *serverInterfaceWrapper) listHandler(call func(http.ResponseWriter, *http.Request, ListParams)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := siw.bindList(w, r)
		if !ok {
			return
		}
		call(w, r, params)
	}
}

// ListHistory — разбор reg_user/skip/limit.
func (siw *serverInterfaceWrapper) ListHistory(w http.ResponseWriter, r *http.Request) {
	list, ok := siw.bindList(w, r)
	if !ok {
		return
	}
	params := HistoryParams{Skip: list.Skip, Limit: list.Limit}
	if err := runtime.BindQueryParameter("form", true, false, "reg_user", r.URL.Query(), &params.RegUser); err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "reg_user", Err: err})
		return
	}
	siw.handler.ListHistory(w, r, params)
}

// GetUserHistory — разбор {reg_user} и пагинации.
func (siw *serverInterfaceWrapper) GetUserHistory(w http.ResponseWriter, r *http.Request) {
	regUser, ok := siw.bindRegUser(w, r)
	if !ok {
		return
	}
	params, ok := siw.bindList(w, r)
	if !ok {
		return
	}
	siw.handler.GetUserHistory(w, r, regUser, params)
}

// GetUserDetails — разбор {reg_user}.
func (siw *serverInterfaceWrapper) GetUserDetails(w http.ResponseWriter, r *http.Request) {
	regUser, ok := siw.bindRegUser(w, r)
	if !ok {
		return
	}
	siw.handler.GetUserDetails(w, r, regUser)
}

// ChiServerOptions — опции привязки.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux регистрирует маршруты ServerInterface на переданном роутере.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions регистрирует маршруты с опциями.
// Ошибки разбора параметров по умолчанию отдаются как 400 VALIDATION_ERROR.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			apierrors.ValidationError(w, err.Error())
		}
	}

	wrapper := &serverInterfaceWrapper{
		handler:          si,
		errorHandlerFunc: options.ErrorHandlerFunc,
	}
	base := options.BaseURL

	r.Group(func(r chi.Router) {
		r.Get(base+"/registrations", wrapper.listHandler(si.ListRegistrations))
		r.Get(base+"/history", wrapper.ListHistory)
		r.Get(base+"/active", si.GetActiveCount)
		r.Get(base+"/current", si.GetCurrentRegistrations)
		r.Get(base+"/users/unique", wrapper.listHandler(si.ListUniqueUsers))
		r.Get(base+"/users/online", wrapper.listHandler(si.ListOnlineUsers))
		r.Get(base+"/users/offline", wrapper.listHandler(si.ListOfflineUsers))
		r.Get(base+"/users/count", si.CountUsers)
		r.Get(base+"/users/{reg_user}/history", wrapper.GetUserHistory)
		r.Get(base+"/users/{reg_user}/details", wrapper.GetUserDetails)
		r.Get(base+"/health/live", si.HealthLive)
		r.Get(base+"/health/ready", si.HealthReady)
		r.Get(base+"/metrics", si.GetMetrics)
	})

	return r
}
