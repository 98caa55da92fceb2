package adapters

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/toyz/keel/pkg/keel"
)

// EchoAdapter implements keel.WebServer for Echo v4
type EchoAdapter struct {
	engine *echo.Echo
}

// NewEchoAdapter creates a new Echo adapter
func NewEchoAdapter(e *echo.Echo) *EchoAdapter {
	return &EchoAdapter{engine: e}
}

// NewDefaultEchoAdapter creates a new Echo adapter with a quiet Echo instance
func NewDefaultEchoAdapter() *EchoAdapter {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return &EchoAdapter{engine: e}
}

// RegisterRoute registers a route with the Echo server
func (ea *EchoAdapter) RegisterRoute(method, path string, handler keel.HandlerFunc) {
	ea.engine.Add(method, path, ea.convertHandler(handler))
}

// Start starts the server
func (ea *EchoAdapter) Start(addr string) error {
	return ea.engine.Start(addr)
}

// Stop stops the server
func (ea *EchoAdapter) Stop(ctx context.Context) error {
	return ea.engine.Shutdown(ctx)
}

// Name returns the adapter name
func (ea *EchoAdapter) Name() string {
	return "Echo"
}

// GetEngine returns the underlying Echo instance
func (ea *EchoAdapter) GetEngine() *echo.Echo {
	return ea.engine
}

// ServeHTTP lets the adapter be driven by net/http and httptest
func (ea *EchoAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ea.engine.ServeHTTP(w, r)
}

// convertHandler converts keel.HandlerFunc to echo.HandlerFunc
func (ea *EchoAdapter) convertHandler(handler keel.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := handler(&EchoRequestContext{context: c})
		if err == nil {
			return nil
		}
		if httpErr, ok := err.(*keel.HttpError); ok {
			return c.JSON(httpErr.StatusCode, httpErr)
		}
		return c.JSON(http.StatusInternalServerError, keel.NewHttpError(http.StatusInternalServerError, err.Error()))
	}
}

// EchoRequestContext implements keel.RequestContext for Echo
type EchoRequestContext struct {
	context echo.Context
}

// Method returns the HTTP method
func (erc *EchoRequestContext) Method() string {
	return erc.context.Request().Method
}

// Path returns the request path
func (erc *EchoRequestContext) Path() string {
	return erc.context.Request().URL.Path
}

// Param returns path parameter by name
func (erc *EchoRequestContext) Param(key string) string {
	return erc.context.Param(key)
}

// QueryParam returns query parameter by name
func (erc *EchoRequestContext) QueryParam(key string) string {
	return erc.context.QueryParam(key)
}

// JSON writes v as the response body
func (erc *EchoRequestContext) JSON(code int, v interface{}) error {
	return erc.context.JSON(code, v)
}
