package adapters

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/toyz/keel/pkg/keel"
)

// GinAdapter implements keel.WebServer for the Gin framework
type GinAdapter struct {
	engine *gin.Engine

	mu     sync.Mutex
	server *http.Server
}

// NewGinAdapter creates a new Gin adapter
func NewGinAdapter(g *gin.Engine) *GinAdapter {
	return &GinAdapter{engine: g}
}

// NewDefaultGinAdapter creates a new Gin adapter with a recovering Gin engine
func NewDefaultGinAdapter() *GinAdapter {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	return &GinAdapter{engine: g}
}

// RegisterRoute registers a route with the Gin server
func (ga *GinAdapter) RegisterRoute(method, path string, handler keel.HandlerFunc) {
	ga.engine.Handle(method, path, ga.convertHandler(handler))
}

// Start starts the Gin server. Gin has no shutdown of its own, so the engine is
// served through an http.Server that Stop can close.
func (ga *GinAdapter) Start(addr string) error {
	ga.mu.Lock()
	ga.server = &http.Server{Addr: addr, Handler: ga.engine}
	server := ga.server
	ga.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the Gin server
func (ga *GinAdapter) Stop(ctx context.Context) error {
	ga.mu.Lock()
	server := ga.server
	ga.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Name returns the adapter name
func (ga *GinAdapter) Name() string {
	return "Gin"
}

// GetEngine returns the underlying Gin engine
func (ga *GinAdapter) GetEngine() *gin.Engine {
	return ga.engine
}

// ServeHTTP lets the adapter be driven by net/http and httptest
func (ga *GinAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ga.engine.ServeHTTP(w, r)
}

// convertHandler converts keel.HandlerFunc to gin.HandlerFunc
func (ga *GinAdapter) convertHandler(handler keel.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := handler(&GinRequestContext{ctx: c})
		if err == nil {
			return
		}
		if httpErr, ok := err.(*keel.HttpError); ok {
			c.AbortWithStatusJSON(httpErr.StatusCode, httpErr)
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			keel.NewHttpError(http.StatusInternalServerError, err.Error()))
	}
}

// GinRequestContext implements keel.RequestContext for Gin
type GinRequestContext struct {
	ctx *gin.Context
}

// Method returns the HTTP method
func (grc *GinRequestContext) Method() string {
	return grc.ctx.Request.Method
}

// Path returns the request path
func (grc *GinRequestContext) Path() string {
	return grc.ctx.Request.URL.Path
}

// Param returns a path parameter
func (grc *GinRequestContext) Param(name string) string {
	return grc.ctx.Param(name)
}

// QueryParam returns a query parameter
func (grc *GinRequestContext) QueryParam(name string) string {
	return grc.ctx.Query(name)
}

// JSON writes v as the response body
func (grc *GinRequestContext) JSON(code int, v interface{}) error {
	grc.ctx.JSON(code, v)
	return nil
}
