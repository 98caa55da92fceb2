package adapters

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/toyz/keel/pkg/keel"
)

// FiberAdapter wraps a Fiber app to implement keel.WebServer
type FiberAdapter struct {
	app *fiber.App
}

// NewFiberAdapter creates a new Fiber adapter instance
func NewFiberAdapter() *FiberAdapter {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(keel.NewHttpError(code, err.Error()))
		},
	})

	return &FiberAdapter{app: app}
}

// NewDefaultFiberAdapter creates a new Fiber adapter with request logging and recovery
func NewDefaultFiberAdapter() *FiberAdapter {
	adapter := NewFiberAdapter()

	adapter.app.Use(logger.New())
	adapter.app.Use(recover.New())

	return adapter
}

// RegisterRoute registers a route with the Fiber app
func (fa *FiberAdapter) RegisterRoute(method, path string, handler keel.HandlerFunc) {
	fa.app.Add(strings.ToUpper(method), path, convertHandlerToFiber(handler))
}

// Start starts the Fiber server
func (fa *FiberAdapter) Start(addr string) error {
	return fa.app.Listen(addr)
}

// Stop stops the Fiber server
func (fa *FiberAdapter) Stop(ctx context.Context) error {
	return fa.app.ShutdownWithContext(ctx)
}

// Name returns the adapter name
func (fa *FiberAdapter) Name() string {
	return "Fiber"
}

// GetApp returns the underlying Fiber app
func (fa *FiberAdapter) GetApp() *fiber.App {
	return fa.app
}

// Test runs req through the app without a listener
func (fa *FiberAdapter) Test(req *http.Request) (*http.Response, error) {
	return fa.app.Test(req, -1)
}

// convertHandlerToFiber converts keel.HandlerFunc to fiber.Handler
func convertHandlerToFiber(handler keel.HandlerFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := handler(&FiberRequestContext{ctx: c})
		if err == nil {
			return nil
		}
		if httpErr, ok := err.(*keel.HttpError); ok {
			return c.Status(httpErr.StatusCode).JSON(httpErr)
		}
		return err
	}
}

// FiberRequestContext implements keel.RequestContext for Fiber
type FiberRequestContext struct {
	ctx *fiber.Ctx
}

func (frc *FiberRequestContext) Method() string {
	return frc.ctx.Method()
}

func (frc *FiberRequestContext) Path() string {
	return frc.ctx.Path()
}

// Param returns a path parameter. Fiber reuses its buffers, so the value is copied.
func (frc *FiberRequestContext) Param(name string) string {
	return strings.Clone(frc.ctx.Params(name))
}

func (frc *FiberRequestContext) QueryParam(key string) string {
	return strings.Clone(frc.ctx.Query(key))
}

func (frc *FiberRequestContext) JSON(code int, v interface{}) error {
	return frc.ctx.Status(code).JSON(v)
}
