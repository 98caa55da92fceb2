package keel

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// WebServer is the contract the inspection endpoints are mounted on. The
// adapters package implements it for Echo, Gin and Fiber.
type WebServer interface {
	RegisterRoute(method, path string, handler HandlerFunc)

	Start(addr string) error
	Stop(ctx context.Context) error

	Name() string
}

// RequestContext is the framework-agnostic view of an inspection request
type RequestContext interface {
	Method() string
	Path() string
	Param(key string) string
	QueryParam(key string) string
	JSON(code int, v interface{}) error
}

// HandlerFunc handles an inspection request
type HandlerFunc func(RequestContext) error

// HttpError is the body written for failed inspection requests
type HttpError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NewHttpError creates a new HttpError with the given status code and message
func NewHttpError(statusCode int, message string) *HttpError {
	return &HttpError{StatusCode: statusCode, Message: message}
}

// ReportSource produces the report served by the inspection endpoints. It is
// called on every request.
type ReportSource func() *Report

// InspectionPrefix is the path prefix of every inspection endpoint
const InspectionPrefix = "/keel"

// Mount registers the inspection endpoints on server:
//
//	GET /keel/report                 the whole report
//	GET /keel/points?status=failed   points, optionally filtered by status
//	GET /keel/points/:status         same, status taken from the path
//	GET /keel/descriptors            bound descriptors
func Mount(server WebServer, source ReportSource) {
	server.RegisterRoute(http.MethodGet, InspectionPrefix+"/report", func(ctx RequestContext) error {
		return ctx.JSON(http.StatusOK, source())
	})
	server.RegisterRoute(http.MethodGet, InspectionPrefix+"/points", func(ctx RequestContext) error {
		return writePoints(ctx, source(), ctx.QueryParam("status"))
	})
	server.RegisterRoute(http.MethodGet, InspectionPrefix+"/points/:status", func(ctx RequestContext) error {
		return writePoints(ctx, source(), ctx.Param("status"))
	})
	server.RegisterRoute(http.MethodGet, InspectionPrefix+"/descriptors", func(ctx RequestContext) error {
		return ctx.JSON(http.StatusOK, source().Descriptors)
	})
}

func writePoints(ctx RequestContext, report *Report, status string) error {
	status = strings.ToLower(status)
	switch status {
	case "", Resolved.String(), Absent.String(), Failed.String():
		return ctx.JSON(http.StatusOK, report.Filter(status))
	default:
		return ctx.JSON(http.StatusBadRequest, NewHttpError(http.StatusBadRequest,
			fmt.Sprintf("unknown status %q, want resolved, absent or failed", status)))
	}
}
