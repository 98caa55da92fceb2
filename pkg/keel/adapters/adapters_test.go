package adapters

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/keel/pkg/annotations"
	"github.com/toyz/keel/pkg/keel"
)

func fixtureReport() *keel.Report {
	logger := keel.NewNamed("example.com/app", "Logger")
	service := keel.NewStruct(keel.NewNamed("example.com/app", "Service"))
	audit := service.Field("Audit", logger, annotations.Named("audit"))
	console := service.Field("Console", logger)
	cache := service.Field("Cache", logger, annotations.Optional(), annotations.Named("cache"))

	locator := keel.NewLocator("fixture").MustBind(
		keel.NewDescriptor(logger, keel.Constant("console")),
	)
	return keel.Inspect(locator,
		keel.Target{Point: audit, Context: service.Type()},
		keel.Target{Point: console, Context: service.Type()},
		keel.Target{Point: cache, Context: service.Type()},
	)
}

func serve(t *testing.T, server keel.WebServer, path string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)

	if fa, ok := server.(*FiberAdapter); ok {
		resp, err := fa.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, body
	}

	handler, ok := server.(http.Handler)
	require.True(t, ok, "%s adapter must implement http.Handler", server.Name())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func TestAdapters(t *testing.T) {
	report := fixtureReport()
	require.Equal(t, 1, report.Summary.Resolved)
	require.Equal(t, 1, report.Summary.Failed)
	require.Equal(t, 1, report.Summary.Absent)

	servers := []struct {
		name   string
		server keel.WebServer
	}{
		{"Echo", NewDefaultEchoAdapter()},
		{"Gin", NewDefaultGinAdapter()},
		{"Fiber", NewFiberAdapter()},
	}

	for _, s := range servers {
		t.Run(s.name, func(t *testing.T) {
			assert.Equal(t, s.name, s.server.Name())
			keel.Mount(s.server, func() *keel.Report { return report })

			code, body := serve(t, s.server, "/keel/report")
			require.Equal(t, http.StatusOK, code)
			var got keel.Report
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, "fixture", got.Registry)
			assert.Equal(t, report.Summary, got.Summary)
			require.Len(t, got.Points, 3)
			assert.Equal(t, "Audit", got.Points[0].Point)
			assert.Equal(t, "UnsatisfiedDependencyError", got.Points[0].Code)
			assert.Equal(t, []string{`@Named(value="audit")`}, got.Points[0].Qualifiers)

			code, body = serve(t, s.server, "/keel/points?status=failed")
			require.Equal(t, http.StatusOK, code)
			var failed []keel.PointReport
			require.NoError(t, json.Unmarshal(body, &failed))
			require.Len(t, failed, 1)
			assert.Equal(t, "Audit", failed[0].Point)
			assert.NotEmpty(t, failed[0].Suggestions)

			code, body = serve(t, s.server, "/keel/points/absent")
			require.Equal(t, http.StatusOK, code)
			var absent []keel.PointReport
			require.NoError(t, json.Unmarshal(body, &absent))
			require.Len(t, absent, 1)
			assert.Equal(t, "Cache", absent[0].Point)
			assert.True(t, absent[0].Optional)

			code, body = serve(t, s.server, "/keel/points")
			require.Equal(t, http.StatusOK, code)
			var all []keel.PointReport
			require.NoError(t, json.Unmarshal(body, &all))
			assert.Len(t, all, 3)

			code, body = serve(t, s.server, "/keel/points/broken")
			assert.Equal(t, http.StatusBadRequest, code)
			var httpErr keel.HttpError
			require.NoError(t, json.Unmarshal(body, &httpErr))
			assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
			assert.Contains(t, httpErr.Message, "broken")

			code, body = serve(t, s.server, "/keel/descriptors")
			require.Equal(t, http.StatusOK, code)
			var descriptors []keel.DescriptorReport
			require.NoError(t, json.Unmarshal(body, &descriptors))
			require.Len(t, descriptors, 1)
			assert.Equal(t, "app.Logger", descriptors[0].Implementation)
			assert.Equal(t, "Singleton", descriptors[0].Mode)
			assert.NotEmpty(t, descriptors[0].ID)
		})
	}
}

func TestNew(t *testing.T) {
	for _, name := range Frameworks {
		server, err := New(name)
		require.NoError(t, err)
		assert.NotNil(t, server)
	}

	_, err := New("chi")
	assert.Error(t, err)
}
