package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"FinSignal/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type routes func(e *echo.Echo)

func (r routes) RegisterRoutes(e *echo.Echo) { r(e) }

type echoRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	N      int    `query:"n" default:"50" validate:"lte=100"`
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	h := routes(func(e *echo.Echo) {
		e.GET("/boom", func(echo.Context) error { panic("boom") })
		e.GET("/echo", func(c echo.Context) error {
			req := &echoRequest{}
			if verr := ReadAndValidateRequest(c, req); verr != nil {
				return BadRequestResponse(c, verr)
			}
			return SuccessResponse(c, req)
		})
		e.GET("/missing", func(c echo.Context) error {
			return AppErrorResponse(c, NotFoundErrorf("model %s", "x"))
		})
	})
	return NewServer(h, logger.Nop(), append([]ServerOption{WithRegistry(prometheus.NewRegistry())}, opts...)...)
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServerRecoversPanics(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/boom")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReadAndValidateRequest(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, http.MethodGet, "/echo?symbol=BTC")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"N":50`) {
		t.Fatalf("defaults not applied: %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(s, http.MethodGet, "/echo?n=500")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "ERR_REQUIRED") {
		t.Fatalf("validation not reported: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAppErrorStatus(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/missing")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "ERR_NOT_FOUND") {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	serve(s, http.MethodGet, "/health")
	rec := serve(s, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "finsignal_http_requests_total") {
		t.Fatalf("metrics missing: %d", rec.Code)
	}

	off := newTestServer(t, WithMetricsPath(""))
	if rec := serve(off, http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled metrics path served: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/echo", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}
}
