package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/engine/routingalgorithm"
	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRouting struct {
	route  *datastructure.RouteResult
	routes []datastructure.RouteResult
	err    error

	gotK int
}

func (f *fakeRouting) Route(ctx context.Context, startLat, startLon, endLat, endLon float64) (*datastructure.RouteResult, error) {
	return f.route, f.err
}

func (f *fakeRouting) KShortestRoutes(ctx context.Context, startLat, startLon, endLat, endLon float64, k int) ([]datastructure.RouteResult, error) {
	f.gotK = k
	if f.err != nil {
		return []datastructure.RouteResult{}, f.err
	}
	return f.routes, nil
}

func newTestServer(t *testing.T, svc RoutingService, cfg util.ServerConfig) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(svc, cfg, metrics.NewMonitor(reg), zap.NewNop()), reg
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const validBody = `{"src_lat":-7.55,"src_lon":110.80,"dst_lat":-7.56,"dst_lon":110.82}`

func TestShortestPath(t *testing.T) {
	svc := &fakeRouting{route: &datastructure.RouteResult{
		NodeIDs:   []int64{1, 2, 3},
		Geometry:  "abc",
		DistanceM: 1200,
		DurationS: 72,
		Cost:      72,
		Algorithm: "ch",
	}}
	h, _ := newTestServer(t, svc, util.ServerConfig{})

	rec := post(t, h, "/api/navigations/shortest-path", validBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RouteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, RouteResponse{Path: "abc", DistanceM: 1200, DurationS: 72, Cost: 72, Algorithm: "ch",
		NodeIDs: []int64{1, 2, 3}}, resp)
}

func TestShortestPathErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"empty body", ``, nil, http.StatusBadRequest},
		{"latitude out of range", `{"src_lat":-97,"src_lon":110.80,"dst_lat":-7.56,"dst_lon":110.82}`, nil, http.StatusBadRequest},
		{"node not found", validBody, util.WrapErrorf(routingalgorithm.ErrNodeNotFound, util.ErrNotFound, "snap"), http.StatusNotFound},
		{"different components", validBody, util.WrapErrorf(routingalgorithm.ErrDifferentComponents, util.ErrNotFound, "route"), http.StatusNotFound},
		{"timeout", validBody, util.WrapErrorf(routingalgorithm.ErrSearchTimeout, util.ErrTimeout, "route"), http.StatusGatewayTimeout},
		{"internal", validBody, util.WrapErrorf(nil, util.ErrInternalServerError, "boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestServer(t, &fakeRouting{err: tt.err}, util.ServerConfig{})
			rec := post(t, h, "/api/navigations/shortest-path", tt.body)
			assert.Equal(t, tt.want, rec.Code)

			var resp ErrResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.StatusText)
		})
	}
}

func TestShortestPathValidationMessages(t *testing.T) {
	h, _ := newTestServer(t, &fakeRouting{}, util.ServerConfig{})
	rec := post(t, h, "/api/navigations/shortest-path", `{"src_lat":-97,"src_lon":110.80,"dst_lat":-7.56,"dst_lon":181}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.ErrValidation, 2)
}

func TestAlternativeRoutes(t *testing.T) {
	svc := &fakeRouting{routes: []datastructure.RouteResult{
		{Geometry: "a", Cost: 10, Algorithm: "ksp"},
		{Geometry: "b", Cost: 12, Algorithm: "ksp"},
	}}
	h, _ := newTestServer(t, svc, util.ServerConfig{})

	rec := post(t, h, "/api/navigations/alternative-routes",
		`{"src_lat":-7.55,"src_lon":110.80,"dst_lat":-7.56,"dst_lon":110.82,"k":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, svc.gotK)

	var resp AlternativeRoutesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Routes, 2)
	assert.Equal(t, "a", resp.Routes[0].Path)
	assert.Equal(t, "b", resp.Routes[1].Path)

	rec = post(t, h, "/api/navigations/alternative-routes", validBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "k is required")
}

func TestRateLimit(t *testing.T) {
	svc := &fakeRouting{route: &datastructure.RouteResult{}}
	h, _ := newTestServer(t, svc, util.ServerConfig{UseRateLimit: true, RateLimit: 0.001, RateBurst: 1})

	assert.Equal(t, http.StatusOK, post(t, h, "/api/navigations/shortest-path", validBody).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(t, h, "/api/navigations/shortest-path", validBody).Code)
}

func TestMetricsAndDocs(t *testing.T) {
	svc := &fakeRouting{route: &datastructure.RouteResult{}}
	h, _ := newTestServer(t, svc, util.ServerConfig{})
	post(t, h, "/api/navigations/shortest-path", validBody)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `navigatorx_http_requests_total{code="200",path="/api/navigations/shortest-path"} 1`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/navigations/shortest-path")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
