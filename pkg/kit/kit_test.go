package kit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestIPRateLimiter_LimitsPerIP(t *testing.T) {
	l := NewIPRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	h := l.Middleware(okHandler)

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, http.StatusOK, do("10.0.0.1"))

	now = now.Add(2 * time.Minute)
	l.Sweep()
	assert.Empty(t, l.hits)
}

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", " 1.2.3.4 , 5.6.7.8")
	assert.Equal(t, "1.2.3.4", clientIP(req))
}

func TestBearerAuth(t *testing.T) {
	h := BearerAuth("s3cret")(okHandler)

	cases := map[string]int{
		"":              http.StatusForbidden,
		"Bearer nope":   http.StatusForbidden,
		"Basic s3cret":  http.StatusForbidden,
		"Bearer s3cret": http.StatusOK,
	}
	for authz, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, authz)
	}

	closed := BearerAuth("")(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	closed.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Text string `json:"text"`
	}

	decode := func(body string) error {
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
		return DecodeJSON(httptest.NewRecorder(), req, &v, 64)
	}

	require.NoError(t, decode(`{"text":"red"}`))
	assert.Equal(t, "red", v.Text)
	assert.ErrorIs(t, decode(`{"text":"a"}{"text":"b"}`), ErrTrailingData)
	assert.Error(t, decode(`{"other":1}`))
	assert.Error(t, decode(`{"text":"`+strings.Repeat("x", 100)+`"}`))
}

func TestMetricsMiddleware_CountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := m.Middleware("browser", ChiRoutePatternOrPath)(okHandler)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("browser", "GET", "/healthz", "200")))
}
