package obsx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mojzu/mz/pkg/jobx"
	"github.com/mojzu/mz/pkg/sso/auth"
	"github.com/mojzu/mz/pkg/sso/csrf"
	"github.com/mojzu/mz/pkg/sso/password"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ auth.Observer     = (*Metrics)(nil)
	_ csrf.Observer     = (*Metrics)(nil)
	_ password.Observer = (*Metrics)(nil)
	_ jobx.Observer     = (*Metrics)(nil)
)

func TestObserversCount(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.AuthOperation("login", "ok")
	m.AuthOperation("login", "ok")
	m.AuthOperation("login", "SSO_USER_PASSWORD_INCORRECT")
	m.CsrfConsumed(true)
	m.CsrfConsumed(false)
	m.CsrfConsumed(false)
	m.PwnedLookup("clean")
	m.JobFinished("notify.reset_password", "retry")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthOperationsTotal.WithLabelValues("login", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthOperationsTotal.WithLabelValues("login", "SSO_USER_PASSWORD_INCORRECT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CsrfConsumedTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CsrfConsumedTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PwnedLookupsTotal.WithLabelValues("clean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("notify.reset_password", "retry")))
}

func TestRecordHTTPRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordHTTPRequest("POST", "/v1/auth/provider/local/login", 200, 15*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/auth/provider/local/login", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestHandlerServesMetrics(t *testing.T) {
	m := NewMetrics(nil)
	m.AuthOperation("token_refresh", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mz_auth_operations_total{operation="token_refresh",result="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
