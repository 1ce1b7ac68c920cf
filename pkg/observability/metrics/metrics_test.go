package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRegistryMetrics(t *testing.T) {
	ObserveRegistration("created")
	ObserveSync("fetch", "timeout", time.Now().Add(-150*time.Millisecond))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `registry_person_registrations_total{result="created"}`)
	assert.Contains(t, string(body), `registry_remote_sync_requests_total{operation="fetch",outcome="timeout"}`)
	assert.Contains(t, string(body), `registry_remote_sync_duration_seconds_bucket{operation="fetch",le="0.25"}`)
}
