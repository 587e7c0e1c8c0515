package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, provider *Provider) string {
	t.Helper()
	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewProvider(t *testing.T) {
	for _, namespace := range []string{"fieldcrypt", ""} {
		t.Run("namespace="+namespace, func(t *testing.T) {
			provider, err := NewProvider(namespace)
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, provider.Shutdown(context.Background())) })

			assert.NotNil(t, provider.MeterProvider())
			assert.NotNil(t, provider.exporter)
			assert.Contains(t, scrape(t, provider), "go_goroutines")
		})
	}
}

func TestProvider_ServiceResource(t *testing.T) {
	provider, err := NewProvider("fieldcrypt")
	require.NoError(t, err)

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "fieldcrypt")
	require.NoError(t, err)
	bm.RecordOperation(context.Background(), "customer", "register", "success")

	assert.Regexp(t, `target_info\{[^}]*service_name="fieldcrypt"`, scrape(t, provider))
}

func TestProvider_OperationDurationBuckets(t *testing.T) {
	provider, err := NewProvider("fieldcrypt")
	require.NoError(t, err)

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "fieldcrypt")
	require.NoError(t, err)
	bm.RecordDuration(context.Background(), "fieldcrypt", "encrypt", 200*time.Microsecond, "success")

	output := scrape(t, provider)
	assert.Regexp(t, `fieldcrypt_operation_duration_seconds_bucket\{[^}]*le="0.00025"[^}]*\} 1`, output)
	assert.Regexp(t, `fieldcrypt_operation_duration_seconds_bucket\{[^}]*le="0.0001"[^}]*\} 0`, output)
}

func TestProvider_Shutdown(t *testing.T) {
	provider, err := NewProvider("fieldcrypt")
	require.NoError(t, err)
	assert.NoError(t, provider.Shutdown(context.Background()))

	assert.NoError(t, (&Provider{}).Shutdown(context.Background()))
}
