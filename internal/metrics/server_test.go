package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	server := NewServer(9999, log)

	require.NotNil(t, server)
	assert.Equal(t, 9999, server.port)
	assert.Nil(t, server.server)
}

func TestServer_HealthEndpoint(t *testing.T) {
	server := NewServer(0, zerolog.Nop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	RecordRiskEvaluation(ResultOK, 2.0)

	ts := httptest.NewServer(NewServer(0, zerolog.Nop()).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "finsphere_risk_evaluations_total")
	assert.Contains(t, string(body), "finsphere_overall_risk_score")
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := NewServer(19998, zerolog.Nop())

	require.NoError(t, server.Start())
	assert.NotNil(t, server.server)

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	server := NewServer(0, zerolog.Nop())
	assert.NoError(t, server.Shutdown(context.Background()))
}
