package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/model"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{FailureRateThreshold: 0.5, MinProcessed: 5}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(model.RunSummary{Processed: 10, Failed: 2, Updated: 8})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(model.RunSummary{RunID: "run-1", Processed: 10, Failed: 8})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Equal(t, "run-1", alerts[0].RunID)
	assert.Contains(t, alerts[0].Message, "80.0%")
}

func TestAlerter_Evaluate_MinimumProcessedRequired(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	// Only 3 identities: below the minimum for a failure-rate alert.
	alerts := a.Evaluate(model.RunSummary{Processed: 3, Failed: 3})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_Rejections(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(model.RunSummary{
		Processed: 10, Failed: 6, Rejected: 1,
		RejectedIdentities: []string{"x"},
	})
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertFailureRate, alerts[0].Type)
	assert.Equal(t, AlertRejections, alerts[1].Type)
	assert.Equal(t, "medium", alerts[1].Severity)
	assert.Contains(t, alerts[1].Message, "1 record(s)")
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, AlertFailureRate, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	alerts := a.Evaluate(model.RunSummary{Processed: 10, Failed: 10})
	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	assert.False(t, a.Enabled())

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRejections}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRejections}})
	assert.Equal(t, 0, sent)
}
