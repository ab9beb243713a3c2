package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()

	return NewPrometheusSink(reg), reg
}

// TestPrometheusSink_AlarmLifecycle counts scheduled, cancelled and fired alarms by label.
func TestPrometheusSink_AlarmLifecycle(t *testing.T) {
	t.Parallel()

	sink, _ := newTestSink(t)

	sink.AlarmScheduled("task")
	sink.AlarmScheduled("task")
	sink.AlarmScheduled("departure")
	sink.AlarmCancelled("task")
	sink.AlarmFired("task", false)
	sink.AlarmFired("departure", true)
	sink.LiveTimersUpdate(3)

	require.InDelta(t, 2, testutil.ToFloat64(sink.alarmsScheduledTotal.WithLabelValues("task")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.alarmsScheduledTotal.WithLabelValues("departure")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.alarmsCancelledTotal.WithLabelValues("task")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.alarmsFiredTotal.WithLabelValues("task", "false")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.alarmsFiredTotal.WithLabelValues("departure", "true")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(sink.liveTimers), 0)
}

// TestPrometheusSink_ReconcileAndRuntime covers the reconcile, storage and client metrics.
func TestPrometheusSink_ReconcileAndRuntime(t *testing.T) {
	t.Parallel()

	sink, reg := newTestSink(t)

	sink.ReconcileCompleted(5*time.Millisecond, 2, 1)
	sink.ReconcileCompleted(5*time.Millisecond, 0, 3)
	sink.StorageError("put")
	sink.StorageDegraded()
	sink.NotificationDenied()
	sink.SubscribersUpdate(2)
	sink.CommandHandled("GET_ALARM_STATUS", OutcomeOK)

	require.InDelta(t, 2, testutil.ToFloat64(sink.reconcileOverdue), 0)
	require.InDelta(t, 4, testutil.ToFloat64(sink.reconcileRearmed), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.storageErrorsTotal.WithLabelValues("put")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.storageDegraded), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.notificationsDeniedTotal), 0)
	require.InDelta(t, 2, testutil.ToFloat64(sink.subscribers), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.commandsTotal.WithLabelValues("GET_ALARM_STATUS", OutcomeOK)), 0)

	count, err := testutil.GatherAndCount(reg, "taskalarm_reconcile_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

// TestPrometheusSink_DoubleRegistration keeps working when collectors already exist.
func TestPrometheusSink_DoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_ = NewPrometheusSink(reg)

	second := NewPrometheusSink(reg)
	require.NotPanics(t, func() { second.AlarmFired("task", false) })
}

// TestHandler serves the registry in the text exposition format.
func TestHandler(t *testing.T) {
	t.Parallel()

	sink, reg := newTestSink(t)
	sink.AlarmScheduled("task")

	server := httptest.NewServer(Handler(reg))
	defer server.Close()

	resp, err := http.Get(server.URL) //nolint:noctx // Test server call.
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `taskalarm_alarms_scheduled_total{kind="task"} 1`)
}
