package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestAccess_RecordsWithoutProvider(t *testing.T) {
	ctx := context.Background()
	m, err := New(ctx, Config{Enabled: false}, "reelgate-test")
	require.NoError(t, err)

	access, err := NewAccess(m)
	require.NoError(t, err)

	access.RecordDecision(ctx, "user", "/api/v1/admin/overview", false)
	access.RecordResolution(ctx, "resolved", "known", 3*time.Millisecond)

	var nilAccess *Access
	nilAccess.RecordDecision(ctx, "guest", "/", true)
	nilAccess.RecordResolution(ctx, "anonymous", "absent", 0)
}

func findSum(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, "metric %s is not an int64 sum", name)
				return sum
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Sum[int64]{}
}

func TestAccess_RecordsDecisions(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	m := NewWithReader("reelgate-test", reader)
	t.Cleanup(func() { _ = m.Shutdown(ctx) })

	access, err := NewAccess(m)
	require.NoError(t, err)

	access.RecordDecision(ctx, "moderator", "/api/v1/admin/overview", false)
	access.RecordDecision(ctx, "moderator", "/api/v1/admin/overview", false)
	access.RecordDecision(ctx, "admin", "/api/v1/admin/overview", true)
	access.RecordResolution(ctx, "resolved", "known", time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	decisions := findSum(t, rm, "reelgate.access.decisions")
	var denied, allowed int64
	for _, dp := range decisions.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("allowed"))
		if v.AsBool() {
			allowed += dp.Value
		} else {
			denied += dp.Value
		}
	}
	assert.Equal(t, int64(2), denied)
	assert.Equal(t, int64(1), allowed)

	resolutions := findSum(t, rm, "reelgate.role.resolutions")
	require.Len(t, resolutions.DataPoints, 1)
	assert.Equal(t, int64(1), resolutions.DataPoints[0].Value)
}
