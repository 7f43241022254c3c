package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-swap/internal/session"
)

func TestSessionCollectorCountsFlows(t *testing.T) {
	storage := session.NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, 1, &session.Step{Flow: session.FlowLimit}))
	require.NoError(t, storage.Set(ctx, 2, &session.Step{Flow: session.FlowLimit}))
	require.NoError(t, storage.Set(ctx, 3, &session.Step{}))

	require.NoError(t, NewSessionCollector(storage, 0).Collect(ctx))

	assert.Equal(t, float64(3), testutil.ToFloat64(activeSessions))
	assert.Equal(t, float64(2), testutil.ToFloat64(sessionsByFlow.WithLabelValues("limit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sessionsByFlow.WithLabelValues("none")))
	assert.Equal(t, float64(0), testutil.ToFloat64(sessionsByFlow.WithLabelValues("dca")))
}

func TestRecordScreenTransitionIsRegistered(t *testing.T) {
	before := testutil.ToFloat64(screenTransitionsTotal.WithLabelValues("main", "limit_setup"))

	RecordScreenTransition("main", "limit_setup")

	after := testutil.ToFloat64(screenTransitionsTotal.WithLabelValues("main", "limit_setup"))
	assert.Equal(t, before+1, after)
}
