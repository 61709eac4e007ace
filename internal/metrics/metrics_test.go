package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	// second call is a no-op
	require.NoError(t, Register(reg))

	IncStart("web")
	IncStart("web")
	IncStop("web")
	IncRestart("web")
	IncUnauthorized()

	require.Equal(t, float64(2), testutil.ToFloat64(serviceStarts.WithLabelValues("web")))
	require.Equal(t, float64(1), testutil.ToFloat64(serviceStops.WithLabelValues("web")))
	require.Equal(t, float64(1), testutil.ToFloat64(serviceRestarts.WithLabelValues("web")))
	require.GreaterOrEqual(t, testutil.ToFloat64(unauthorizedRequests), float64(1))
}

func TestHandlerServesMetrics(t *testing.T) {
	require.NotNil(t, Handler())
}
