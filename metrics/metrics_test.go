package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.Nil(t, Register(reg))

	// Registering twice on the same registry fails.
	require.NotNil(t, Register(reg))

	Transactions.WithLabelValues("success").Inc()
	require.Equal(t, float64(1), testutil.ToFloat64(Transactions.WithLabelValues("success")))
}
