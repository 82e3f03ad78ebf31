package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dwallet"

var (
	Connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected",
		Help:      "1 while an RPC connection to a node is live.",
	})

	BlockHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "block_height",
		Help:      "Height of the last block header received.",
	})

	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconnects_total",
		Help:      "Number of connection attempts after the first one.",
	})

	DiscoveryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discovery_failures_total",
		Help:      "Number of peers that failed to answer net_info.",
	})

	NodeHalted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "node_halted_total",
		Help:      "Number of times the connected node produced no header within the halted timeout.",
	})

	Transactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_total",
		Help:      "Submitted transactions by result.",
	}, []string{"result"})
)

// Register adds all collectors to reg.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		Connected, BlockHeight, Reconnects, DiscoveryFailures, NodeHalted, Transactions,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}
