package pfrp

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	routedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pfrp_routed_bytes_total",
			Help: "Bytes routed router to router",
		},
	)
	routedPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pfrp_routed_packets_total",
			Help: "Routing decisions, by hop kind",
		},
		[]string{"hop"},
	)
	finalizedSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pfrp_finalized_steps_total",
			Help: "Steps finalized, by trigger",
		},
		[]string{"trigger"},
	)
	warmupSteps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pfrp_warmup_steps_total",
			Help: "Finalized steps discarded as warm-up",
		},
	)
	learnerExchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pfrp_learner_exchanges_total",
			Help: "Request/reply exchanges with the learner, by request kind",
		},
		[]string{"kind"},
	)
	protocolErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pfrp_protocol_errors_total",
			Help: "Learner replies rejected for not fitting the simulation mode",
		},
	)
	deliveredPackets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pfrp_delivered_packets_total",
			Help: "Packets whose delay was recorded",
		},
	)
)

// RegisterMetrics registers the routing table collectors with reg
func RegisterMetrics(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{routedBytes, routedPackets, finalizedSteps, warmupSteps,
		learnerExchanges, protocolErrors, deliveredPackets}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
