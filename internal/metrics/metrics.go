package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"livequiz/internal/domain"
)

const namespace = "livequiz"

// GameCollector records what happens in a game session.
type GameCollector interface {
	PlayersConnected(n int)
	SnapshotBroadcast()
	MessageReceived(kind domain.MessageType)
	MessageRejected(reason string)
	AnswerAwarded(points int)
	GenerationFinished(source string, took time.Duration, err error)
}

type PrometheusCollector struct {
	players     prometheus.Gauge
	snapshots   prometheus.Counter
	received    *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	awards      prometheus.Histogram
	generation  *prometheus.HistogramVec
	genFailures *prometheus.CounterVec
}

// NewPrometheusCollector registers the game metrics with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		players: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "players_connected",
			Help:      "number of players currently in the session",
		}),
		snapshots: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "snapshots_broadcast_total",
			Help:      "full game state snapshots pushed to players",
		}),
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "messages_received_total",
			Help:      "inbound player messages by type",
		}, []string{"type"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "messages_rejected_total",
			Help:      "inbound messages dropped by the host",
		}, []string{"reason"}),
		awards: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "award_points",
			Help:      "points awarded per answer at settlement",
			Buckets:   prometheus.LinearBuckets(0, 100, 11),
		}),
		generation: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "generation_seconds",
			Help:      "time spent generating question sets",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		genFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "generation_failures_total",
			Help:      "failed question generation attempts",
		}, []string{"source"}),
	}
}

func (c *PrometheusCollector) PlayersConnected(n int) {
	c.players.Set(float64(n))
}

func (c *PrometheusCollector) SnapshotBroadcast() {
	c.snapshots.Inc()
}

func (c *PrometheusCollector) MessageReceived(kind domain.MessageType) {
	c.received.WithLabelValues(string(kind)).Inc()
}

func (c *PrometheusCollector) MessageRejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

func (c *PrometheusCollector) AnswerAwarded(points int) {
	c.awards.Observe(float64(points))
}

func (c *PrometheusCollector) GenerationFinished(source string, took time.Duration, err error) {
	c.generation.WithLabelValues(source).Observe(took.Seconds())
	if err != nil {
		c.genFailures.WithLabelValues(source).Inc()
	}
}

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) PlayersConnected(int)                             {}
func (nc *NoopCollector) SnapshotBroadcast()                               {}
func (nc *NoopCollector) MessageReceived(domain.MessageType)               {}
func (nc *NoopCollector) MessageRejected(string)                           {}
func (nc *NoopCollector) AnswerAwarded(int)                                {}
func (nc *NoopCollector) GenerationFinished(string, time.Duration, error) {}
