package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"livequiz/internal/domain"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.PlayersConnected(3)
	c.SnapshotBroadcast()
	c.SnapshotBroadcast()
	c.MessageReceived(domain.MessagePlayerAnswer)
	c.MessageRejected("unknown_type")
	c.AnswerAwarded(750)
	c.GenerationFinished("gemini", time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(c.players); got != 3 {
		t.Fatalf("players gauge = %v", got)
	}
	if got := testutil.ToFloat64(c.snapshots); got != 2 {
		t.Fatalf("snapshots = %v", got)
	}
	if got := testutil.ToFloat64(c.received.WithLabelValues(string(domain.MessagePlayerAnswer))); got != 1 {
		t.Fatalf("received = %v", got)
	}
	if got := testutil.ToFloat64(c.genFailures.WithLabelValues("gemini")); got != 1 {
		t.Fatalf("generation failures = %v", got)
	}
}
