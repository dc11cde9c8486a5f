package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveOperation("farm", "stake", "", 10*time.Millisecond)
	m.ObserveOperation("farm", "stake", "invalid_state", time.Millisecond)
	m.ObserveOperation("farm", "stake", "invalid_state", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("farm", "stake", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("farm", "stake", "invalid_state")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rollbacksTotal.WithLabelValues("invalid_state")))
}

func TestObserveEvent(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveEvent("Staked")
	m.ObserveEvent("Staked")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues("Staked")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("farm", "stake", "", time.Second)
	m.ObserveEvent("Staked")
}
