package core

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/toolink/widgets/dom"
	"github.com/toolink/widgets/extension"
	"github.com/toolink/widgets/pubsub"
)

// Operation outcomes.
const (
	outcomeOK               = "ok"
	outcomeDuplicate        = "duplicate_extension"
	outcomeUnknownExtension = "unknown_extension"
	outcomeUnknownListener  = "unknown_listener"
	outcomeUnknownElement   = "unknown_element"
	outcomeError            = "error"
)

type metrics struct {
	operations *prometheus.CounterVec
}

// newMetrics registers the core metrics with r. A nil r creates unregistered metrics.
func newMetrics(r prometheus.Registerer) *metrics {
	factory := promauto.With(r)
	return &metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "widgets",
			Subsystem: "core",
			Name:      "operations_total",
			Help:      "Core operations by name and outcome",
		}, []string{"op", "outcome"}),
	}
}

func (m *metrics) observe(op string, err error) {
	m.operations.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, extension.ErrDuplicateExtension):
		return outcomeDuplicate
	case errors.Is(err, extension.ErrUnknownExtension):
		return outcomeUnknownExtension
	case errors.Is(err, pubsub.ErrUnknownListener):
		return outcomeUnknownListener
	case errors.Is(err, dom.ErrUnknownElement):
		return outcomeUnknownElement
	default:
		return outcomeError
	}
}
