package metrics

import (
	"errors"
	"strconv"

	"github.com/joeydtaylor/steeze-handoff/pkg/stream"
)

// Registered, Dispatched, Streamed and Entries make *Metrics a registry.Observer.

func (m *Metrics) Registered(_ string, replaced bool) {
	m.registrations.WithLabelValues(strconv.FormatBool(replaced)).Inc()
}

func (m *Metrics) Dispatched(_ string, found bool) {
	outcome := "not_found"
	if found {
		outcome = "found"
	}
	m.dispatches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Streamed(_ string, n int64, err error) {
	m.bytesStreamed.Add(float64(n))
	result := "complete"
	switch {
	case err == nil:
	case errors.Is(err, stream.ErrStreamCorrupted):
		result = "corrupted"
	default:
		result = "aborted"
	}
	m.transfers.WithLabelValues(result).Inc()
}

func (m *Metrics) Entries(n int) { m.pendingEntries.Set(float64(n)) }
