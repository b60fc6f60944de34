package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordSolve(rec SolveMetric) error {
	for _, s := range m.Sinks {
		if err := s.RecordSolve(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordDelivery forwards delivery stages to sinks that support them.
func (m *MultiSink) RecordDelivery(rec DeliveryMetric) error {
	for _, s := range m.Sinks {
		if r, ok := s.(DeliveryRecorder); ok {
			if err := r.RecordDelivery(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordInFlight forwards the in-flight count to sinks that support it.
func (m *MultiSink) RecordInFlight(n int) error {
	for _, s := range m.Sinks {
		if r, ok := s.(InFlightRecorder); ok {
			if err := r.RecordInFlight(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
