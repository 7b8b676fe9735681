package telemetry

import "go.opentelemetry.io/otel/metric"

// Metrics holds the tracker's instruments.
type Metrics struct {
	RequestDuration metric.Float64Histogram
	Requests        metric.Int64Counter
	Mutations       metric.Int64Counter
	Rejections      metric.Int64Counter
	ActiveStreams   metric.Int64UpDownCounter
}

// NewMetrics creates all instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RequestDuration, err = meter.Float64Histogram("tracker.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.Requests, err = meter.Int64Counter("tracker.requests",
		metric.WithDescription("HTTP requests by route and status"),
	)
	if err != nil {
		return nil, err
	}

	m.Mutations, err = meter.Int64Counter("tracker.store.mutations",
		metric.WithDescription("Successful store mutations by kind and operation"),
	)
	if err != nil {
		return nil, err
	}

	m.Rejections, err = meter.Int64Counter("tracker.store.rejections",
		metric.WithDescription("Store operations rejected, by response status"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveStreams, err = meter.Int64UpDownCounter("tracker.events.streams",
		metric.WithDescription("Open change stream connections"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}
