package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/kartreplay/internal/dispatcher"

// metrics are recorded on the global meter, a no-op unless the process installs
// a provider.
type metrics struct {
	queued  metric.Int64ObservableGauge
	handled metric.Int64Counter
	failed  metric.Int64Counter
	dropped metric.Int64Counter
}

// newMetrics creates the instruments. queueLengths reports the length of every
// buffered handler queue when the gauge is collected.
func newMetrics(queueLengths func(observe func(command string, n int))) (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}

	var err error
	out.queued, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in a buffered handler queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		queueLengths(func(command string, n int) {
			o.ObserveInt64(out.queued, int64(n), metric.WithAttributes(commandAttr(command)))
		})
		return nil
	}, out.queued)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	if out.handled, err = m.Int64Counter("dispatcher.events.handled",
		metric.WithDescription("Events handled by buffered handlers"),
	); err != nil {
		return nil, fmt.Errorf("creating handled counter: %w", err)
	}
	if out.failed, err = m.Int64Counter("dispatcher.events.failed",
		metric.WithDescription("Buffered events whose handler returned an error"),
	); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if out.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events dropped because the handler queue was full"),
	); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	return out, nil
}

func commandAttr(command string) attribute.KeyValue {
	return attribute.String("command", command)
}
