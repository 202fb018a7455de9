package comm

import (
	"context"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/utils/logutil"
)

const maxLoggedPayload = 256

// ObserverFunc adapts a function to comm.Observer.
type ObserverFunc func(ctx context.Context, d comm.Delivery)

func (f ObserverFunc) Observe(ctx context.Context, d comm.Delivery) {
	f(ctx, d)
}

// Observers fans a delivery out to every member in order.
type Observers []comm.Observer

func (o Observers) Observe(ctx context.Context, d comm.Delivery) {
	for _, observer := range o {
		if observer != nil {
			observer.Observe(ctx, d)
		}
	}
}

// LogObserver logs every delivery.
type LogObserver struct {
	logger logger.Interface
}

func NewLogObserver(log logger.Interface) *LogObserver {
	return &LogObserver{logger: log}
}

func (o *LogObserver) Observe(_ context.Context, d comm.Delivery) {
	o.logger.Infow("message received",
		"source", d.Envelope.Source,
		"protocol", d.Envelope.Protocol,
		"type", d.Envelope.Type,
		"codec", d.Codec,
		"raw", d.Raw,
		"payload", logutil.Preview(d.Decoded, maxLoggedPayload),
	)
}
