package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
)

const (
	metricOperationsTotal   = "idspan.operations.total"
	metricOperationDuration = "idspan.operation.duration.seconds"
	metricRejectionsTotal   = "idspan.rejections.total"

	attrOp     = "op"
	attrStatus = "status"
	attrReason = "reason"

	// StatusOK marks a successful operation.
	StatusOK = "ok"
	// StatusError marks a failed operation.
	StatusError = "error"
)

// durationBucketBoundaries covers 10us to 10s: tree operations are
// microseconds, load and save of a large state file are not.
var durationBucketBoundaries = []float64{
	0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10,
}

// OpMetrics holds the OTel instruments recorded for every store operation.
type OpMetrics struct {
	operationsTotal   metric.Int64Counter
	operationDuration metric.Float64Histogram
	rejectionsTotal   metric.Int64Counter
}

// NewOpMetrics creates the operation instruments from the given meter.
func NewOpMetrics(mt metric.Meter) (*OpMetrics, error) {
	opsTotal, err := mt.Int64Counter(metricOperationsTotal,
		metric.WithDescription("Total number of operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOperationsTotal, err)
	}

	opDuration, err := mt.Float64Histogram(metricOperationDuration,
		metric.WithDescription("Operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOperationDuration, err)
	}

	rejections, err := mt.Int64Counter(metricRejectionsTotal,
		metric.WithDescription("Operations rejected by the interval manager"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRejectionsTotal, err)
	}

	return &OpMetrics{
		operationsTotal:   opsTotal,
		operationDuration: opDuration,
		rejectionsTotal:   rejections,
	}, nil
}

// Record records a completed operation. Safe to call on a nil receiver (no-op).
func (om *OpMetrics) Record(ctx context.Context, op string, err error, duration time.Duration) {
	if om == nil {
		return
	}

	status := StatusOK
	if err != nil {
		status = StatusError
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	om.operationsTotal.Add(ctx, 1, attrs)
	om.operationDuration.Record(ctx, duration.Seconds(), attrs)

	if reason := rejectionReason(err); reason != "" {
		om.rejectionsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
			attribute.String(attrReason, reason),
		))
	}
}

func rejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, itvl.ErrNotAvailable):
		return "not_available"
	case errors.Is(err, itvl.ErrAlreadyAvailable):
		return "already_available"
	case errors.Is(err, itvl.ErrOutOfRange):
		return "out_of_range"
	default:
		return ""
	}
}
