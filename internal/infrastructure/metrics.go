package infrastructure

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics holds application-specific counters and histograms for the
// license server.
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	ActivationAttempts metric.Int64Counter
	ActivationSuccess  metric.Int64Counter
	ActivationFailures metric.Int64Counter
	TokensIssued       metric.Int64Counter
	SeatsBound         metric.Int64Counter

	AdminOperations metric.Int64Counter
	StoreWrites     metric.Int64Counter
}

// CreateBusinessMetrics registers the license server's metrics on the meter.
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	activationAttempts, err := meter.Int64Counter(
		"license_activation_attempts_total",
		metric.WithDescription("Total number of license activation attempts"),
	)
	if err != nil {
		return nil, err
	}

	activationSuccess, err := meter.Int64Counter(
		"license_activation_success_total",
		metric.WithDescription("Total number of successful license activations"),
	)
	if err != nil {
		return nil, err
	}

	activationFailures, err := meter.Int64Counter(
		"license_activation_failures_total",
		metric.WithDescription("Total number of failed license activations by reason"),
	)
	if err != nil {
		return nil, err
	}

	tokensIssued, err := meter.Int64Counter(
		"license_tokens_issued_total",
		metric.WithDescription("Total number of entitlement tokens issued"),
	)
	if err != nil {
		return nil, err
	}

	seatsBound, err := meter.Int64Counter(
		"license_seats_bound_total",
		metric.WithDescription("Total number of new machine seat bindings"),
	)
	if err != nil {
		return nil, err
	}

	adminOperations, err := meter.Int64Counter(
		"admin_operations_total",
		metric.WithDescription("Total number of admin operations by kind"),
	)
	if err != nil {
		return nil, err
	}

	storeWrites, err := meter.Int64Counter(
		"store_writes_total",
		metric.WithDescription("Total number of license store document writes"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		ActivationAttempts:  activationAttempts,
		ActivationSuccess:   activationSuccess,
		ActivationFailures:  activationFailures,
		TokensIssued:        tokensIssued,
		SeatsBound:          seatsBound,
		AdminOperations:     adminOperations,
		StoreWrites:         storeWrites,
	}, nil
}

// RecordActivation records an activation outcome. reason is empty on
// success and names the failure kind otherwise.
func (m *BusinessMetrics) RecordActivation(ctx context.Context, reason string) {
	if m == nil {
		return
	}

	m.ActivationAttempts.Add(ctx, 1)
	if reason == "" {
		m.ActivationSuccess.Add(ctx, 1)
		m.TokensIssued.Add(ctx, 1)
		return
	}
	m.ActivationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordSeatBound records a new machine seat binding.
func (m *BusinessMetrics) RecordSeatBound(ctx context.Context) {
	if m == nil {
		return
	}
	m.SeatsBound.Add(ctx, 1)
}

// RecordStoreWrite records a license store document write.
func (m *BusinessMetrics) RecordStoreWrite(ctx context.Context) {
	if m == nil {
		return
	}
	m.StoreWrites.Add(ctx, 1)
}

// RecordAdminOperation records an admin operation by kind.
func (m *BusinessMetrics) RecordAdminOperation(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.AdminOperations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", kind)))
}
