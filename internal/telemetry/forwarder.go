package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"github.com/Alwanly/service-fleet-control/pkg/pubsub"
	"go.uber.org/zap"
)

// MetricsChannel carries every forwarded metric sample.
const MetricsChannel = "metrics"

// Sample is one metric observation reported by a connected client.
type Sample struct {
	TenantID    string    `json:"tenant_id,omitempty"`
	PrincipalID string    `json:"principal_id,omitempty"`
	Name        string    `json:"name"`
	Value       float64   `json:"value"`
	ReportedAt  time.Time `json:"reported_at"`
}

// Forwarder pushes metric samples onto the shared bus so downstream
// consumers (dashboards, alerting) can subscribe without coupling to the
// HTTP surface.
type Forwarder struct {
	pub pubsub.Publisher
	log *logger.CanonicalLogger
}

func NewForwarder(pub pubsub.Publisher, log *logger.CanonicalLogger) *Forwarder {
	return &Forwarder{pub: pub, log: log.Component("telemetry")}
}

// Forward validates and publishes one sample. The sample is stamped with
// the receive time when the reporter did not provide one.
func (f *Forwarder) Forward(ctx context.Context, sample Sample) error {
	if sample.Name == "" {
		return faults.InvalidArgument("metric name required")
	}
	if sample.ReportedAt.IsZero() {
		sample.ReportedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		return faults.Internal("failed to encode metric sample", err)
	}
	if err := f.pub.Publish(ctx, MetricsChannel, string(payload)); err != nil {
		return faults.Internal("failed to publish metric sample", err)
	}

	f.log.Debug("metric forwarded",
		zap.String("metric", sample.Name),
		zap.String("tenant_id", sample.TenantID),
	)
	return nil
}
