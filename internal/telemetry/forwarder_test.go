package telemetry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"github.com/Alwanly/service-fleet-control/pkg/pubsub"
)

func TestForwardPublishesSample(t *testing.T) {
	log, err := logger.NewLoggerFromEnv("telemetry-test")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	bus := pubsub.NewLoopback()
	forwarder := NewForwarder(bus, log)

	ctx := context.Background()
	messages, err := bus.Subscribe(ctx, MetricsChannel)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sample := Sample{TenantID: "t-1", Name: "cpu_percent", Value: 42.5}
	if err := forwarder.Forward(ctx, sample); err != nil {
		t.Fatalf("forward: %v", err)
	}

	select {
	case msg := <-messages:
		var got Sample
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode published sample: %v", err)
		}
		if got.Name != "cpu_percent" || got.Value != 42.5 || got.TenantID != "t-1" {
			t.Errorf("unexpected sample on the bus: %+v", got)
		}
		if got.ReportedAt.IsZero() {
			t.Error("expected the forwarder to stamp the sample")
		}
	case <-time.After(time.Second):
		t.Fatal("no sample published")
	}
}

func TestForwardRejectsUnnamedSample(t *testing.T) {
	log, err := logger.NewLoggerFromEnv("telemetry-test")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	forwarder := NewForwarder(pubsub.NewLoopback(), log)

	err = forwarder.Forward(context.Background(), Sample{Value: 1})
	if !faults.Is(err, faults.KindInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}
