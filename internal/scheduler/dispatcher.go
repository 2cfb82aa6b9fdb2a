package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Alwanly/service-fleet-control/internal/models"
	"github.com/Alwanly/service-fleet-control/pkg/pubsub"
)

// Dispatcher delivers a task toward its target agent. Delivery is keyed by
// the task id; an implementation receiving the same id twice must treat the
// second delivery as a duplicate, not new work.
type Dispatcher interface {
	Dispatch(ctx context.Context, agentID string, task *models.Task) error
}

// TaskEnvelope is the wire form published on an agent's dispatch channel.
type TaskEnvelope struct {
	TaskID   string          `json:"task_id"`
	TenantID string          `json:"tenant_id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Attempt  int             `json:"attempt"`
}

// pubsubDispatcher publishes task envelopes on per-agent channels. The task
// id inside the envelope lets agents drop redelivered duplicates.
type pubsubDispatcher struct {
	pub pubsub.Publisher
}

func NewPubSubDispatcher(pub pubsub.Publisher) Dispatcher {
	return &pubsubDispatcher{pub: pub}
}

func (d *pubsubDispatcher) Dispatch(ctx context.Context, agentID string, task *models.Task) error {
	envelope := TaskEnvelope{
		TaskID:   task.ID,
		TenantID: task.TenantID,
		Kind:     task.Kind,
		Payload:  json.RawMessage(task.Payload),
		Attempt:  task.Attempts + 1,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal task envelope: %w", err)
	}
	return d.pub.Publish(ctx, DispatchChannel(agentID), string(payload))
}

// DispatchChannel names the pubsub channel an agent listens on.
func DispatchChannel(agentID string) string {
	return "dispatch:" + agentID
}
