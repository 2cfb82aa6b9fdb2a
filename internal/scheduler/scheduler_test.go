package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Alwanly/service-fleet-control/internal/models"
	"github.com/Alwanly/service-fleet-control/internal/registry"
	"github.com/Alwanly/service-fleet-control/internal/vault"
	"github.com/Alwanly/service-fleet-control/pkg/database"
	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/Alwanly/service-fleet-control/pkg/ident"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"github.com/Alwanly/service-fleet-control/pkg/retry"
)

// recordingDispatcher counts deliveries per task and can be told to fail.
type recordingDispatcher struct {
	mu         sync.Mutex
	deliveries map[string]int
	agents     map[string]int
	fail       bool
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{
		deliveries: make(map[string]int),
		agents:     make(map[string]int),
	}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, agentID string, task *models.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("agent unreachable")
	}
	d.deliveries[task.ID]++
	d.agents[agentID]++
	return nil
}

func (d *recordingDispatcher) count(taskID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deliveries[taskID]
}

func (d *recordingDispatcher) setFail(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fail
}

// gatedDispatcher parks every delivery on a channel so a test can hold one
// in flight while exercising concurrent dispatch paths.
type gatedDispatcher struct {
	started chan struct{}
	release chan struct{}

	mu         sync.Mutex
	deliveries int
}

func newGatedDispatcher() *gatedDispatcher {
	return &gatedDispatcher{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
}

func (d *gatedDispatcher) Dispatch(_ context.Context, _ string, _ *models.Task) error {
	d.started <- struct{}{}
	<-d.release
	d.mu.Lock()
	d.deliveries++
	d.mu.Unlock()
	return nil
}

type schedulerFixture struct {
	sched      *Scheduler
	registry   *registry.Registry
	dispatcher *recordingDispatcher
	tenantID   string
	projectID  string
}

func newFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	dispatcher := newRecordingDispatcher()
	f := newFixtureDispatching(t, dispatcher)
	f.dispatcher = dispatcher
	return f
}

func newFixtureDispatching(t *testing.T, dispatcher Dispatcher) *schedulerFixture {
	t.Helper()
	db, err := database.NewSQLiteDB("")
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	log, err := logger.NewLoggerFromEnv("scheduler-test")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	alloc := ident.NewAllocator()
	v := vault.New(db, alloc, log)
	reg := registry.New(db, alloc, v, log)

	sched := New(db, alloc, reg, dispatcher, log).WithRetryConfig(retry.Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	})

	ctx := context.Background()
	tenantID, err := reg.CreateTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	projectID, err := reg.CreateProject(ctx, tenantID, "web")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	return &schedulerFixture{
		sched:     sched,
		registry:  reg,
		tenantID:  tenantID,
		projectID: projectID,
	}
}

func (f *schedulerFixture) registerAgent(t *testing.T, hostname string) string {
	t.Helper()
	agentID, secret, err := f.registry.RegisterAgent(context.Background(), f.tenantID, f.projectID, hostname)
	if err != nil {
		t.Fatalf("register agent %s: %v", hostname, err)
	}
	secret.Release()
	return agentID
}

func TestScheduleRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.sched.Schedule(ctx, f.tenantID, "", json.RawMessage(`{}`)); !faults.Is(err, faults.KindInvalidArgument) {
		t.Errorf("empty kind: expected invalid argument, got %v", err)
	}
	if _, err := f.sched.Schedule(ctx, f.tenantID, "restart", json.RawMessage(`not json`)); !faults.Is(err, faults.KindInvalidArgument) {
		t.Errorf("bad payload: expected invalid argument, got %v", err)
	}
	if _, err := f.sched.Schedule(ctx, f.tenantID, "restart", json.RawMessage(`["array"]`)); !faults.Is(err, faults.KindInvalidArgument) {
		t.Errorf("non-object payload: expected invalid argument, got %v", err)
	}
	if _, err := f.sched.Schedule(ctx, "b5d7c7aa-0000-4000-8000-000000000000", "restart", json.RawMessage(`{}`)); !faults.Is(err, faults.KindNotFound) {
		t.Errorf("unknown tenant: expected not found, got %v", err)
	}
}

func TestDispatchIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.registerAgent(t, "host-1")
	ctx := context.Background()

	taskID, err := f.sched.Schedule(ctx, f.tenantID, "restart", json.RawMessage(`{"service":"api"}`))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if got := f.dispatcher.count(taskID); got != 1 {
		t.Fatalf("expected 1 delivery after schedule, got %d", got)
	}

	// Redundant dispatch attempts must not redeliver.
	for i := 0; i < 3; i++ {
		if err := f.sched.DispatchTask(ctx, taskID); err != nil {
			t.Fatalf("redundant dispatch %d: %v", i, err)
		}
	}
	if got := f.dispatcher.count(taskID); got != 1 {
		t.Errorf("expected exactly 1 delivery, got %d", got)
	}

	task, err := f.sched.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != models.TaskStatusDispatched {
		t.Errorf("expected dispatched, got %s", task.Status)
	}
}

func TestConcurrentDispatchDeliversOnce(t *testing.T) {
	d := newGatedDispatcher()
	f := newFixtureDispatching(t, d)
	ctx := context.Background()

	// Schedule before any agent exists so the task parks in pending and
	// delivery can be driven by DispatchTask directly.
	taskID, err := f.sched.Schedule(ctx, f.tenantID, "restart", json.RawMessage(`{"service":"api"}`))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	f.registerAgent(t, "host-1")

	done := make(chan error, 1)
	go func() { done <- f.sched.DispatchTask(ctx, taskID) }()
	<-d.started

	// A sweep racing the in-flight delivery must not deliver again.
	if err := f.sched.DispatchTask(ctx, taskID); err != nil {
		t.Fatalf("concurrent dispatch: %v", err)
	}
	select {
	case <-d.started:
		t.Fatal("second delivery started while first was in flight")
	default:
	}

	// Nor can the task jump ahead before its delivery resolves.
	if err := f.sched.Acknowledge(ctx, taskID); !faults.Is(err, faults.KindConflict) {
		t.Errorf("ack before dispatch resolved: expected conflict, got %v", err)
	}

	close(d.release)
	if err := <-done; err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	task, err := f.sched.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != models.TaskStatusDispatched {
		t.Errorf("expected dispatched, got %s", task.Status)
	}
	if task.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", task.Attempts)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deliveries != 1 {
		t.Errorf("expected exactly 1 delivery, got %d", d.deliveries)
	}
}

func TestAcknowledgeOnlyFromDispatched(t *testing.T) {
	f := newFixture(t)
	f.registerAgent(t, "host-1")
	ctx := context.Background()

	taskID, err := f.sched.Schedule(ctx, f.tenantID, "restart", json.RawMessage(`{"service":"api"}`))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := f.sched.Acknowledge(ctx, taskID); err != nil {
		t.Fatalf("first ack: %v", err)
	}
	// Second acknowledgment is rejected and leaves the task untouched.
	if err := f.sched.Acknowledge(ctx, taskID); !faults.Is(err, faults.KindConflict) {
		t.Errorf("duplicate ack: expected conflict, got %v", err)
	}

	task, err := f.sched.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != models.TaskStatusAcknowledged {
		t.Errorf("expected acknowledged, got %s", task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("expected completion timestamp")
	}
}

func TestStatusNeverRegresses(t *testing.T) {
	f := newFixture(t)
	f.registerAgent(t, "host-1")
	ctx := context.Background()

	taskID, err := f.sched.Schedule(ctx, f.tenantID, "restart", json.RawMessage(`{"service":"api"}`))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := f.sched.Acknowledge(ctx, taskID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	// No operation moves an acknowledged task backward.
	if err := f.sched.DispatchTask(ctx, taskID); err != nil {
		t.Fatalf("dispatch on terminal task: %v", err)
	}
	if err := f.sched.MarkFailed(ctx, taskID, "late report"); !faults.Is(err, faults.KindConflict) {
		t.Errorf("fail after ack: expected conflict, got %v", err)
	}
	if err := f.sched.Requeue(ctx, taskID); !faults.Is(err, faults.KindConflict) {
		t.Errorf("requeue after ack: expected conflict, got %v", err)
	}

	task, err := f.sched.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != models.TaskStatusAcknowledged {
		t.Errorf("status regressed to %s", task.Status)
	}
}

func TestNoAgentLeavesTaskPendingUntilSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	taskID, err := f.sched.Schedule(ctx, f.tenantID, "restart", json.RawMessage(`{"service":"api"}`))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	task, err := f.sched.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != models.TaskStatusPending {
		t.Fatalf("expected pending with no agents, got %s", task.Status)
	}

	f.registerAgent(t, "host-1")
	swept, err := f.sched.SweepPending(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Errorf("expected 1 swept task, got %d", swept)
	}

	task, err = f.sched.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != models.TaskStatusDispatched {
		t.Errorf("expected dispatched after sweep, got %s", task.Status)
	}
	if got := f.dispatcher.count(taskID); got != 1 {
		t.Errorf("expected 1 delivery, got %d", got)
	}
}

func TestExhaustedRetriesMarkTaskFailed(t *testing.T) {
	f := newFixture(t)
	f.registerAgent(t, "host-1")
	f.dispatcher.setFail(true)
	ctx := context.Background()

	taskID, err := f.sched.Schedule(ctx, f.tenantID, "restart", json.RawMessage(`{"service":"api"}`))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	task, err := f.sched.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != models.TaskStatusFailed {
		t.Fatalf("expected failed after exhausted budget, got %s", task.Status)
	}
	if task.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", task.Attempts)
	}
	if task.LastError == nil || *task.LastError == "" {
		t.Error("expected last_error to record the failure")
	}

	// Requeue resets the budget and a recovered agent picks it up.
	f.dispatcher.setFail(false)
	if err := f.sched.Requeue(ctx, taskID); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if _, err := f.sched.SweepPending(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	task, err = f.sched.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != models.TaskStatusDispatched {
		t.Errorf("expected dispatched after requeue, got %s", task.Status)
	}
}

func TestDispatchSpreadsAcrossAgents(t *testing.T) {
	f := newFixture(t)
	a1 := f.registerAgent(t, "host-1")
	a2 := f.registerAgent(t, "host-2")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := f.sched.Schedule(ctx, f.tenantID, "restart", json.RawMessage(`{"service":"api"}`)); err != nil {
			t.Fatalf("schedule %d: %v", i, err)
		}
	}

	f.dispatcher.mu.Lock()
	defer f.dispatcher.mu.Unlock()
	if f.dispatcher.agents[a1] != 2 || f.dispatcher.agents[a2] != 2 {
		t.Errorf("expected 2 deliveries per agent, got %d and %d", f.dispatcher.agents[a1], f.dispatcher.agents[a2])
	}
}

func TestSchemaValidationGatesDispatch(t *testing.T) {
	f := newFixture(t)
	f.registerAgent(t, "host-1")
	ctx := context.Background()

	schema := []byte(`{
		"type": "object",
		"required": ["service"],
		"properties": {"service": {"type": "string"}}
	}`)
	if err := f.sched.Payloads().RegisterSchema("restart", schema); err != nil {
		t.Fatalf("register schema: %v", err)
	}

	if _, err := f.sched.Schedule(ctx, f.tenantID, "restart", json.RawMessage(`{"count":1}`)); !faults.Is(err, faults.KindInvalidArgument) {
		t.Errorf("schema violation: expected invalid argument, got %v", err)
	}
	if _, err := f.sched.Schedule(ctx, f.tenantID, "restart", json.RawMessage(`{"service":"api"}`)); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}
}
