package scheduler

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Alwanly/service-fleet-control/internal/models"
	"github.com/Alwanly/service-fleet-control/internal/registry"
	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/Alwanly/service-fleet-control/pkg/ident"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"github.com/Alwanly/service-fleet-control/pkg/retry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultRetryConfig bounds the dispatch attempts for one delivery cycle.
var DefaultRetryConfig = retry.Config{
	MaxRetries:     2,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     30 * time.Second,
	Multiplier:     2.0,
	Jitter:         true,
}

// Scheduler accepts task submissions scoped to a tenant and drives them
// toward agents. Task status transitions are serialized through a single
// mutex so each task's history is linear: pending -> dispatched ->
// acknowledged or failed, with failed -> pending only through Requeue.
type Scheduler struct {
	db         *gorm.DB
	alloc      *ident.Allocator
	registry   *registry.Registry
	dispatcher Dispatcher
	payloads   *PayloadValidator
	log        *logger.CanonicalLogger
	retryCfg   retry.Config

	mu           sync.Mutex
	lastDispatch map[string]time.Time
	inFlight     map[string]struct{}
}

func New(db *gorm.DB, alloc *ident.Allocator, reg *registry.Registry, dispatcher Dispatcher, log *logger.CanonicalLogger) *Scheduler {
	return &Scheduler{
		db:           db,
		alloc:        alloc,
		registry:     reg,
		dispatcher:   dispatcher,
		payloads:     NewPayloadValidator(),
		log:          log.Component("scheduler"),
		retryCfg:     DefaultRetryConfig,
		lastDispatch: make(map[string]time.Time),
		inFlight:     make(map[string]struct{}),
	}
}

func (s *Scheduler) WithRetryConfig(cfg retry.Config) *Scheduler {
	s.retryCfg = cfg
	return s
}

// Payloads exposes the validator so callers can register kind schemas.
func (s *Scheduler) Payloads() *PayloadValidator {
	return s.payloads
}

// Schedule validates and persists a task, then attempts an immediate
// dispatch. A task that cannot be delivered right away stays pending for
// the periodic sweep; it is never lost.
func (s *Scheduler) Schedule(ctx context.Context, tenantID, kind string, payload json.RawMessage) (string, error) {
	if strings.TrimSpace(kind) == "" {
		return "", faults.InvalidArgument("task kind required")
	}
	if err := s.payloads.Validate(kind, payload); err != nil {
		return "", err
	}

	ok, err := s.registry.TenantExists(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", faults.NotFound("tenant")
	}

	id, err := s.alloc.Allocate()
	if err != nil {
		return "", err
	}
	task := models.Task{
		ID:          id.String(),
		TenantID:    tenantID,
		Kind:        kind,
		Payload:     string(payload),
		Status:      models.TaskStatusPending,
		ScheduledAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return "", faults.Internal("failed to persist task", err)
	}

	s.log.Info("task scheduled",
		zap.String("task_id", task.ID),
		zap.String("tenant_id", tenantID),
		zap.String("task_kind", kind),
	)

	if err := s.DispatchTask(ctx, task.ID); err != nil {
		// The task stays queryable in its persisted state; dispatch
		// failures are not schedule failures.
		s.log.WithError(err).Error("initial dispatch failed", zap.String("task_id", task.ID))
	}
	return task.ID, nil
}

// DispatchTask attempts delivery of one pending task. Calling it for a task
// already past pending, or while another delivery of the same task is in
// flight, is a no-op, which makes redelivery attempts safe.
// Exhausting the retry budget marks the task failed; it is surfaced via
// GetTask and the logs, never dropped.
func (s *Scheduler) DispatchTask(ctx context.Context, taskID string) error {
	s.mu.Lock()

	if _, busy := s.inFlight[taskID]; busy {
		s.mu.Unlock()
		return nil
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if task.Status != models.TaskStatusPending {
		s.mu.Unlock()
		return nil
	}

	agentID, err := s.selectAgent(ctx, task.TenantID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if agentID == "" {
		s.mu.Unlock()
		s.log.Debug("no eligible agent, task stays pending", zap.String("task_id", taskID))
		return nil
	}
	s.inFlight[taskID] = struct{}{}
	s.lastDispatch[agentID] = time.Now().UTC()
	s.mu.Unlock()

	attempts := 0
	deliverErr := retry.WithExponentialBackoff(ctx, s.retryCfg, func(ctx context.Context) error {
		attempts++
		return s.dispatcher.Dispatch(ctx, agentID, task)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, taskID)

	// Completion writes are guarded on the task still being pending so a
	// delivery that raced with another transition cannot overwrite a later
	// status. Zero rows affected means the task moved on without us.
	updates := map[string]interface{}{"attempts": gorm.Expr("attempts + ?", attempts)}
	if deliverErr != nil {
		reason := deliverErr.Error()
		updates["status"] = models.TaskStatusFailed
		updates["last_error"] = reason
		updates["completed_at"] = time.Now().UTC()
		res := s.db.WithContext(ctx).Model(&models.Task{}).
			Where("id = ? AND status = ?", taskID, models.TaskStatusPending).
			Updates(updates)
		if res.Error != nil {
			return faults.Internal("failed to record dispatch failure", res.Error)
		}
		if res.RowsAffected == 0 {
			s.log.Debug("task transitioned during delivery, dropping stale failure", zap.String("task_id", taskID))
			return nil
		}
		s.log.Error("dispatch budget exhausted, task failed",
			zap.String("task_id", taskID),
			zap.String("agent_id", agentID),
			zap.Int("attempt", attempts),
			zap.Error(deliverErr),
		)
		return faults.Wrap(faults.KindInternal, "dispatch failed", deliverErr)
	}

	now := time.Now().UTC()
	updates["status"] = models.TaskStatusDispatched
	updates["target_agent"] = agentID
	updates["dispatched_at"] = now
	res := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ?", taskID, models.TaskStatusPending).
		Updates(updates)
	if res.Error != nil {
		return faults.Internal("failed to record dispatch", res.Error)
	}
	if res.RowsAffected == 0 {
		s.log.Debug("task transitioned during delivery, dropping stale dispatch", zap.String("task_id", taskID))
		return nil
	}
	s.log.Info("task dispatched",
		zap.String("task_id", taskID),
		zap.String("agent_id", agentID),
		zap.Int("attempt", attempts),
	)
	return nil
}

// Acknowledge records agent completion. Only a dispatched task can be
// acknowledged; duplicate or late acknowledgments are rejected without
// touching the task.
func (s *Scheduler) Acknowledge(ctx context.Context, taskID string) error {
	return s.transition(ctx, taskID, models.TaskStatusDispatched, models.TaskStatusAcknowledged, nil)
}

// MarkFailed records a delivery the agent reported as failed.
func (s *Scheduler) MarkFailed(ctx context.Context, taskID, reason string) error {
	return s.transition(ctx, taskID, models.TaskStatusDispatched, models.TaskStatusFailed, map[string]interface{}{
		"last_error": reason,
	})
}

// Requeue moves a failed task back to pending with a fresh attempt budget.
// This is the only permitted backward transition.
func (s *Scheduler) Requeue(ctx context.Context, taskID string) error {
	return s.transition(ctx, taskID, models.TaskStatusFailed, models.TaskStatusPending, map[string]interface{}{
		"attempts":      0,
		"last_error":    nil,
		"target_agent":  nil,
		"dispatched_at": nil,
		"completed_at":  nil,
		"scheduled_at":  time.Now().UTC(),
	})
}

// SweepPending retries every pending task whose scheduled time has come.
// It backs the periodic sweep and returns how many tasks it touched.
func (s *Scheduler) SweepPending(ctx context.Context) (int, error) {
	var pending []models.Task
	err := s.db.WithContext(ctx).
		Where("status = ?", models.TaskStatusPending).
		Where("scheduled_at <= ?", time.Now().UTC()).
		Order("scheduled_at").
		Find(&pending).Error
	if err != nil {
		return 0, faults.Internal("failed to list pending tasks", err)
	}

	swept := 0
	for _, task := range pending {
		if err := s.DispatchTask(ctx, task.ID); err != nil {
			s.log.WithError(err).Error("sweep dispatch failed", zap.String("task_id", task.ID))
			continue
		}
		swept++
	}
	if len(pending) > 0 {
		s.log.Info("pending sweep completed",
			zap.Int("sweep_count", len(pending)),
			zap.Int("dispatch_count", swept),
		)
	}
	return swept, nil
}

// GetTask returns the persisted task state.
func (s *Scheduler) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getTask(ctx, taskID)
}

// ListTasks returns a tenant's tasks, newest first.
func (s *Scheduler) ListTasks(ctx context.Context, tenantID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, faults.Internal("failed to list tasks", err)
	}
	return tasks, nil
}

func (s *Scheduler) getTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, faults.NotFound("task")
		}
		return nil, faults.Internal("task lookup failed", err)
	}
	return &task, nil
}

func (s *Scheduler) transition(ctx context.Context, taskID, from, to string, extra map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != from {
		s.log.Debug("transition rejected",
			zap.String("task_id", taskID),
			zap.String("status", task.Status),
		)
		return faults.Conflict("task is " + task.Status + ", not " + from)
	}

	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	if to == models.TaskStatusAcknowledged || to == models.TaskStatusFailed {
		updates["completed_at"] = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", taskID).Updates(updates).Error; err != nil {
		return faults.Internal("failed to update task status", err)
	}
	s.log.Info("task transition",
		zap.String("task_id", taskID),
		zap.String("status", to),
	)
	return nil
}

// selectAgent picks the least-recently-dispatched-to eligible agent of the
// tenant so load spreads round robin. Suspended agents are skipped. An empty
// id means nobody is eligible right now.
func (s *Scheduler) selectAgent(ctx context.Context, tenantID string) (string, error) {
	agents, err := s.registry.ListAgents(ctx, tenantID)
	if err != nil {
		return "", err
	}

	best := ""
	var bestAt time.Time
	found := false
	for _, agent := range agents {
		if agent.Status == models.AgentStatusSuspended {
			continue
		}
		at := s.lastDispatch[agent.ID]
		if !found || at.Before(bestAt) {
			best = agent.ID
			bestAt = at
			found = true
		}
	}
	return best, nil
}
