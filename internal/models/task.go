package models

import "time"

// Task status values. Transitions only move forward: pending -> dispatched
// -> acknowledged or failed. A failed task may be requeued to pending under
// the bounded retry policy; every other backward move is rejected.
const (
	TaskStatusPending      = "pending"
	TaskStatusDispatched   = "dispatched"
	TaskStatusAcknowledged = "acknowledged"
	TaskStatusFailed       = "failed"
)

type Task struct {
	ID           string     `gorm:"primaryKey;column:id"`
	TenantID     string     `gorm:"column:tenant_id;index"`
	Kind         string     `gorm:"column:kind"`
	Payload      string     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	TargetAgent  *string    `gorm:"column:target_agent"`
	Attempts     int        `gorm:"column:attempts"`
	LastError    *string    `gorm:"column:last_error"`
	ScheduledAt  time.Time  `gorm:"column:scheduled_at"`
	DispatchedAt *time.Time `gorm:"column:dispatched_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Task) TableName() string {
	return "tasks"
}
