package dto

import (
	"encoding/json"
	"time"
)

type ScheduleTaskRequest struct {
	Kind    string          `json:"kind" validate:"required,min=1,max=128"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

type ScheduleTaskResponse struct {
	TaskID string `json:"task_id"`
}

type FailTaskRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=1024"`
}

type TaskView struct {
	TaskID       string          `json:"task_id"`
	TenantID     string          `json:"tenant_id"`
	Kind         string          `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	TargetAgent  *string         `json:"target_agent,omitempty"`
	Attempts     int             `json:"attempts"`
	LastError    *string         `json:"last_error,omitempty"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	DispatchedAt *time.Time      `json:"dispatched_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

type ListTasksResponse struct {
	Tasks []TaskView `json:"tasks"`
}
