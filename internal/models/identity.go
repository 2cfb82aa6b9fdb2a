package models

import "time"

// Tenant is the root of the identity hierarchy. The identifier is permanent;
// only the name may be re-labeled after creation.
type Tenant struct {
	ID        string    `gorm:"primaryKey;column:id"`
	Name      string    `gorm:"column:name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Tenant) TableName() string {
	return "tenants"
}

type Project struct {
	ID        string    `gorm:"primaryKey;column:id"`
	TenantID  string    `gorm:"column:tenant_id;index"`
	Name      string    `gorm:"column:name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Project) TableName() string {
	return "projects"
}

// Agent lifecycle states.
const (
	AgentStatusRegistered = "registered"
	AgentStatusActive     = "active"
	AgentStatusSuspended  = "suspended"
)

type Agent struct {
	ID        string     `gorm:"primaryKey;column:id"`
	TenantID  string     `gorm:"column:tenant_id;index"`
	ProjectID string     `gorm:"column:project_id;index"`
	Hostname  string     `gorm:"column:hostname"`
	Status    string     `gorm:"column:status"`
	LastSeen  *time.Time `gorm:"column:last_seen"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Agent) TableName() string {
	return "agents"
}
