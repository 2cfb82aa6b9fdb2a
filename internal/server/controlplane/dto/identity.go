package dto

import "time"

type CreateTenantRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

type CreateTenantResponse struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}

type RenameTenantRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

type CreateProjectRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

type CreateProjectResponse struct {
	ProjectID string `json:"project_id"`
	TenantID  string `json:"tenant_id"`
	Name      string `json:"name"`
}

type RegisterAgentRequest struct {
	TenantID  string `json:"tenant_id" validate:"required,uuid4"`
	ProjectID string `json:"project_id" validate:"required,uuid4"`
	Hostname  string `json:"hostname" validate:"required,min=1,max=255"`
}

// RegisterAgentResponse carries the agent's api key exactly once. It is
// never retrievable again; only its hash survives server side.
type RegisterAgentResponse struct {
	AgentID string `json:"agent_id"`
	APIKey  string `json:"api_key"`
}

type AgentTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AgentView struct {
	AgentID   string     `json:"agent_id"`
	ProjectID string     `json:"project_id"`
	TenantID  string     `json:"tenant_id"`
	Hostname  string     `json:"hostname"`
	Status    string     `json:"status"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

type ListAgentsResponse struct {
	Agents []AgentView `json:"agents"`
}

type TenantView struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}

type ListTenantsResponse struct {
	Tenants []TenantView `json:"tenants"`
}
