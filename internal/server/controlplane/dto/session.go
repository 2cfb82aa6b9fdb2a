package dto

import "time"

type AuthenticateRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

type AuthenticateResponse struct {
	Token       string    `json:"token"`
	PrincipalID string    `json:"principal_id"`
	TenantID    string    `json:"tenant_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type RotateKeyResponse struct {
	APIKey string `json:"api_key"`
	KeyID  string `json:"key_id"`
}

type MetricRequest struct {
	Name       string    `json:"name" validate:"required,min=1,max=128"`
	Value      float64   `json:"value"`
	ReportedAt time.Time `json:"reported_at,omitempty"`
}
