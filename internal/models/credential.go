package models

import "time"

// APIKeyRecord is the stored side of an issued api key. Only the bcrypt hash
// of the secret half is persisted; the plaintext leaves the vault exactly
// once at issuance.
type APIKeyRecord struct {
	ID            string     `gorm:"primaryKey;column:id"`
	TenantID      string     `gorm:"column:tenant_id;index"`
	PrincipalID   string     `gorm:"column:principal_id;index"`
	PrincipalKind string     `gorm:"column:principal_kind"`
	Label         string     `gorm:"column:label"`
	TokenPrefix   string     `gorm:"column:token_prefix;uniqueIndex"`
	TokenHash     string     `gorm:"column:token_hash"`
	Revoked       bool       `gorm:"column:revoked"`
	RotatedFrom   *string    `gorm:"column:rotated_from"`
	RotatedTo     *string    `gorm:"column:rotated_to"`
	LastUsedAt    *time.Time `gorm:"column:last_used_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (APIKeyRecord) TableName() string {
	return "api_keys"
}
