package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Alwanly/service-fleet-control/internal/models"
	"github.com/Alwanly/service-fleet-control/internal/vault"
	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/Alwanly/service-fleet-control/pkg/ident"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultAgentTokenTTL    = 15 * time.Minute
	defaultHeartbeatTimeout = 5 * time.Minute
)

// Registry owns the tenant/project/agent hierarchy. Mutations under one
// tenant are serialized through a per-tenant mutex so referential integrity
// holds at creation time; different tenants proceed independently.
type Registry struct {
	db    *gorm.DB
	alloc *ident.Allocator
	vault *vault.Vault
	log   *logger.CanonicalLogger

	agentTokenTTL    time.Duration
	heartbeatTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(db *gorm.DB, alloc *ident.Allocator, v *vault.Vault, log *logger.CanonicalLogger) *Registry {
	return &Registry{
		db:               db,
		alloc:            alloc,
		vault:            v,
		log:              log.Component("registry"),
		agentTokenTTL:    defaultAgentTokenTTL,
		heartbeatTimeout: defaultHeartbeatTimeout,
		locks:            make(map[string]*sync.Mutex),
	}
}

func (r *Registry) WithAgentTokenTTL(ttl time.Duration) *Registry {
	r.agentTokenTTL = ttl
	return r
}

func (r *Registry) WithHeartbeatTimeout(timeout time.Duration) *Registry {
	r.heartbeatTimeout = timeout
	return r
}

// CreateTenant creates a new top-level tenant. Any non-empty name is valid.
func (r *Registry) CreateTenant(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", faults.InvalidArgument("tenant name required")
	}

	id, err := r.alloc.Allocate()
	if err != nil {
		return "", err
	}
	tenant := models.Tenant{ID: id.String(), Name: name}
	if err := r.db.WithContext(ctx).Create(&tenant).Error; err != nil {
		return "", faults.Internal("failed to create tenant", err)
	}

	r.log.Info("tenant created", zap.String("tenant_id", tenant.ID), zap.String("name", name))
	return tenant.ID, nil
}

// RenameTenant re-labels a tenant; the identifier never changes.
func (r *Registry) RenameTenant(ctx context.Context, tenantID, name string) error {
	if strings.TrimSpace(name) == "" {
		return faults.InvalidArgument("tenant name required")
	}
	result := r.db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", tenantID).Update("name", name)
	if result.Error != nil {
		return faults.Internal("failed to rename tenant", result.Error)
	}
	if result.RowsAffected == 0 {
		return faults.NotFound("tenant")
	}
	return nil
}

// CreateProject creates a project under an existing tenant.
func (r *Registry) CreateProject(ctx context.Context, tenantID, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", faults.InvalidArgument("project name required")
	}

	unlock := r.lockTenant(tenantID)
	defer unlock()

	if err := r.requireTenant(ctx, tenantID); err != nil {
		return "", err
	}

	id, err := r.alloc.Allocate()
	if err != nil {
		return "", err
	}
	project := models.Project{ID: id.String(), TenantID: tenantID, Name: name}
	if err := r.db.WithContext(ctx).Create(&project).Error; err != nil {
		return "", faults.Internal("failed to create project", err)
	}

	r.log.Info("project created",
		zap.String("project_id", project.ID),
		zap.String("tenant_id", tenantID),
		zap.String("name", name),
	)
	return project.ID, nil
}

// RegisterAgent creates an agent under (tenant, project) and issues its api
// key. The plaintext key is returned exactly once; only the hash survives.
// If key issuance fails the agent record is removed so no partial
// registration is ever observable.
func (r *Registry) RegisterAgent(ctx context.Context, tenantID, projectID, hostname string) (string, *vault.Secret, error) {
	if strings.TrimSpace(hostname) == "" {
		return "", nil, faults.InvalidArgument("hostname required")
	}

	unlock := r.lockTenant(tenantID)
	defer unlock()

	if err := r.requireTenant(ctx, tenantID); err != nil {
		return "", nil, err
	}

	var project models.Project
	if err := r.db.WithContext(ctx).Where("id = ?", projectID).First(&project).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil, faults.NotFound("project")
		}
		return "", nil, faults.Internal("project lookup failed", err)
	}
	if project.TenantID != tenantID {
		return "", nil, faults.NotFound("project")
	}

	id, err := r.alloc.Allocate()
	if err != nil {
		return "", nil, err
	}
	agent := models.Agent{
		ID:        id.String(),
		TenantID:  tenantID,
		ProjectID: projectID,
		Hostname:  hostname,
		Status:    models.AgentStatusRegistered,
	}
	if err := r.db.WithContext(ctx).Create(&agent).Error; err != nil {
		return "", nil, faults.Internal("failed to create agent", err)
	}

	identity := vault.Identity{
		PrincipalID:   agent.ID,
		PrincipalKind: vault.PrincipalAgent,
		TenantID:      tenantID,
	}
	secret, _, err := r.vault.IssueAPIKey(ctx, identity, "agent:"+hostname)
	if err != nil {
		// Roll the registration back rather than leave a keyless agent.
		if delErr := r.db.WithContext(ctx).Delete(&models.Agent{}, "id = ?", agent.ID).Error; delErr != nil {
			r.log.WithError(delErr).Error("failed to roll back agent registration", zap.String("agent_id", agent.ID))
		}
		return "", nil, err
	}

	r.log.Info("agent registered",
		zap.String("agent_id", agent.ID),
		zap.String("tenant_id", tenantID),
		zap.String("project_id", projectID),
		zap.String("hostname", hostname),
	)
	return agent.ID, secret, nil
}

// IssueAgentToken issues a short-lived session token scoped to an agent.
func (r *Registry) IssueAgentToken(ctx context.Context, agentID string) (string, time.Time, error) {
	agent, err := r.GetAgent(ctx, agentID)
	if err != nil {
		return "", time.Time{}, err
	}
	identity := vault.Identity{
		PrincipalID:   agent.ID,
		PrincipalKind: vault.PrincipalAgent,
		TenantID:      agent.TenantID,
	}
	return r.vault.IssueSessionToken(identity, r.agentTokenTTL)
}

// RecordHeartbeat marks an agent alive and active.
func (r *Registry) RecordHeartbeat(ctx context.Context, agentID string) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", agentID).
		Updates(map[string]interface{}{"last_seen": now, "status": models.AgentStatusActive})
	if result.Error != nil {
		return faults.Internal("failed to record heartbeat", result.Error)
	}
	if result.RowsAffected == 0 {
		return faults.NotFound("agent")
	}
	return nil
}

// SweepInactiveAgents suspends agents silent past the heartbeat timeout and
// returns the ids it suspended.
func (r *Registry) SweepInactiveAgents(ctx context.Context) ([]string, error) {
	threshold := time.Now().UTC().Add(-r.heartbeatTimeout)

	var stale []models.Agent
	err := r.db.WithContext(ctx).
		Where("status <> ?", models.AgentStatusSuspended).
		Where("last_seen IS NULL OR last_seen < ?", threshold).
		Find(&stale).Error
	if err != nil {
		return nil, faults.Internal("failed to list stale agents", err)
	}

	suspended := make([]string, 0, len(stale))
	for _, agent := range stale {
		result := r.db.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", agent.ID).
			Update("status", models.AgentStatusSuspended)
		if result.Error != nil {
			return suspended, faults.Internal("failed to suspend agent", result.Error)
		}
		suspended = append(suspended, agent.ID)
		r.log.Info("agent suspended", zap.String("agent_id", agent.ID), zap.String("hostname", agent.Hostname))
	}
	return suspended, nil
}

// TenantExists reports whether the tenant id is known.
func (r *Registry) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", tenantID).Count(&count).Error; err != nil {
		return false, faults.Internal("tenant lookup failed", err)
	}
	return count > 0, nil
}

func (r *Registry) GetAgent(ctx context.Context, agentID string) (*models.Agent, error) {
	var agent models.Agent
	if err := r.db.WithContext(ctx).Where("id = ?", agentID).First(&agent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, faults.NotFound("agent")
		}
		return nil, faults.Internal("agent lookup failed", err)
	}
	return &agent, nil
}

// ListAgents returns every agent registered under a tenant.
func (r *Registry) ListAgents(ctx context.Context, tenantID string) ([]models.Agent, error) {
	var agents []models.Agent
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at").Find(&agents).Error; err != nil {
		return nil, faults.Internal("failed to list agents", err)
	}
	return agents, nil
}

// ListTenants returns all tenants, newest first.
func (r *Registry) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&tenants).Error; err != nil {
		return nil, faults.Internal("failed to list tenants", err)
	}
	return tenants, nil
}

// CountProjects reports the number of projects in the registry; tests use it
// to assert failed creations leave no record behind.
func (r *Registry) CountProjects(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Project{}).Count(&count).Error; err != nil {
		return 0, faults.Internal("failed to count projects", err)
	}
	return count, nil
}

func (r *Registry) requireTenant(ctx context.Context, tenantID string) error {
	ok, err := r.TenantExists(ctx, tenantID)
	if err != nil {
		return err
	}
	if !ok {
		return faults.NotFound("tenant")
	}
	return nil
}

func (r *Registry) lockTenant(tenantID string) func() {
	r.mu.Lock()
	lock, ok := r.locks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[tenantID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
