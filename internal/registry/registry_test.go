package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Alwanly/service-fleet-control/internal/models"
	"github.com/Alwanly/service-fleet-control/internal/vault"
	"github.com/Alwanly/service-fleet-control/pkg/database"
	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/Alwanly/service-fleet-control/pkg/ident"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"gorm.io/gorm"
)

func newTestRegistry(t *testing.T) (*Registry, *vault.Vault, *gorm.DB) {
	t.Helper()
	db, err := database.NewSQLiteDB("")
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	log, err := logger.NewLoggerFromEnv("registry-test")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	alloc := ident.NewAllocator()
	v := vault.New(db, alloc, log)
	return New(db, alloc, v, log), v, db
}

func TestCreateTenantRejectsEmptyName(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	for _, name := range []string{"", "   "} {
		if _, err := r.CreateTenant(context.Background(), name); !faults.Is(err, faults.KindInvalidArgument) {
			t.Errorf("name %q: expected invalid argument, got %v", name, err)
		}
	}
}

func TestCreateProjectUnknownTenantLeavesNoRecord(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	before, err := r.CountProjects(context.Background())
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}

	_, err = r.CreateProject(context.Background(), "b5d7c7aa-0000-4000-8000-000000000000", "web")
	if !faults.Is(err, faults.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	after, err := r.CountProjects(context.Background())
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if before != after {
		t.Fatalf("expected project count unchanged, %d -> %d", before, after)
	}
}

func TestRegisterAgentRejectsForeignProject(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	tenantA, err := r.CreateTenant(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}
	tenantB, err := r.CreateTenant(ctx, "tenant-b")
	if err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}
	projectB, err := r.CreateProject(ctx, tenantB, "b-project")
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}

	// Project exists but under a different tenant.
	if _, _, err := r.RegisterAgent(ctx, tenantA, projectB, "host-1"); !faults.Is(err, faults.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegisterAgentThenIssueToken(t *testing.T) {
	r, v, _ := newTestRegistry(t)
	ctx := context.Background()

	tenantID, err := r.CreateTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}
	projectID, err := r.CreateProject(ctx, tenantID, "web")
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}
	agentID, secret, err := r.RegisterAgent(ctx, tenantID, projectID, "host-1")
	if err != nil {
		t.Fatalf("register agent failed: %v", err)
	}
	if secret.Value() == "" {
		t.Fatal("expected plaintext api key at registration")
	}

	token, expiresAt, err := r.IssueAgentToken(ctx, agentID)
	if err != nil {
		t.Fatalf("issue agent token failed: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("expected future token expiry")
	}

	identity, err := v.ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	if identity.PrincipalID != agentID || identity.PrincipalKind != vault.PrincipalAgent {
		t.Fatalf("expected token bound to agent %s, got %+v", agentID, identity)
	}
	if identity.TenantID != tenantID {
		t.Fatalf("expected tenant scope %s, got %s", tenantID, identity.TenantID)
	}
}

func TestIssueAgentTokenUnknownAgent(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	_, _, err := r.IssueAgentToken(context.Background(), "f2f2f2f2-0000-4000-8000-000000000000")
	if !faults.Is(err, faults.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentRegistrationsSameTenant(t *testing.T) {
	r, _, db := newTestRegistry(t)
	ctx := context.Background()

	tenantID, err := r.CreateTenant(ctx, "busy")
	if err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}

	const projects = 8
	ids := make([]string, projects)
	for i := range ids {
		id, err := r.CreateProject(ctx, tenantID, "proj")
		if err != nil {
			t.Fatalf("create project failed: %v", err)
		}
		ids[i] = id
	}

	var wg sync.WaitGroup
	errs := make(chan error, projects)
	for _, projectID := range ids {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			if _, _, err := r.RegisterAgent(ctx, tenantID, pid, "host-"+pid[:8]); err != nil {
				errs <- err
			}
		}(projectID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent registration failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.Agent{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != projects {
		t.Fatalf("expected %d agents, got %d", projects, count)
	}

	// Every agent references a project that exists under the same tenant.
	var agents []models.Agent
	if err := db.Where("tenant_id = ?", tenantID).Find(&agents).Error; err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, agent := range agents {
		var project models.Project
		if err := db.Where("id = ?", agent.ProjectID).First(&project).Error; err != nil {
			t.Fatalf("agent %s references missing project %s", agent.ID, agent.ProjectID)
		}
		if project.TenantID != tenantID {
			t.Fatalf("agent %s references project under tenant %s", agent.ID, project.TenantID)
		}
	}
}

func TestSweepSuspendsStaleAgents(t *testing.T) {
	r, _, db := newTestRegistry(t)
	r.WithHeartbeatTimeout(time.Minute)
	ctx := context.Background()

	tenantID, err := r.CreateTenant(ctx, "fleet")
	if err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}
	projectID, err := r.CreateProject(ctx, tenantID, "edge")
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}
	staleID, _, err := r.RegisterAgent(ctx, tenantID, projectID, "stale-host")
	if err != nil {
		t.Fatalf("register agent failed: %v", err)
	}
	freshID, _, err := r.RegisterAgent(ctx, tenantID, projectID, "fresh-host")
	if err != nil {
		t.Fatalf("register agent failed: %v", err)
	}

	old := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(&models.Agent{}).Where("id = ?", staleID).
		Updates(map[string]interface{}{"last_seen": old, "status": models.AgentStatusActive}).Error; err != nil {
		t.Fatalf("failed to backdate agent: %v", err)
	}
	if err := r.RecordHeartbeat(ctx, freshID); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}

	suspended, err := r.SweepInactiveAgents(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(suspended) != 1 || suspended[0] != staleID {
		t.Fatalf("expected only %s suspended, got %v", staleID, suspended)
	}

	fresh, err := r.GetAgent(ctx, freshID)
	if err != nil {
		t.Fatalf("get agent failed: %v", err)
	}
	if fresh.Status != models.AgentStatusActive {
		t.Fatalf("expected fresh agent active, got %s", fresh.Status)
	}
}
