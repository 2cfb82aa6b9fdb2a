package sdk

import (
	"context"
	"testing"

	"github.com/Alwanly/service-fleet-control/internal/vault"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, status := Init(Config{
		APIKey:     "",
		GatewayURL: "http://localhost:8080",
	})
	if status != StatusOK {
		t.Fatalf("init failed with status %s", status)
	}
	return client
}

// serverKey provisions a tenant-level api key through the platform so the
// client has a credential to authenticate with.
func serverKey(t *testing.T, client *Client, tenantID string) string {
	t.Helper()
	identity := vault.Identity{
		PrincipalID:   tenantID,
		PrincipalKind: vault.PrincipalTenant,
		TenantID:      tenantID,
	}
	secret, _, err := client.platform.Vault.IssueAPIKey(context.Background(), identity, "server")
	if err != nil {
		t.Fatalf("issue server key: %v", err)
	}
	defer secret.Release()
	return secret.Value()
}

func TestAuthenticateWithBadKeyIsUnauthorized(t *testing.T) {
	client := newTestClient(t)
	defer client.Shutdown()

	if status := client.Authenticate(); status != StatusUnauthorized {
		t.Errorf("expected unauthorized for empty key, got %s", status)
	}
	if _, status := client.GetServerSession(); status != StatusInvalidArgument {
		t.Errorf("expected invalid argument with no session, got %s", status)
	}
}

func TestMissingReferentIsInvalidArgument(t *testing.T) {
	client := newTestClient(t)
	defer client.Shutdown()

	if _, status := client.CreateProject("b5d7c7aa-0000-4000-8000-000000000000", "web"); status != StatusInvalidArgument {
		t.Errorf("expected invalid argument for unknown tenant, got %s", status)
	}
	if _, status := client.IssueAgentToken("b5d7c7aa-0000-4000-8000-000000000001"); status != StatusInvalidArgument {
		t.Errorf("expected invalid argument for unknown agent, got %s", status)
	}
}

func TestEndToEndProvisionAndSchedule(t *testing.T) {
	client := newTestClient(t)
	defer client.Shutdown()

	tenantID, status := client.CreateTenant("acme")
	if status != StatusOK {
		t.Fatalf("create tenant: %s", status)
	}

	client.cfg.APIKey = serverKey(t, client, tenantID)
	if status := client.Authenticate(); status != StatusOK {
		t.Fatalf("authenticate: %s", status)
	}

	session, status := client.GetServerSession()
	if status != StatusOK {
		t.Fatalf("get server session: %s", status)
	}
	if session.Value() == "" {
		t.Fatal("expected a session token")
	}
	session.Release()
	if session.Value() != "" {
		t.Error("released secret still readable")
	}

	projectID, status := client.CreateProject(tenantID, "web")
	if status != StatusOK {
		t.Fatalf("create project: %s", status)
	}

	agentID, key, status := client.RegisterAgent(tenantID, projectID, "host-1")
	if status != StatusOK {
		t.Fatalf("register agent: %s", status)
	}
	if key.Value() == "" {
		t.Fatal("expected a one-time api key")
	}
	key.Release()

	token, status := client.IssueAgentToken(agentID)
	if status != StatusOK {
		t.Fatalf("issue agent token: %s", status)
	}
	token.Release()

	taskID, status := client.ScheduleTask(tenantID, "restart", []byte(`{"service":"api"}`))
	if status != StatusOK {
		t.Fatalf("schedule task: %s", status)
	}
	if taskID == "" {
		t.Fatal("expected a task id")
	}

	if status := client.SendMetric("cpu_percent", 42.5); status != StatusOK {
		t.Errorf("send metric: %s", status)
	}
}
