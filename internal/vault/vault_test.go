package vault

import (
	"context"
	"testing"
	"time"

	"github.com/Alwanly/service-fleet-control/internal/models"
	"github.com/Alwanly/service-fleet-control/pkg/database"
	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/Alwanly/service-fleet-control/pkg/ident"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"gorm.io/gorm"
)

func newTestVault(t *testing.T) (*Vault, *gorm.DB) {
	t.Helper()
	db, err := database.NewSQLiteDB("")
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	log, err := logger.NewLoggerFromEnv("vault-test")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return New(db, ident.NewAllocator(), log), db
}

func testIdentity() Identity {
	return Identity{
		PrincipalID:   "c6a1e362-0000-4000-8000-000000000001",
		PrincipalKind: PrincipalAgent,
		TenantID:      "c6a1e362-0000-4000-8000-000000000002",
	}
}

func TestIssueAndValidateAPIKey(t *testing.T) {
	v, _ := newTestVault(t)
	identity := testIdentity()

	secret, keyID, err := v.IssueAPIKey(context.Background(), identity, "agent:host-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if keyID == "" || secret.Value() == "" {
		t.Fatal("expected key id and plaintext secret")
	}

	resolved, err := v.ValidateAPIKey(context.Background(), secret.Value())
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if resolved != identity {
		t.Fatalf("expected identity %+v, got %+v", identity, resolved)
	}
}

func TestValidateRejectsUniformly(t *testing.T) {
	v, _ := newTestVault(t)

	cases := map[string]string{
		"empty":               "",
		"malformed":           "no-separator-here",
		"well-formed-unknown": "deadbeef.bm90LWEtcmVhbC1zZWNyZXQ",
	}
	for name, key := range cases {
		_, err := v.ValidateAPIKey(context.Background(), key)
		if !faults.Is(err, faults.KindUnauthorized) {
			t.Errorf("%s: expected unauthorized, got %v", name, err)
		}
	}
}

func TestRevokedKeyFailsValidation(t *testing.T) {
	v, _ := newTestVault(t)

	secret, keyID, err := v.IssueAPIKey(context.Background(), testIdentity(), "to-revoke")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := v.RevokeAPIKey(context.Background(), keyID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := v.ValidateAPIKey(context.Background(), secret.Value()); !faults.Is(err, faults.KindUnauthorized) {
		t.Fatalf("expected unauthorized after revocation, got %v", err)
	}
}

func TestRotateAPIKey(t *testing.T) {
	v, db := newTestVault(t)

	oldSecret, oldID, err := v.IssueAPIKey(context.Background(), testIdentity(), "primary")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	newSecret, newID, err := v.RotateAPIKey(context.Background(), oldID)
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}

	if _, err := v.ValidateAPIKey(context.Background(), oldSecret.Value()); !faults.Is(err, faults.KindUnauthorized) {
		t.Fatalf("expected old key rejected, got %v", err)
	}
	if _, err := v.ValidateAPIKey(context.Background(), newSecret.Value()); err != nil {
		t.Fatalf("expected replacement key to validate, got %v", err)
	}

	var old models.APIKeyRecord
	if err := db.Where("id = ?", oldID).First(&old).Error; err != nil {
		t.Fatalf("failed to load rotated record: %v", err)
	}
	if !old.Revoked || old.RotatedTo == nil || *old.RotatedTo != newID {
		t.Fatalf("expected rotated record to be revoked and linked, got %+v", old)
	}
}

func TestRotateKeepsSingleActiveKey(t *testing.T) {
	v, db := newTestVault(t)
	identity := testIdentity()

	_, keyID, err := v.IssueAPIKey(context.Background(), identity, "primary")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// Rotation revokes and replaces in one commit, so the principal holds
	// exactly one usable key no matter how many times it rotates.
	for i := 0; i < 3; i++ {
		_, nextID, err := v.RotateAPIKey(context.Background(), keyID)
		if err != nil {
			t.Fatalf("rotate %d failed: %v", i, err)
		}
		keyID = nextID

		var active int64
		err = db.Model(&models.APIKeyRecord{}).
			Where("principal_id = ? AND revoked = ?", identity.PrincipalID, false).
			Count(&active).Error
		if err != nil {
			t.Fatalf("count active keys: %v", err)
		}
		if active != 1 {
			t.Fatalf("rotation %d left %d active keys, expected 1", i, active)
		}
	}
}

func TestSessionTokenLifecycle(t *testing.T) {
	v, _ := newTestVault(t)
	identity := testIdentity()

	token, expiresAt, err := v.IssueSessionToken(identity, time.Minute)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("expected future expiry")
	}

	resolved, err := v.ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("validate token failed: %v", err)
	}
	if resolved != identity {
		t.Fatalf("expected identity %+v, got %+v", identity, resolved)
	}

	v.RevokeSessionToken(token)
	if _, err := v.ValidateSessionToken(token); !faults.Is(err, faults.KindUnauthorized) {
		t.Fatalf("expected unauthorized after revocation, got %v", err)
	}
}

func TestSessionTokenExpires(t *testing.T) {
	v, _ := newTestVault(t)

	token, _, err := v.IssueSessionToken(testIdentity(), -time.Second)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	if _, err := v.ValidateSessionToken(token); !faults.Is(err, faults.KindUnauthorized) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestSecretRelease(t *testing.T) {
	v, _ := newTestVault(t)

	secret, _, err := v.IssueAPIKey(context.Background(), testIdentity(), "released")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if secret.Value() == "" {
		t.Fatal("expected plaintext before release")
	}
	secret.Release()
	if secret.Value() != "" {
		t.Fatal("expected empty value after release")
	}
	secret.Release() // second release is a no-op
}
