package vault

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Alwanly/service-fleet-control/internal/models"
	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/Alwanly/service-fleet-control/pkg/ident"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	secretByteLength = 32
	prefixLength     = 8
)

// dummyHash keeps the compare cost of the unknown-prefix path identical to
// the known-prefix path so callers cannot tell the two apart by timing.
var dummyHash = func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("vault-timing-pad"), bcrypt.DefaultCost)
	return h
}()

type sessionEntry struct {
	identity  Identity
	issuedAt  time.Time
	expiresAt time.Time
}

// Vault issues and validates api keys and session tokens. API key hashes are
// persisted; session tokens live in memory only for the length of their
// validity window.
type Vault struct {
	db    *gorm.DB
	alloc *ident.Allocator
	log   *logger.CanonicalLogger

	mu       sync.Mutex
	sessions map[string]sessionEntry
}

func New(db *gorm.DB, alloc *ident.Allocator, log *logger.CanonicalLogger) *Vault {
	return &Vault{
		db:       db,
		alloc:    alloc,
		log:      log.Component("vault"),
		sessions: make(map[string]sessionEntry),
	}
}

// IssueAPIKey creates a new api key bound to identity. The returned Secret
// holds the only copy of the plaintext; the store keeps prefix and bcrypt
// hash.
func (v *Vault) IssueAPIKey(ctx context.Context, identity Identity, label string) (*Secret, string, error) {
	return v.createAPIKey(ctx, v.db, identity, label, nil)
}

// RotateAPIKey revokes the key and issues a replacement with the same
// binding. The old record points at its successor.
func (v *Vault) RotateAPIKey(ctx context.Context, keyID string) (*Secret, string, error) {
	var record models.APIKeyRecord
	if err := v.db.WithContext(ctx).Where("id = ?", keyID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", faults.NotFound("api key")
		}
		return nil, "", faults.Internal("api key lookup failed", err)
	}
	if record.Revoked {
		return nil, "", faults.InvalidArgument("api key inactive")
	}

	identity := Identity{
		PrincipalID:   record.PrincipalID,
		PrincipalKind: PrincipalKind(record.PrincipalKind),
		TenantID:      record.TenantID,
	}
	// Replacement creation and old-key revocation commit together so a
	// failure partway through cannot leave both keys valid.
	var secret *Secret
	var newID string
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, id, err := v.createAPIKey(ctx, tx, identity, record.Label, &record.ID)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{"revoked": true, "rotated_to": id}
		if err := tx.Model(&models.APIKeyRecord{}).Where("id = ?", record.ID).Updates(updates).Error; err != nil {
			s.Release()
			return faults.Internal("failed to revoke rotated key", err)
		}
		secret, newID = s, id
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	v.log.Audit("api_key_rotated",
		zap.String("key_id", record.ID),
		zap.String("replacement_id", newID),
		zap.String("tenant_id", record.TenantID),
	)
	return secret, newID, nil
}

// RevokeAPIKey permanently disables a key. Revoked keys fail validation with
// the same uniform error as unknown ones.
func (v *Vault) RevokeAPIKey(ctx context.Context, keyID string) error {
	result := v.db.WithContext(ctx).Model(&models.APIKeyRecord{}).Where("id = ?", keyID).Update("revoked", true)
	if result.Error != nil {
		return faults.Internal("failed to revoke api key", result.Error)
	}
	if result.RowsAffected == 0 {
		return faults.NotFound("api key")
	}
	v.log.Audit("api_key_revoked", zap.String("key_id", keyID))
	return nil
}

// ValidateAPIKey resolves a plaintext api key to its identity. Missing,
// malformed, unknown, and revoked keys all fail with the same error.
func (v *Vault) ValidateAPIKey(ctx context.Context, key string) (Identity, error) {
	prefix, secret, ok := splitAPIKey(key)
	if !ok {
		// Burn the same compare cost as the happy path.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(key))
		v.log.Audit("api_key_rejected", zap.String("reason", "malformed"))
		return Identity{}, faults.Unauthorized()
	}

	var record models.APIKeyRecord
	err := v.db.WithContext(ctx).Where("token_prefix = ?", prefix).First(&record).Error
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		if err != gorm.ErrRecordNotFound {
			return Identity{}, faults.Internal("api key lookup failed", err)
		}
		v.log.Audit("api_key_rejected", zap.String("reason", "unknown_prefix"))
		return Identity{}, faults.Unauthorized()
	}

	compareErr := bcrypt.CompareHashAndPassword([]byte(record.TokenHash), []byte(secret))
	if compareErr != nil || record.Revoked {
		v.log.Audit("api_key_rejected",
			zap.String("key_id", record.ID),
			zap.Bool("revoked", record.Revoked),
		)
		return Identity{}, faults.Unauthorized()
	}

	now := time.Now().UTC()
	if err := v.db.WithContext(ctx).Model(&models.APIKeyRecord{}).Where("id = ?", record.ID).Update("last_used_at", now).Error; err != nil {
		v.log.WithError(err).Error("failed to stamp api key usage")
	}

	return Identity{
		PrincipalID:   record.PrincipalID,
		PrincipalKind: PrincipalKind(record.PrincipalKind),
		TenantID:      record.TenantID,
	}, nil
}

// IssueSessionToken creates a time-bounded opaque token for identity. The
// token is held in memory only; restarting the process invalidates it.
func (v *Vault) IssueSessionToken(identity Identity, ttl time.Duration) (string, time.Time, error) {
	raw := make([]byte, secretByteLength)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, faults.Internal("entropy source unavailable", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	v.mu.Lock()
	v.sessions[digest(token)] = sessionEntry{
		identity:  identity,
		issuedAt:  now,
		expiresAt: expiresAt,
	}
	v.mu.Unlock()

	v.log.Audit("session_token_issued",
		zap.String("principal_id", identity.PrincipalID),
		zap.String("principal_kind", string(identity.PrincipalKind)),
		zap.Time("expires_at", expiresAt),
	)
	return token, expiresAt, nil
}

// ValidateSessionToken resolves a session token, rejecting expired and
// unknown tokens uniformly. Lookup is keyed by the token digest so no
// plaintext comparison happens at all.
func (v *Vault) ValidateSessionToken(token string) (Identity, error) {
	if token == "" {
		return Identity{}, faults.Unauthorized()
	}

	key := digest(token)
	v.mu.Lock()
	entry, ok := v.sessions[key]
	if ok && time.Now().UTC().After(entry.expiresAt) {
		delete(v.sessions, key)
		ok = false
	}
	v.mu.Unlock()

	if !ok {
		v.log.Audit("session_token_rejected")
		return Identity{}, faults.Unauthorized()
	}
	return entry.identity, nil
}

// RevokeSessionToken drops a token before its natural expiry (logout).
func (v *Vault) RevokeSessionToken(token string) {
	v.mu.Lock()
	delete(v.sessions, digest(token))
	v.mu.Unlock()
}

func (v *Vault) createAPIKey(ctx context.Context, db *gorm.DB, identity Identity, label string, rotatedFrom *string) (*Secret, string, error) {
	id, err := v.alloc.Allocate()
	if err != nil {
		return nil, "", err
	}

	raw := make([]byte, secretByteLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", faults.Internal("entropy source unavailable", err)
	}
	secretPart := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secretPart), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", faults.Internal("failed to hash secret", err)
	}

	keyID := id.String()
	prefix := strings.ReplaceAll(keyID, "-", "")[:prefixLength]
	record := models.APIKeyRecord{
		ID:            keyID,
		TenantID:      identity.TenantID,
		PrincipalID:   identity.PrincipalID,
		PrincipalKind: string(identity.PrincipalKind),
		Label:         label,
		TokenPrefix:   prefix,
		TokenHash:     string(hash),
		RotatedFrom:   rotatedFrom,
	}
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, "", faults.Internal("failed to store api key", err)
	}

	v.log.Audit("api_key_issued",
		zap.String("key_id", keyID),
		zap.String("tenant_id", identity.TenantID),
		zap.String("principal_kind", string(identity.PrincipalKind)),
		zap.String("label", label),
	)
	return NewSecret(fmt.Sprintf("%s.%s", prefix, secretPart)), keyID, nil
}

func splitAPIKey(key string) (prefix, secret string, ok bool) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 || len(parts[0]) < 4 || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
