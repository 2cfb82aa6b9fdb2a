package session

import (
	"context"
	"sync"
	"time"

	"github.com/Alwanly/service-fleet-control/internal/vault"
	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"go.uber.org/zap"
)

const defaultSessionTTL = time.Hour

// Handle is an authenticated context bound to an identity. The caller holds
// it opaquely; backing state lives in the vault keyed by the token.
type Handle struct {
	Identity  vault.Identity
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the handle's validity window has passed. An
// expired handle behaves exactly like no handle at all.
func (h *Handle) Expired() bool {
	return h == nil || time.Now().UTC().After(h.ExpiresAt)
}

// Manager authenticates callers and tracks the process-level server session
// established at initialization.
type Manager struct {
	vault      *vault.Vault
	log        *logger.CanonicalLogger
	sessionTTL time.Duration

	mu     sync.Mutex
	server *Handle
}

func NewManager(v *vault.Vault, log *logger.CanonicalLogger) *Manager {
	return &Manager{
		vault:      v,
		log:        log.Component("session"),
		sessionTTL: defaultSessionTTL,
	}
}

func (m *Manager) WithSessionTTL(ttl time.Duration) *Manager {
	m.sessionTTL = ttl
	return m
}

// Authenticate validates an api key and returns a fresh session handle. Any
// failure surfaces as the same unauthorized error so callers cannot probe
// whether the key format or the key value was wrong.
func (m *Manager) Authenticate(ctx context.Context, apiKey string) (*Handle, error) {
	identity, err := m.vault.ValidateAPIKey(ctx, apiKey)
	if err != nil {
		if faults.Is(err, faults.KindUnauthorized) {
			return nil, faults.Unauthorized()
		}
		return nil, err
	}

	token, expiresAt, err := m.vault.IssueSessionToken(identity, m.sessionTTL)
	if err != nil {
		return nil, err
	}

	handle := &Handle{
		Identity:  identity,
		Token:     token,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	m.log.Info("session established",
		zap.String("principal_id", identity.PrincipalID),
		zap.String("principal_kind", string(identity.PrincipalKind)),
	)
	return handle, nil
}

// AuthenticateAsServer authenticates and pins the result as the
// process-level session returned by GetServerSession.
func (m *Manager) AuthenticateAsServer(ctx context.Context, apiKey string) (*Handle, error) {
	handle, err := m.Authenticate(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.server = handle
	m.mu.Unlock()
	return handle, nil
}

// GetServerSession returns the process-level session. It fails when no
// successful authentication happened or the session has expired; an expired
// session is dropped so the caller must re-authenticate.
func (m *Manager) GetServerSession() (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server == nil {
		return nil, faults.InvalidArgument("no server session established")
	}
	if m.server.Expired() {
		m.vault.RevokeSessionToken(m.server.Token)
		m.server = nil
		return nil, faults.InvalidArgument("server session expired")
	}
	return m.server, nil
}

// Validate resolves a session token back to its identity.
func (m *Manager) Validate(token string) (vault.Identity, error) {
	return m.vault.ValidateSessionToken(token)
}

// Logout revokes a session token. Revoking the server session clears it.
func (m *Manager) Logout(token string) {
	m.vault.RevokeSessionToken(token)
	m.mu.Lock()
	if m.server != nil && m.server.Token == token {
		m.server = nil
	}
	m.mu.Unlock()
	m.log.Info("session revoked")
}
