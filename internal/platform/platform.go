package platform

import (
	"github.com/Alwanly/service-fleet-control/internal/config"
	"github.com/Alwanly/service-fleet-control/internal/registry"
	"github.com/Alwanly/service-fleet-control/internal/scheduler"
	"github.com/Alwanly/service-fleet-control/internal/session"
	"github.com/Alwanly/service-fleet-control/internal/telemetry"
	"github.com/Alwanly/service-fleet-control/internal/vault"
	"github.com/Alwanly/service-fleet-control/pkg/ident"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"github.com/Alwanly/service-fleet-control/pkg/pubsub"
	"github.com/Alwanly/service-fleet-control/pkg/retry"
	"gorm.io/gorm"
)

// Platform bundles the long-lived services behind the HTTP surface. One
// Platform is built at startup and shared by every handler.
type Platform struct {
	Alloc     *ident.Allocator
	Vault     *vault.Vault
	Registry  *registry.Registry
	Sessions  *session.Manager
	Scheduler *scheduler.Scheduler
	Telemetry *telemetry.Forwarder
	Bus       pubsub.PubSub
}

// New wires the service graph. When no pub/sub backend is configured the
// loopback bus keeps dispatch and telemetry working in-process.
func New(cfg *config.ServerConfig, db *gorm.DB, bus pubsub.PubSub, log *logger.CanonicalLogger) *Platform {
	if bus == nil {
		bus = pubsub.NewLoopback()
	}

	alloc := ident.NewAllocator()
	v := vault.New(db, alloc, log)

	reg := registry.New(db, alloc, v, log).
		WithAgentTokenTTL(cfg.AgentTokenTTL).
		WithHeartbeatTimeout(cfg.HeartbeatTimeout)

	sessions := session.NewManager(v, log).WithSessionTTL(cfg.SessionTTL)

	sched := scheduler.New(db, alloc, reg, scheduler.NewPubSubDispatcher(bus), log).
		WithRetryConfig(retry.Config{
			MaxRetries:     cfg.DispatchMaxRetries,
			InitialBackoff: cfg.DispatchInitialBackoff,
			MaxBackoff:     cfg.DispatchMaxBackoff,
			Multiplier:     cfg.DispatchBackoffMultiplier,
			Jitter:         true,
		})

	return &Platform{
		Alloc:     alloc,
		Vault:     v,
		Registry:  reg,
		Sessions:  sessions,
		Scheduler: sched,
		Telemetry: telemetry.NewForwarder(bus, log),
		Bus:       bus,
	}
}
