// Package sdk is the embeddable integration surface of the control plane.
// It builds the full service graph in-process and flattens every failure
// onto four Status codes so host applications never handle Go error chains.
package sdk

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Alwanly/service-fleet-control/internal/config"
	"github.com/Alwanly/service-fleet-control/internal/platform"
	"github.com/Alwanly/service-fleet-control/internal/telemetry"
	"github.com/Alwanly/service-fleet-control/internal/vault"
	"github.com/Alwanly/service-fleet-control/pkg/database"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"github.com/Alwanly/service-fleet-control/pkg/pubsub"
	"go.uber.org/zap"
)

// Config carries the host application's settings. An empty DatabasePath
// runs against an in-memory store, which suits tests and ephemeral hosts.
type Config struct {
	APIKey       string
	GatewayURL   string
	DatabasePath string
}

// Client is the process-level handle. All methods are safe for concurrent
// use. Build one with Init and tear it down with Shutdown.
type Client struct {
	cfg       Config
	platform  *platform.Platform
	log       *logger.CanonicalLogger
	opTimeout time.Duration
}

// Init builds the service context. It does not authenticate; call
// Authenticate once the client is up.
func Init(cfg Config) (*Client, Status) {
	log, err := logger.NewLoggerFromEnv("sdk")
	if err != nil {
		return nil, StatusInternal
	}

	db, err := database.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Error("failed to open database")
		return nil, StatusInternal
	}
	if err := database.RunMigrations(db); err != nil {
		log.WithError(err).Error("failed to migrate database")
		return nil, StatusInternal
	}

	srvCfg, err := config.LoadServerConfig()
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		return nil, StatusInternal
	}
	p := platform.New(srvCfg, db, pubsub.NewLoopback(), log)

	log.Info("client initialized", zap.String("gateway_url", cfg.GatewayURL))
	return &Client{
		cfg:       cfg,
		platform:  p,
		log:       log,
		opTimeout: 10 * time.Second,
	}, StatusOK
}

// Authenticate exchanges the configured api key for the server session.
// Repeat calls refresh the session.
func (c *Client) Authenticate() Status {
	ctx, cancel := c.opContext()
	defer cancel()

	if _, err := c.platform.Sessions.AuthenticateAsServer(ctx, c.cfg.APIKey); err != nil {
		c.log.WithError(err).Error("authentication failed")
		return statusOf(err)
	}
	return StatusOK
}

// GetServerSession returns the pinned session token. The caller owns the
// Secret and must Release it.
func (c *Client) GetServerSession() (*vault.Secret, Status) {
	handle, err := c.platform.Sessions.GetServerSession()
	if err != nil {
		c.log.WithError(err).Error("no usable server session")
		return nil, statusOf(err)
	}
	return vault.NewSecret(handle.Token), StatusOK
}

// SendMetric forwards one sample to the telemetry bus. Delivery is
// fire-and-forget; the caller is never blocked on ingestion.
func (c *Client) SendMetric(name string, value float64) Status {
	if name == "" {
		return StatusInvalidArgument
	}
	sample := telemetry.Sample{Name: name, Value: value, ReportedAt: time.Now().UTC()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
		defer cancel()
		if err := c.platform.Telemetry.Forward(ctx, sample); err != nil {
			c.log.WithError(err).Error("metric forward failed", zap.String("metric", name))
		}
	}()
	return StatusOK
}

// CreateTenant provisions a tenant and returns its permanent id.
func (c *Client) CreateTenant(name string) (string, Status) {
	ctx, cancel := c.opContext()
	defer cancel()

	id, err := c.platform.Registry.CreateTenant(ctx, name)
	if err != nil {
		c.log.WithError(err).Error("create tenant failed")
		return "", statusOf(err)
	}
	return id, StatusOK
}

// CreateProject provisions a project under the tenant.
func (c *Client) CreateProject(tenantID, name string) (string, Status) {
	ctx, cancel := c.opContext()
	defer cancel()

	id, err := c.platform.Registry.CreateProject(ctx, tenantID, name)
	if err != nil {
		c.log.WithError(err).Error("create project failed", zap.String("tenant_id", tenantID))
		return "", statusOf(err)
	}
	return id, StatusOK
}

// RegisterAgent enrolls an agent and returns its id with the one-time api
// key. The caller owns the Secret and must Release it.
func (c *Client) RegisterAgent(tenantID, projectID, hostname string) (string, *vault.Secret, Status) {
	ctx, cancel := c.opContext()
	defer cancel()

	agentID, key, err := c.platform.Registry.RegisterAgent(ctx, tenantID, projectID, hostname)
	if err != nil {
		c.log.WithError(err).Error("register agent failed", zap.String("tenant_id", tenantID))
		return "", nil, statusOf(err)
	}
	return agentID, key, StatusOK
}

// IssueAgentToken mints a short-lived scoped token for the agent.
func (c *Client) IssueAgentToken(agentID string) (*vault.Secret, Status) {
	ctx, cancel := c.opContext()
	defer cancel()

	token, _, err := c.platform.Registry.IssueAgentToken(ctx, agentID)
	if err != nil {
		c.log.WithError(err).Error("issue agent token failed", zap.String("agent_id", agentID))
		return nil, statusOf(err)
	}
	return vault.NewSecret(token), StatusOK
}

// ScheduleTask enqueues a task for the tenant and returns its id.
func (c *Client) ScheduleTask(tenantID, kind string, payload []byte) (string, Status) {
	ctx, cancel := c.opContext()
	defer cancel()

	taskID, err := c.platform.Scheduler.Schedule(ctx, tenantID, kind, json.RawMessage(payload))
	if err != nil {
		c.log.WithError(err).Error("schedule task failed", zap.String("tenant_id", tenantID))
		return "", statusOf(err)
	}
	return taskID, StatusOK
}

// Shutdown releases the server session and flushes the logs. The client
// must not be used afterwards.
func (c *Client) Shutdown() Status {
	if handle, err := c.platform.Sessions.GetServerSession(); err == nil {
		c.platform.Sessions.Logout(handle.Token)
	}
	if err := c.platform.Bus.Close(); err != nil {
		c.log.WithError(err).Error("failed to close bus")
	}
	c.log.Sync()
	return StatusOK
}

func (c *Client) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.opTimeout)
}
