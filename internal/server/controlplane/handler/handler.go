package handler

import (
	"encoding/json"

	"github.com/Alwanly/service-fleet-control/internal/config"
	"github.com/Alwanly/service-fleet-control/internal/models"
	"github.com/Alwanly/service-fleet-control/internal/platform"
	"github.com/Alwanly/service-fleet-control/internal/server/controlplane/dto"
	"github.com/Alwanly/service-fleet-control/internal/telemetry"
	"github.com/Alwanly/service-fleet-control/internal/vault"
	"github.com/Alwanly/service-fleet-control/pkg/deps"
	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"github.com/Alwanly/service-fleet-control/pkg/middleware"
	"github.com/Alwanly/service-fleet-control/pkg/validator"
	"github.com/Alwanly/service-fleet-control/pkg/wrapper"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	Logger     *logger.CanonicalLogger
	Platform   *platform.Platform
	Config     *config.ServerConfig
	Middleware *middleware.AuthMiddleware
}

func NewHandler(d deps.App, p *platform.Platform, cfg *config.ServerConfig) *Handler {
	h := &Handler{
		Logger:     d.Logger,
		Platform:   p,
		Config:     cfg,
		Middleware: d.Middleware,
	}

	// Health check endpoint (no auth required)
	d.Fiber.Get("/health", h.health)

	// Credential exchange (the api key itself is the proof)
	d.Fiber.Post("/authenticate", h.authenticate)

	// Session-authenticated surface
	sessionAuth := middleware.SessionAuth(p.Sessions, d.Logger)
	d.Fiber.Post("/logout", sessionAuth, h.logout)
	d.Fiber.Post("/metrics", sessionAuth, h.sendMetric)
	d.Fiber.Post("/heartbeat", sessionAuth, h.heartbeat)
	d.Fiber.Post("/agents/:id/token", sessionAuth, h.issueAgentToken)

	tasks := d.Fiber.Group("/tasks", sessionAuth)
	tasks.Post("", h.scheduleTask)
	tasks.Get("", h.listTasks)
	tasks.Get(":id", h.getTask)
	tasks.Post(":id/ack", h.acknowledgeTask)
	tasks.Post(":id/fail", h.failTask)

	// Admin-protected management surface
	admin := d.Middleware.BasicAuthAdmin()
	d.Fiber.Post("/tenants", admin, h.createTenant)
	d.Fiber.Get("/tenants", admin, h.listTenants)
	d.Fiber.Put("/tenants/:id", admin, h.renameTenant)
	d.Fiber.Post("/tenants/:id/projects", admin, h.createProject)
	d.Fiber.Post("/agents", admin, h.registerAgent)
	d.Fiber.Get("/agents", admin, h.listAgents)
	d.Fiber.Post("/keys/:id/rotate", admin, h.rotateKey)
	d.Fiber.Delete("/keys/:id", admin, h.revokeKey)
	d.Fiber.Post("/tasks/:id/requeue", admin, h.requeueTask)

	return h
}

// statusFor maps a fault kind to its HTTP status.
func statusFor(err error) int {
	switch faults.KindOf(err) {
	case faults.KindInvalidArgument:
		return fiber.StatusBadRequest
	case faults.KindNotFound:
		return fiber.StatusNotFound
	case faults.KindUnauthorized:
		return fiber.StatusUnauthorized
	case faults.KindConflict:
		return fiber.StatusConflict
	case faults.KindTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	return c.Status(code).JSON(wrapper.ResponseFailed(code, err.Error(), nil))
}

func identityFrom(c *fiber.Ctx) (vault.Identity, error) {
	identity, ok := middleware.IdentityFromCtx(c)
	if !ok {
		return vault.Identity{}, faults.Unauthorized()
	}
	return identity, nil
}

// health godoc
// @Summary     Health check
// @Description Get control plane health status (unauthenticated)
// @Tags        health
// @Produce     json
// @Success     200 {object} map[string]string
// @Router      /health [get]
func (h *Handler) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

// authenticate godoc
// @Summary      Exchange an api key for a session token
// @Description  Validate the supplied api key and return a bearer session token bound to the key's principal
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        request body dto.AuthenticateRequest true "API key"
// @Success      200 {object} dto.AuthenticateResponse "Session established"
// @Failure      400 {object} wrapper.JSONResult "Invalid request body"
// @Failure      401 {object} wrapper.JSONResult "API key rejected"
// @Router       /authenticate [post]
func (h *Handler) authenticate(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "authenticate"))

	req := new(dto.AuthenticateRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, "invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, err.Error(), nil))
	}

	handle, err := h.Platform.Sessions.Authenticate(c.UserContext(), req.APIKey)
	if err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusOK, dto.AuthenticateResponse{
		Token:       handle.Token,
		PrincipalID: handle.Identity.PrincipalID,
		TenantID:    handle.Identity.TenantID,
		ExpiresAt:   handle.ExpiresAt,
	})
	return c.Status(res.Code).JSON(res)
}

// logout godoc
// @Summary      Revoke the current session
// @Tags         sessions
// @Produce      json
// @Param        Authorization header string true "Bearer session token"
// @Success      200 {object} wrapper.JSONResult "Session revoked"
// @Failure      401 {object} wrapper.JSONResult "Unauthorized"
// @Router       /logout [post]
func (h *Handler) logout(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "logout"))

	token, _ := c.Locals(middleware.TokenContextKey).(string)
	h.Platform.Sessions.Logout(token)

	res := wrapper.ResponseSuccess(fiber.StatusOK, "session revoked")
	return c.Status(res.Code).JSON(res)
}

// sendMetric godoc
// @Summary      Report a metric sample
// @Description  Forward one metric observation onto the telemetry bus
// @Tags         telemetry
// @Accept       json
// @Produce      json
// @Param        request body dto.MetricRequest true "Metric sample"
// @Param        Authorization header string true "Bearer session token"
// @Success      202 {object} wrapper.JSONResult "Sample accepted"
// @Failure      400 {object} wrapper.JSONResult "Invalid request body"
// @Failure      401 {object} wrapper.JSONResult "Unauthorized"
// @Router       /metrics [post]
func (h *Handler) sendMetric(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "send_metric"))

	identity, err := identityFrom(c)
	if err != nil {
		return respondError(c, err)
	}

	req := new(dto.MetricRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, "invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, err.Error(), nil))
	}

	sample := telemetry.Sample{
		TenantID:    identity.TenantID,
		PrincipalID: identity.PrincipalID,
		Name:        req.Name,
		Value:       req.Value,
		ReportedAt:  req.ReportedAt,
	}
	if err := h.Platform.Telemetry.Forward(c.UserContext(), sample); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusAccepted, "accepted")
	return c.Status(res.Code).JSON(res)
}

// heartbeat godoc
// @Summary      Agent heartbeat
// @Description  Record liveness for the authenticated agent and mark it active
// @Tags         agents
// @Produce      json
// @Param        Authorization header string true "Bearer agent session token"
// @Success      200 {object} wrapper.JSONResult "Heartbeat recorded"
// @Failure      401 {object} wrapper.JSONResult "Unauthorized"
// @Failure      403 {object} wrapper.JSONResult "Principal is not an agent"
// @Router       /heartbeat [post]
func (h *Handler) heartbeat(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "agent_heartbeat"))

	identity, err := identityFrom(c)
	if err != nil {
		return respondError(c, err)
	}
	if identity.PrincipalKind != vault.PrincipalAgent {
		return c.Status(fiber.StatusForbidden).JSON(wrapper.ResponseFailed(fiber.StatusForbidden, "heartbeat requires an agent principal", nil))
	}

	if err := h.Platform.Registry.RecordHeartbeat(c.UserContext(), identity.PrincipalID); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusOK, "heartbeat recorded")
	return c.Status(res.Code).JSON(res)
}

// issueAgentToken godoc
// @Summary      Issue a short-lived agent token
// @Description  Mint a scoped session token for the given agent, valid for the configured agent token TTL
// @Tags         agents
// @Produce      json
// @Param        id path string true "Agent ID"
// @Param        Authorization header string true "Bearer session token"
// @Success      200 {object} dto.AgentTokenResponse "Token issued"
// @Failure      401 {object} wrapper.JSONResult "Unauthorized"
// @Failure      404 {object} wrapper.JSONResult "Agent not found"
// @Router       /agents/{id}/token [post]
func (h *Handler) issueAgentToken(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "issue_agent_token"))

	identity, err := identityFrom(c)
	if err != nil {
		return respondError(c, err)
	}

	agentID := c.Params("id")
	agent, err := h.Platform.Registry.GetAgent(c.UserContext(), agentID)
	if err != nil {
		return respondError(c, err)
	}
	// A caller only mints tokens for agents of its own tenant.
	if agent.TenantID != identity.TenantID {
		return respondError(c, faults.NotFound("agent"))
	}

	token, expiresAt, err := h.Platform.Registry.IssueAgentToken(c.UserContext(), agentID)
	if err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusOK, dto.AgentTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
	return c.Status(res.Code).JSON(res)
}

// scheduleTask godoc
// @Summary      Schedule a task
// @Description  Validate and enqueue a task for the caller's tenant, dispatching immediately when an agent is eligible
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        request body dto.ScheduleTaskRequest true "Task to schedule"
// @Param        Authorization header string true "Bearer session token"
// @Success      201 {object} dto.ScheduleTaskResponse "Task accepted"
// @Failure      400 {object} wrapper.JSONResult "Invalid kind or payload"
// @Failure      401 {object} wrapper.JSONResult "Unauthorized"
// @Router       /tasks [post]
func (h *Handler) scheduleTask(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "schedule_task"))

	identity, err := identityFrom(c)
	if err != nil {
		return respondError(c, err)
	}

	req := new(dto.ScheduleTaskRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, "invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, err.Error(), nil))
	}

	taskID, err := h.Platform.Scheduler.Schedule(c.UserContext(), identity.TenantID, req.Kind, req.Payload)
	if err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusCreated, dto.ScheduleTaskResponse{TaskID: taskID})
	return c.Status(res.Code).JSON(res)
}

// listTasks godoc
// @Summary      List the caller's tasks
// @Tags         tasks
// @Produce      json
// @Param        Authorization header string true "Bearer session token"
// @Success      200 {object} dto.ListTasksResponse "Tasks for the caller's tenant"
// @Failure      401 {object} wrapper.JSONResult "Unauthorized"
// @Router       /tasks [get]
func (h *Handler) listTasks(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "list_tasks"))

	identity, err := identityFrom(c)
	if err != nil {
		return respondError(c, err)
	}

	tasks, err := h.Platform.Scheduler.ListTasks(c.UserContext(), identity.TenantID)
	if err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	views := make([]dto.TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, taskView(&tasks[i]))
	}
	res := wrapper.ResponseSuccess(fiber.StatusOK, dto.ListTasksResponse{Tasks: views})
	return c.Status(res.Code).JSON(res)
}

// getTask godoc
// @Summary      Get task state
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Param        Authorization header string true "Bearer session token"
// @Success      200 {object} dto.TaskView "Task state"
// @Failure      401 {object} wrapper.JSONResult "Unauthorized"
// @Failure      404 {object} wrapper.JSONResult "Task not found"
// @Router       /tasks/{id} [get]
func (h *Handler) getTask(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "get_task"))

	task, err := h.taskForCaller(c)
	if err != nil {
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusOK, taskView(task))
	return c.Status(res.Code).JSON(res)
}

// acknowledgeTask godoc
// @Summary      Acknowledge task completion
// @Description  Mark a dispatched task as completed by the agent. Duplicate acknowledgments are rejected with a conflict.
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Param        Authorization header string true "Bearer session token"
// @Success      200 {object} wrapper.JSONResult "Task acknowledged"
// @Failure      401 {object} wrapper.JSONResult "Unauthorized"
// @Failure      404 {object} wrapper.JSONResult "Task not found"
// @Failure      409 {object} wrapper.JSONResult "Task is not in the dispatched state"
// @Router       /tasks/{id}/ack [post]
func (h *Handler) acknowledgeTask(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "acknowledge_task"))

	task, err := h.taskForCaller(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Platform.Scheduler.Acknowledge(c.UserContext(), task.ID); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusOK, "task acknowledged")
	return c.Status(res.Code).JSON(res)
}

// failTask godoc
// @Summary      Report task failure
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id path string true "Task ID"
// @Param        request body dto.FailTaskRequest true "Failure reason"
// @Param        Authorization header string true "Bearer session token"
// @Success      200 {object} wrapper.JSONResult "Failure recorded"
// @Failure      401 {object} wrapper.JSONResult "Unauthorized"
// @Failure      404 {object} wrapper.JSONResult "Task not found"
// @Failure      409 {object} wrapper.JSONResult "Task is not in the dispatched state"
// @Router       /tasks/{id}/fail [post]
func (h *Handler) failTask(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "fail_task"))

	task, err := h.taskForCaller(c)
	if err != nil {
		return respondError(c, err)
	}

	req := new(dto.FailTaskRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, "invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, err.Error(), nil))
	}

	if err := h.Platform.Scheduler.MarkFailed(c.UserContext(), task.ID, req.Reason); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusOK, "failure recorded")
	return c.Status(res.Code).JSON(res)
}

// createTenant godoc
// @Summary      Create a tenant
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateTenantRequest true "Tenant details"
// @Success      201 {object} dto.CreateTenantResponse "Tenant created"
// @Failure      400 {object} wrapper.JSONResult "Invalid request body"
// @Router       /tenants [post]
// @Security     BasicAuth
func (h *Handler) createTenant(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "create_tenant"))

	req := new(dto.CreateTenantRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, "invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, err.Error(), nil))
	}

	tenantID, err := h.Platform.Registry.CreateTenant(c.UserContext(), req.Name)
	if err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusCreated, dto.CreateTenantResponse{
		TenantID: tenantID,
		Name:     req.Name,
	})
	return c.Status(res.Code).JSON(res)
}

// listTenants godoc
// @Summary      List tenants
// @Tags         identity
// @Produce      json
// @Success      200 {object} dto.ListTenantsResponse "All tenants"
// @Router       /tenants [get]
// @Security     BasicAuth
func (h *Handler) listTenants(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "list_tenants"))

	tenants, err := h.Platform.Registry.ListTenants(c.UserContext())
	if err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	views := make([]dto.TenantView, 0, len(tenants))
	for _, t := range tenants {
		views = append(views, dto.TenantView{TenantID: t.ID, Name: t.Name})
	}
	res := wrapper.ResponseSuccess(fiber.StatusOK, dto.ListTenantsResponse{Tenants: views})
	return c.Status(res.Code).JSON(res)
}

// renameTenant godoc
// @Summary      Rename a tenant
// @Description  Re-label the tenant. The identifier never changes.
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        id path string true "Tenant ID"
// @Param        request body dto.RenameTenantRequest true "New name"
// @Success      200 {object} wrapper.JSONResult "Tenant renamed"
// @Failure      400 {object} wrapper.JSONResult "Invalid request body"
// @Failure      404 {object} wrapper.JSONResult "Tenant not found"
// @Router       /tenants/{id} [put]
// @Security     BasicAuth
func (h *Handler) renameTenant(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "rename_tenant"))

	req := new(dto.RenameTenantRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, "invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, err.Error(), nil))
	}

	if err := h.Platform.Registry.RenameTenant(c.UserContext(), c.Params("id"), req.Name); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusOK, "tenant renamed")
	return c.Status(res.Code).JSON(res)
}

// createProject godoc
// @Summary      Create a project under a tenant
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        id path string true "Tenant ID"
// @Param        request body dto.CreateProjectRequest true "Project details"
// @Success      201 {object} dto.CreateProjectResponse "Project created"
// @Failure      400 {object} wrapper.JSONResult "Invalid request body"
// @Failure      404 {object} wrapper.JSONResult "Tenant not found"
// @Router       /tenants/{id}/projects [post]
// @Security     BasicAuth
func (h *Handler) createProject(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "create_project"))

	req := new(dto.CreateProjectRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, "invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, err.Error(), nil))
	}

	tenantID := c.Params("id")
	projectID, err := h.Platform.Registry.CreateProject(c.UserContext(), tenantID, req.Name)
	if err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusCreated, dto.CreateProjectResponse{
		ProjectID: projectID,
		TenantID:  tenantID,
		Name:      req.Name,
	})
	return c.Status(res.Code).JSON(res)
}

// registerAgent godoc
// @Summary      Register an agent
// @Description  Create an agent under a project and issue its api key. The key is returned exactly once.
// @Tags         agents
// @Accept       json
// @Produce      json
// @Param        request body dto.RegisterAgentRequest true "Agent registration details"
// @Success      201 {object} dto.RegisterAgentResponse "Agent registered"
// @Failure      400 {object} wrapper.JSONResult "Invalid request body"
// @Failure      404 {object} wrapper.JSONResult "Tenant or project not found"
// @Router       /agents [post]
// @Security     BasicAuth
func (h *Handler) registerAgent(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "register_agent"))

	req := new(dto.RegisterAgentRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, "invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, err.Error(), nil))
	}

	agentID, secret, err := h.Platform.Registry.RegisterAgent(c.UserContext(), req.TenantID, req.ProjectID, req.Hostname)
	if err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}
	apiKey := secret.Value()
	secret.Release()

	res := wrapper.ResponseSuccess(fiber.StatusCreated, dto.RegisterAgentResponse{
		AgentID: agentID,
		APIKey:  apiKey,
	})
	return c.Status(res.Code).JSON(res)
}

// listAgents godoc
// @Summary      List a tenant's agents
// @Tags         agents
// @Produce      json
// @Param        tenant_id query string true "Tenant ID"
// @Success      200 {object} dto.ListAgentsResponse "Agents of the tenant"
// @Failure      400 {object} wrapper.JSONResult "Missing tenant_id"
// @Router       /agents [get]
// @Security     BasicAuth
func (h *Handler) listAgents(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "list_agents"))

	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(wrapper.ResponseFailed(fiber.StatusBadRequest, "tenant_id query parameter required", nil))
	}

	agents, err := h.Platform.Registry.ListAgents(c.UserContext(), tenantID)
	if err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	views := make([]dto.AgentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, dto.AgentView{
			AgentID:   a.ID,
			ProjectID: a.ProjectID,
			TenantID:  a.TenantID,
			Hostname:  a.Hostname,
			Status:    a.Status,
			LastSeen:  a.LastSeen,
		})
	}
	res := wrapper.ResponseSuccess(fiber.StatusOK, dto.ListAgentsResponse{Agents: views})
	return c.Status(res.Code).JSON(res)
}

// rotateKey godoc
// @Summary      Rotate an api key
// @Description  Revoke the key and issue a replacement for the same principal. The new key is returned exactly once.
// @Tags         credentials
// @Produce      json
// @Param        id path string true "Key ID"
// @Success      200 {object} dto.RotateKeyResponse "Replacement key"
// @Failure      404 {object} wrapper.JSONResult "Key not found"
// @Failure      409 {object} wrapper.JSONResult "Key already revoked"
// @Router       /keys/{id}/rotate [post]
// @Security     BasicAuth
func (h *Handler) rotateKey(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "rotate_key"))

	secret, keyID, err := h.Platform.Vault.RotateAPIKey(c.UserContext(), c.Params("id"))
	if err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}
	apiKey := secret.Value()
	secret.Release()

	res := wrapper.ResponseSuccess(fiber.StatusOK, dto.RotateKeyResponse{
		APIKey: apiKey,
		KeyID:  keyID,
	})
	return c.Status(res.Code).JSON(res)
}

// revokeKey godoc
// @Summary      Revoke an api key
// @Tags         credentials
// @Produce      json
// @Param        id path string true "Key ID"
// @Success      200 {object} wrapper.JSONResult "Key revoked"
// @Failure      404 {object} wrapper.JSONResult "Key not found"
// @Router       /keys/{id} [delete]
// @Security     BasicAuth
func (h *Handler) revokeKey(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "revoke_key"))

	if err := h.Platform.Vault.RevokeAPIKey(c.UserContext(), c.Params("id")); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusOK, "key revoked")
	return c.Status(res.Code).JSON(res)
}

// requeueTask godoc
// @Summary      Requeue a failed task
// @Description  Move a failed task back to pending with a fresh attempt budget
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Success      200 {object} wrapper.JSONResult "Task requeued"
// @Failure      404 {object} wrapper.JSONResult "Task not found"
// @Failure      409 {object} wrapper.JSONResult "Task is not in the failed state"
// @Router       /tasks/{id}/requeue [post]
// @Security     BasicAuth
func (h *Handler) requeueTask(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "requeue_task"))

	if err := h.Platform.Scheduler.Requeue(c.UserContext(), c.Params("id")); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respondError(c, err)
	}

	res := wrapper.ResponseSuccess(fiber.StatusOK, "task requeued")
	return c.Status(res.Code).JSON(res)
}

// taskForCaller loads a task and hides it when it belongs to a different
// tenant than the session identity.
func (h *Handler) taskForCaller(c *fiber.Ctx) (*models.Task, error) {
	identity, err := identityFrom(c)
	if err != nil {
		return nil, err
	}
	task, err := h.Platform.Scheduler.GetTask(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if task.TenantID != identity.TenantID {
		return nil, faults.NotFound("task")
	}
	return task, nil
}

func taskView(task *models.Task) dto.TaskView {
	return dto.TaskView{
		TaskID:       task.ID,
		TenantID:     task.TenantID,
		Kind:         task.Kind,
		Payload:      json.RawMessage(task.Payload),
		Status:       task.Status,
		TargetAgent:  task.TargetAgent,
		Attempts:     task.Attempts,
		LastError:    task.LastError,
		ScheduledAt:  task.ScheduledAt,
		DispatchedAt: task.DispatchedAt,
		CompletedAt:  task.CompletedAt,
	}
}
