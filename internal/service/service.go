// Package service implements the platform's core operations on top of the
// catalog store, the rate limiter, and the mocked model backend.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/miniagent/agent-platform/internal/llm"
	"github.com/miniagent/agent-platform/internal/metrics"
	"github.com/miniagent/agent-platform/internal/models"
	"github.com/miniagent/agent-platform/internal/platform/errs"
	"github.com/miniagent/agent-platform/internal/ratelimit"
	"github.com/miniagent/agent-platform/internal/store"
	"github.com/miniagent/agent-platform/internal/tenant"
)

type Service struct {
	catalog    store.Catalog
	executions store.Executions
	limiter    ratelimit.Limiter
	caller     llm.Caller
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func New(catalog store.Catalog, executions store.Executions, limiter ratelimit.Limiter,
	caller llm.Caller, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		catalog:    catalog,
		executions: executions,
		limiter:    limiter,
		caller:     caller,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

func (s *Service) CreateTool(ctx context.Context, t tenant.Tenant, name, description string) (*models.Tool, error) {
	if name == "" {
		return nil, errs.Validation("Tool name is required")
	}
	tool, err := s.catalog.CreateTool(ctx, t.Name, name, description)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "tool created", "tenant", t.Name, "tool_id", tool.ID)
	return tool, nil
}

func (s *Service) GetTool(ctx context.Context, t tenant.Tenant, id int64) (*models.Tool, error) {
	return s.catalog.GetTool(ctx, t.Name, id)
}

func (s *Service) ListTools(ctx context.Context, t tenant.Tenant, f store.ToolFilter) ([]models.Tool, error) {
	tools, err := s.catalog.ListTools(ctx, t.Name, f)
	if err != nil {
		return nil, err
	}
	if len(tools) == 0 {
		return nil, errs.NotFound("Tools not found")
	}
	return tools, nil
}

func (s *Service) UpdateTool(ctx context.Context, t tenant.Tenant, id int64, upd models.ToolUpdate) (*models.Tool, error) {
	return s.catalog.UpdateTool(ctx, t.Name, id, upd)
}

func (s *Service) DeleteTool(ctx context.Context, t tenant.Tenant, id int64) error {
	if err := s.catalog.DeleteTool(ctx, t.Name, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "tool deleted", "tenant", t.Name, "tool_id", id)
	return nil
}

func (s *Service) CreateAgent(ctx context.Context, t tenant.Tenant, name, role, description string, toolIDs []int64) (*models.Agent, error) {
	if name == "" || role == "" {
		return nil, errs.Validation("Agent name and role are required")
	}
	agent, err := s.catalog.CreateAgent(ctx, t.Name, name, role, description, toolIDs)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "agent created", "tenant", t.Name, "agent_id", agent.ID, "tools", len(agent.Tools))
	return agent, nil
}

func (s *Service) GetAgent(ctx context.Context, t tenant.Tenant, id int64) (*models.Agent, error) {
	return s.catalog.GetAgent(ctx, t.Name, id)
}

func (s *Service) ListAgents(ctx context.Context, t tenant.Tenant, f store.AgentFilter) ([]models.Agent, error) {
	agents, err := s.catalog.ListAgents(ctx, t.Name, f)
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, errs.NotFound("Agents not found")
	}
	return agents, nil
}

func (s *Service) UpdateAgent(ctx context.Context, t tenant.Tenant, id int64, upd models.AgentUpdate) (*models.Agent, error) {
	return s.catalog.UpdateAgent(ctx, t.Name, id, upd)
}

func (s *Service) DeleteAgent(ctx context.Context, t tenant.Tenant, id int64) error {
	if err := s.catalog.DeleteAgent(ctx, t.Name, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "agent deleted", "tenant", t.Name, "agent_id", id)
	return nil
}

// RunAgent admits the request against the tenant's quota, resolves the
// agent, validates the model, calls the mocked backend, and records the
// execution. The quota is consumed before model validation, so a request
// with an unsupported model still counts against the window.
func (s *Service) RunAgent(ctx context.Context, t tenant.Tenant, agentID int64, task, model string) (*models.Execution, error) {
	admitted, err := s.limiter.Allow(ctx, t)
	if err != nil {
		return nil, err
	}
	if !admitted {
		s.metrics.RateLimitRejected(t.Name)
		s.logger.WarnContext(ctx, "rate limit exceeded", "tenant", t.Name)
		return nil, errs.RateLimited("Rate limit exceeded")
	}

	agent, err := s.catalog.GetAgent(ctx, t.Name, agentID)
	if err != nil {
		return nil, err
	}

	if !llm.IsSupported(model) {
		return nil, errs.Validation("Request model not supported")
	}

	prompt := llm.BuildPrompt(agent, task)
	response := s.caller.Call(prompt, model)

	exec, err := s.executions.AppendExecution(ctx, &models.Execution{
		TenantID:  t.Name,
		AgentID:   agentID,
		Prompt:    prompt,
		Model:     model,
		Response:  response,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ExecutionRecorded(model)
	s.logger.InfoContext(ctx, "agent run recorded",
		"tenant", t.Name, "agent_id", agentID, "model", model, "execution_id", exec.ID)
	return exec, nil
}

// ListExecutions pages the tenant's execution log. Page and pageSize must be
// supplied together and both be at least 1; with neither set the full
// filtered list is returned.
func (s *Service) ListExecutions(ctx context.Context, t tenant.Tenant, agentID *int64, page, pageSize *int) ([]models.Execution, error) {
	if (page == nil) != (pageSize == nil) {
		return nil, errs.Validation("page and page_size must be provided together")
	}

	f := store.ExecutionFilter{AgentID: agentID}
	if page != nil {
		if *page < 1 || *pageSize < 1 {
			return nil, errs.Validation("page and page_size must be at least 1")
		}
		f.Limit = *pageSize
		f.Offset = (*page - 1) * *pageSize
	}

	execs, err := s.executions.ListExecutions(ctx, t.Name, f)
	if err != nil {
		return nil, err
	}
	if len(execs) == 0 {
		return nil, errs.NotFound("Executions not found")
	}
	return execs, nil
}
