package store

import (
	"context"
	"sort"
	"sync"

	"github.com/miniagent/agent-platform/internal/models"
	"github.com/miniagent/agent-platform/internal/platform/errs"
)

// Memory implements Catalog and Executions in process memory. It mirrors the
// Postgres semantics exactly and backs the test suite and local development.
type Memory struct {
	mu sync.Mutex

	tools      map[int64]models.Tool
	agents     map[int64]models.Agent // Tools field unused here
	agentTools map[int64][]int64      // agent id -> tool ids, sorted
	executions []models.Execution

	nextToolID  int64
	nextAgentID int64
	nextExecID  int64
}

func NewMemory() *Memory {
	return &Memory{
		tools:      make(map[int64]models.Tool),
		agents:     make(map[int64]models.Agent),
		agentTools: make(map[int64][]int64),
	}
}

func (s *Memory) CreateTool(_ context.Context, tenantID, name, description string) (*models.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextToolID++
	tool := models.Tool{ID: s.nextToolID, TenantID: tenantID, Name: name, Description: description}
	s.tools[tool.ID] = tool
	return &tool, nil
}

func (s *Memory) GetTool(_ context.Context, tenantID string, id int64) (*models.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tool, ok := s.tools[id]
	if !ok || tool.TenantID != tenantID {
		return nil, errs.NotFound("Tool not found")
	}
	return &tool, nil
}

func (s *Memory) ListTools(_ context.Context, tenantID string, f ToolFilter) ([]models.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attached := map[int64]bool{}
	if f.AgentName != "" {
		for agentID, toolIDs := range s.agentTools {
			agent := s.agents[agentID]
			if agent.TenantID != tenantID || agent.Name != f.AgentName {
				continue
			}
			for _, id := range toolIDs {
				attached[id] = true
			}
		}
	}

	var tools []models.Tool
	for _, tool := range s.tools {
		if tool.TenantID != tenantID {
			continue
		}
		if f.Name != "" && tool.Name != f.Name {
			continue
		}
		if f.AgentName != "" && !attached[tool.ID] {
			continue
		}
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].ID < tools[j].ID })
	return tools, nil
}

func (s *Memory) UpdateTool(_ context.Context, tenantID string, id int64, upd models.ToolUpdate) (*models.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tool, ok := s.tools[id]
	if !ok || tool.TenantID != tenantID {
		return nil, errs.NotFound("Tool not found")
	}
	if upd.Name != nil {
		tool.Name = *upd.Name
	}
	if upd.Description != nil {
		tool.Description = *upd.Description
	}
	s.tools[id] = tool
	return &tool, nil
}

func (s *Memory) DeleteTool(_ context.Context, tenantID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tool, ok := s.tools[id]
	if !ok || tool.TenantID != tenantID {
		return errs.NotFound("Tool not found")
	}
	for agentID, toolIDs := range s.agentTools {
		if s.agents[agentID].TenantID != tenantID {
			continue
		}
		for _, tid := range toolIDs {
			if tid == id {
				return errs.Conflict("Cannot delete tool, it is used by agent.")
			}
		}
	}
	delete(s.tools, id)
	return nil
}

// resolve returns the tenant's tools for the given ids, or a validation
// error when any id is missing, foreign, or duplicated: the resolved set
// must be exactly as large as the request. Caller holds the lock.
func (s *Memory) resolve(tenantID string, toolIDs []int64) ([]models.Tool, error) {
	seen := make(map[int64]bool, len(toolIDs))
	var tools []models.Tool
	for _, id := range toolIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		tool, ok := s.tools[id]
		if !ok || tool.TenantID != tenantID {
			return nil, errs.Validation("One or more tools not found")
		}
		tools = append(tools, tool)
	}
	if len(tools) != len(toolIDs) {
		return nil, errs.Validation("One or more tools not found")
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].ID < tools[j].ID })
	return tools, nil
}

func (s *Memory) CreateAgent(_ context.Context, tenantID, name, role, description string, toolIDs []int64) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tools, err := s.resolve(tenantID, toolIDs)
	if err != nil {
		return nil, err
	}

	s.nextAgentID++
	agent := models.Agent{ID: s.nextAgentID, TenantID: tenantID, Name: name, Role: role, Description: description}
	s.agents[agent.ID] = agent
	s.agentTools[agent.ID] = idsOf(tools)

	agent.Tools = tools
	return &agent, nil
}

func (s *Memory) GetAgent(_ context.Context, tenantID string, id int64) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok || agent.TenantID != tenantID {
		return nil, errs.NotFound("Agent not found")
	}
	agent.Tools = s.toolsFor(id)
	return &agent, nil
}

func (s *Memory) ListAgents(_ context.Context, tenantID string, f AgentFilter) ([]models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agents []models.Agent
	for _, agent := range s.agents {
		if agent.TenantID != tenantID {
			continue
		}
		if f.Name != "" && agent.Name != f.Name {
			continue
		}
		agent.Tools = s.toolsFor(agent.ID)
		if f.ToolName != "" && !hasTool(agent.Tools, f.ToolName) {
			continue
		}
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents, nil
}

func (s *Memory) UpdateAgent(_ context.Context, tenantID string, id int64, upd models.AgentUpdate) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok || agent.TenantID != tenantID {
		return nil, errs.NotFound("Agent not found")
	}

	// Validate before mutating anything.
	var tools []models.Tool
	if upd.ToolIDs != nil {
		var err error
		tools, err = s.resolve(tenantID, *upd.ToolIDs)
		if err != nil {
			return nil, err
		}
	}

	if upd.Name != nil {
		agent.Name = *upd.Name
	}
	if upd.Role != nil {
		agent.Role = *upd.Role
	}
	if upd.Description != nil {
		agent.Description = *upd.Description
	}
	s.agents[id] = agent

	if upd.ToolIDs != nil {
		s.agentTools[id] = idsOf(tools)
	}
	agent.Tools = s.toolsFor(id)
	return &agent, nil
}

func (s *Memory) DeleteAgent(_ context.Context, tenantID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok || agent.TenantID != tenantID {
		return errs.NotFound("Agent not found")
	}
	delete(s.agents, id)
	delete(s.agentTools, id)
	return nil
}

func (s *Memory) AppendExecution(_ context.Context, exec *models.Execution) (*models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextExecID++
	exec.ID = s.nextExecID
	s.executions = append(s.executions, *exec)
	return exec, nil
}

func (s *Memory) ListExecutions(_ context.Context, tenantID string, f ExecutionFilter) ([]models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var execs []models.Execution
	for _, exec := range s.executions {
		if exec.TenantID != tenantID {
			continue
		}
		if f.AgentID != nil && exec.AgentID != *f.AgentID {
			continue
		}
		execs = append(execs, exec)
	}
	sort.SliceStable(execs, func(i, j int) bool {
		if !execs[i].Timestamp.Equal(execs[j].Timestamp) {
			return execs[i].Timestamp.Before(execs[j].Timestamp)
		}
		return execs[i].ID < execs[j].ID
	})

	if f.Limit > 0 {
		if f.Offset >= len(execs) {
			return nil, nil
		}
		execs = execs[f.Offset:]
		if len(execs) > f.Limit {
			execs = execs[:f.Limit]
		}
	}
	return execs, nil
}

func (s *Memory) toolsFor(agentID int64) []models.Tool {
	var tools []models.Tool
	for _, id := range s.agentTools[agentID] {
		if tool, ok := s.tools[id]; ok {
			tools = append(tools, tool)
		}
	}
	return tools
}

func idsOf(tools []models.Tool) []int64 {
	ids := make([]int64, len(tools))
	for i, tool := range tools {
		ids[i] = tool.ID
	}
	return ids
}

func hasTool(tools []models.Tool, name string) bool {
	for _, tool := range tools {
		if tool.Name == name {
			return true
		}
	}
	return false
}
