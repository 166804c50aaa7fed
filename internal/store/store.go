// Package store persists tools, agents, their association, and the
// execution log. All operations are tenant-scoped: an id that exists under a
// different tenant is indistinguishable from one that does not exist.
package store

import (
	"context"

	"github.com/miniagent/agent-platform/internal/models"
)

type ToolFilter struct {
	// Name matches tools by exact name.
	Name string
	// AgentName restricts to tools attached to an agent with this name.
	AgentName string
}

type AgentFilter struct {
	// Name matches agents by exact name.
	Name string
	// ToolName restricts to agents with a tool of this name attached.
	ToolName string
}

type ExecutionFilter struct {
	// AgentID restricts to a single agent when non-nil.
	AgentID *int64
	// Limit and Offset page the result; Limit 0 returns everything.
	Limit  int
	Offset int
}

// Catalog is the tool/agent persistence contract.
//
// CreateAgent and UpdateAgent resolve tool ids within the tenant before
// writing anything; if any id is missing or belongs to another tenant the
// whole operation fails with a validation error and nothing is written.
// DeleteTool fails with a conflict error while any of the tenant's agents
// still references the tool. DeleteAgent removes the agent and its
// association rows; tools and executions are untouched.
type Catalog interface {
	CreateTool(ctx context.Context, tenantID, name, description string) (*models.Tool, error)
	GetTool(ctx context.Context, tenantID string, id int64) (*models.Tool, error)
	ListTools(ctx context.Context, tenantID string, f ToolFilter) ([]models.Tool, error)
	UpdateTool(ctx context.Context, tenantID string, id int64, upd models.ToolUpdate) (*models.Tool, error)
	DeleteTool(ctx context.Context, tenantID string, id int64) error

	CreateAgent(ctx context.Context, tenantID, name, role, description string, toolIDs []int64) (*models.Agent, error)
	GetAgent(ctx context.Context, tenantID string, id int64) (*models.Agent, error)
	ListAgents(ctx context.Context, tenantID string, f AgentFilter) ([]models.Agent, error)
	UpdateAgent(ctx context.Context, tenantID string, id int64, upd models.AgentUpdate) (*models.Agent, error)
	DeleteAgent(ctx context.Context, tenantID string, id int64) error
}

// Executions is the append-only run log. Rows are never updated or deleted.
type Executions interface {
	AppendExecution(ctx context.Context, exec *models.Execution) (*models.Execution, error)
	// ListExecutions returns the tenant's executions ordered by timestamp
	// ascending, insertion order for ties.
	ListExecutions(ctx context.Context, tenantID string, f ExecutionFilter) ([]models.Execution, error)
}
