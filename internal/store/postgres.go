package store

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miniagent/agent-platform/internal/models"
	"github.com/miniagent/agent-platform/internal/platform/errs"
)

// execution.agent_id carries no foreign key: executions are history and may
// outlive their agent.
const schema = `
CREATE TABLE IF NOT EXISTS tool (
    id          BIGSERIAL PRIMARY KEY,
    tenant_id   TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS tool_tenant_idx ON tool (tenant_id);

CREATE TABLE IF NOT EXISTS agent (
    id          BIGSERIAL PRIMARY KEY,
    tenant_id   TEXT NOT NULL,
    name        TEXT NOT NULL,
    role        TEXT NOT NULL,
    description TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS agent_tenant_idx ON agent (tenant_id);

CREATE TABLE IF NOT EXISTS agent_tools (
    agent_id BIGINT NOT NULL REFERENCES agent (id) ON DELETE CASCADE,
    tool_id  BIGINT NOT NULL REFERENCES tool (id),
    PRIMARY KEY (agent_id, tool_id)
);

CREATE TABLE IF NOT EXISTS execution (
    id        BIGSERIAL PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    agent_id  BIGINT NOT NULL,
    prompt    TEXT NOT NULL,
    model     TEXT NOT NULL,
    response  TEXT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS execution_tenant_idx ON execution (tenant_id);
`

// Postgres implements Catalog and Executions on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	pgcfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), pgcfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}

	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return errors.Wrap(err, "ensure schema")
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) CreateTool(ctx context.Context, tenantID, name, description string) (*models.Tool, error) {
	query := `
        INSERT INTO tool (tenant_id, name, description)
        VALUES ($1, $2, $3)
        RETURNING id
    `

	tool := models.Tool{TenantID: tenantID, Name: name, Description: description}
	if err := s.pool.QueryRow(ctx, query, tenantID, name, description).Scan(&tool.ID); err != nil {
		return nil, errors.Wrap(err, "create tool")
	}
	return &tool, nil
}

func (s *Postgres) GetTool(ctx context.Context, tenantID string, id int64) (*models.Tool, error) {
	query := `
        SELECT id, tenant_id, name, description
        FROM tool
        WHERE tenant_id = $1 AND id = $2
    `

	var tool models.Tool
	err := s.pool.QueryRow(ctx, query, tenantID, id).
		Scan(&tool.ID, &tool.TenantID, &tool.Name, &tool.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("Tool not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get tool")
	}
	return &tool, nil
}

func (s *Postgres) ListTools(ctx context.Context, tenantID string, f ToolFilter) ([]models.Tool, error) {
	query := `
        SELECT DISTINCT t.id, t.tenant_id, t.name, t.description
        FROM tool t
    `
	args := []any{tenantID}
	if f.AgentName != "" {
		query += `
        JOIN agent_tools at ON at.tool_id = t.id
        JOIN agent a ON a.id = at.agent_id AND a.tenant_id = t.tenant_id
        `
	}
	query += ` WHERE t.tenant_id = $1`
	if f.AgentName != "" {
		args = append(args, f.AgentName)
		query += fmt.Sprintf(" AND a.name = $%d", len(args))
	}
	if f.Name != "" {
		args = append(args, f.Name)
		query += fmt.Sprintf(" AND t.name = $%d", len(args))
	}
	query += " ORDER BY t.id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list tools")
	}
	defer rows.Close()

	var tools []models.Tool
	for rows.Next() {
		var tool models.Tool
		if err := rows.Scan(&tool.ID, &tool.TenantID, &tool.Name, &tool.Description); err != nil {
			return nil, errors.Wrap(err, "scan tool")
		}
		tools = append(tools, tool)
	}
	return tools, rows.Err()
}

func (s *Postgres) UpdateTool(ctx context.Context, tenantID string, id int64, upd models.ToolUpdate) (*models.Tool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	var tool models.Tool
	err = tx.QueryRow(ctx, `
        SELECT id, tenant_id, name, description
        FROM tool
        WHERE tenant_id = $1 AND id = $2
        FOR UPDATE
    `, tenantID, id).Scan(&tool.ID, &tool.TenantID, &tool.Name, &tool.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("Tool not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get tool")
	}

	if upd.Name != nil {
		tool.Name = *upd.Name
	}
	if upd.Description != nil {
		tool.Description = *upd.Description
	}

	_, err = tx.Exec(ctx, `
        UPDATE tool
        SET name = $1, description = $2
        WHERE tenant_id = $3 AND id = $4
    `, tool.Name, tool.Description, tenantID, id)
	if err != nil {
		return nil, errors.Wrap(err, "update tool")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return &tool, nil
}

func (s *Postgres) DeleteTool(ctx context.Context, tenantID string, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tool WHERE tenant_id = $1 AND id = $2)`,
		tenantID, id).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "check tool")
	}
	if !exists {
		return errs.NotFound("Tool not found")
	}

	var referenced bool
	err = tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1
            FROM agent_tools at
            JOIN agent a ON a.id = at.agent_id
            WHERE at.tool_id = $1 AND a.tenant_id = $2
        )`, id, tenantID).Scan(&referenced)
	if err != nil {
		return errors.Wrap(err, "check tool references")
	}
	if referenced {
		return errs.Conflict("Cannot delete tool, it is used by agent.")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM tool WHERE tenant_id = $1 AND id = $2`, tenantID, id); err != nil {
		return errors.Wrap(err, "delete tool")
	}
	return tx.Commit(ctx)
}

// resolveTools loads the requested tools within the tenant. Any id that is
// missing or belongs to another tenant makes the whole resolution fail.
func resolveTools(ctx context.Context, q pgx.Tx, tenantID string, toolIDs []int64) ([]models.Tool, error) {
	if len(toolIDs) == 0 {
		return nil, nil
	}

	rows, err := q.Query(ctx, `
        SELECT id, tenant_id, name, description
        FROM tool
        WHERE tenant_id = $1 AND id = ANY($2)
        ORDER BY id
    `, tenantID, toolIDs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve tools")
	}
	defer rows.Close()

	var tools []models.Tool
	for rows.Next() {
		var tool models.Tool
		if err := rows.Scan(&tool.ID, &tool.TenantID, &tool.Name, &tool.Description); err != nil {
			return nil, errors.Wrap(err, "scan tool")
		}
		tools = append(tools, tool)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tools) != len(toolIDs) {
		return nil, errs.Validation("One or more tools not found")
	}
	return tools, nil
}

func (s *Postgres) CreateAgent(ctx context.Context, tenantID, name, role, description string, toolIDs []int64) (*models.Agent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	tools, err := resolveTools(ctx, tx, tenantID, toolIDs)
	if err != nil {
		return nil, err
	}

	agent := models.Agent{
		TenantID:    tenantID,
		Name:        name,
		Role:        role,
		Description: description,
		Tools:       tools,
	}
	err = tx.QueryRow(ctx, `
        INSERT INTO agent (tenant_id, name, role, description)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `, tenantID, name, role, description).Scan(&agent.ID)
	if err != nil {
		return nil, errors.Wrap(err, "create agent")
	}

	for _, tool := range tools {
		if _, err := tx.Exec(ctx,
			`INSERT INTO agent_tools (agent_id, tool_id) VALUES ($1, $2)`,
			agent.ID, tool.ID); err != nil {
			return nil, errors.Wrap(err, "attach tool")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return &agent, nil
}

func (s *Postgres) GetAgent(ctx context.Context, tenantID string, id int64) (*models.Agent, error) {
	var agent models.Agent
	err := s.pool.QueryRow(ctx, `
        SELECT id, tenant_id, name, role, description
        FROM agent
        WHERE tenant_id = $1 AND id = $2
    `, tenantID, id).Scan(&agent.ID, &agent.TenantID, &agent.Name, &agent.Role, &agent.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("Agent not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get agent")
	}

	agent.Tools, err = s.agentTools(ctx, agent.ID)
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (s *Postgres) agentTools(ctx context.Context, agentID int64) ([]models.Tool, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT t.id, t.tenant_id, t.name, t.description
        FROM tool t
        JOIN agent_tools at ON at.tool_id = t.id
        WHERE at.agent_id = $1
        ORDER BY t.id
    `, agentID)
	if err != nil {
		return nil, errors.Wrap(err, "load agent tools")
	}
	defer rows.Close()

	var tools []models.Tool
	for rows.Next() {
		var tool models.Tool
		if err := rows.Scan(&tool.ID, &tool.TenantID, &tool.Name, &tool.Description); err != nil {
			return nil, errors.Wrap(err, "scan tool")
		}
		tools = append(tools, tool)
	}
	return tools, rows.Err()
}

func (s *Postgres) ListAgents(ctx context.Context, tenantID string, f AgentFilter) ([]models.Agent, error) {
	query := `
        SELECT DISTINCT a.id, a.tenant_id, a.name, a.role, a.description
        FROM agent a
    `
	args := []any{tenantID}
	if f.ToolName != "" {
		query += `
        JOIN agent_tools at ON at.agent_id = a.id
        JOIN tool t ON t.id = at.tool_id
        `
	}
	query += ` WHERE a.tenant_id = $1`
	if f.ToolName != "" {
		args = append(args, f.ToolName)
		query += fmt.Sprintf(" AND t.name = $%d", len(args))
	}
	if f.Name != "" {
		args = append(args, f.Name)
		query += fmt.Sprintf(" AND a.name = $%d", len(args))
	}
	query += " ORDER BY a.id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list agents")
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var agent models.Agent
		if err := rows.Scan(&agent.ID, &agent.TenantID, &agent.Name, &agent.Role, &agent.Description); err != nil {
			return nil, errors.Wrap(err, "scan agent")
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range agents {
		agents[i].Tools, err = s.agentTools(ctx, agents[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return agents, nil
}

func (s *Postgres) UpdateAgent(ctx context.Context, tenantID string, id int64, upd models.AgentUpdate) (*models.Agent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	var agent models.Agent
	err = tx.QueryRow(ctx, `
        SELECT id, tenant_id, name, role, description
        FROM agent
        WHERE tenant_id = $1 AND id = $2
        FOR UPDATE
    `, tenantID, id).Scan(&agent.ID, &agent.TenantID, &agent.Name, &agent.Role, &agent.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("Agent not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get agent")
	}

	// Validate the tool set before any field is written so an invalid
	// request leaves the agent untouched.
	var tools []models.Tool
	if upd.ToolIDs != nil {
		tools, err = resolveTools(ctx, tx, tenantID, *upd.ToolIDs)
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

	_, err = tx.Exec(ctx, `
        UPDATE agent
        SET name = $1, role = $2, description = $3
        WHERE tenant_id = $4 AND id = $5
    `, agent.Name, agent.Role, agent.Description, tenantID, id)
	if err != nil {
		return nil, errors.Wrap(err, "update agent")
	}

	if upd.ToolIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM agent_tools WHERE agent_id = $1`, id); err != nil {
			return nil, errors.Wrap(err, "detach tools")
		}
		for _, tool := range tools {
			if _, err := tx.Exec(ctx,
				`INSERT INTO agent_tools (agent_id, tool_id) VALUES ($1, $2)`,
				id, tool.ID); err != nil {
				return nil, errors.Wrap(err, "attach tool")
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	if upd.ToolIDs != nil {
		agent.Tools = tools
	} else {
		agent.Tools, err = s.agentTools(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	return &agent, nil
}

func (s *Postgres) DeleteAgent(ctx context.Context, tenantID string, id int64) error {
	// agent_tools rows cascade with the agent row.
	tag, err := s.pool.Exec(ctx, `DELETE FROM agent WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return errors.Wrap(err, "delete agent")
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("Agent not found")
	}
	return nil
}

func (s *Postgres) AppendExecution(ctx context.Context, exec *models.Execution) (*models.Execution, error) {
	err := s.pool.QueryRow(ctx, `
        INSERT INTO execution (tenant_id, agent_id, prompt, model, response, timestamp)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `, exec.TenantID, exec.AgentID, exec.Prompt, exec.Model, exec.Response, exec.Timestamp).Scan(&exec.ID)
	if err != nil {
		return nil, errors.Wrap(err, "append execution")
	}
	return exec, nil
}

func (s *Postgres) ListExecutions(ctx context.Context, tenantID string, f ExecutionFilter) ([]models.Execution, error) {
	query := `
        SELECT id, tenant_id, agent_id, prompt, model, response, timestamp
        FROM execution
        WHERE tenant_id = $1
    `
	args := []any{tenantID}
	if f.AgentID != nil {
		args = append(args, *f.AgentID)
		query += fmt.Sprintf(" AND agent_id = $%d", len(args))
	}
	query += " ORDER BY timestamp, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list executions")
	}
	defer rows.Close()

	var execs []models.Execution
	for rows.Next() {
		var exec models.Execution
		if err := rows.Scan(&exec.ID, &exec.TenantID, &exec.AgentID,
			&exec.Prompt, &exec.Model, &exec.Response, &exec.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan execution")
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}
