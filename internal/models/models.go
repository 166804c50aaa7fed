package models

import "time"

type Tool struct {
	ID          int64  `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Agent struct {
	ID          int64  `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Tools       []Tool `json:"tools"`
}

type Execution struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	AgentID   int64     `json:"agent_id"`
	Prompt    string    `json:"prompt"`
	Model     string    `json:"model"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolUpdate carries a partial tool update. Nil fields are left unchanged;
// a non-nil field is applied even when it points at the empty string.
type ToolUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// AgentUpdate carries a partial agent update with the same presence
// semantics as ToolUpdate. A non-nil ToolIDs replaces the agent's tool set;
// an empty slice detaches all tools.
type AgentUpdate struct {
	Name        *string  `json:"name"`
	Role        *string  `json:"role"`
	Description *string  `json:"description"`
	ToolIDs     *[]int64 `json:"tool_ids"`
}
