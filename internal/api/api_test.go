package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniagent/agent-platform/internal/llm"
	"github.com/miniagent/agent-platform/internal/metrics"
	"github.com/miniagent/agent-platform/internal/models"
	"github.com/miniagent/agent-platform/internal/ratelimit"
	"github.com/miniagent/agent-platform/internal/service"
	"github.com/miniagent/agent-platform/internal/store"
	"github.com/miniagent/agent-platform/internal/tenant"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	registry := tenant.NewRegistry([]tenant.Tenant{
		{APIKey: "tenant_a", Name: "tenant_a", RequestLimit: 3, LimitWindow: time.Hour},
		{APIKey: "tenant_b", Name: "tenant_b", RequestLimit: 200, LimitWindow: 24 * time.Hour},
	})

	mem := store.NewMemory()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	m := metrics.New()
	svc := service.New(mem, mem, ratelimit.NewMemoryLimiter(), llm.Mock{}, logger, m)

	srv := httptest.NewServer(NewHandler(svc, registry, logger, m).Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, apiKey string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, buf)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

func TestAuthRejectsUnknownKeys(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, srv, "GET", "/tools", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := doJSON(t, srv, "GET", "/tools", "nope", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var errBody map[string]string
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, "invalid_tenant", errBody["error"])
	assert.Equal(t, "Invalid API key", errBody["detail"])
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, srv, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestToolLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, "POST", "/tools", "tenant_a",
		map[string]string{"name": "web_search", "description": "Searches the web"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tool models.Tool
	require.NoError(t, json.Unmarshal(body, &tool))
	assert.Equal(t, "tenant_a", tool.TenantID)

	resp, _ = doJSON(t, srv, "GET", fmt.Sprintf("/tools/%d", tool.ID), "tenant_a", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Cross-tenant reads see a plain 404.
	resp, body = doJSON(t, srv, "GET", fmt.Sprintf("/tools/%d", tool.ID), "tenant_b", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var errBody map[string]string
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, "not_found", errBody["error"])

	resp, body = doJSON(t, srv, "PUT", fmt.Sprintf("/tools/%d", tool.ID), "tenant_a",
		map[string]string{"name": "search"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &tool))
	assert.Equal(t, "search", tool.Name)
	assert.Equal(t, "Searches the web", tool.Description)

	resp, _ = doJSON(t, srv, "DELETE", fmt.Sprintf("/tools/%d", tool.ID), "tenant_a", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, srv, "GET", "/tools", "tenant_a", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAgentWithToolsAndConflict(t *testing.T) {
	srv := newTestServer(t)

	_, body := doJSON(t, srv, "POST", "/tools", "tenant_a",
		map[string]string{"name": "web_search", "description": "d"})
	var tool models.Tool
	require.NoError(t, json.Unmarshal(body, &tool))

	// A foreign tool id fails validation and creates nothing.
	_, body = doJSON(t, srv, "POST", "/tools", "tenant_b",
		map[string]string{"name": "summarize", "description": "d"})
	var foreign models.Tool
	require.NoError(t, json.Unmarshal(body, &foreign))

	resp, _ := doJSON(t, srv, "POST", "/agents", "tenant_a", map[string]any{
		"name": "Scout", "role": "r", "description": "d",
		"tool_ids": []int64{tool.ID, foreign.ID},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, srv, "POST", "/agents", "tenant_a", map[string]any{
		"name": "Scout", "role": "a research assistant", "description": "d",
		"tool_ids": []int64{tool.ID},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var agent models.Agent
	require.NoError(t, json.Unmarshal(body, &agent))
	require.Len(t, agent.Tools, 1)

	// The referenced tool cannot be deleted.
	resp, body = doJSON(t, srv, "DELETE", fmt.Sprintf("/tools/%d", tool.ID), "tenant_a", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var errBody map[string]string
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, "conflict", errBody["error"])

	// Deleting the agent unblocks the tool.
	resp, _ = doJSON(t, srv, "DELETE", fmt.Sprintf("/agents/%d", agent.ID), "tenant_a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, srv, "DELETE", fmt.Sprintf("/tools/%d", tool.ID), "tenant_a", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunAndRateLimit(t *testing.T) {
	srv := newTestServer(t)

	_, body := doJSON(t, srv, "POST", "/agents", "tenant_a", map[string]any{
		"name": "Scout", "role": "a research assistant", "description": "d",
	})
	var agent models.Agent
	require.NoError(t, json.Unmarshal(body, &agent))

	runPath := fmt.Sprintf("/agents/%d/run", agent.ID)

	// tenant_a's limit is 3.
	for i := 0; i < 3; i++ {
		resp, body := doJSON(t, srv, "POST", runPath, "tenant_a",
			map[string]string{"task": "find papers"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var exec models.Execution
		require.NoError(t, json.Unmarshal(body, &exec))
		assert.Equal(t, "gpt-4o", exec.Model, "model defaults to gpt-4o")
		assert.Contains(t, exec.Response, "[mock-response from gpt-4o]")
	}

	resp, body := doJSON(t, srv, "POST", runPath, "tenant_a",
		map[string]string{"task": "find papers"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	var errBody map[string]string
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, "rate_limited", errBody["error"])
	assert.Equal(t, "Rate limit exceeded", errBody["detail"])
}

func TestRunUnsupportedModel(t *testing.T) {
	srv := newTestServer(t)

	_, body := doJSON(t, srv, "POST", "/agents", "tenant_b", map[string]any{
		"name": "Echo", "role": "r", "description": "d",
	})
	var agent models.Agent
	require.NoError(t, json.Unmarshal(body, &agent))

	resp, _ := doJSON(t, srv, "POST", fmt.Sprintf("/agents/%d/run", agent.ID), "tenant_b",
		map[string]string{"task": "t", "model": "gpt-2"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecutionsPagination(t *testing.T) {
	srv := newTestServer(t)

	_, body := doJSON(t, srv, "POST", "/agents", "tenant_b", map[string]any{
		"name": "Echo", "role": "r", "description": "d",
	})
	var agent models.Agent
	require.NoError(t, json.Unmarshal(body, &agent))

	for i := 0; i < 5; i++ {
		resp, _ := doJSON(t, srv, "POST", fmt.Sprintf("/agents/%d/run", agent.ID), "tenant_b",
			map[string]string{"task": "t"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := doJSON(t, srv, "GET", "/executions?page=1&page_size=2", "tenant_b", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page []models.Execution
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page, 2)

	var union []int64
	for p := 1; p <= 3; p++ {
		_, body := doJSON(t, srv, "GET", fmt.Sprintf("/executions?page=%d&page_size=2", p), "tenant_b", nil)
		var execs []models.Execution
		require.NoError(t, json.Unmarshal(body, &execs))
		for _, e := range execs {
			union = append(union, e.ID)
		}
	}
	assert.Len(t, union, 5)
	for i := 1; i < len(union); i++ {
		assert.Greater(t, union[i], union[i-1], "pages must not overlap or reorder")
	}

	// One of page/page_size alone is invalid.
	resp, _ = doJSON(t, srv, "GET", "/executions?page=1", "tenant_b", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, srv, "GET", "/executions?page=0&page_size=2", "tenant_b", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// tenant_a has no executions.
	resp, _ = doJSON(t, srv, "GET", "/executions", "tenant_a", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
