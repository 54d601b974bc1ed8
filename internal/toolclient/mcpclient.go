package toolclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolNames are the five MCP tools this client expects the connected server
// to expose: one each for the auditor, DOM extractor and resolver, and two
// for the cortex client.
const (
	toolAuditCandidates = "audit_candidates"
	toolRescueFields    = "rescue_fields"
	toolResolve         = "resolve"
	toolRoutePlan       = "cortex_route_plan"
	toolRunPass         = "cortex_run_pass"
)

// MCPClient implements EvidenceAuditor, DOMExtractor, ReasoningResolver, and
// CortexClient by calling named tools on a connected MCP server. It is the
// one place in this package that knows these are MCP tool calls; everywhere
// else in the Orchestrator only the four interfaces above are visible.
type MCPClient struct {
	conn *client.Client
}

// NewMCPClient wraps an already-initialized MCP client connection (stdio,
// SSE, or streamable-HTTP — transport choice belongs to the caller, since
// it depends on deployment, not on this package).
func NewMCPClient(conn *client.Client) *MCPClient {
	return &MCPClient{conn: conn}
}

func (c *MCPClient) callTool(ctx context.Context, name string, args map[string]any, out any) error {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.conn.CallTool(ctx, req)
	if err != nil {
		return fmt.Errorf("toolclient: call %s: %w", name, err)
	}
	if res.IsError {
		return fmt.Errorf("toolclient: %s returned a tool error", name)
	}
	for _, content := range res.Content {
		tc, ok := content.(mcp.TextContent)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(tc.Text), out); err != nil {
			return fmt.Errorf("toolclient: decode %s response: %w", name, err)
		}
		return nil
	}
	return fmt.Errorf("toolclient: %s returned no decodable content", name)
}

// AuditCandidates implements EvidenceAuditor.
func (c *MCPClient) AuditCandidates(ctx context.Context, category, productID string, fieldKeys []string) ([]AuditVerdict, error) {
	var out struct {
		Verdicts []AuditVerdict `json:"verdicts"`
	}
	err := c.callTool(ctx, toolAuditCandidates, map[string]any{
		"category": category, "product_id": productID, "field_keys": fieldKeys,
	}, &out)
	return out.Verdicts, err
}

// RescueFields implements DOMExtractor.
func (c *MCPClient) RescueFields(ctx context.Context, category, productID string, fieldKeys []string) ([]RescuedField, error) {
	var out struct {
		Fields []RescuedField `json:"fields"`
	}
	err := c.callTool(ctx, toolRescueFields, map[string]any{
		"category": category, "product_id": productID, "field_keys": fieldKeys,
	}, &out)
	return out.Fields, err
}

// Resolve implements ReasoningResolver.
func (c *MCPClient) Resolve(ctx context.Context, category, productID string, fieldKeys []string) ([]Resolution, error) {
	var out struct {
		Resolutions []Resolution `json:"resolutions"`
	}
	err := c.callTool(ctx, toolResolve, map[string]any{
		"category": category, "product_id": productID, "field_keys": fieldKeys,
	}, &out)
	return out.Resolutions, err
}

// RoutePlan implements CortexClient.
func (c *MCPClient) RoutePlan(ctx context.Context, candidates []DeepTask, maxTasks int) (RoutePlan, error) {
	var out RoutePlan
	err := c.callTool(ctx, toolRoutePlan, map[string]any{
		"candidates": candidates, "max_tasks": maxTasks,
	}, &out)
	return out, err
}

// RunPass implements CortexClient.
func (c *MCPClient) RunPass(ctx context.Context, plan RoutePlan) ([]RunResult, error) {
	var out struct {
		Results []RunResult `json:"results"`
	}
	err := c.callTool(ctx, toolRunPass, map[string]any{"plan": plan}, &out)
	return out.Results, err
}
