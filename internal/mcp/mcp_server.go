// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StatusFunc reports the statistics store status.
type StatusFunc func(ctx context.Context) (schema.StoreStatus, error)

// NewMCPServer initializes and configures the callstat MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.StoreManager, status StatusFunc) *server.MCPServer {
	s := server.NewMCPServer(
		"Callstat Statistics Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		status:  status,
	}

	// --- 1. Tool: get_batch_stats ---
	s.AddTool(mcp.NewTool("get_batch_stats",
		mcp.WithDescription("Get the most recent per-batch service call statistics, newest first."),
		mcp.WithString("category", mcp.Description("Equipment category. Defaults to every category."), mcp.Enum(string(schema.CategoryRecyclers), string(schema.CategorySmartSafes))),
		mcp.WithNumber("limit", mcp.Description("Limit the number of rows returned per category.")),
	), h.handleGetBatchStats)

	// --- 2. Tool: get_rollups ---
	s.AddTool(mcp.NewTool("get_rollups",
		mcp.WithDescription("Get committed period aggregates at one rollup level, newest first."),
		mcp.WithString("level", mcp.Description("Rollup level."), mcp.Required(),
			mcp.Enum(string(schema.LevelBatch), string(schema.LevelDaily), string(schema.LevelWeekly), string(schema.LevelMonthly))),
		mcp.WithString("category", mcp.Description("Equipment category. Defaults to every category."), mcp.Enum(string(schema.CategoryRecyclers), string(schema.CategorySmartSafes))),
		mcp.WithNumber("limit", mcp.Description("Limit the number of rows returned per category.")),
	), h.handleGetRollups)

	// --- 3. Tool: get_status ---
	s.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Report statistics store health, schema version and per-category progress."),
	), h.handleGetStatus)

	return s
}

// StartMCPServer starts the callstat MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.StoreManager, status StatusFunc) error {
	s := NewMCPServer(baseCfg, mgr, status)
	return server.ServeStdio(s)
}
