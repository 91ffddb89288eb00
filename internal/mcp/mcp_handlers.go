package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.StoreManager
	status  StatusFunc
}

// requestConfig applies the common category and limit arguments to a copy of the base config.
func (h *toolHandler) requestConfig(request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	if c := request.GetString("category", ""); c != "" {
		category, err := schema.ParseCategory(c)
		if err != nil {
			return nil, fmt.Errorf("%w '%s'", err, c)
		}
		cfg.Category = category
	}
	if l := request.GetInt("limit", 0); l != 0 {
		if l < 0 || l > contract.MaxResultLimit {
			return nil, fmt.Errorf("limit must be between 1 and %d", contract.MaxResultLimit)
		}
		cfg.ResultLimit = l
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = contract.DefaultResultLimit
	}
	return cfg, nil
}

func categoriesOf(cfg *contract.Config) []schema.Category {
	if cfg.Category != "" {
		return []schema.Category{cfg.Category}
	}
	return schema.Categories
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetBatchStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	store := h.mgr.GetStatStore()
	if store == nil {
		return mcp.NewToolResultError("statistics store is not initialized"), nil
	}

	result := make(map[schema.Category][]schema.BatchStat)
	for _, category := range categoriesOf(cfg) {
		stats, err := store.RecentStats(ctx, category, cfg.ResultLimit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		result[category] = stats
	}
	return jsonResult(result)
}

func (h *toolHandler) handleGetRollups(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	levelStr := request.GetString("level", "")
	level, err := schema.ParseLevel(levelStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v '%s'", err, levelStr)), nil
	}
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	store := h.mgr.GetRollupStore()
	if store == nil {
		return mcp.NewToolResultError("rollup store is not initialized"), nil
	}

	result := make(map[schema.Category][]schema.PeriodAggregate)
	for _, category := range categoriesOf(cfg) {
		rows, err := store.RecentAggregates(ctx, level, category, cfg.ResultLimit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		result[category] = rows
	}
	return jsonResult(result)
}

func (h *toolHandler) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.status == nil {
		return mcp.NewToolResultError("status is not available"), nil
	}
	status, err := h.status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}
	return jsonResult(status)
}
