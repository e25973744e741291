// ABOUTME: Registers the Wazuh tools with an MCP registry.
// ABOUTME: Handlers open one manager session per call and render results as text.

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/wazuh-mcp/internal/mcp"
	"github.com/2389/wazuh-mcp/internal/wazuh"
)

const (
	componentManager = "Wazuh Manager"
	componentIndexer = "Wazuh Indexer"

	defaultListLimit = 300
	defaultLogLimit  = 100
)

// Instructions is sent to clients in the initialize response.
const Instructions = `This server exposes read-only views of a Wazuh SIEM deployment.
Use get_wazuh_agents to discover agent IDs before calling the per-agent tools
(processes, ports, vulnerabilities, log collector statistics). Agent IDs may be
given as "1", "001" or "agent/001". Alerts come from the Wazuh Indexer; everything
else comes from the Wazuh Manager API.`

// Deps are the backends the tools talk to. Indexer may be nil, in which case
// the alert tool reports that the indexer is not configured.
type Deps struct {
	Manager *wazuh.Client
	Indexer *wazuh.IndexerClient
	Logger  *slog.Logger
}

type toolset struct {
	manager *wazuh.Client
	indexer *wazuh.IndexerClient
	logger  *slog.Logger
}

// Register adds every Wazuh tool to reg.
func Register(reg *mcp.Registry, deps Deps) error {
	if deps.Manager == nil {
		return errors.New("tools: manager client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &toolset{manager: deps.Manager, indexer: deps.Indexer, logger: logger}

	registrations := []func(*mcp.Registry) error{
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_agents",
				"List Wazuh agents with their status, addresses, operating system and group membership.",
				t.getAgents)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_alert_summary",
				"Retrieve the most recent security alerts from the Wazuh Indexer.",
				t.getAlertSummary)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_rules_summary",
				"Summarize Wazuh detection rules with levels, groups, compliance mappings and MITRE ATT&CK techniques.",
				t.getRulesSummary)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_vulnerability_summary",
				"Summarize vulnerabilities detected on a specific agent.",
				t.getVulnerabilitySummary)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_critical_vulnerabilities",
				"List only the critical vulnerabilities detected on a specific agent.",
				t.getCriticalVulnerabilities)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_agent_processes",
				"List the running processes syscollector reports for an agent.",
				t.getAgentProcesses)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_agent_ports",
				"List the open network ports syscollector reports for an agent.",
				t.getAgentPorts)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "search_wazuh_manager_logs",
				"Search the Wazuh manager's own log by level, tag or text.",
				t.searchManagerLogs)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_manager_error_logs",
				"Retrieve recent error entries from the Wazuh manager log.",
				t.getManagerErrorLogs)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_log_collector_stats",
				"Show log collector statistics for an agent.",
				t.getLogCollectorStats)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_remoted_stats",
				"Show statistics of the manager's remoted daemon, which receives agent events.",
				t.getRemotedStats)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_weekly_stats",
				"Show the manager's weekly statistics by day and hour.",
				t.getWeeklyStats)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_cluster_health",
				"Check whether the Wazuh cluster is enabled, running and has connected nodes.",
				t.getClusterHealth)
		},
		func(r *mcp.Registry) error {
			return mcp.AddTool(r, "get_wazuh_cluster_nodes",
				"List the nodes of the Wazuh cluster.",
				t.getClusterNodes)
		},
	}

	for _, register := range registrations {
		if err := register(reg); err != nil {
			return err
		}
	}
	return nil
}

// apiFailure converts a backend error into a tool result. Cancellation and
// deadline errors are returned as-is so the server reports them as timeouts.
func apiFailure(action, component string, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return mcp.ErrorResult(fmt.Sprintf("Error %s from %s: %v", action, component, err)), nil
}

// noneFound is the success result for an empty listing.
func noneFound(thing string) *mcp.CallToolResult {
	return mcp.TextResult(fmt.Sprintf("No %s found.", thing))
}

// invalidAgentID is the error result for an agent id FormatAgentID rejected.
func invalidAgentID(err error) *mcp.CallToolResult {
	return mcp.ErrorResult(fmt.Sprintf("Invalid agent ID format: %v", err))
}

// limitOr dereferences an optional limit, falling back to def.
func limitOr(limit *int, def int) int {
	if limit == nil || *limit <= 0 {
		return def
	}
	return *limit
}

func intOr(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

func stringOr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
