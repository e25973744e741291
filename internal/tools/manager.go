// ABOUTME: Manager-wide tools: rules, manager logs, daemon statistics, and cluster state.
// ABOUTME: Cluster health degrades to an unhealthy report instead of failing the call.

package tools

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/wazuh-mcp/internal/mcp"
	"github.com/2389/wazuh-mcp/internal/wazuh"
)

// RulesParams are the arguments of get_wazuh_rules_summary.
type RulesParams struct {
	Limit    *int    `json:"limit" desc:"Maximum number of rules to return (default 300)"`
	Level    *int    `json:"level" desc:"Filter by rule level (0-15)"`
	Group    *string `json:"group" desc:"Filter by rule group, for example sshd or web"`
	Filename *string `json:"filename" desc:"Filter by rule file name"`
}

func (t *toolset) getRulesSummary(ctx context.Context, p RulesParams) (*mcp.CallToolResult, error) {
	var rules []wazuh.Rule
	err := t.manager.Do(ctx, func(s *wazuh.Session) error {
		var err error
		rules, err = s.Rules(ctx, wazuh.RuleQuery{
			Limit:    limitOr(p.Limit, defaultListLimit),
			Level:    intOr(p.Level),
			Group:    stringOr(p.Group),
			Filename: stringOr(p.Filename),
		})
		return err
	})
	if err != nil {
		return apiFailure("retrieving rules", componentManager, err)
	}
	if len(rules) == 0 {
		return noneFound("Wazuh rules matching the criteria"), nil
	}

	texts := make([]string, 0, len(rules))
	for _, rule := range rules {
		texts = append(texts, formatRule(rule))
	}
	return mcp.TextResult(texts...), nil
}

func formatRule(r wazuh.Rule) string {
	lines := []string{
		"Rule ID: " + strconv.Itoa(r.ID),
		"Level: " + LevelIndicator(r.Level),
		"Description: " + orNA(r.Description),
	}
	if len(r.Groups) > 0 {
		lines = append(lines, "Groups: "+strings.Join(r.Groups, ", "))
	}
	if r.Filename != "" {
		lines = append(lines, "Filename: "+r.Filename)
	}

	var compliance []string
	for _, c := range []struct {
		name   string
		values wazuh.StringList
	}{
		{"PCI DSS", r.PCIDSS},
		{"GDPR", r.GDPR},
		{"HIPAA", r.HIPAA},
		{"NIST 800-53", r.NIST80053},
	} {
		if len(c.values) > 0 {
			compliance = append(compliance, c.name+": "+c.values.Join(", "))
		}
	}
	if len(compliance) > 0 {
		lines = append(lines, "Compliance: "+strings.Join(compliance, "; "))
	}

	if !r.Mitre.Empty() {
		var mitre []string
		if len(r.Mitre.ID) > 0 {
			mitre = append(mitre, "ID: "+r.Mitre.ID.Join(", "))
		}
		if len(r.Mitre.Tactic) > 0 {
			mitre = append(mitre, "Tactic: "+r.Mitre.Tactic.Join(", "))
		}
		if len(r.Mitre.Technique) > 0 {
			mitre = append(mitre, "Technique: "+r.Mitre.Technique.Join(", "))
		}
		lines = append(lines, "MITRE ATT&CK: "+strings.Join(mitre, "; "))
	}
	if r.Status != "" {
		lines = append(lines, "Status: "+StatusIndicator(r.Status))
	}
	return strings.Join(lines, "\n")
}

// ManagerLogsParams are the arguments of search_wazuh_manager_logs.
type ManagerLogsParams struct {
	Limit      *int    `json:"limit" desc:"Maximum number of log entries to return (default 100)"`
	Offset     *int    `json:"offset" desc:"Number of entries to skip"`
	Level      *string `json:"level" desc:"Filter by level: error, warning, info or debug"`
	Tag        *string `json:"tag" desc:"Filter by daemon tag, for example wazuh-modulesd"`
	SearchTerm *string `json:"search_term" desc:"Text to search for in log descriptions"`
}

func (t *toolset) searchManagerLogs(ctx context.Context, p ManagerLogsParams) (*mcp.CallToolResult, error) {
	logs, err := t.managerLogs(ctx, wazuh.LogQuery{
		Limit:  limitOr(p.Limit, defaultLogLimit),
		Offset: intOr(p.Offset),
		Level:  stringOr(p.Level),
		Tag:    stringOr(p.Tag),
		Search: stringOr(p.SearchTerm),
	})
	if err != nil {
		return apiFailure("searching manager logs", componentManager, err)
	}
	if len(logs) == 0 {
		return noneFound("manager logs matching the criteria"), nil
	}
	return formatLogs(logs), nil
}

// ErrorLogsParams are the arguments of get_wazuh_manager_error_logs.
type ErrorLogsParams struct {
	Limit *int `json:"limit" desc:"Maximum number of error entries to return (default 100)"`
}

func (t *toolset) getManagerErrorLogs(ctx context.Context, p ErrorLogsParams) (*mcp.CallToolResult, error) {
	logs, err := t.managerLogs(ctx, wazuh.LogQuery{
		Limit: limitOr(p.Limit, defaultLogLimit),
		Level: "error",
	})
	if err != nil {
		return apiFailure("retrieving manager error logs", componentManager, err)
	}
	if len(logs) == 0 {
		return noneFound("manager error logs"), nil
	}
	return formatLogs(logs), nil
}

func (t *toolset) managerLogs(ctx context.Context, q wazuh.LogQuery) ([]wazuh.LogEntry, error) {
	var logs []wazuh.LogEntry
	err := t.manager.Do(ctx, func(s *wazuh.Session) error {
		var err error
		logs, err = s.ManagerLogs(ctx, q)
		return err
	})
	return logs, err
}

func formatLogs(logs []wazuh.LogEntry) *mcp.CallToolResult {
	texts := make([]string, 0, len(logs))
	for _, entry := range logs {
		texts = append(texts, strings.Join([]string{
			"Timestamp: " + FormatTimestamp(entry.Timestamp),
			"Tag: " + orNA(entry.Tag),
			"Level: " + LogLevelIndicator(entry.Level),
			"Description: " + orNA(entry.Description),
		}, "\n"))
	}
	return mcp.TextResult(texts...)
}

// LogCollectorParams are the arguments of get_wazuh_log_collector_stats.
type LogCollectorParams struct {
	AgentID string `json:"agent_id" desc:"Agent ID, for example 001"`
}

func (t *toolset) getLogCollectorStats(ctx context.Context, p LogCollectorParams) (*mcp.CallToolResult, error) {
	id, err := FormatAgentID(p.AgentID)
	if err != nil {
		return invalidAgentID(err), nil
	}
	stats, err := t.stats(ctx, func(s *wazuh.Session) (wazuh.Stats, error) {
		return s.LogcollectorStats(ctx, id)
	})
	if err != nil {
		if wazuh.IsNotFound(err) {
			return noneFound("log collector statistics for agent " + id), nil
		}
		return apiFailure("retrieving log collector statistics for agent "+id, componentManager, err)
	}
	if len(stats) == 0 {
		return noneFound("log collector statistics for agent " + id), nil
	}
	return mcp.TextResult(formatStats("Log Collector Statistics for Agent "+id, stats)), nil
}

// NoParams is the argument type of tools that take no arguments.
type NoParams struct{}

func (t *toolset) getRemotedStats(ctx context.Context, _ NoParams) (*mcp.CallToolResult, error) {
	stats, err := t.stats(ctx, func(s *wazuh.Session) (wazuh.Stats, error) {
		return s.RemotedStats(ctx)
	})
	if err != nil {
		return apiFailure("retrieving remoted statistics", componentManager, err)
	}
	if len(stats) == 0 {
		return noneFound("remoted statistics"), nil
	}

	texts := []string{formatStats("Remoted Statistics", stats)}
	if summary := statsSummary(stats); len(summary) > 0 {
		texts = append(texts, "Counters:\n"+strings.Join(summary, "\n"))
	}
	return mcp.TextResult(texts...), nil
}

func (t *toolset) getWeeklyStats(ctx context.Context, _ NoParams) (*mcp.CallToolResult, error) {
	stats, err := t.stats(ctx, func(s *wazuh.Session) (wazuh.Stats, error) {
		return s.WeeklyStats(ctx)
	})
	if err != nil {
		return apiFailure("retrieving weekly statistics", componentManager, err)
	}
	if len(stats) == 0 {
		return noneFound("weekly statistics"), nil
	}
	return mcp.TextResult(formatStats("Weekly Statistics", stats)), nil
}

func (t *toolset) stats(ctx context.Context, fetch func(*wazuh.Session) (wazuh.Stats, error)) (wazuh.Stats, error) {
	var stats wazuh.Stats
	err := t.manager.Do(ctx, func(s *wazuh.Session) error {
		var err error
		stats, err = fetch(s)
		return err
	})
	return stats, err
}

func (t *toolset) getClusterHealth(ctx context.Context, _ NoParams) (*mcp.CallToolResult, error) {
	var (
		status    wazuh.ClusterStatus
		health    wazuh.ClusterHealth
		statusErr error
		healthErr error
	)
	err := t.manager.Do(ctx, func(s *wazuh.Session) error {
		status, statusErr = s.ClusterStatus(ctx)
		if statusErr != nil || !status.Healthy() {
			return nil
		}
		health, healthErr = s.ClusterHealthcheck(ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range []error{statusErr, healthErr} {
		if e != nil && ctx.Err() != nil {
			return nil, e
		}
	}
	if statusErr != nil {
		t.logger.Warn("cluster status unavailable", "error", statusErr)
		return mcp.TextResult("Cluster is healthy: No. Additionally, failed to retrieve basic cluster status for more details."), nil
	}

	var reasons []string
	if !strings.EqualFold(status.Enabled, "yes") {
		reasons = append(reasons, "cluster is not enabled")
	}
	if !strings.EqualFold(status.Running, "yes") {
		reasons = append(reasons, "cluster is not running")
	}
	if healthErr != nil {
		t.logger.Warn("cluster healthcheck unavailable", "error", healthErr)
		reasons = append(reasons, "healthcheck failed")
	} else if len(reasons) == 0 && health.ConnectedNodes == 0 {
		reasons = append(reasons, "no nodes are connected")
	}

	if len(reasons) > 0 {
		return mcp.TextResult("Cluster is healthy: No. Reasons: " + strings.Join(reasons, "; ")), nil
	}
	return mcp.TextResult(fmt.Sprintf("Cluster is healthy: Yes\nConnected nodes: %d", health.ConnectedNodes)), nil
}

// ClusterNodesParams are the arguments of get_wazuh_cluster_nodes.
type ClusterNodesParams struct {
	Limit    *int    `json:"limit" desc:"Maximum number of nodes to return"`
	Offset   *int    `json:"offset" desc:"Number of nodes to skip"`
	NodeType *string `json:"node_type" desc:"Filter by node type: master or worker"`
}

func (t *toolset) getClusterNodes(ctx context.Context, p ClusterNodesParams) (*mcp.CallToolResult, error) {
	var nodes []wazuh.ClusterNode
	err := t.manager.Do(ctx, func(s *wazuh.Session) error {
		var err error
		nodes, err = s.ClusterNodes(ctx, wazuh.NodeQuery{
			Limit:  intOr(p.Limit),
			Offset: intOr(p.Offset),
			Type:   stringOr(p.NodeType),
		})
		return err
	})
	if err != nil {
		if clusterNotRunning(err) {
			return noneFound("Wazuh cluster nodes (cluster not enabled)"), nil
		}
		return apiFailure("retrieving cluster nodes", componentManager, err)
	}
	if len(nodes) == 0 {
		return noneFound("Wazuh cluster nodes"), nil
	}

	texts := make([]string, 0, len(nodes))
	for _, node := range nodes {
		lines := []string{
			"Node Name: " + orNA(node.Name),
			"Type: " + orNA(node.Type),
			"Version: " + orNA(node.Version),
			"IP: " + orNA(node.IP),
		}
		if node.Status != "" {
			lines = append(lines, "Status: "+StatusIndicator(node.Status))
		}
		texts = append(texts, strings.Join(lines, "\n"))
	}
	return mcp.TextResult(texts...), nil
}

// clusterNotRunning recognizes the manager's 400 for a standalone node.
func clusterNotRunning(err error) bool {
	if wazuh.StatusCode(err) != http.StatusBadRequest {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "cluster is not running")
}
