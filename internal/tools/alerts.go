// ABOUTME: Alert summary tool backed by the Wazuh Indexer search API.
// ABOUTME: Renders one text item per alert, newest first.

package tools

import (
	"context"
	"strings"

	"github.com/2389/wazuh-mcp/internal/mcp"
	"github.com/2389/wazuh-mcp/internal/wazuh"
)

// AlertSummaryParams are the arguments of get_wazuh_alert_summary.
type AlertSummaryParams struct {
	Limit *int `json:"limit" desc:"Maximum number of alerts to return (default 100)"`
}

func (t *toolset) getAlertSummary(ctx context.Context, p AlertSummaryParams) (*mcp.CallToolResult, error) {
	if t.indexer == nil {
		return mcp.ErrorResult("Error retrieving alerts from " + componentIndexer + ": indexer is not configured"), nil
	}

	alerts, err := t.indexer.SearchAlerts(ctx, wazuh.AlertQuery{Limit: limitOr(p.Limit, defaultLogLimit)})
	if err != nil {
		if wazuh.IsNotFound(err) {
			return noneFound("Wazuh alerts"), nil
		}
		return apiFailure("retrieving alerts", componentIndexer, err)
	}
	if len(alerts) == 0 {
		return noneFound("Wazuh alerts"), nil
	}

	texts := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		texts = append(texts, formatAlert(alert))
	}
	return mcp.TextResult(texts...), nil
}

func formatAlert(a wazuh.Alert) string {
	lines := []string{
		"Alert ID: " + orNA(a.ID),
		"Time: " + FormatTimestamp(a.Timestamp),
	}
	if a.Agent != nil {
		agent := orNA(a.Agent.Name)
		if a.Agent.IP != "" {
			agent += " (" + a.Agent.IP + ")"
		}
		lines = append(lines, "Agent: "+agent)
	}
	if a.Rule != nil {
		lines = append(lines,
			"Rule: "+orNA(a.Rule.ID.String())+" - "+orNA(a.Rule.Description),
			"Level: "+LevelIndicator(a.Rule.Level),
		)
	}
	if a.Location != "" {
		lines = append(lines, "Location: "+a.Location)
	}
	if a.Manager != nil && a.Manager.Name != "" {
		lines = append(lines, "Manager: "+a.Manager.Name)
	}
	if a.Cluster != nil && a.Cluster.Name != "" {
		lines = append(lines, "Cluster: "+a.Cluster.Name)
	}
	if a.FullLog != "" {
		lines = append(lines, "Log: "+Truncate(a.FullLog, 300))
	}
	return strings.Join(lines, "\n")
}
