// ABOUTME: Read-only manager API resources: agents, rules, vulnerabilities, syscollector, logs, cluster, stats.
// ABOUTME: Query filters are forwarded only when set; records keep the API's order.

package wazuh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// AgentQuery filters GET /agents.
type AgentQuery struct {
	Limit      int
	Status     string
	Name       string
	Search     string
	IP         string
	Group      string
	OSPlatform string
	Version    string
}

func (q AgentQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "limit", q.Limit)
	setString(v, "status", q.Status)
	setString(v, "name", q.Name)
	setString(v, "search", q.Search)
	setString(v, "ip", q.IP)
	setString(v, "group", q.Group)
	setString(v, "os.platform", q.OSPlatform)
	setString(v, "version", q.Version)
	return v
}

// RuleQuery filters GET /rules.
type RuleQuery struct {
	Limit    int
	Level    int
	Group    string
	Filename string
}

func (q RuleQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "limit", q.Limit)
	setInt(v, "level", q.Level)
	setString(v, "group", q.Group)
	setString(v, "filename", q.Filename)
	return v
}

// VulnerabilityQuery filters GET /vulnerability/{agent_id}.
type VulnerabilityQuery struct {
	Limit    int
	Severity string
	CVE      string
}

func (q VulnerabilityQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "limit", q.Limit)
	setString(v, "severity", q.Severity)
	setString(v, "cve", q.CVE)
	return v
}

// ProcessQuery filters GET /syscollector/{agent_id}/processes.
type ProcessQuery struct {
	Limit  int
	Offset int
	Search string
}

func (q ProcessQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "limit", q.Limit)
	setInt(v, "offset", q.Offset)
	setString(v, "search", q.Search)
	return v
}

// PortQuery filters GET /syscollector/{agent_id}/ports.
type PortQuery struct {
	Limit    int
	Protocol string
	State    string
}

func (q PortQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "limit", q.Limit)
	setString(v, "protocol", q.Protocol)
	setString(v, "state", q.State)
	return v
}

// LogQuery filters GET /manager/logs.
type LogQuery struct {
	Limit  int
	Offset int
	Level  string
	Tag    string
	Search string
}

func (q LogQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "limit", q.Limit)
	setInt(v, "offset", q.Offset)
	setString(v, "level", q.Level)
	setString(v, "tag", q.Tag)
	setString(v, "search", q.Search)
	return v
}

// NodeQuery filters GET /cluster/nodes.
type NodeQuery struct {
	Limit  int
	Offset int
	Type   string
}

func (q NodeQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "limit", q.Limit)
	setInt(v, "offset", q.Offset)
	setString(v, "type", q.Type)
	return v
}

func setInt(v url.Values, key string, value int) {
	if value != 0 {
		v.Set(key, strconv.Itoa(value))
	}
}

func setString(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// Info returns the manager API's self-description from GET /.
func (s *Session) Info(ctx context.Context) (APIInfo, error) {
	return getSingle[APIInfo](ctx, s, "/")
}

// Agents lists agents.
func (s *Session) Agents(ctx context.Context, q AgentQuery) ([]Agent, error) {
	return getItems[Agent](ctx, s, "/agents", q.values())
}

// Rules lists detection rules.
func (s *Session) Rules(ctx context.Context, q RuleQuery) ([]Rule, error) {
	return getItems[Rule](ctx, s, "/rules", q.values())
}

// Vulnerabilities lists the vulnerabilities detected on an agent.
func (s *Session) Vulnerabilities(ctx context.Context, agentID string, q VulnerabilityQuery) ([]Vulnerability, error) {
	return getItems[Vulnerability](ctx, s, "/vulnerability/"+url.PathEscape(agentID), q.values())
}

// Processes lists the processes running on an agent.
func (s *Session) Processes(ctx context.Context, agentID string, q ProcessQuery) ([]Process, error) {
	return getItems[Process](ctx, s, "/syscollector/"+url.PathEscape(agentID)+"/processes", q.values())
}

// Ports lists the network sockets open on an agent.
func (s *Session) Ports(ctx context.Context, agentID string, q PortQuery) ([]Port, error) {
	return getItems[Port](ctx, s, "/syscollector/"+url.PathEscape(agentID)+"/ports", q.values())
}

// ManagerLogs searches the manager's own log.
func (s *Session) ManagerLogs(ctx context.Context, q LogQuery) ([]LogEntry, error) {
	return getItems[LogEntry](ctx, s, "/manager/logs", q.values())
}

// ClusterStatus reports whether clustering is enabled and running.
func (s *Session) ClusterStatus(ctx context.Context) (ClusterStatus, error) {
	return getSingle[ClusterStatus](ctx, s, "/cluster/status")
}

// ClusterHealthcheck reports the connected node count.
func (s *Session) ClusterHealthcheck(ctx context.Context) (ClusterHealth, error) {
	return getSingle[ClusterHealth](ctx, s, "/cluster/healthcheck")
}

// ClusterNodes lists the cluster's nodes.
func (s *Session) ClusterNodes(ctx context.Context, q NodeQuery) ([]ClusterNode, error) {
	return getItems[ClusterNode](ctx, s, "/cluster/nodes", q.values())
}

// LogcollectorStats returns an agent's logcollector statistics.
func (s *Session) LogcollectorStats(ctx context.Context, agentID string) (Stats, error) {
	return getStats(ctx, s, "/agents/"+url.PathEscape(agentID)+"/stats/logcollector")
}

// RemotedStats returns the remoted daemon's statistics.
func (s *Session) RemotedStats(ctx context.Context) (Stats, error) {
	return getStats(ctx, s, "/manager/stats/remoted")
}

// WeeklyStats returns the manager's weekly statistics.
func (s *Session) WeeklyStats(ctx context.Context) (Stats, error) {
	return getStats(ctx, s, "/manager/stats/weekly")
}

// getStats merges every affected item into one object; weekly statistics
// arrive as one item per day. Endpoints without affected_items return the
// data object itself.
func getStats(ctx context.Context, s *Session, path string) (Stats, error) {
	var envelope struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := s.Get(ctx, path, nil, &envelope); err != nil {
		return nil, err
	}

	stats := Stats{}
	raw, ok := envelope.Data["affected_items"]
	if !ok {
		for key, value := range envelope.Data {
			var decoded any
			if err := json.Unmarshal(value, &decoded); err != nil {
				return nil, &APIError{StatusCode: http.StatusOK, Message: "invalid JSON response", Err: err}
			}
			stats[key] = decoded
		}
		return stats, nil
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "invalid JSON response", Err: err}
	}
	for _, item := range items {
		for key, value := range item {
			stats[key] = value
		}
	}
	return stats, nil
}
