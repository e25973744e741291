// ABOUTME: Typed records decoded from Wazuh manager and indexer responses.
// ABOUTME: Lenient field types absorb the API's habit of mixing numbers, strings and lists.

package wazuh

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Agent is a registered Wazuh agent. ID "000" is the manager itself.
type Agent struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	IP                string   `json:"ip"`
	RegisterIP        string   `json:"registerIP"`
	Status            string   `json:"status"`
	OS                AgentOS  `json:"os"`
	Version           string   `json:"version"`
	Manager           string   `json:"manager"`
	NodeName          string   `json:"node_name"`
	DateAdd           string   `json:"dateAdd"`
	LastKeepAlive     string   `json:"lastKeepAlive"`
	Group             []string `json:"group"`
	GroupConfigStatus string   `json:"group_config_status"`
}

// AgentOS is the operating system an agent reports.
type AgentOS struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
}

// Rule is a detection rule loaded by the manager.
type Rule struct {
	ID          int        `json:"id"`
	Level       int        `json:"level"`
	Description string     `json:"description"`
	Groups      []string   `json:"groups"`
	Filename    string     `json:"filename"`
	PCIDSS      StringList `json:"pci_dss"`
	GDPR        StringList `json:"gdpr"`
	HIPAA       StringList `json:"hipaa"`
	NIST80053   StringList `json:"nist_800_53"`
	Mitre       Mitre      `json:"mitre"`
	Status      string     `json:"status"`
}

// Mitre holds the ATT&CK mapping of a rule. The manager sends either an
// object of id/tactic/technique lists or a bare list of technique ids.
type Mitre struct {
	ID        StringList `json:"id"`
	Tactic    StringList `json:"tactic"`
	Technique StringList `json:"technique"`
}

// UnmarshalJSON accepts both mapping shapes.
func (m *Mitre) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &m.ID)
	}
	type plain Mitre
	return json.Unmarshal(trimmed, (*plain)(m))
}

// Empty reports whether the rule has no ATT&CK mapping.
func (m Mitre) Empty() bool {
	return len(m.ID) == 0 && len(m.Tactic) == 0 && len(m.Technique) == 0
}

// Vulnerability is a CVE detected on an agent.
type Vulnerability struct {
	CVE           string         `json:"cve"`
	Title         string         `json:"title"`
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	Description   string         `json:"description"`
	Severity      string         `json:"severity"`
	Published     string         `json:"published"`
	Updated       string         `json:"updated"`
	DetectionTime string         `json:"detection_time"`
	CVSS          map[string]any `json:"cvss"`
	Reference     string         `json:"reference"`
}

// Process is a process reported by syscollector.
type Process struct {
	PID    FlexString `json:"pid"`
	PPID   FlexString `json:"ppid"`
	Name   string     `json:"name"`
	State  string     `json:"state"`
	EUser  string     `json:"euser"`
	EGroup string     `json:"egroup"`
	Cmd    string     `json:"cmd"`
	Argvs  StringList `json:"argvs"`
}

// Port is a network socket reported by syscollector.
type Port struct {
	Local    Endpoint   `json:"local"`
	Remote   Endpoint   `json:"remote"`
	Protocol string     `json:"protocol"`
	State    string     `json:"state"`
	PID      FlexString `json:"pid"`
	Process  string     `json:"process"`
}

// Endpoint is one side of a socket.
type Endpoint struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Listening reports whether the socket is in the listening state.
func (p Port) Listening() bool {
	return strings.EqualFold(p.State, "listening")
}

// LogEntry is one line of the manager's ossec.log.
type LogEntry struct {
	Timestamp   string `json:"timestamp"`
	Tag         string `json:"tag"`
	Level       string `json:"level"`
	Description string `json:"description"`
}

// ClusterStatus reports whether clustering is configured and running.
type ClusterStatus struct {
	Enabled string `json:"enabled"`
	Running string `json:"running"`
}

// Healthy reports whether the cluster is both enabled and running.
func (s ClusterStatus) Healthy() bool {
	return strings.EqualFold(s.Enabled, "yes") && strings.EqualFold(s.Running, "yes")
}

// ClusterHealth is the summary part of the cluster healthcheck.
type ClusterHealth struct {
	ConnectedNodes int `json:"n_connected_nodes"`
}

// ClusterNode is a manager node in the cluster.
type ClusterNode struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Version string `json:"version"`
	IP      string `json:"ip"`
	Status  string `json:"status"`
}

// Stats is a free-form statistics object as returned by the manager.
type Stats map[string]any

// APIInfo describes the manager API answering at the root path.
type APIInfo struct {
	Title      string `json:"title"`
	APIVersion string `json:"api_version"`
	Revision   int    `json:"revision"`
	Hostname   string `json:"hostname"`
	Timestamp  string `json:"timestamp"`
}

// Alert is a security alert document from the indexer.
type Alert struct {
	ID        string       `json:"id"`
	Timestamp string       `json:"timestamp"`
	Agent     *AlertAgent  `json:"agent"`
	Rule      *AlertRule   `json:"rule"`
	Manager   *AlertSource `json:"manager"`
	Cluster   *AlertSource `json:"cluster"`
	Location  string       `json:"location"`
	FullLog   string       `json:"full_log"`
}

// AlertAgent identifies the agent an alert came from.
type AlertAgent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IP   string `json:"ip"`
}

// AlertRule is the rule that fired.
type AlertRule struct {
	ID          FlexString `json:"id"`
	Level       int        `json:"level"`
	Description string     `json:"description"`
	Groups      []string   `json:"groups"`
}

// AlertSource names a manager or cluster.
type AlertSource struct {
	Name string `json:"name"`
}

// FlexString decodes a JSON string or number into its string form.
type FlexString string

// UnmarshalJSON accepts strings, numbers and null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*f = ""
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*f = FlexString(n.String())
	}
	return nil
}

// String returns the decoded value.
func (f FlexString) String() string {
	return string(f)
}

// Int returns the value as an integer, or false when it is not numeric.
func (f FlexString) Int() (int, bool) {
	n, err := strconv.Atoi(string(f))
	return n, err == nil
}

// StringList decodes either a JSON list of strings or a single string.
type StringList []string

// UnmarshalJSON accepts a list, a single string and null.
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*l = nil
	case trimmed[0] == '[':
		var items []string
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*l = items
	default:
		var s FlexString
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*l = StringList{s.String()}
	}
	return nil
}

// Join concatenates the items with sep.
func (l StringList) Join(sep string) string {
	return strings.Join(l, sep)
}
