// ABOUTME: Agent-centric tools: agent listing, vulnerabilities, processes and ports.
// ABOUTME: Per-agent endpoints treat a 404 from the manager as an empty result.

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/wazuh-mcp/internal/mcp"
	"github.com/2389/wazuh-mcp/internal/wazuh"
)

// AgentsParams are the arguments of get_wazuh_agents.
type AgentsParams struct {
	Limit      *int    `json:"limit" desc:"Maximum number of agents to return (default 300)"`
	Status     string  `json:"status" default:"active" desc:"Agent status: active, disconnected, pending or never_connected"`
	Name       *string `json:"name" desc:"Filter by agent name"`
	IP         *string `json:"ip" desc:"Filter by agent IP address"`
	Group      *string `json:"group" desc:"Filter by agent group"`
	OSPlatform *string `json:"os_platform" desc:"Filter by operating system platform, for example ubuntu or windows"`
	Version    *string `json:"version" desc:"Filter by Wazuh agent version"`
}

func (t *toolset) getAgents(ctx context.Context, p AgentsParams) (*mcp.CallToolResult, error) {
	var agents []wazuh.Agent
	err := t.manager.Do(ctx, func(s *wazuh.Session) error {
		var err error
		agents, err = s.Agents(ctx, wazuh.AgentQuery{
			Limit:      limitOr(p.Limit, defaultListLimit),
			Status:     p.Status,
			Name:       stringOr(p.Name),
			IP:         stringOr(p.IP),
			Group:      stringOr(p.Group),
			OSPlatform: stringOr(p.OSPlatform),
			Version:    stringOr(p.Version),
		})
		return err
	})
	if err != nil {
		return apiFailure("retrieving agents", componentManager, err)
	}
	if len(agents) == 0 {
		return noneFound("Wazuh agents matching the criteria"), nil
	}

	texts := make([]string, 0, len(agents))
	for _, agent := range agents {
		texts = append(texts, formatAgent(agent))
	}
	return mcp.TextResult(texts...), nil
}

func formatAgent(a wazuh.Agent) string {
	id := a.ID
	if id == "000" {
		id = "000 (Wazuh Manager)"
	}
	lines := []string{
		"Agent ID: " + id,
		"Name: " + orNA(a.Name),
		"Status: " + StatusIndicator(orNA(a.Status)),
		"IP: " + orNA(a.IP),
	}
	if a.RegisterIP != "" && a.RegisterIP != a.IP {
		lines = append(lines, "Register IP: "+a.RegisterIP)
	}
	if os := formatOS(a.OS); os != "" {
		lines = append(lines, "OS: "+os)
	}
	if a.Version != "" {
		lines = append(lines, "Version: "+a.Version)
	}
	if len(a.Group) > 0 {
		lines = append(lines, "Groups: "+strings.Join(a.Group, ", "))
	}
	if a.LastKeepAlive != "" {
		lines = append(lines, "Last Keep Alive: "+formatTimestampRelative(a.LastKeepAlive))
	}
	if a.DateAdd != "" {
		lines = append(lines, "Registered: "+FormatTimestamp(a.DateAdd))
	}
	if a.NodeName != "" {
		lines = append(lines, "Node: "+a.NodeName)
	}
	if a.GroupConfigStatus != "" {
		lines = append(lines, "Config Status: "+StatusIndicator(a.GroupConfigStatus))
	}
	return strings.Join(lines, "\n")
}

func formatOS(os wazuh.AgentOS) string {
	if os.Name == "" {
		return ""
	}
	text := os.Name
	if os.Version != "" {
		text += " " + os.Version
	}
	if os.Platform != "" {
		text += " (" + os.Platform + ")"
	}
	return text
}

// VulnerabilityParams are the arguments of get_wazuh_vulnerability_summary.
type VulnerabilityParams struct {
	AgentID  string  `json:"agent_id" desc:"Agent ID, for example 001"`
	Limit    *int    `json:"limit" desc:"Maximum number of vulnerabilities to return (default 300)"`
	Severity *string `json:"severity" desc:"Filter by severity: Critical, High, Medium or Low"`
	CVE      *string `json:"cve" desc:"Filter by CVE identifier"`
}

func (t *toolset) getVulnerabilitySummary(ctx context.Context, p VulnerabilityParams) (*mcp.CallToolResult, error) {
	id, err := FormatAgentID(p.AgentID)
	if err != nil {
		return invalidAgentID(err), nil
	}
	vulns, err := t.vulnerabilities(ctx, id, wazuh.VulnerabilityQuery{
		Limit:    limitOr(p.Limit, defaultListLimit),
		Severity: stringOr(p.Severity),
		CVE:      stringOr(p.CVE),
	})
	if err != nil {
		if wazuh.IsNotFound(err) {
			return noneFound("vulnerabilities for agent " + id), nil
		}
		return apiFailure("retrieving vulnerabilities for agent "+id, componentManager, err)
	}
	if len(vulns) == 0 {
		return noneFound("vulnerabilities for agent " + id), nil
	}
	return mcp.TextResult(formatVulnerabilities("Vulnerability Summary for Agent "+id, vulns, "")), nil
}

// CriticalVulnerabilityParams are the arguments of get_wazuh_critical_vulnerabilities.
type CriticalVulnerabilityParams struct {
	AgentID string `json:"agent_id" desc:"Agent ID, for example 001"`
	Limit   int    `json:"limit" default:"100" desc:"Maximum number of vulnerabilities to return"`
}

func (t *toolset) getCriticalVulnerabilities(ctx context.Context, p CriticalVulnerabilityParams) (*mcp.CallToolResult, error) {
	id, err := FormatAgentID(p.AgentID)
	if err != nil {
		return invalidAgentID(err), nil
	}
	vulns, err := t.vulnerabilities(ctx, id, wazuh.VulnerabilityQuery{
		Limit:    limitOr(&p.Limit, defaultLogLimit),
		Severity: "critical",
	})
	if err != nil {
		if wazuh.IsNotFound(err) {
			return noneFound("critical vulnerabilities for agent " + id), nil
		}
		return apiFailure("retrieving critical vulnerabilities for agent "+id, componentManager, err)
	}
	if len(vulns) == 0 {
		return noneFound("critical vulnerabilities for agent " + id), nil
	}
	return mcp.TextResult(formatVulnerabilities("Critical Vulnerabilities for Agent "+id, vulns, "Critical")), nil
}

func (t *toolset) vulnerabilities(ctx context.Context, id string, q wazuh.VulnerabilityQuery) ([]wazuh.Vulnerability, error) {
	var vulns []wazuh.Vulnerability
	err := t.manager.Do(ctx, func(s *wazuh.Session) error {
		var err error
		vulns, err = s.Vulnerabilities(ctx, id, q)
		return err
	})
	return vulns, err
}

// formatVulnerabilities renders a single text block; severity overrides the
// per-record value when set.
func formatVulnerabilities(title string, vulns []wazuh.Vulnerability, severity string) string {
	var b strings.Builder
	b.WriteString(title + ":")
	for _, v := range vulns {
		sev := v.Severity
		if severity != "" {
			sev = severity
		}
		fmt.Fprintf(&b, "\n- CVE: %s, Title: %s, Severity: %s, Published: %s, Updated: %s",
			orNA(v.CVE), orNA(vulnTitle(v)), SeverityIndicator(orNA(sev)),
			FormatTimestamp(v.Published), FormatTimestamp(v.Updated))
	}
	return b.String()
}

func vulnTitle(v wazuh.Vulnerability) string {
	if v.Title != "" {
		return v.Title
	}
	if v.Name != "" && v.Version != "" {
		return v.Name + " " + v.Version
	}
	return v.Name
}

// ProcessParams are the arguments of get_wazuh_agent_processes.
type ProcessParams struct {
	AgentID string  `json:"agent_id" desc:"Agent ID, for example 001"`
	Limit   *int    `json:"limit" desc:"Maximum number of processes to return (default 300)"`
	Search  *string `json:"search" desc:"Search text matched against process fields"`
}

func (t *toolset) getAgentProcesses(ctx context.Context, p ProcessParams) (*mcp.CallToolResult, error) {
	id, err := FormatAgentID(p.AgentID)
	if err != nil {
		return invalidAgentID(err), nil
	}
	var procs []wazuh.Process
	err = t.manager.Do(ctx, func(s *wazuh.Session) error {
		var err error
		procs, err = s.Processes(ctx, id, wazuh.ProcessQuery{
			Limit:  limitOr(p.Limit, defaultListLimit),
			Search: stringOr(p.Search),
		})
		return err
	})
	if err != nil {
		if wazuh.IsNotFound(err) {
			return noneFound("processes for agent " + id), nil
		}
		return apiFailure("retrieving processes for agent "+id, componentManager, err)
	}
	if len(procs) == 0 {
		return noneFound("processes for agent " + id), nil
	}

	texts := make([]string, 0, len(procs))
	for _, proc := range procs {
		texts = append(texts, formatProcess(proc))
	}
	return mcp.TextResult(texts...), nil
}

func formatProcess(p wazuh.Process) string {
	lines := []string{
		"PID: " + orNA(p.PID.String()),
		"Name: " + orNA(p.Name),
	}
	if p.PPID != "" {
		lines = append(lines, "Parent PID: "+p.PPID.String())
	}
	if p.State != "" {
		lines = append(lines, "State: "+p.State)
	}
	if p.EUser != "" {
		lines = append(lines, "User: "+p.EUser)
	}
	if p.EGroup != "" {
		lines = append(lines, "Group: "+p.EGroup)
	}
	if p.Cmd != "" {
		lines = append(lines, "Command: "+Truncate(p.Cmd, 150))
	}
	if len(p.Argvs) > 0 {
		lines = append(lines, "Args: "+Truncate(p.Argvs.Join(" "), 150))
	}
	return strings.Join(lines, "\n")
}

// PortParams are the arguments of get_wazuh_agent_ports.
type PortParams struct {
	AgentID  string  `json:"agent_id" desc:"Agent ID, for example 001"`
	Limit    *int    `json:"limit" desc:"Maximum number of ports to return (default 300)"`
	Protocol *string `json:"protocol" desc:"Filter by protocol: tcp, udp, tcp6 or udp6"`
	State    *string `json:"state" desc:"listening keeps listening sockets; any other value keeps the rest"`
}

func (t *toolset) getAgentPorts(ctx context.Context, p PortParams) (*mcp.CallToolResult, error) {
	id, err := FormatAgentID(p.AgentID)
	if err != nil {
		return invalidAgentID(err), nil
	}
	var ports []wazuh.Port
	err = t.manager.Do(ctx, func(s *wazuh.Session) error {
		var err error
		ports, err = s.Ports(ctx, id, wazuh.PortQuery{
			Limit:    limitOr(p.Limit, defaultListLimit),
			Protocol: stringOr(p.Protocol),
		})
		return err
	})
	if err != nil {
		if wazuh.IsNotFound(err) {
			return noneFound("network ports for agent " + id), nil
		}
		return apiFailure("retrieving network ports for agent "+id, componentManager, err)
	}

	ports = FilterPortsByState(ports, stringOr(p.State))
	if len(ports) == 0 {
		return noneFound("network ports for agent " + id + " matching the criteria"), nil
	}

	texts := make([]string, 0, len(ports))
	for _, port := range ports {
		texts = append(texts, formatPort(port))
	}
	return mcp.TextResult(texts...), nil
}

func formatPort(p wazuh.Port) string {
	lines := []string{
		fmt.Sprintf("Local: %s:%d", orNA(p.Local.IP), p.Local.Port),
	}
	if p.Remote.IP != "" {
		lines = append(lines, fmt.Sprintf("Remote: %s:%d", p.Remote.IP, p.Remote.Port))
	}
	lines = append(lines, "Protocol: "+strings.ToUpper(orNA(p.Protocol)))
	if p.State != "" {
		lines = append(lines, "State: "+StatusIndicator(p.State))
	}
	switch {
	case p.Process != "" && p.PID != "":
		lines = append(lines, fmt.Sprintf("Process: %s (PID: %s)", p.Process, p.PID))
	case p.Process != "":
		lines = append(lines, "Process: "+p.Process)
	case p.PID != "":
		lines = append(lines, "PID: "+p.PID.String())
	}
	return strings.Join(lines, "\n")
}
