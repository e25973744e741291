// ABOUTME: Tests for manager resource decoding and query forwarding.
// ABOUTME: Uses the fake manager to serve representative API payloads.

package wazuh

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withSession runs fn inside a session against the fake manager.
func withSession(t *testing.T, manager *fakeManager, fn func(ctx context.Context, s *Session) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, manager.client(t).Do(ctx, func(s *Session) error {
		return fn(ctx, s)
	}))
}

func TestAgents(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/agents", items(
		`{"id":"000","name":"wazuh-manager","ip":"127.0.0.1","status":"active","os":{"name":"Ubuntu","version":"22.04","platform":"ubuntu"},"version":"Wazuh v4.8.0","node_name":"node01"}`,
		`{"id":"001","name":"web-01","ip":"10.0.0.5","registerIP":"any","status":"disconnected","group":["default","web"],"lastKeepAlive":"2024-05-01T10:00:00Z","group_config_status":"synced"}`,
	))

	withSession(t, manager, func(ctx context.Context, s *Session) error {
		agents, err := s.Agents(ctx, AgentQuery{Limit: 10, Status: "active", OSPlatform: "ubuntu"})
		require.NoError(t, err)
		require.Len(t, agents, 2)

		assert.Equal(t, "000", agents[0].ID)
		assert.Equal(t, "Ubuntu", agents[0].OS.Name)
		assert.Equal(t, "ubuntu", agents[0].OS.Platform)
		assert.Equal(t, "node01", agents[0].NodeName)

		assert.Equal(t, "001", agents[1].ID)
		assert.Equal(t, "any", agents[1].RegisterIP)
		assert.Equal(t, []string{"default", "web"}, agents[1].Group)
		assert.Equal(t, "synced", agents[1].GroupConfigStatus)
		return nil
	})

	query := manager.lastQuery()
	assert.Equal(t, "10", query.Get("limit"))
	assert.Equal(t, "active", query.Get("status"))
	assert.Equal(t, "ubuntu", query.Get("os.platform"))
	assert.False(t, query.Has("search"), "unset filters must not be forwarded")
	assert.False(t, query.Has("ip"))
}

func TestAgents_EmptyResult(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/agents", `{"data":{"total_affected_items":0},"error":0}`)

	withSession(t, manager, func(ctx context.Context, s *Session) error {
		agents, err := s.Agents(ctx, AgentQuery{})
		require.NoError(t, err)
		assert.NotNil(t, agents)
		assert.Empty(t, agents)
		return nil
	})
}

func TestRules(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/rules", items(
		`{"id":5710,"level":5,"description":"sshd: Attempt to login using a non-existent user","groups":["syslog","sshd"],"filename":"0095-sshd_rules.xml","pci_dss":["10.2.4"],"gdpr":"IV_35.7.d","mitre":{"id":["T1110"],"tactic":["Credential Access"],"technique":["Brute Force"]},"status":"enabled"}`,
		`{"id":100001,"level":12,"description":"custom","groups":[],"mitre":["T1059","T1086"]}`,
	))

	withSession(t, manager, func(ctx context.Context, s *Session) error {
		rules, err := s.Rules(ctx, RuleQuery{Level: 5, Group: "sshd"})
		require.NoError(t, err)
		require.Len(t, rules, 2)

		assert.Equal(t, 5710, rules[0].ID)
		assert.Equal(t, StringList{"10.2.4"}, rules[0].PCIDSS)
		assert.Equal(t, StringList{"IV_35.7.d"}, rules[0].GDPR)
		assert.Equal(t, StringList{"Credential Access"}, rules[0].Mitre.Tactic)
		assert.Empty(t, rules[0].HIPAA)

		assert.Equal(t, StringList{"T1059", "T1086"}, rules[1].Mitre.ID)
		assert.False(t, rules[1].Mitre.Empty())
		return nil
	})

	query := manager.lastQuery()
	assert.Equal(t, "5", query.Get("level"))
	assert.Equal(t, "sshd", query.Get("group"))
	assert.False(t, query.Has("limit"))
}

func TestVulnerabilities(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/vulnerability/001", items(
		`{"cve":"CVE-2024-3094","title":"xz backdoor","severity":"Critical","published":"2024-03-29","name":"xz-utils","cvss":{"cvss3":{"base_score":10}}}`,
	))

	withSession(t, manager, func(ctx context.Context, s *Session) error {
		vulns, err := s.Vulnerabilities(ctx, "001", VulnerabilityQuery{Limit: 100, Severity: "Critical"})
		require.NoError(t, err)
		require.Len(t, vulns, 1)
		assert.Equal(t, "CVE-2024-3094", vulns[0].CVE)
		assert.Equal(t, "xz-utils", vulns[0].Name)
		assert.Contains(t, vulns[0].CVSS, "cvss3")
		return nil
	})

	query := manager.lastQuery()
	assert.Equal(t, "Critical", query.Get("severity"))
	assert.Equal(t, "100", query.Get("limit"))
}

func TestSyscollector(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/syscollector/002/processes", items(
		`{"pid":1234,"ppid":"1","name":"sshd","state":"S","euser":"root","egroup":"root","cmd":"/usr/sbin/sshd","argvs":["-D"]}`,
		`{"pid":"88","name":"cron","argvs":"-f"}`,
	))
	manager.respond("/syscollector/002/ports", items(
		`{"local":{"ip":"0.0.0.0","port":22},"remote":{"ip":"0.0.0.0","port":0},"protocol":"tcp","state":"listening","pid":1234,"process":"sshd"}`,
		`{"local":{"ip":"10.0.0.2","port":51000},"remote":{"ip":"10.0.0.9","port":443},"protocol":"tcp","state":"established"}`,
	))

	withSession(t, manager, func(ctx context.Context, s *Session) error {
		procs, err := s.Processes(ctx, "002", ProcessQuery{Search: "ssh"})
		require.NoError(t, err)
		require.Len(t, procs, 2)
		assert.Equal(t, FlexString("1234"), procs[0].PID)
		assert.Equal(t, FlexString("1"), procs[0].PPID)
		assert.Equal(t, StringList{"-D"}, procs[0].Argvs)
		assert.Equal(t, FlexString("88"), procs[1].PID)
		assert.Equal(t, StringList{"-f"}, procs[1].Argvs)

		pid, ok := procs[0].PID.Int()
		assert.True(t, ok)
		assert.Equal(t, 1234, pid)

		ports, err := s.Ports(ctx, "002", PortQuery{Protocol: "tcp"})
		require.NoError(t, err)
		require.Len(t, ports, 2)
		assert.Equal(t, 22, ports[0].Local.Port)
		assert.True(t, ports[0].Listening())
		assert.Equal(t, "1234", ports[0].PID.String())
		assert.False(t, ports[1].Listening())
		assert.Empty(t, ports[1].PID)
		return nil
	})

	assert.Equal(t, "tcp", manager.lastQuery().Get("protocol"))
}

func TestManagerLogs(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/manager/logs", items(
		`{"timestamp":"2024-05-01T10:00:00Z","tag":"wazuh-modulesd","level":"error","description":"Connection refused"}`,
	))

	withSession(t, manager, func(ctx context.Context, s *Session) error {
		logs, err := s.ManagerLogs(ctx, LogQuery{Limit: 50, Level: "error", Search: "refused"})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "wazuh-modulesd", logs[0].Tag)
		return nil
	})

	query := manager.lastQuery()
	assert.Equal(t, "error", query.Get("level"))
	assert.Equal(t, "refused", query.Get("search"))
	assert.False(t, query.Has("offset"))
}

func TestCluster(t *testing.T) {
	t.Run("status as data object", func(t *testing.T) {
		manager := newFakeManager(t)
		manager.respond("/cluster/status", `{"data":{"enabled":"yes","running":"yes"},"error":0}`)
		withSession(t, manager, func(ctx context.Context, s *Session) error {
			status, err := s.ClusterStatus(ctx)
			require.NoError(t, err)
			assert.True(t, status.Healthy())
			return nil
		})
	})

	t.Run("status as affected item", func(t *testing.T) {
		manager := newFakeManager(t)
		manager.respond("/cluster/status", items(`{"enabled":"yes","running":"no"}`))
		withSession(t, manager, func(ctx context.Context, s *Session) error {
			status, err := s.ClusterStatus(ctx)
			require.NoError(t, err)
			assert.Equal(t, "no", status.Running)
			assert.False(t, status.Healthy())
			return nil
		})
	})

	t.Run("healthcheck and nodes", func(t *testing.T) {
		manager := newFakeManager(t)
		manager.respond("/cluster/healthcheck", `{"data":{"n_connected_nodes":3,"nodes":{}},"error":0}`)
		manager.respond("/cluster/nodes", items(
			`{"name":"master-node","type":"master","version":"4.8.0","ip":"10.0.0.1"}`,
			`{"name":"worker-1","type":"worker","version":"4.8.0","ip":"10.0.0.2"}`,
		))
		withSession(t, manager, func(ctx context.Context, s *Session) error {
			health, err := s.ClusterHealthcheck(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, health.ConnectedNodes)

			nodes, err := s.ClusterNodes(ctx, NodeQuery{Type: "worker"})
			require.NoError(t, err)
			require.Len(t, nodes, 2)
			assert.Equal(t, "master", nodes[0].Type)
			return nil
		})
		assert.Equal(t, "worker", manager.lastQuery().Get("type"))
	})
}

func TestStats(t *testing.T) {
	manager := newFakeManager(t)
	manager.respond("/manager/stats/remoted", items(`{"queue_size":0,"total_queue_size":131072,"tcp_sessions":4}`))
	manager.respond("/manager/stats/weekly", items(`{"Sun":{"hours":[1,2]}}`, `{"Mon":{"hours":[3]}}`))
	manager.respond("/agents/003/stats/logcollector", `{"data":{"global":{"files":[]},"interval":{"files":[]}},"error":0}`)

	withSession(t, manager, func(ctx context.Context, s *Session) error {
		remoted, err := s.RemotedStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, float64(4), remoted["tcp_sessions"])

		weekly, err := s.WeeklyStats(ctx)
		require.NoError(t, err)
		assert.Contains(t, weekly, "Sun")
		assert.Contains(t, weekly, "Mon")

		collector, err := s.LogcollectorStats(ctx, "003")
		require.NoError(t, err)
		assert.Contains(t, collector, "global")
		assert.Contains(t, collector, "interval")
		return nil
	})
}

func TestFlexTypes(t *testing.T) {
	var f FlexString
	require.NoError(t, json.Unmarshal([]byte(`null`), &f))
	assert.Empty(t, f)
	require.NoError(t, json.Unmarshal([]byte(`12.5`), &f))
	assert.Equal(t, "12.5", f.String())
	_, ok := f.Int()
	assert.False(t, ok)

	var l StringList
	require.NoError(t, json.Unmarshal([]byte(`7`), &l))
	assert.Equal(t, StringList{"7"}, l)
	assert.Equal(t, "a, b", StringList{"a", "b"}.Join(", "))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &l))
}
