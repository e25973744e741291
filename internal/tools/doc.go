// Package tools registers the Wazuh tools exposed over MCP.
//
// # Overview
//
// Register adds fourteen read-only tools to an mcp.Registry. Every tool
// except get_wazuh_alert_summary reads from the Wazuh Manager API through a
// single wazuh.Session opened for the call; the alert summary searches the
// Wazuh Indexer.
//
// # Results
//
// Listings return one text content item per record. Empty listings, and 404
// responses from per-agent endpoints, are successful results reading
// "No <thing> found.". Other API failures become error results of the form
// "Error <action> from <component>: <detail>".
//
// # Arguments
//
// Agent IDs are normalized by FormatAgentID, so "1", "001" and "agent/001"
// name the same agent. A malformed agent ID gives an error result before
// any request is made.
package tools
