// Package config handles configuration loading for wazuh-mcp.
//
// # Overview
//
// Configuration starts from built-in defaults, is overlaid by an optional
// file, and then by environment variables. The result is validated before
// use.
//
// # Configuration File
//
// ResolvePath picks the file (in order):
//
//  1. The --config flag
//  2. Path from WAZUH_MCP_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/wazuh-mcp/config.yaml (~/.config when unset), if it exists
//
// Without a file the server runs on defaults and environment alone. The
// format follows the extension: .yaml/.yml (default), .toml, or .json/.jsonc
// (comments and trailing commas allowed).
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	wazuh:
//	  password: "${WAZUH_API_PASSWORD}"
//
// # Environment Overrides
//
// These variables override file values when set and non-empty:
//
//	WAZUH_PROTOCOL, WAZUH_API_HOST, WAZUH_API_PORT, WAZUH_API_USERNAME,
//	WAZUH_API_PASSWORD, WAZUH_INDEXER_HOST, WAZUH_INDEXER_PORT,
//	WAZUH_INDEXER_USERNAME, WAZUH_INDEXER_PASSWORD, WAZUH_INDEXER_INDEX,
//	WAZUH_VERIFY_SSL, WAZUH_MCP_AUDIT_PATH, LOG_LEVEL
//
// WAZUH_VERIFY_SSL enables certificate verification only when it equals
// "true" (case-insensitive).
//
// # Configuration Sections
//
//	wazuh:
//	  protocol: "https"      # http or https, shared with the indexer
//	  host: "localhost"
//	  port: 55000
//	  username: "wazuh"
//	  password: "wazuh"
//	  verify_ssl: false
//	  timeout: "30s"         # per HTTP request
//
//	indexer:
//	  enabled: true
//	  host: "localhost"
//	  port: 9200
//	  username: "admin"
//	  password: "admin"
//	  index: "wazuh-alerts-*"
//
//	server:
//	  tool_timeout: "60s"    # "0s" disables the per-call deadline
//	  enable_prompts: false
//	  enable_resources: false
//
//	logging:
//	  level: "info"          # debug, info, warn, error
//	  format: "text"         # text, json, auto (text on a terminal)
//
//	audit:
//	  path: ""               # SQLite file; empty disables the audit log
//
// # Usage
//
//	cfg, err := config.Load(config.ResolvePath(flagValue))
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
