// Package wazuh provides read-only clients for the Wazuh manager and indexer APIs.
//
// # Sessions
//
// Manager API calls happen inside a scoped session:
//
//	err := client.Do(ctx, func(s *wazuh.Session) error {
//	    agents, err = s.Agents(ctx, wazuh.AgentQuery{Status: "active"})
//	    return err
//	})
//
// Each session owns its own HTTP transport and closes its idle connections
// when Do returns, whatever the outcome.
//
// # Authentication
//
// The manager issues a JWT from POST /security/user/authenticate in exchange
// for basic credentials. Sessions authenticate lazily on their first request
// and reuse the client's last token when it has not expired. A 401 response
// discards the token, authenticates once more and repeats the request once.
// A second failure is returned to the caller.
//
// # Errors
//
// Every API failure is an *APIError carrying the HTTP status. Connection
// failures are reported with status 503. Use IsNotFound to detect 404s.
//
// # Indexer
//
// IndexerClient searches alert documents with basic authentication:
//
//	alerts, err := indexer.SearchAlerts(ctx, wazuh.AlertQuery{Limit: 50})
package wazuh
