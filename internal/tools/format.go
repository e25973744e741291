// ABOUTME: Text formatting helpers shared by the Wazuh tools.
// ABOUTME: Agent id normalization, status/severity/level indicators, timestamps, and truncation.

package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/2389/wazuh-mcp/internal/wazuh"
)

// ErrInvalidAgentID is returned when an agent id cannot be normalized.
var ErrInvalidAgentID = errors.New("invalid agent ID")

var agentIDPattern = regexp.MustCompile(`^\d{1,3}$`)

// FormatAgentID normalizes an agent id to the manager's three-digit form:
// "7" and "agent/7" become "007". Ids must be between 0 and 999.
func FormatAgentID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	id = strings.TrimPrefix(id, "agent/")
	if id == "" {
		return "", fmt.Errorf("%w: agent ID cannot be empty", ErrInvalidAgentID)
	}
	if !agentIDPattern.MatchString(id) {
		if n, err := strconv.Atoi(id); err == nil {
			return "", fmt.Errorf("%w: agent ID must be between 0 and 999, got %d", ErrInvalidAgentID, n)
		}
		return "", fmt.Errorf("%w: %q, expected a number such as 1 or 001", ErrInvalidAgentID, raw)
	}
	n, _ := strconv.Atoi(id)
	return fmt.Sprintf("%03d", n), nil
}

var statusIndicators = map[string]string{
	"active":          "🟢 ACTIVE",
	"connected":       "🟢 CONNECTED",
	"online":          "🟢 ONLINE",
	"running":         "🟢 RUNNING",
	"enabled":         "🟢 ENABLED",
	"synced":          "✅ SYNCED",
	"healthy":         "✅ HEALTHY",
	"inactive":        "🔴 INACTIVE",
	"disconnected":    "🔴 DISCONNECTED",
	"offline":         "🔴 OFFLINE",
	"stopped":         "🔴 STOPPED",
	"disabled":        "🔴 DISABLED",
	"not synced":      "❌ NOT SYNCED",
	"unhealthy":       "❌ UNHEALTHY",
	"pending":         "🟡 PENDING",
	"never_connected": "⚪ NEVER CONNECTED",
	"unknown":         "❓ UNKNOWN",
}

// StatusIndicator decorates an agent, node or port status.
func StatusIndicator(status string) string {
	if indicator, ok := statusIndicators[strings.ToLower(status)]; ok {
		return indicator
	}
	return strings.ToUpper(status)
}

var severityIndicators = map[string]string{
	"critical":      "🔴 CRITICAL",
	"high":          "🟠 HIGH",
	"medium":        "🟡 MEDIUM",
	"low":           "🟢 LOW",
	"info":          "🔵 INFO",
	"informational": "🔵 INFO",
}

// SeverityIndicator decorates a vulnerability severity.
func SeverityIndicator(severity string) string {
	if indicator, ok := severityIndicators[strings.ToLower(severity)]; ok {
		return indicator
	}
	return strings.ToUpper(severity)
}

// LevelIndicator decorates a rule level (0-15).
func LevelIndicator(level int) string {
	switch {
	case level >= 12:
		return fmt.Sprintf("🔴 LEVEL %d", level)
	case level >= 7:
		return fmt.Sprintf("🟠 LEVEL %d", level)
	case level >= 4:
		return fmt.Sprintf("🟡 LEVEL %d", level)
	case level >= 1:
		return fmt.Sprintf("🟢 LEVEL %d", level)
	default:
		return fmt.Sprintf("⚪ LEVEL %d", level)
	}
}

// LogLevelIndicator decorates a manager log level.
func LogLevelIndicator(level string) string {
	switch strings.ToLower(level) {
	case "error", "critical":
		return "🔴 " + strings.ToUpper(level)
	case "warning":
		return "🟡 " + strings.ToUpper(level)
	case "info":
		return "🔵 " + strings.ToUpper(level)
	case "":
		return "N/A"
	default:
		return strings.ToUpper(level)
	}
}

// Truncate shortens text to at most limit runes, ending in "..." when cut.
func Truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	if limit <= 3 {
		return string([]rune(text)[:limit])
	}
	return string([]rune(text)[:limit-3]) + "..."
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

// parseTimestamp reads the timestamp shapes the manager and indexer emit.
func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders a timestamp as "2006-01-02 15:04:05 UTC". Values
// that cannot be parsed are returned unchanged, and empty values as "N/A".
func FormatTimestamp(value string) string {
	if value == "" {
		return "N/A"
	}
	t, ok := parseTimestamp(value)
	if !ok {
		return value
	}
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}

// formatTimestampRelative appends a relative age such as "(3 hours ago)".
func formatTimestampRelative(value string) string {
	formatted := FormatTimestamp(value)
	if t, ok := parseTimestamp(value); ok {
		return formatted + " (" + humanize.Time(t) + ")"
	}
	return formatted
}

// FilterPortsByState keeps listening ports when state is "listening", and
// every other port, including ones with no state, for any other value.
// Ports reporting an empty state are dropped whenever a filter is applied.
func FilterPortsByState(ports []wazuh.Port, state string) []wazuh.Port {
	if state == "" {
		return ports
	}
	wantListening := strings.EqualFold(state, "listening")

	filtered := make([]wazuh.Port, 0, len(ports))
	for _, port := range ports {
		if port.State == "" {
			continue
		}
		if port.Listening() == wantListening {
			filtered = append(filtered, port)
		}
	}
	return filtered
}

// formatStats renders a statistics object as indented JSON with sorted keys.
func formatStats(title string, stats wazuh.Stats) string {
	if len(stats) == 0 {
		return title + ": no data reported."
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Sprintf("%s: %v", title, stats)
	}
	return title + ":\n" + string(data)
}

// statsSummary lists the top-level numeric counters of a statistics object
// as "key: value" lines in key order.
func statsSummary(stats wazuh.Stats) []string {
	keys := make([]string, 0, len(stats))
	for key, value := range stats {
		if _, ok := value.(float64); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		value := stats[key].(float64)
		if value == float64(int64(value)) {
			lines = append(lines, fmt.Sprintf("%s: %s", key, humanize.Comma(int64(value))))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", key, humanize.Commaf(value)))
	}
	return lines
}

// orNA substitutes "N/A" for empty strings.
func orNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}
