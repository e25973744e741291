// ABOUTME: Operator subcommands: tool catalog, connectivity check, and audit log listing
// ABOUTME: Output goes to stdout with fatih/color; these commands never speak MCP

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/wazuh-mcp/internal/audit"
	"github.com/2389/wazuh-mcp/internal/mcp"
	"github.com/2389/wazuh-mcp/internal/wazuh"
)

// quietLogger discards everything below warnings so command output stays readable.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func runTools(args []string) error {
	var common commonFlags
	fs := newFlagSet("tools", &common)
	asJSON := fs.Bool("json", false, "print the tools/list result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(common.configPath)
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg, quietLogger())
	if err != nil {
		return err
	}

	if *asJSON {
		infos := make([]mcp.ToolInfo, 0, reg.Len())
		for _, tool := range reg.List() {
			infos = append(infos, tool.Info())
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mcp.ListToolsResult{Tools: infos})
	}

	printCatalog(os.Stdout, reg.List())
	return nil
}

// printCatalog renders every tool with its parameters.
func printCatalog(w io.Writer, list []*mcp.Tool) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	for i, tool := range list {
		if i > 0 {
			fmt.Fprintln(w)
		}
		cyan.Fprint(w, tool.Name)
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", tool.Description)

		names := make([]string, 0, len(tool.InputSchema.Properties))
		for name := range tool.InputSchema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			prop := tool.InputSchema.Properties[name]
			fmt.Fprint(w, "    ")
			bold.Fprint(w, name)
			gray.Fprintf(w, " %s", prop.Type)
			switch {
			case tool.InputSchema.IsRequired(name):
				color.New(color.FgYellow).Fprint(w, " required")
			case prop.Default != nil:
				gray.Fprintf(w, " default=%v", prop.Default)
			}
			if prop.Description != "" {
				fmt.Fprintf(w, "  %s", prop.Description)
			}
			fmt.Fprintln(w)
		}
	}
}

func runCheck(ctx context.Context, args []string) error {
	var common commonFlags
	fs := newFlagSet("check", &common)
	askPassword := fs.Bool("ask-password", false, "prompt for the manager password instead of using the configured one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, configPath, err := loadConfig(common.configPath)
	if err != nil {
		return err
	}

	if *askPassword {
		password, err := readPassword(fmt.Sprintf("Password for %s: ", cfg.Wazuh.Username))
		if err != nil {
			return err
		}
		cfg.Wazuh.Password = password
	}

	b, err := newBackends(cfg, quietLogger())
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	if configPath == "" {
		configPath = "(none, defaults and environment)"
	}
	gray.Printf("config: %s\n\n", configPath)

	ctx, cancel := context.WithTimeout(ctx, cfg.Wazuh.Timeout)
	defer cancel()

	var info wazuh.APIInfo
	managerErr := b.manager.Do(ctx, func(s *wazuh.Session) error {
		if err := s.Authenticate(ctx); err != nil {
			return err
		}
		var err error
		info, err = s.Info(ctx)
		return err
	})
	if managerErr != nil {
		red.Print("✗ ")
		fmt.Printf("Wazuh Manager  %s: %v\n", cfg.ManagerURL(), managerErr)
	} else {
		green.Print("✓ ")
		fmt.Printf("Wazuh Manager  %s (%s %s on %s)\n", cfg.ManagerURL(), info.Title, info.APIVersion, info.Hostname)
	}

	var indexerErr error
	switch {
	case b.indexer == nil:
		gray.Print("- ")
		fmt.Println("Wazuh Indexer  disabled")
	default:
		_, indexerErr = b.indexer.SearchAlerts(ctx, wazuh.AlertQuery{Limit: 1})
		if indexerErr != nil && !wazuh.IsNotFound(indexerErr) {
			red.Print("✗ ")
			fmt.Printf("Wazuh Indexer  %s: %v\n", cfg.IndexerURL(), indexerErr)
		} else {
			indexerErr = nil
			green.Print("✓ ")
			fmt.Printf("Wazuh Indexer  %s (index %s)\n", cfg.IndexerURL(), cfg.Indexer.Index)
		}
	}

	if managerErr != nil || indexerErr != nil {
		return errors.New("connectivity check failed")
	}
	return nil
}

// readPassword prompts on stderr and reads a password from the terminal
// with echo disabled.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for the password prompt")
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

func runAudit(ctx context.Context, args []string) error {
	var common commonFlags
	fs := newFlagSet("audit", &common)
	limit := fs.IntP("limit", "n", 20, "number of calls to show")
	toolName := fs.StringP("tool", "t", "", "only show calls to this tool")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(common.configPath)
	if err != nil {
		return err
	}
	if cfg.Audit.Path == "" {
		return errors.New("audit log is disabled (set audit.path or WAZUH_MCP_AUDIT_PATH)")
	}

	store, err := audit.NewStore(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer store.Close()

	entries, err := store.Recent(ctx, *toolName, *limit)
	if err != nil {
		return err
	}
	printAudit(os.Stdout, entries)
	return nil
}

// printAudit renders audit entries one per line, newest first.
func printAudit(w io.Writer, entries []audit.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No tool calls recorded.")
		return
	}

	gray := color.New(color.FgHiBlack)
	for _, e := range entries {
		status := color.GreenString("ok   ")
		if e.IsError {
			status = color.RedString("error")
		}
		gray.Fprint(w, e.CreatedAt.Local().Format(time.DateTime)+" ")
		fmt.Fprintf(w, "%s %-36s %8s", status, e.ToolName, e.Duration.Round(time.Millisecond))
		if len(e.Arguments) > 0 && string(e.Arguments) != "{}" {
			gray.Fprintf(w, "  %s", strings.TrimSpace(string(e.Arguments)))
		}
		fmt.Fprintln(w)
	}
}
