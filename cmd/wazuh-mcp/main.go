// ABOUTME: Entry point for wazuh-mcp, an MCP server for the Wazuh SIEM
// ABOUTME: Dispatches the serve, tools, check, audit and version subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/2389/wazuh-mcp/internal/audit"
	"github.com/2389/wazuh-mcp/internal/config"
	"github.com/2389/wazuh-mcp/internal/mcp"
	"github.com/2389/wazuh-mcp/internal/tools"
	"github.com/2389/wazuh-mcp/internal/wazuh"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const serverName = "wazuh-mcp"

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: wazuh-mcp <command> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  serve     Serve MCP over stdin/stdout")
	fmt.Fprintln(os.Stderr, "  tools     List the tools and their parameters")
	fmt.Fprintln(os.Stderr, "  check     Verify the manager and indexer connections")
	fmt.Fprintln(os.Stderr, "  audit     Show recently recorded tool calls")
	fmt.Fprintln(os.Stderr, "  version   Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, args)
	case "tools":
		err = runTools(args)
	case "check":
		err = runCheck(ctx, args)
	case "audit":
		err = runAudit(ctx, args)
	case "version", "--version", "-v":
		fmt.Printf("%s %s\n", serverName, version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// commonFlags are shared by every subcommand that loads configuration.
type commonFlags struct {
	configPath string
}

func newFlagSet(name string, common *commonFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&common.configPath, "config", "c", "", "config file (default $WAZUH_MCP_CONFIG or ~/.config/wazuh-mcp/config.yaml)")
	return fs
}

// loadConfig resolves and loads the configuration, returning the file used
// (empty when running on defaults and environment).
func loadConfig(flagValue string) (*config.Config, string, error) {
	path := config.ResolvePath(flagValue)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// backends holds the clients built from configuration.
type backends struct {
	manager *wazuh.Client
	indexer *wazuh.IndexerClient
}

func newBackends(cfg *config.Config, logger *slog.Logger) (*backends, error) {
	manager, err := wazuh.NewClient(wazuh.Config{
		BaseURL:   cfg.ManagerURL(),
		Username:  cfg.Wazuh.Username,
		Password:  cfg.Wazuh.Password,
		VerifySSL: cfg.Wazuh.VerifySSL,
		Timeout:   cfg.Wazuh.Timeout,
		Logger:    logger.With("component", "wazuh"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating manager client: %w", err)
	}

	b := &backends{manager: manager}
	if cfg.Indexer.Enabled {
		b.indexer, err = wazuh.NewIndexerClient(wazuh.IndexerConfig{
			BaseURL:   cfg.IndexerURL(),
			Username:  cfg.Indexer.Username,
			Password:  cfg.Indexer.Password,
			Index:     cfg.Indexer.Index,
			VerifySSL: cfg.Wazuh.VerifySSL,
			Timeout:   cfg.Wazuh.Timeout,
			Logger:    logger.With("component", "indexer"),
		})
		if err != nil {
			return nil, fmt.Errorf("creating indexer client: %w", err)
		}
	}
	return b, nil
}

// newRegistry builds the tool registry over the configured backends.
func newRegistry(cfg *config.Config, logger *slog.Logger) (*mcp.Registry, error) {
	b, err := newBackends(cfg, logger)
	if err != nil {
		return nil, err
	}
	reg := mcp.NewRegistry(logger.With("component", "registry"))
	if err := tools.Register(reg, tools.Deps{Manager: b.manager, Indexer: b.indexer, Logger: logger.With("component", "tools")}); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return reg, nil
}

func runServe(ctx context.Context, args []string) error {
	var common commonFlags
	fs := newFlagSet("serve", &common)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, configPath, err := loadConfig(common.configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		logger.Warn("stdin is a terminal; wazuh-mcp expects an MCP client to speak JSON-RPC on stdin")
	}

	reg, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}

	serverCfg := mcp.Config{
		Registry:        reg,
		Logger:          logger.With("component", "mcp"),
		Info:            mcp.Implementation{Name: serverName, Version: version},
		Instructions:    tools.Instructions,
		EnablePrompts:   cfg.Server.EnablePrompts,
		EnableResources: cfg.Server.EnableResources,
		ToolTimeout:     cfg.Server.ToolTimeout,
	}

	if cfg.Audit.Path != "" {
		store, err := audit.NewStore(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer store.Close()
		serverCfg.Recorder = store
	}

	server, err := mcp.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	logger.Info("starting wazuh-mcp",
		"version", version,
		"config", configPath,
		"manager", cfg.ManagerURL(),
		"indexer_enabled", cfg.Indexer.Enabled,
		"tools", reg.Len(),
		"audit", cfg.Audit.Path != "",
	)

	err = server.ServeStdio(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("client closed stdin, exiting")
	return nil
}
