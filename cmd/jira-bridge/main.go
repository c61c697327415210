package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/jira-bridge/internal/catalog"
	"github.com/bobmcallan/jira-bridge/internal/common"
	"github.com/bobmcallan/jira-bridge/internal/config"
	"github.com/bobmcallan/jira-bridge/internal/creds"
	"github.com/bobmcallan/jira-bridge/internal/gateway"
	"github.com/bobmcallan/jira-bridge/internal/jira"
)

func main() {
	stdio := flag.Bool("stdio", false, "Use stdio transport (for desktop MCP clients)")
	configFile := flag.String("config", "jira-bridge.toml", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := common.NewLoggerFromConfig(cfg.Logging)

	cat, err := catalog.New(catalog.Builtin())
	if err != nil {
		log.Fatalf("Failed to load tool catalog: %v", err)
	}

	resolver := creds.NewResolver(creds.FromConfig(cfg.Jira))
	client := jira.New(resolver, logger)
	dispatcher := gateway.NewDispatcher(cat, resolver, client, logger)

	mcpServer := server.NewMCPServer(
		cfg.Server.Name,
		config.GetVersion(),
		server.WithToolCapabilities(true),
	)

	registerTools(mcpServer, cat, dispatcher)

	if *stdio {
		// Stdio transport — reads stdin, writes stdout
		if err := server.ServeStdio(mcpServer); err != nil {
			fmt.Fprintf(os.Stderr, "stdio server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	port := cfg.Server.Port

	// Streamable HTTP transport — listens on configured port
	httpServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithStateLess(true),
	)

	logger.Info().Str("port", port).Msg("starting MCP streamable HTTP server")
	fmt.Fprintf(os.Stderr, "Starting MCP Streamable HTTP on :%s\n", port)

	if err := httpServer.Start(":" + port); err != nil {
		fmt.Fprintf(os.Stderr, "http server error: %v\n", err)
		os.Exit(1)
	}
}
