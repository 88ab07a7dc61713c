package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lox/sms-ledger/internal/commands"
	"github.com/lox/sms-ledger/internal/db"
	"github.com/lox/sms-ledger/internal/mcp"
)

type CLI struct {
	commands.CommonConfig
	commands.ScorerConfig
}

func (c *CLI) Run() error {
	// Logs go to stderr; stdout carries the MCP stdio protocol.
	logger := log.New(os.Stderr)

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Fatal("Invalid log level", "error", err)
	}
	logger.SetLevel(level)

	ledger, err := db.New(c.DataDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer ledger.Close()

	p, err := commands.SetupPipeline(c.CommonConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", "error", err)
	}

	scorer, err := commands.SetupScorer(context.Background(), c.ScorerConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize category scorer", "error", err)
	}
	if scorer != nil {
		defer scorer.Close()
		p.WithScorer(scorer)
	}

	return mcp.New(ledger, p, logger).Run()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("sms-ledger-mcp"),
		kong.Description("Serve the SMS transaction ledger over MCP (stdio)"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
