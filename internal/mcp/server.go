// Package mcp exposes the SMS ledger over the Model Context Protocol:
// parsing single messages and querying the stored transaction records.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lox/sms-ledger/internal/db"
	"github.com/lox/sms-ledger/internal/pipeline"
	"github.com/lox/sms-ledger/internal/types"
)

type Server struct {
	db       *db.DB
	pipeline *pipeline.Pipeline
	logger   *log.Logger
}

func New(db *db.DB, pipeline *pipeline.Pipeline, logger *log.Logger) *Server {
	return &Server{
		db:       db,
		pipeline: pipeline,
		logger:   logger,
	}
}

func (s *Server) Run() error {
	mcpServer := server.NewMCPServer(
		"SMS Transaction Ledger",
		"1.0.0",
	)

	mcpServer.AddTool(mcp.NewTool("parse_sms",
		mcp.WithDescription("Parse a bank SMS message into a transaction record and store it"),
		mcp.WithString("sms",
			mcp.Required(),
			mcp.Description("The SMS message text (English or Arabic)"),
		),
		mcp.WithString("bank",
			mcp.Description("Bank identifier hint; omit to try all known banks"),
		),
	), s.parseSMSHandler)

	mcpServer.AddTool(mcp.NewTool("search_transactions",
		mcp.WithDescription("Full-text search over stored transactions (payee, merchant, category, tags)"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query - what you're looking for"),
		),
		mcp.WithString("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	), s.searchTransactionsHandler)

	mcpServer.AddTool(mcp.NewTool("list_transactions",
		mcp.WithDescription("List stored transactions, newest first, with optional filters"),
		mcp.WithString("limit",
			mcp.Description("Maximum number of results to return (default: 50)"),
		),
		mcp.WithString("category",
			mcp.Description("Filter by category"),
		),
		mcp.WithString("state",
			mcp.Description("Filter by transaction state (MONETARY, OTP, DECLINED, PROMO, UNKNOWN)"),
		),
	), s.listTransactionsHandler)

	// Start the stdio server
	if err := server.ServeStdio(mcpServer); err != nil {
		return err
	}

	return nil
}

func (s *Server) parseSMSHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sms, ok := request.Params.Arguments["sms"].(string)
	if !ok || sms == "" {
		return nil, errors.New("sms must be a non-empty string")
	}
	bank, _ := request.Params.Arguments["bank"].(string)

	rec := s.pipeline.ProcessMessage(ctx, types.RawMessage{
		Text:       sms,
		BankID:     bank,
		IngestedAt: time.Now(),
	})

	if s.db != nil {
		if err := s.db.Store(ctx, rec); err != nil {
			s.logger.Error("Failed to store parsed record", "id", rec.ID, "error", err)
		}
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchTransactionsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, ok := request.Params.Arguments["query"].(string)
	if !ok {
		return nil, errors.New("query must be a string")
	}

	limit, err := intArg(request, "limit", 10)
	if err != nil {
		return nil, err
	}

	records, err := s.db.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search transactions: %w", err)
	}

	var result string
	for _, rec := range records {
		result += formatRecord(rec)
	}
	return mcp.NewToolResultText(result), nil
}

func (s *Server) listTransactionsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit, err := intArg(request, "limit", 50)
	if err != nil {
		return nil, err
	}
	category, _ := request.Params.Arguments["category"].(string)
	state, _ := request.Params.Arguments["state"].(string)

	records, err := s.db.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var result string
	for _, rec := range records {
		if category != "" && rec.Category != category {
			continue
		}
		if state != "" && string(rec.TransactionState) != state {
			continue
		}
		result += formatRecord(rec)
	}
	return mcp.NewToolResultText(result), nil
}

// intArg reads an optional numeric tool argument that MCP clients may
// send as a number or a string.
func intArg(request mcp.CallToolRequest, name string, fallback int) (int, error) {
	val, ok := request.Params.Arguments[name]
	if !ok {
		return fallback, nil
	}
	switch v := val.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", name, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number or string", name)
	}
}

func formatRecord(rec types.TransactionRecord) string {
	amount := "-"
	if rec.Amount != nil {
		amount = strconv.FormatFloat(*rec.Amount, 'f', 2, 64)
		if rec.Currency != "" {
			amount += " " + rec.Currency
		}
	}

	date := rec.Date
	if date == "" {
		date = "(no date)"
	}
	result := fmt.Sprintf("%s: %s - %s\n", date, amount, rec.Payee)
	result += fmt.Sprintf("  State: %s\n", rec.TransactionState)
	result += fmt.Sprintf("  Category: %s / %s\n", rec.Category, rec.Subcategory)
	if rec.AccountID != "" {
		result += fmt.Sprintf("  Account: %s (%s)\n", rec.AccountID, rec.AccountType)
	}
	if len(rec.Tags) > 0 {
		result += fmt.Sprintf("  Tags: %v\n", rec.Tags)
	}
	if rec.Urgency != "" && rec.Urgency != types.UrgencyNormal {
		result += fmt.Sprintf("  Urgency: %s\n", rec.Urgency)
	}
	result += fmt.Sprintf("  Confidence: %s\n", rec.Confidence)
	if rec.MLCategory != "" {
		result += fmt.Sprintf("  ML Category: %s (%.2f, %s)\n", rec.MLCategory, *rec.MLCategoryScore, rec.MLCategoryConfidence)
	}
	result += "\n"
	return result
}
