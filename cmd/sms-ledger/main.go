package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lox/sms-ledger/internal/commands"
	"github.com/lox/sms-ledger/internal/db"
	"github.com/lox/sms-ledger/internal/pipeline"
	"github.com/lox/sms-ledger/internal/types"
)

type CLI struct {
	commands.CommonConfig
	commands.ScorerConfig

	InputFile   string `arg:"" help:"File with one SMS message per non-empty line" type:"existingfile"`
	Bank        string `help:"Bank identifier hint applied to every message (empty = try all banks)"`
	Concurrency int    `help:"Number of messages to process concurrently" default:"4"`
	NoProgress  bool   `help:"Disable progress bar" default:"false"`
	DryRun      bool   `help:"Print parsed records and exit (no ledger writes)" default:"false"`
	Limit       int    `help:"Limit the number of messages to process (0 = no limit)" default:"0"`
}

func (c *CLI) Run() error {
	logger := log.New(os.Stderr)

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Fatal("Invalid log level", "error", err)
	}
	logger.SetLevel(level)

	msgs, err := readMessages(c.InputFile, c.Bank)
	if err != nil {
		logger.Fatal("Failed to read input file", "error", err)
	}
	if c.Limit > 0 && len(msgs) > c.Limit {
		msgs = msgs[:c.Limit]
	}
	logger.Info("Read SMS messages", "count", len(msgs), "file", c.InputFile)

	processCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	p, err := commands.SetupPipeline(c.CommonConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", "error", err)
	}

	scorer, err := commands.SetupScorer(processCtx, c.ScorerConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize category scorer", "error", err)
	}
	if scorer != nil {
		defer scorer.Close()
		p.WithScorer(scorer)
	}

	if !c.DryRun {
		ledger, err := db.New(c.DataDir, logger)
		if err != nil {
			logger.Fatal("Failed to initialize database", "error", err)
		}
		defer ledger.Close()
		p.WithStore(ledger)
	}

	records, err := p.ProcessBatch(processCtx, msgs, pipeline.BatchConfig{
		Concurrency: c.Concurrency,
		Progress:    !c.NoProgress,
	})
	if err != nil {
		logger.Fatal("Failed to process messages", "error", err)
	}

	if c.DryRun {
		for _, rec := range records {
			b, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				fmt.Printf("Error marshaling record: %v\n", err)
				continue
			}
			fmt.Println(string(b))
		}
		return nil
	}

	logger.Info("Messages processed successfully", "count", len(records))
	return nil
}

// readMessages loads one message per non-empty line. The file's
// modification time feeds year inference for partial dates.
func readMessages(path, bank string) ([]types.RawMessage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var fileMtime *time.Time
	if info, err := file.Stat(); err == nil {
		mtime := info.ModTime()
		fileMtime = &mtime
	}

	ingestedAt := time.Now()
	var msgs []types.RawMessage

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		msgs = append(msgs, types.RawMessage{
			Text:           line,
			BankID:         bank,
			IngestedAt:     ingestedAt,
			FileModifiedAt: fileMtime,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("sms-ledger"),
		kong.Description("Extract bank transactions from SMS messages into a searchable ledger"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
