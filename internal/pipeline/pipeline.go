// Package pipeline composes the extraction stages into a per-message
// transform: text repair, template extraction, state classification,
// validation, normalization, and optional categorization and ML scoring.
// Every message yields a record; failures degrade that message only.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lox/sms-ledger/internal/categorize"
	"github.com/lox/sms-ledger/internal/db"
	"github.com/lox/sms-ledger/internal/mlscore"
	"github.com/lox/sms-ledger/internal/promo"
	"github.com/lox/sms-ledger/internal/repair"
	"github.com/lox/sms-ledger/internal/schema"
	"github.com/lox/sms-ledger/internal/template"
	"github.com/lox/sms-ledger/internal/types"
	"github.com/lox/sms-ledger/internal/validate"
)

// BatchConfig controls batch execution. Concurrency <= 1 processes
// messages sequentially; results always come back in input order.
type BatchConfig struct {
	Concurrency int
	Progress    bool
}

// Pipeline runs the end-to-end message transform. The categorizer,
// scorer, and store are optional; absent collaborators are skipped.
type Pipeline struct {
	logger     *log.Logger
	templates  *template.Engine
	promos     *promo.Classifier
	validator  *validate.Validator
	normalizer *schema.Normalizer

	categorizer *categorize.Categorizer
	scorer      mlscore.CategoryScorer
	store       *db.DB
}

// New creates a pipeline from its required stages.
func New(
	templates *template.Engine,
	promos *promo.Classifier,
	validator *validate.Validator,
	normalizer *schema.Normalizer,
	logger *log.Logger,
) *Pipeline {
	return &Pipeline{
		logger:     logger,
		templates:  templates,
		promos:     promos,
		validator:  validator,
		normalizer: normalizer,
	}
}

// WithCategorizer enables rule-based categorization.
func (p *Pipeline) WithCategorizer(c *categorize.Categorizer) *Pipeline {
	p.categorizer = c
	return p
}

// WithScorer enables the external ML category scorer.
func (p *Pipeline) WithScorer(s mlscore.CategoryScorer) *Pipeline {
	p.scorer = s
	return p
}

// WithStore persists every processed record to the ledger.
func (p *Pipeline) WithStore(d *db.DB) *Pipeline {
	p.store = d
	return p
}

// ProcessMessage runs the full stage sequence for one message. The call
// never returns an error: any internal failure degrades to a minimal
// low-confidence record.
func (p *Pipeline) ProcessMessage(ctx context.Context, msg types.RawMessage) (rec types.TransactionRecord) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Message processing failed", "panic", r)
			rec = minimalRecord()
		}
	}()

	ingestedAt := msg.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now()
	}

	repaired, changed := repair.RepairText(msg.Text)
	extracted := p.templates.ParseSMS(repaired, msg.BankID)

	rawDate := extracted.Get(types.FieldDate)
	resolvedDate, dateSource := repair.ResolveTimestamp(rawDate, msg.FileModifiedAt, ingestedAt)

	state := ClassifyState(repaired, extracted.Has(types.FieldAmount), p.promos)

	fields := make(map[string]string, len(extracted.Fields)+1)
	for k, v := range extracted.Fields {
		fields[k] = v
	}
	fields["matched_bank"] = extracted.MatchedBank

	validated := p.validator.Validate(validate.Input{
		Fields:           fields,
		Confidence:       extracted.Confidence,
		TransactionState: state,
		ResolvedDate:     resolvedDate,
		ExtractedDateRaw: rawDate,
		TextRepaired:     changed,
	})

	rec = p.normalizer.Normalize(validated)

	if p.categorizer != nil {
		rec = p.categorizer.Categorize(rec)
	}
	if p.scorer != nil {
		p.scoreCategory(ctx, repaired, validated.TxnType, &rec)
	}

	p.logger.Debug("Processed message",
		"id", rec.ID,
		"state", rec.TransactionState,
		"confidence", rec.Confidence,
		"date_source", dateSource)
	return rec
}

// scoreCategory asks the external scorer and attaches its verdict. A
// scorer failure leaves the ML fields null.
func (p *Pipeline) scoreCategory(ctx context.Context, smsText, txnType string, rec *types.TransactionRecord) {
	in := mlscore.Input{
		SMSText:            smsText,
		Payee:              rec.Payee,
		NormalizedMerchant: rec.NormalizedMerchant,
		TxnType:            txnType,
	}
	if p.categorizer != nil {
		in.Categories = p.categorizer.KnownCategories()
	}

	result, err := p.scorer.ScoreCategory(ctx, in)
	if err != nil {
		p.logger.Warn("ML category scoring failed", "id", rec.ID, "error", err)
		return
	}

	score := result.Score
	rec.MLCategory = result.Category
	rec.MLCategoryScore = &score
	rec.MLCategoryConfidence = string(result.Confidence)
}

// ProcessBatch processes messages independently, optionally in parallel,
// and reassembles results in input order. The only returned error is a
// context cancellation; per-message failures degrade that message only.
func (p *Pipeline) ProcessBatch(ctx context.Context, msgs []types.RawMessage, cfg BatchConfig) ([]types.TransactionRecord, error) {
	startTime := time.Now()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	progress := newProgress(len(msgs), cfg.Progress)
	defer progress.Close()

	results := make([]types.TransactionRecord, len(msgs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for i, msg := range msgs {
		i, msg := i, msg
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			rec := p.ProcessMessage(gCtx, msg)

			if p.store != nil {
				if err := p.store.Store(gCtx, rec); err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					p.logger.Error("Failed to store record", "id", rec.ID, "error", err)
				}
			}

			results[i] = rec
			return progress.Add(1)
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			p.logger.Info("Batch processing interrupted")
			return nil, err
		}
		return nil, fmt.Errorf("error processing batch: %w", err)
	}

	p.logger.Info("Processed message batch",
		"messages", len(msgs),
		"duration", time.Since(startTime))
	return results, nil
}

// minimalRecord is the degraded output for a message that failed inside
// a stage: a fresh id, lowest confidence, everything else empty.
func minimalRecord() types.TransactionRecord {
	return types.TransactionRecord{
		ID:               uuid.NewString(),
		Category:         "Uncategorized",
		Subcategory:      "General",
		Urgency:          types.UrgencyNormal,
		Confidence:       types.ConfidenceLow,
		TransactionState: types.StateUnknown,
	}
}
