package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/charmbracelet/log"
	"github.com/lox/sms-ledger/internal/types"
)

// DB represents a SQLite database connection
type DB struct {
	db     *sql.DB
	logger *log.Logger
}

// New creates a new database connection
func New(dataDir string, logger *log.Logger) (*DB, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "transactions.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	_, err = db.Exec(`PRAGMA foreign_keys = ON;`)
	if err != nil {
		return nil, fmt.Errorf("failed to set database pragmas: %v", err)
	}

	d := &DB{
		db:     db,
		logger: logger,
	}

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	return d, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			date TEXT,
			amount DECIMAL(15,2),
			currency TEXT,
			payee TEXT,
			normalized_merchant TEXT,
			category TEXT NOT NULL,
			subcategory TEXT NOT NULL,
			tags TEXT NOT NULL,
			account_id TEXT,
			account_type TEXT,
			interest_rate REAL,
			urgency TEXT NOT NULL,
			confidence TEXT NOT NULL,
			resolved_date TEXT,
			transaction_state TEXT NOT NULL,
			text_repaired INTEGER NOT NULL DEFAULT 0,
			extracted_date_raw TEXT,
			ml_category TEXT,
			ml_category_score REAL,
			ml_category_confidence TEXT,
			search_body TEXT NOT NULL
		);

		-- Create virtual table for full-text search
		CREATE VIRTUAL TABLE IF NOT EXISTS transactions_fts USING fts5(
			search_body,
			content='transactions',
			content_rowid='rowid'
		);

		-- Create trigger to keep FTS table in sync
		CREATE TRIGGER IF NOT EXISTS transactions_ai AFTER INSERT ON transactions BEGIN
			INSERT INTO transactions_fts(rowid, search_body) VALUES (new.rowid, new.search_body);
		END;

		CREATE TRIGGER IF NOT EXISTS transactions_ad AFTER DELETE ON transactions BEGIN
			DELETE FROM transactions_fts WHERE rowid = old.rowid;
		END;

		CREATE TRIGGER IF NOT EXISTS transactions_au AFTER UPDATE ON transactions BEGIN
			DELETE FROM transactions_fts WHERE rowid = old.rowid;
			INSERT INTO transactions_fts(rowid, search_body) VALUES (new.rowid, new.search_body);
		END;
	`)
	if err != nil {
		return fmt.Errorf("failed to create transactions table: %v", err)
	}

	// Create indexes for faster lookups
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_state ON transactions(transaction_state)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_urgency ON transactions(urgency)",
	}

	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %v", err)
		}
	}

	return nil
}

// Store stores a transaction record in the database
func (d *DB) Store(ctx context.Context, rec types.TransactionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("transaction record has no ID")
	}
	d.logger.Debug("Storing transaction", "id", rec.ID, "date", rec.Date, "payee", rec.Payee, "category", rec.Category)

	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %v", err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO transactions (
			id, date, amount, currency, payee, normalized_merchant,
			category, subcategory, tags,
			account_id, account_type, interest_rate,
			urgency, confidence, resolved_date, transaction_state,
			text_repaired, extracted_date_raw,
			ml_category, ml_category_score, ml_category_confidence,
			search_body
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, nullString(rec.Date), nullFloat(rec.Amount), nullString(rec.Currency), nullString(rec.Payee), nullString(rec.NormalizedMerchant),
		rec.Category, rec.Subcategory, string(tags),
		nullString(rec.AccountID), nullString(string(rec.AccountType)), nullFloat(rec.InterestRate),
		string(rec.Urgency), string(rec.Confidence), nullString(rec.ResolvedDate), string(rec.TransactionState),
		rec.TextRepaired, nullString(rec.ExtractedDateRaw),
		nullString(rec.MLCategory), nullFloat(rec.MLCategoryScore), nullString(rec.MLCategoryConfidence),
		searchBody(rec),
	)
	if err != nil {
		return fmt.Errorf("failed to store transaction: %v", err)
	}

	return nil
}

// StoreBatch stores records one by one, stopping at the first failure.
func (d *DB) StoreBatch(ctx context.Context, recs []types.TransactionRecord) error {
	for _, rec := range recs {
		if err := d.Store(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

const recordColumns = `id, date, amount, currency, payee, normalized_merchant,
	category, subcategory, tags,
	account_id, account_type, interest_rate,
	urgency, confidence, resolved_date, transaction_state,
	text_repaired, extracted_date_raw,
	ml_category, ml_category_score, ml_category_confidence`

// GetByID retrieves a transaction record by its ID. Returns (nil, nil)
// when no record exists.
func (d *DB) GetByID(ctx context.Context, id string) (*types.TransactionRecord, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM transactions WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %v", err)
	}
	return rec, nil
}

// Has checks if a transaction record exists in the database
func (d *DB) Has(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE id = ?)
	`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction existence: %v", err)
	}

	return exists, nil
}

// List returns transaction records ordered by date, newest first.
// A limit <= 0 returns all records.
func (d *DB) List(ctx context.Context, limit int) ([]types.TransactionRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM transactions
		ORDER BY date DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Search returns records whose payee, merchant, category or tags match
// the full-text query, best matches first. A limit <= 0 returns all.
func (d *DB) Search(ctx context.Context, query string, limit int) ([]types.TransactionRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+prefixColumns("t.")+`
		FROM transactions t
		JOIN transactions_fts fts ON t.rowid = fts.rowid
		WHERE fts.search_body MATCH ?
		ORDER BY fts.rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search transactions: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Count returns the number of transaction records in the database
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow(`
		SELECT COUNT(*) FROM transactions
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %v", err)
	}

	return count, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*types.TransactionRecord, error) {
	var rec types.TransactionRecord
	var date, currency, payee, merchant sql.NullString
	var accountID, accountType sql.NullString
	var resolvedDate, extractedRaw sql.NullString
	var mlCategory, mlConfidence sql.NullString
	var amount, interestRate, mlScore sql.NullFloat64
	var tags string

	err := row.Scan(
		&rec.ID, &date, &amount, &currency, &payee, &merchant,
		&rec.Category, &rec.Subcategory, &tags,
		&accountID, &accountType, &interestRate,
		&rec.Urgency, &rec.Confidence, &resolvedDate, &rec.TransactionState,
		&rec.TextRepaired, &extractedRaw,
		&mlCategory, &mlScore, &mlConfidence,
	)
	if err != nil {
		return nil, err
	}

	rec.Date = date.String
	rec.Currency = currency.String
	rec.Payee = payee.String
	rec.NormalizedMerchant = merchant.String
	rec.AccountID = accountID.String
	rec.AccountType = types.AccountType(accountType.String)
	rec.ResolvedDate = resolvedDate.String
	rec.ExtractedDateRaw = extractedRaw.String
	rec.MLCategory = mlCategory.String
	rec.MLCategoryConfidence = mlConfidence.String
	if amount.Valid {
		rec.Amount = &amount.Float64
	}
	if interestRate.Valid {
		rec.InterestRate = &interestRate.Float64
	}
	if mlScore.Valid {
		rec.MLCategoryScore = &mlScore.Float64
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %v", err)
	}

	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]types.TransactionRecord, error) {
	var records []types.TransactionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return records, nil
}

// searchBody builds the text indexed by the FTS table.
func searchBody(rec types.TransactionRecord) string {
	parts := []string{rec.Payee, rec.NormalizedMerchant, rec.Category, rec.Subcategory}
	parts = append(parts, rec.Tags...)
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

func prefixColumns(prefix string) string {
	cols := strings.Split(recordColumns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
