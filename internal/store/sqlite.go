package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned by Get for an unknown id
var ErrNotFound = errors.New("scan record not found")

// Record is the persisted form of one scan
type Record struct {
	ID             string          `json:"id"`
	BatchID        string          `json:"batch_id,omitempty"`
	URL            string          `json:"url"`
	FinalURL       string          `json:"final_url"`
	RedirectChain  []string        `json:"redirect_chain"`
	PageTitle      string          `json:"page_title"`
	SSLValid       bool            `json:"ssl_valid"`
	Score          int             `json:"score"`
	Level          string          `json:"level"`
	Indicators     json.RawMessage `json:"indicators"`
	ContentSignals json.RawMessage `json:"content_signals"`
	Certificate    json.RawMessage `json:"certificate,omitempty"`
	HasScreenshot  bool            `json:"has_screenshot"`
	Screenshot     []byte          `json:"-"`
	Status         string          `json:"status"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Store persists scan records in sqlite
type Store struct {
	db *sql.DB
}

// Open creates the database file if needed and applies pending migrations
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY under concurrent batch inserts
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to initialize migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert writes rec, assigning an id and timestamp when unset
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.HasScreenshot = len(rec.Screenshot) > 0

	chain := rec.RedirectChain
	if chain == nil {
		chain = []string{}
	}
	chainJSON, err := json.Marshal(chain)
	if err != nil {
		return fmt.Errorf("encoding redirect chain: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (id, batch_id, url, final_url, redirect_chain, page_title, ssl_valid,
			score, level, indicators, content_signals, certificate, has_screenshot, screenshot,
			status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullString(rec.BatchID), rec.URL, rec.FinalURL, string(chainJSON), rec.PageTitle, rec.SSLValid,
		rec.Score, rec.Level, rawOr(rec.Indicators, "[]"), rawOr(rec.ContentSignals, "{}"),
		nullRaw(rec.Certificate), rec.HasScreenshot, rec.Screenshot,
		rec.Status, rec.Error, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting scan %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `id, batch_id, url, final_url, redirect_chain, page_title, ssl_valid, score, level,
	indicators, content_signals, certificate, has_screenshot, status, error, created_at`

// Get loads one record including its screenshot
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+`, screenshot FROM scans WHERE id = ?`, id)

	rec, err := scanRecord(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying scan %s: %w", id, err)
	}
	return rec, nil
}

// ListRecent returns up to limit records, newest first, without screenshot bytes
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM scans ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent scans: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scanning scan row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scan rows: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, withScreenshot bool) (*Record, error) {
	var (
		rec         Record
		batchID     sql.NullString
		chainJSON   string
		indicators  string
		signals     string
		certificate sql.NullString
	)

	dest := []any{
		&rec.ID, &batchID, &rec.URL, &rec.FinalURL, &chainJSON, &rec.PageTitle, &rec.SSLValid,
		&rec.Score, &rec.Level, &indicators, &signals, &certificate, &rec.HasScreenshot,
		&rec.Status, &rec.Error, &rec.CreatedAt,
	}
	if withScreenshot {
		dest = append(dest, &rec.Screenshot)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec.BatchID = batchID.String
	rec.Indicators = json.RawMessage(indicators)
	rec.ContentSignals = json.RawMessage(signals)
	if certificate.Valid {
		rec.Certificate = json.RawMessage(certificate.String)
	}
	if err := json.Unmarshal([]byte(chainJSON), &rec.RedirectChain); err != nil {
		return nil, fmt.Errorf("decoding redirect chain: %w", err)
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullRaw(raw json.RawMessage) sql.NullString {
	return sql.NullString{String: string(raw), Valid: len(raw) > 0}
}

func rawOr(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	return string(raw)
}
