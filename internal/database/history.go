package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/urlrisk/internal/model"
)

// FileName is the name of the history database inside its directory.
const FileName = "history.db"

// DefaultListLimit caps Recent when the query sets no limit.
const DefaultListLimit = 20

// ErrNotFound is returned by Get when no scan has the requested ID.
var ErrNotFound = errors.New("scan not found")

// History is the scan history store. It is safe for concurrent use.
type History struct {
	db     *sql.DB
	dbPath string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging, which lets the API server
	// read history while a scan is being saved.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens the history database in dbDir.
func Open(dbDir string, opts Options) (*History, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &History{db: db, dbPath: dbPath}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := h.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

// Path returns the database file path.
func (h *History) Path() string {
	return h.dbPath
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		final_url TEXT NOT NULL,
		scanned_at TEXT NOT NULL,
		threat_level TEXT NOT NULL,
		threat_score INTEGER NOT NULL,
		security_score INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		result_json TEXT NOT NULL,
		screenshot BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_scans_url ON scans(url);
	CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scans(scanned_at);
	`
	_, err := h.db.ExecContext(ctx, schema)
	return err
}

// timestampLayout has a fixed width so that text order is time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Save stores result and returns the generated scan ID.
func (h *History) Save(ctx context.Context, result *model.ScanResult) (string, error) {
	if result == nil {
		return "", errors.New("failed to save scan: nil result")
	}

	stored := result.Clone()
	screenshot := stored.Screenshot
	stored.Screenshot = nil

	resultJSON, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to serialize result: %w", err)
	}

	id := uuid.NewString()
	query := `
	INSERT INTO scans (id, url, final_url, scanned_at, threat_level, threat_score, security_score, error, result_json, screenshot)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = h.db.ExecContext(ctx, query,
		id,
		stored.URL,
		stored.FinalURL,
		formatTimestamp(stored.ScanDate),
		string(stored.ThreatLevel),
		stored.ThreatScore,
		stored.Security.Score,
		stored.Error,
		string(resultJSON),
		screenshot,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save scan: %w", err)
	}
	return id, nil
}

// Summary is a history row without the full result.
type Summary struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	FinalURL      string            `json:"finalUrl"`
	ScanDate      time.Time         `json:"scanDate"`
	ThreatLevel   model.ThreatLevel `json:"threatLevel"`
	ThreatScore   int               `json:"threatScore"`
	SecurityScore int               `json:"securityScore"`
	Error         string            `json:"error,omitempty"`
}

// Degraded reports whether the scan failed before completing.
func (s Summary) Degraded() bool {
	return s.Error != ""
}

// Query filters Recent.
type Query struct {
	// URL restricts the listing to one normalized URL. Empty lists all.
	URL string

	// Limit caps the number of rows. Zero or less means DefaultListLimit.
	Limit int
}

// Recent lists stored scans, newest first.
func (h *History) Recent(ctx context.Context, q Query) ([]Summary, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
	SELECT id, url, final_url, scanned_at, threat_level, threat_score, security_score, error
	FROM scans
	WHERE (? = '' OR url = ?)
	ORDER BY scanned_at DESC, rowid DESC
	LIMIT ?
	`
	rows, err := h.db.QueryContext(ctx, query, q.URL, q.URL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	results := make([]Summary, 0)
	for rows.Next() {
		var (
			s         Summary
			scannedAt string
			level     string
		)
		if err := rows.Scan(&s.ID, &s.URL, &s.FinalURL, &scannedAt, &level,
			&s.ThreatScore, &s.SecurityScore, &s.Error); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.ScanDate = parseTimestamp(scannedAt)
		s.ThreatLevel = model.ThreatLevel(level)
		results = append(results, s)
	}
	return results, rows.Err()
}

// Get returns the full result of the scan with the given ID.
func (h *History) Get(ctx context.Context, id string) (*model.ScanResult, error) {
	query := `SELECT result_json, screenshot FROM scans WHERE id = ?`

	var (
		resultJSON string
		screenshot []byte
	)
	err := h.db.QueryRowContext(ctx, query, id).Scan(&resultJSON, &screenshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	var result model.ScanResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to parse scan %s: %w", id, err)
	}
	if len(screenshot) > 0 {
		result.Screenshot = screenshot
	}
	return &result, nil
}

// Prune deletes scans made before cutoff and returns how many were removed.
func (h *History) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM scans WHERE scanned_at < ?`, formatTimestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune scans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned scans: %w", err)
	}
	return n, nil
}

// timestampFormats are tried in order when reading scanned_at. Rows written
// by other tools may use SQLite's datetime format.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
