package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/iocchecker/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "iocchecker.db"

// Duplicate sources recorded in run_duplicates.
const (
	SourceRun        = "run"
	SourceRepository = "repository"
)

// storedTimeLayout is fixed width so that timestamps sort as text.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrRunNotFound is returned when no run matches the requested ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when an ID prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run ID prefix matches more than one run")
)

// HistoryDB provides SQLite-based storage for run history.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents creating new files, mode=rwc allows it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// Path returns the database file location.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per checker run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		executed_by TEXT,
		hostname TEXT,
		directories TEXT NOT NULL,
		files_discovered INTEGER NOT NULL DEFAULT 0,
		files_extracted INTEGER NOT NULL DEFAULT 0,
		files_skipped INTEGER NOT NULL DEFAULT 0,
		files_rejected INTEGER NOT NULL DEFAULT 0,
		values_extracted INTEGER NOT NULL DEFAULT 0,
		values_dropped INTEGER NOT NULL DEFAULT 0,
		new_values INTEGER NOT NULL DEFAULT 0,
		repository_path TEXT,
		repository_size INTEGER NOT NULL DEFAULT 0,
		stored_values INTEGER NOT NULL DEFAULT 0,
		outputs TEXT,
		warnings INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Duplicate findings of each run
	CREATE TABLE IF NOT EXISTS run_duplicates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		token TEXT NOT NULL,
		value TEXT NOT NULL,
		value_text TEXT NOT NULL,
		count INTEGER NOT NULL,
		source TEXT NOT NULL,
		files TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_dups_run ON run_duplicates(run_id);
	CREATE INDEX IF NOT EXISTS idx_dups_value ON run_duplicates(value);
	CREATE INDEX IF NOT EXISTS idx_dups_value_text ON run_duplicates(value_text);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored run.
type RunRecord struct {
	ID             string
	StartedAt      time.Time
	ExecutedBy     string
	Hostname       string
	Directories    []string
	Stats          model.Stats
	NewValues      int
	RepositoryPath string
	RepositorySize int
	StoredValues   int
	Outputs        []string
	Warnings       int

	// Duplicates is filled by GetRun only.
	Duplicates []DuplicateRecord
}

// DuplicateRecord is one stored finding.
type DuplicateRecord struct {
	RunID  string
	Token  model.Token
	Value  model.Value
	Count  int
	Source string
	Files  []string
}

// ValueHit is a run that flagged a searched value.
type ValueHit struct {
	RunID     string
	StartedAt time.Time
	Token     model.Token
	Value     model.Value
	Count     int
	Source    string
}

// SaveRun stores a finished run and its findings in one transaction.
func (hdb *HistoryDB) SaveRun(ctx context.Context, run *model.Run) (err error) {
	dirsJSON, err := json.Marshal(run.Directories)
	if err != nil {
		return fmt.Errorf("failed to serialize directories: %w", err)
	}
	outputsJSON, err := json.Marshal(run.Outputs)
	if err != nil {
		return fmt.Errorf("failed to serialize outputs: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // already failing
		}
	}()

	query := `
	INSERT INTO runs (
		id, started_at, executed_by, hostname, directories,
		files_discovered, files_extracted, files_skipped, files_rejected,
		values_extracted, values_dropped, new_values,
		repository_path, repository_size, stored_values, outputs, warnings
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.StartedAt.UTC().Format(storedTimeLayout),
		run.ExecutedBy,
		run.Hostname,
		string(dirsJSON),
		run.Stats.FilesDiscovered,
		run.Stats.FilesExtracted,
		run.Stats.FilesSkipped,
		run.Stats.FilesRejected,
		run.Stats.ValuesExtracted,
		run.Stats.ValuesDropped,
		run.Merge.NewValues,
		run.RepositoryPath,
		run.Merge.RepositorySize,
		run.Merge.StoredValues,
		string(outputsJSON),
		len(run.Warnings),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if err = insertFindings(ctx, tx, run.ID, SourceRun, run.Findings); err != nil {
		return err
	}
	if err = insertFindings(ctx, tx, run.ID, SourceRepository, run.RepositoryFindings()); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func insertFindings(ctx context.Context, tx *sql.Tx, runID, source string, findings model.Findings) error {
	query := `
	INSERT INTO run_duplicates (run_id, token, value, value_text, count, source, files)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for _, tf := range findings {
		for _, f := range tf.Findings {
			filesJSON, err := json.Marshal(f.Files)
			if err != nil {
				return fmt.Errorf("failed to serialize files: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query,
				runID,
				string(tf.Token),
				f.Value.Raw(),
				f.Value.String(),
				f.Count,
				source,
				string(filesJSON),
			); err != nil {
				return fmt.Errorf("failed to save finding: %w", err)
			}
		}
	}
	return nil
}

const runColumns = `
	id, started_at, executed_by, hostname, directories,
	files_discovered, files_extracted, files_skipped, files_rejected,
	values_extracted, values_dropped, new_values,
	repository_path, repository_size, stored_values, outputs, warnings
`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*RunRecord, error) {
	var (
		rec                            RunRecord
		startedAt                      string
		executedBy, hostname, repoPath sql.NullString
		dirsJSON                       string
		outputsJSON                    sql.NullString
	)

	if err := s.Scan(
		&rec.ID, &startedAt, &executedBy, &hostname, &dirsJSON,
		&rec.Stats.FilesDiscovered, &rec.Stats.FilesExtracted, &rec.Stats.FilesSkipped, &rec.Stats.FilesRejected,
		&rec.Stats.ValuesExtracted, &rec.Stats.ValuesDropped, &rec.NewValues,
		&repoPath, &rec.RepositorySize, &rec.StoredValues, &outputsJSON, &rec.Warnings,
	); err != nil {
		return nil, err
	}

	rec.StartedAt = parseTimestamp(startedAt)
	rec.ExecutedBy = executedBy.String
	rec.Hostname = hostname.String
	rec.RepositoryPath = repoPath.String

	if err := json.Unmarshal([]byte(dirsJSON), &rec.Directories); err != nil {
		rec.Directories = nil
	}
	if outputsJSON.Valid && outputsJSON.String != "" {
		if err := json.Unmarshal([]byte(outputsJSON.String), &rec.Outputs); err != nil {
			rec.Outputs = nil
		}
	}

	return &rec, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (hdb *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	records := make([]RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// GetRun returns the run whose ID equals or starts with id, including its
// duplicate findings.
func (hdb *HistoryDB) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}

	matches, err := hdb.matchRuns(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(matches) > 1 && matches[0].ID != id:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, id)
	}

	rec := matches[0]
	dups, err := hdb.duplicates(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Duplicates = dups
	return rec, nil
}

// matchRuns returns up to two runs whose ID equals or starts with id, an
// exact match first.
func (hdb *HistoryDB) matchRuns(ctx context.Context, id string) ([]*RunRecord, error) {
	rows, err := hdb.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR substr(id, 1, ?) = ? ORDER BY id = ? DESC LIMIT 2`,
		id, len(id), id, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var matches []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		matches = append(matches, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return matches, nil
}

func (hdb *HistoryDB) duplicates(ctx context.Context, runID string) ([]DuplicateRecord, error) {
	query := `
	SELECT run_id, token, value, count, source, files
	FROM run_duplicates
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := hdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get duplicates: %w", err)
	}
	defer rows.Close()

	records := make([]DuplicateRecord, 0)
	for rows.Next() {
		var (
			rec       DuplicateRecord
			tok, raw  string
			filesJSON sql.NullString
		)
		if err := rows.Scan(&rec.RunID, &tok, &raw, &rec.Count, &rec.Source, &filesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate: %w", err)
		}

		rec.Token = model.Token(tok)
		value, err := model.ParseValue([]byte(raw))
		if err != nil {
			continue // Skip malformed rows
		}
		rec.Value = value

		if filesJSON.Valid && filesJSON.String != "" {
			if err := json.Unmarshal([]byte(filesJSON.String), &rec.Files); err != nil {
				rec.Files = nil
			}
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// FindValue returns every finding of the given value, newest run first.
// value matches either the display form (svchost.exe, 445) or the JSON
// form ("445") of a stored value.
func (hdb *HistoryDB) FindValue(ctx context.Context, value string) ([]ValueHit, error) {
	query := `
	SELECT d.run_id, r.started_at, d.token, d.value, d.count, d.source
	FROM run_duplicates d
	JOIN runs r ON r.id = d.run_id
	WHERE d.value_text = ? OR d.value = ?
	ORDER BY r.started_at DESC, d.id
	`

	rows, err := hdb.db.QueryContext(ctx, query, value, value)
	if err != nil {
		return nil, fmt.Errorf("failed to find value: %w", err)
	}
	defer rows.Close()

	hits := make([]ValueHit, 0)
	for rows.Next() {
		var (
			hit       ValueHit
			startedAt string
			tok, raw  string
		)
		if err := rows.Scan(&hit.RunID, &startedAt, &tok, &raw, &hit.Count, &hit.Source); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}

		v, err := model.ParseValue([]byte(raw))
		if err != nil {
			continue // Skip malformed rows
		}
		hit.StartedAt = parseTimestamp(startedAt)
		hit.Token = model.Token(tok)
		hit.Value = v
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
