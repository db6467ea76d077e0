// Package backup streams the study database to and from an NDJSON archive.
// The first record is a meta line with the format version and row counts;
// every following line is one table row.
package backup

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres via database/sql
	_ "github.com/mattn/go-sqlite3"    // sqlite driver

	"github.com/eslsoft/studydeck/internal/infrastructure/config"
)

const (
	defaultBatchSize = 512
	formatVersion    = 1

	// Timestamps are archived in the same fixed-width UTC form the sqlite
	// store uses, so an archive round-trips between drivers.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// tableOrder lists the archived tables in foreign key order: flashcards
// before the history that references them.
var tableOrder = []string{"flashcards", "review_history"}

var tableColumns = map[string][]string{
	"flashcards": {
		"id", "subject", "question", "answer", "difficulty", "tags",
		"document_id", "created_at", "last_reviewed", "next_review",
		"correct_count", "incorrect_count",
		"easiness_factor", "interval_days", "repetition_number",
	},
	"review_history": {
		"id", "flashcard_id", "reviewed_at", "correct", "time_spent_seconds",
	},
}

// ProgressReporter receives progress callbacks during export.
type ProgressReporter interface {
	StartTable(table string, total int)
	Increment(table string, delta int)
	FinishTable(table string)
}

type noopProgress struct{}

func (noopProgress) StartTable(string, int) {}
func (noopProgress) Increment(string, int)  {}
func (noopProgress) FinishTable(string)     {}

// Service reads and writes archives against the configured database.
type Service struct {
	driver    string
	dsn       string
	batchSize int
}

type Option func(*Service)

func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// NewService constructs a backup service bound to the given driver and DSN.
func NewService(driver, dsn string, opts ...Option) (*Service, error) {
	driver = strings.TrimSpace(strings.ToLower(driver))
	switch driver {
	case config.DriverPostgres, config.DriverSQLite:
	case "":
		return nil, errors.New("backup: driver is required")
	default:
		return nil, fmt.Errorf("backup: unsupported driver %q", driver)
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("backup: DSN is required")
	}

	svc := &Service{driver: driver, dsn: dsn, batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

type record struct {
	Type       string         `json:"type"`
	Version    int            `json:"version,omitempty"`
	ExportedAt *time.Time     `json:"exported_at,omitempty"`
	Tables     []string       `json:"tables,omitempty"`
	RowCounts  map[string]int `json:"row_counts,omitempty"`
	Table      string         `json:"table,omitempty"`
	Row        map[string]any `json:"row,omitempty"`
}

type exportConfig struct {
	reporter ProgressReporter
}

type ExportOption func(*exportConfig)

// WithProgressReporter registers a reporter that receives export progress.
func WithProgressReporter(reporter ProgressReporter) ExportOption {
	return func(cfg *exportConfig) { cfg.reporter = reporter }
}

// Export writes the full archive to w.
func (s *Service) Export(ctx context.Context, w io.Writer, opts ...ExportOption) error {
	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	reporter := cfg.reporter
	if reporter == nil {
		reporter = noopProgress{}
	}

	db, err := s.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	counts := make(map[string]int, len(tableOrder))
	for _, table := range tableOrder {
		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
			return fmt.Errorf("count table %s: %w", table, err)
		}
		counts[table] = count
	}

	writer := bufio.NewWriter(w)

	now := time.Now().UTC()
	meta := record{
		Type:       "meta",
		Version:    formatVersion,
		ExportedAt: &now,
		Tables:     tableOrder,
		RowCounts:  counts,
	}
	if err := writeRecord(writer, meta); err != nil {
		return err
	}

	for _, table := range tableOrder {
		reporter.StartTable(table, counts[table])
		if err := s.exportTable(ctx, db, table, reporter, writer); err != nil {
			return err
		}
		reporter.FinishTable(table)
	}
	return writer.Flush()
}

// Import replaces the archived tables with the contents of r. The whole
// import runs in one transaction; a malformed archive leaves the database
// untouched.
func (s *Service) Import(ctx context.Context, r io.Reader) error {
	db, err := s.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	// Children first so foreign keys never dangle mid-import.
	for i := len(tableOrder) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+tableOrder[i]); err != nil {
			return fmt.Errorf("clear table %s: %w", tableOrder[i], err)
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	metaSeen := false
	pending := make(map[string][]map[string]any, len(tableOrder))
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("line %d: decode record: %w", line, err)
		}

		switch rec.Type {
		case "meta":
			if metaSeen {
				return fmt.Errorf("line %d: duplicate meta record", line)
			}
			if rec.Version != formatVersion {
				return fmt.Errorf("unsupported archive version %d", rec.Version)
			}
			metaSeen = true
		case "row":
			if !metaSeen {
				return fmt.Errorf("line %d: row before meta record", line)
			}
			if _, ok := tableColumns[rec.Table]; !ok {
				return fmt.Errorf("line %d: unknown table %q", line, rec.Table)
			}
			pending[rec.Table] = append(pending[rec.Table], rec.Row)
			if len(pending[rec.Table]) >= s.batchSize {
				if err := s.insertRows(ctx, tx, rec.Table, pending[rec.Table]); err != nil {
					return err
				}
				pending[rec.Table] = pending[rec.Table][:0]
			}
		default:
			return fmt.Errorf("line %d: unknown record type %q", line, rec.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	if !metaSeen {
		return errors.New("archive has no meta record")
	}

	// Flush remaining rows in foreign key order.
	for _, table := range tableOrder {
		if len(pending[table]) > 0 {
			if err := s.insertRows(ctx, tx, table, pending[table]); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	commit = true
	return nil
}

func (s *Service) openDB(ctx context.Context) (*sql.DB, error) {
	driverName := s.driver
	if s.driver == config.DriverPostgres {
		driverName = "pgx"
	}
	db, err := sql.Open(driverName, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func (s *Service) exportTable(ctx context.Context, db *sql.DB, table string, reporter ProgressReporter, w *bufio.Writer) error {
	columns := tableColumns[table]
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, strings.Join(columns, ", "), table))
	if err != nil {
		return fmt.Errorf("query table %s: %w", table, err)
	}
	defer rows.Close()

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan table %s: %w", table, err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		if err := writeRecord(w, record{Type: "row", Table: table, Row: row}); err != nil {
			return err
		}
		reporter.Increment(table, 1)
	}
	return rows.Err()
}

func (s *Service) insertRows(ctx context.Context, tx *sql.Tx, table string, batch []map[string]any) error {
	columns := tableColumns[table]

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	args := make([]any, 0, len(batch)*len(columns))
	for i, row := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			if s.driver == config.DriverPostgres {
				fmt.Fprintf(&sb, "$%d", len(args)+1)
			} else {
				sb.WriteString("?")
			}
			args = append(args, row[col])
		}
		sb.WriteString(")")
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// normalizeValue maps driver scan results onto JSON-stable forms.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(timeLayout)
	default:
		return v
	}
}

func writeRecord(w *bufio.Writer, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}
