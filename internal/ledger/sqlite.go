package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/er-ddx-review-server/internal/tabular"
)

// SQLiteStore implements Store on an in-memory SQLite database. Nothing is
// written to disk; the ledger ends with the process.
type SQLiteStore struct {
	db   *sql.DB
	name string
	now  func() time.Time
}

// NewSQLiteStore opens a named in-memory ledger. An empty name gets a random
// one so independent stores never share data.
func NewSQLiteStore(name string) (*SQLiteStore, error) {
	if name == "" {
		name = uuid.NewString()
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// The in-memory database lives as long as one connection stays open.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	store := newSQLiteStore(db)
	store.name = name
	return store, nil
}

func newSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Name returns the in-memory database name
func (s *SQLiteStore) Name() string {
	return s.name
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = "order_no, row_id, file_name, reviewer, ts, phys_ddx, " +
	"base_quality, base_comprehensiveness, base_appropriateness, " +
	"applied_quality, applied_comprehensiveness, applied_appropriateness, " +
	"history_adequacy, comment"

// scanEvaluation scans a row into an Evaluation struct.
func scanEvaluation(s scanner) (*Evaluation, error) {
	e := &Evaluation{}
	var physDDX string

	err := s.Scan(
		&e.Order, &e.RowID, &e.FileName, &e.Reviewer, &e.TS, &physDDX,
		&e.BaseQuality, &e.BaseComprehensiveness, &e.BaseAppropriateness,
		&e.AppliedQuality, &e.AppliedComprehensiveness, &e.AppliedAppropriateness,
		&e.HistoryAdequacy, &e.Comment,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(physDDX), &e.PhysDDX); err != nil {
		return nil, fmt.Errorf("invalid phys_ddx for row %d: %w", e.RowID, err)
	}
	if e.PhysDDX == nil {
		e.PhysDDX = []string{}
	}
	return e, nil
}

// createSchema creates the ledger table.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS evaluations (
		order_no INTEGER NOT NULL,
		row_id INTEGER NOT NULL PRIMARY KEY,
		file_name TEXT NOT NULL DEFAULT '',
		reviewer TEXT NOT NULL DEFAULT '',
		ts INTEGER NOT NULL,
		phys_ddx TEXT NOT NULL DEFAULT '[]',
		base_quality INTEGER NOT NULL,
		base_comprehensiveness INTEGER NOT NULL,
		base_appropriateness INTEGER NOT NULL,
		applied_quality INTEGER NOT NULL,
		applied_comprehensiveness INTEGER NOT NULL,
		applied_appropriateness INTEGER NOT NULL,
		history_adequacy INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_order_no ON evaluations(order_no);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or replaces the evaluation of a row. A replaced evaluation
// keeps its original order.
func (s *SQLiteStore) Save(ctx context.Context, e *Evaluation) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	if e.PhysDDX == nil {
		e.PhysDDX = []string{}
	}
	physDDX, err := json.Marshal(e.PhysDDX)
	if err != nil {
		return false, fmt.Errorf("failed to encode phys_ddx: %w", err)
	}
	e.TS = s.now().Unix()

	// The existence check and the write share one transaction so concurrent
	// saves of the same row cannot both take the insert path.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingOrder int
	err = tx.QueryRowContext(ctx,
		"SELECT order_no FROM evaluations WHERE row_id = ?", e.RowID,
	).Scan(&existingOrder)

	updated := err == nil
	switch {
	case updated:
		e.Order = existingOrder
		_, err = tx.ExecContext(ctx, `
			UPDATE evaluations SET
				file_name = ?, reviewer = ?, ts = ?, phys_ddx = ?,
				base_quality = ?, base_comprehensiveness = ?, base_appropriateness = ?,
				applied_quality = ?, applied_comprehensiveness = ?, applied_appropriateness = ?,
				history_adequacy = ?, comment = ?
			WHERE row_id = ?
		`,
			e.FileName, e.Reviewer, e.TS, string(physDDX),
			e.BaseQuality, e.BaseComprehensiveness, e.BaseAppropriateness,
			e.AppliedQuality, e.AppliedComprehensiveness, e.AppliedAppropriateness,
			e.HistoryAdequacy, e.Comment,
			e.RowID,
		)
		if err != nil {
			return false, fmt.Errorf("failed to update: %w", err)
		}
	case err == sql.ErrNoRows:
		var maxOrder int
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(order_no), 0) FROM evaluations",
		).Scan(&maxOrder); err != nil {
			return false, fmt.Errorf("failed to read order: %w", err)
		}
		e.Order = maxOrder + 1

		_, err = tx.ExecContext(ctx, `
			INSERT INTO evaluations (`+selectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.Order, e.RowID, e.FileName, e.Reviewer, e.TS, string(physDDX),
			e.BaseQuality, e.BaseComprehensiveness, e.BaseAppropriateness,
			e.AppliedQuality, e.AppliedComprehensiveness, e.AppliedAppropriateness,
			e.HistoryAdequacy, e.Comment,
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert: %w", err)
		}
	default:
		return false, fmt.Errorf("failed to check existing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return updated, nil
}

// Get retrieves the evaluation of a row.
func (s *SQLiteStore) Get(ctx context.Context, rowID int) (*Evaluation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM evaluations WHERE row_id = ?", rowID)

	e, err := scanEvaluation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return e, nil
}

// List returns all evaluations in save order.
func (s *SQLiteStore) List(ctx context.Context) ([]*Evaluation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM evaluations ORDER BY order_no ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := []*Evaluation{}
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Count returns the number of evaluated rows.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evaluations").Scan(&count)
	return count, err
}

// EvaluatedRowIDs returns the evaluated row ids in ascending order.
func (s *SQLiteStore) EvaluatedRowIDs(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT row_id FROM evaluations ORDER BY row_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes the evaluation of a row.
func (s *SQLiteStore) Delete(ctx context.Context, rowID int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM evaluations WHERE row_id = ?", rowID)
	return err
}

// Reset removes every evaluation.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM evaluations")
	return err
}

// ExportCSV writes every evaluation in save order as UTF-8 CSV with a BOM.
// The physician DDX list is a JSON array.
func (s *SQLiteStore) ExportCSV(ctx context.Context, w io.Writer) error {
	all, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list evaluations: %w", err)
	}

	rows := make([][]string, 0, len(all))
	for _, e := range all {
		physDDX, err := json.Marshal(e.PhysDDX)
		if err != nil {
			return fmt.Errorf("failed to encode phys_ddx: %w", err)
		}
		row := []string{
			strconv.Itoa(e.Order),
			strconv.Itoa(e.RowID),
			e.FileName,
			e.Reviewer,
			strconv.FormatInt(e.TS, 10),
			string(physDDX),
		}
		scores := e.Scores()
		for _, field := range ScoreFields {
			row = append(row, strconv.Itoa(scores[field]))
		}
		rows = append(rows, append(row, e.Comment))
	}
	return tabular.WriteCSV(w, ExportColumns, rows)
}

// ExportJSON exports all evaluations to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, w io.Writer) error {
	all, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list evaluations: %w", err)
	}

	export := &Export{
		Version:     "1.0",
		ExportedAt:  s.now().UTC(),
		Count:       len(all),
		Evaluations: all,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the store and releases the in-memory database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
