// Package ledger stores physician evaluations of derived records for the
// lifetime of the process. One evaluation is kept per row; saving a row again
// replaces its evaluation in place.
package ledger

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/er-ddx-review-server/internal/domain"
)

// Likert bounds shared by every score
const (
	MinScore     = 1
	MaxScore     = 5
	DefaultScore = 3
)

// Evaluation is one physician's assessment of a row.
type Evaluation struct {
	Order    int      `json:"order"`  // 1-based save position, kept on update
	RowID    int      `json:"row_id"`
	FileName string   `json:"file_name"`
	Reviewer string   `json:"reviewer"`
	TS       int64    `json:"ts"` // unix seconds of the last save
	PhysDDX  []string `json:"phys_ddx"`

	BaseQuality           int `json:"base_quality"`
	BaseComprehensiveness int `json:"base_comprehensiveness"`
	BaseAppropriateness   int `json:"base_appropriateness"`

	AppliedQuality           int `json:"applied_quality"`
	AppliedComprehensiveness int `json:"applied_comprehensiveness"`
	AppliedAppropriateness   int `json:"applied_appropriateness"`

	HistoryAdequacy int    `json:"history_adequacy"`
	Comment         string `json:"comment"`
}

// NewEvaluation returns an evaluation of rowID with every score at its default
func NewEvaluation(rowID int, fileName string) *Evaluation {
	return &Evaluation{
		RowID:                    rowID,
		FileName:                 fileName,
		PhysDDX:                  []string{},
		BaseQuality:              DefaultScore,
		BaseComprehensiveness:    DefaultScore,
		BaseAppropriateness:      DefaultScore,
		AppliedQuality:           DefaultScore,
		AppliedComprehensiveness: DefaultScore,
		AppliedAppropriateness:   DefaultScore,
		HistoryAdequacy:          DefaultScore,
	}
}

// Scores returns the score fields keyed by their export names
func (e *Evaluation) Scores() map[string]int {
	return map[string]int{
		"base_quality":              e.BaseQuality,
		"base_comprehensiveness":    e.BaseComprehensiveness,
		"base_appropriateness":      e.BaseAppropriateness,
		"applied_quality":           e.AppliedQuality,
		"applied_comprehensiveness": e.AppliedComprehensiveness,
		"applied_appropriateness":   e.AppliedAppropriateness,
		"history_adequacy":          e.HistoryAdequacy,
	}
}

// Validate checks the row id and that every score is on the Likert scale
func (e *Evaluation) Validate() error {
	if e.RowID < 0 {
		return domain.NewValidationError("row_id", "must not be negative", e.RowID)
	}
	for _, field := range ScoreFields {
		score := e.Scores()[field]
		if score < MinScore || score > MaxScore {
			return domain.NewValidationError(field, fmt.Sprintf("must be between %d and %d", MinScore, MaxScore), score)
		}
	}
	return nil
}

// ScoreFields lists the score columns in export order
var ScoreFields = []string{
	"base_quality",
	"base_comprehensiveness",
	"base_appropriateness",
	"applied_quality",
	"applied_comprehensiveness",
	"applied_appropriateness",
	"history_adequacy",
}

// ExportColumns is the column order of the CSV export
var ExportColumns = append(append([]string{
	"order", "row_id", "file_name", "reviewer", "ts", "phys_ddx",
}, ScoreFields...), "comment")

// Export is the JSON export document.
type Export struct {
	Version     string        `json:"version"`
	ExportedAt  time.Time     `json:"exported_at"`
	Count       int           `json:"count"`
	Evaluations []*Evaluation `json:"evaluations"`
}

// Store defines the ledger operations.
type Store interface {
	// Save inserts or replaces the evaluation of e.RowID. It reports whether an
	// existing evaluation was replaced.
	Save(ctx context.Context, e *Evaluation) (updated bool, err error)

	// Get returns the evaluation of a row, or nil when none exists.
	Get(ctx context.Context, rowID int) (*Evaluation, error)

	// List returns every evaluation in save order.
	List(ctx context.Context) ([]*Evaluation, error)

	// Count returns the number of evaluated rows.
	Count(ctx context.Context) (int, error)

	// EvaluatedRowIDs returns the ids of evaluated rows in ascending order.
	EvaluatedRowIDs(ctx context.Context) ([]int, error)

	// Delete removes the evaluation of a row.
	Delete(ctx context.Context, rowID int) error

	// Reset removes every evaluation.
	Reset(ctx context.Context) error

	ExportCSV(ctx context.Context, w io.Writer) error
	ExportJSON(ctx context.Context, w io.Writer) error

	Close() error
}
