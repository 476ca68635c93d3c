package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/er-ddx-review-server/internal/domain"
	"github.com/er-ddx-review-server/internal/ledger"
	"github.com/er-ddx-review-server/internal/service"
	"github.com/er-ddx-review-server/internal/session"
	"github.com/er-ddx-review-server/pkg/ddxparse"
)

// defaultSearchLimit caps search_records results when no limit is given
const defaultSearchLimit = 50

// Records are returned as untyped values: DerivedRecord embeds its
// normalized fields, which the inferred output schemas cannot describe.

type LoadDatasetParams struct {
	Path   string `json:"path" jsonschema:"path of a CSV or TSV export on the server host"`
	Prefer string `json:"prefer,omitempty" jsonschema:"model variant of the preferred view: applied or base"`
}

type LoadDatasetResult struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Rows    int               `json:"rows"`
	Prefer  string            `json:"prefer"`
	Cached  bool              `json:"cached"`
	Sources map[string]string `json:"sources" jsonschema:"canonical column to source header"`
}

type DeriveRowParams struct {
	Fields map[string]string `json:"fields" jsonschema:"one row as column header to cell value"`
	Prefer string            `json:"prefer,omitempty" jsonschema:"model variant of the preferred view: applied or base"`
}

type DeriveRowResult struct {
	Record    any               `json:"record"`
	Preferred any               `json:"preferred"`
	Sources   map[string]string `json:"sources"`
}

type ClassifyFieldParams struct {
	Text string `json:"text" jsonschema:"raw cell text"`
}

type ClassifyFieldResult struct {
	Shape            string   `json:"shape"`
	Structured       bool     `json:"structured"`
	ExpectedName     string   `json:"expected_name"`
	ExpectedVia      string   `json:"expected_via"`
	DifferentialList []string `json:"differential_names"`
	DifferentialVia  string   `json:"differential_via"`
	Evaluation       bool     `json:"evaluation" jsonschema:"whether the text decodes as an evaluation object"`
}

type GetRecordParams struct {
	RowID int `json:"row_id" jsonschema:"row id of the loaded dataset"`
}

type GetRecordResult struct {
	Label      string `json:"label"`
	Record     any    `json:"record"`
	Preferred  any    `json:"preferred"`
	Evaluation any    `json:"evaluation"`
}

type SearchRecordsParams struct {
	Query string `json:"query,omitempty" jsonschema:"case-insensitive text; empty matches every row"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of rows returned"`
}

type RecordLabel struct {
	RowID     int    `json:"row_id"`
	Label     string `json:"label"`
	Evaluated bool   `json:"evaluated"`
}

type SearchRecordsResult struct {
	Total   int           `json:"total"`
	Records []RecordLabel `json:"records"`
}

type SaveEvaluationParams struct {
	RowID    int            `json:"row_id"`
	Reviewer string         `json:"reviewer,omitempty"`
	PhysDDX  string         `json:"phys_ddx,omitempty" jsonschema:"physician differential, one per line or comma separated"`
	Scores   map[string]int `json:"scores,omitempty" jsonschema:"Likert scores 1-5 keyed by score field; unset scores default to 3"`
	Comment  string         `json:"comment,omitempty"`
}

type SaveEvaluationResult struct {
	Evaluation any             `json:"evaluation"`
	Updated    bool            `json:"updated"`
	NextRowID  *int            `json:"next_row_id,omitempty"`
	Progress   ledger.Progress `json:"progress"`
}

type ExportParams struct {
	Path   string `json:"path,omitempty" jsonschema:"file name inside the export directory"`
	Format string `json:"format,omitempty" jsonschema:"csv or json"`
}

type ExportResult struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Count  int    `json:"count"`
}

// toolSet holds the tool handlers over one server's services.
type toolSet struct {
	server *LiteServer
	logger *logrus.Logger
}

func newToolSet(s *LiteServer) *toolSet {
	return &toolSet{server: s, logger: s.logger}
}

func (t *toolSet) register(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "load_dataset",
		Description: "Load a model evaluation export from disk, normalize its columns and derive expected and differential diagnoses for both model variants.",
	}, t.loadDataset)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "derive_row",
		Description: "Derive expected and differential diagnoses for a single row given as column/value pairs, without loading a dataset.",
	}, t.deriveRow)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "classify_field",
		Description: "Report how a raw diagnosis cell is read: its shape and the names each fallback strategy extracts.",
	}, t.classifyField)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_record",
		Description: "Return the derived record of a row of the loaded dataset together with any saved evaluation.",
	}, t.getRecord)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "search_records",
		Description: "Search the loaded dataset by file name, diagnoses or history text.",
	}, t.searchRecords)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "save_evaluation",
		Description: "Save or replace the physician evaluation of a row.",
	}, t.saveEvaluation)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "export_evaluations",
		Description: "Write the evaluation ledger to the export directory as CSV (UTF-8 with BOM) or JSON.",
	}, t.exportEvaluations)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "export_records",
		Description: "Write the processed table of the loaded dataset to the export directory as CSV (UTF-8 with BOM).",
	}, t.exportRecords)

	t.logger.WithField("tool_count", 8).Info("Successfully registered all tools")
}

func (t *toolSet) preference(raw string) (domain.ModelVariant, error) {
	if strings.TrimSpace(raw) == "" {
		return t.server.config.Prefer, nil
	}
	return domain.ParseModelVariant(raw)
}

func (t *toolSet) loadDataset(ctx context.Context, _ *mcp.CallToolRequest, in LoadDatasetParams) (*mcp.CallToolResult, LoadDatasetResult, error) {
	prefer, err := t.preference(in.Prefer)
	if err != nil {
		return nil, LoadDatasetResult{}, err
	}

	f, err := os.Open(in.Path)
	if err != nil {
		return nil, LoadDatasetResult{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := t.server.datasets.Load(ctx, filepath.Base(in.Path), f, prefer)
	if err != nil {
		return nil, LoadDatasetResult{}, err
	}

	sources := ds.Sources
	if sources == nil {
		sources = map[string]string{}
	}
	return nil, LoadDatasetResult{
		ID:      ds.ID(),
		Name:    ds.Name,
		Rows:    ds.Rows,
		Prefer:  string(ds.Prefer),
		Cached:  ds.Cached,
		Sources: sources,
	}, nil
}

func (t *toolSet) deriveRow(_ context.Context, _ *mcp.CallToolRequest, in DeriveRowParams) (*mcp.CallToolResult, DeriveRowResult, error) {
	prefer, err := t.preference(in.Prefer)
	if err != nil {
		return nil, DeriveRowResult{}, err
	}

	header := make([]string, 0, len(in.Fields))
	for k := range in.Fields {
		header = append(header, k)
	}
	sort.Strings(header)
	row := make([]string, len(header))
	for i, k := range header {
		row[i] = in.Fields[k]
	}

	normalizer := t.server.datasets.Normalizer()
	table := normalizer.Normalize(&domain.RawTable{Header: header, Rows: [][]string{row}})
	rec := t.server.datasets.Engine().DeriveRecord(table.Records[0], prefer)

	return nil, DeriveRowResult{
		Record:    rec,
		Preferred: rec.Preferred(),
		Sources:   normalizer.Resolve(header),
	}, nil
}

func (t *toolSet) classifyField(_ context.Context, _ *mcp.CallToolRequest, in ClassifyFieldParams) (*mcp.CallToolResult, ClassifyFieldResult, error) {
	shape := ddxparse.Classify(in.Text)
	name, nameVia := ddxparse.ExpectedName(in.Text)
	names, namesVia := ddxparse.DifferentialNames(in.Text)
	if names == nil {
		names = []string{}
	}
	_, isEval := ddxparse.ParseEvaluation(in.Text)

	return nil, ClassifyFieldResult{
		Shape:            shape.String(),
		Structured:       shape.IsStructured(),
		ExpectedName:     name,
		ExpectedVia:      nameVia,
		DifferentialList: names,
		DifferentialVia:  namesVia,
		Evaluation:       isEval,
	}, nil
}

func (t *toolSet) getRecord(ctx context.Context, _ *mcp.CallToolRequest, in GetRecordParams) (*mcp.CallToolResult, GetRecordResult, error) {
	rec, err := t.server.datasets.Record(in.RowID)
	if err != nil {
		return nil, GetRecordResult{}, err
	}
	existing, err := t.server.store.Get(ctx, in.RowID)
	if err != nil {
		return nil, GetRecordResult{}, err
	}

	out := GetRecordResult{
		Label:     service.RowLabel(rec),
		Record:    rec,
		Preferred: rec.Preferred(),
	}
	if existing != nil {
		out.Evaluation = existing
	}
	return nil, out, nil
}

func (t *toolSet) evaluatedSet(ctx context.Context) (map[int]bool, []int, error) {
	ids, err := t.server.store.EvaluatedRowIDs(ctx)
	if err != nil {
		return nil, nil, err
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, ids, nil
}

func (t *toolSet) searchRecords(ctx context.Context, _ *mcp.CallToolRequest, in SearchRecordsParams) (*mcp.CallToolResult, SearchRecordsResult, error) {
	ids, err := t.server.datasets.Search(in.Query)
	if err != nil {
		return nil, SearchRecordsResult{}, err
	}
	evaluated, _, err := t.evaluatedSet(ctx)
	if err != nil {
		return nil, SearchRecordsResult{}, err
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	out := SearchRecordsResult{Total: len(ids), Records: []RecordLabel{}}
	for _, id := range ids {
		if len(out.Records) == limit {
			break
		}
		label, err := t.server.datasets.RowLabel(id)
		if err != nil {
			return nil, SearchRecordsResult{}, err
		}
		out.Records = append(out.Records, RecordLabel{RowID: id, Label: label, Evaluated: evaluated[id]})
	}
	return nil, out, nil
}

func (t *toolSet) saveEvaluation(ctx context.Context, _ *mcp.CallToolRequest, in SaveEvaluationParams) (*mcp.CallToolResult, SaveEvaluationResult, error) {
	rec, err := t.server.datasets.Record(in.RowID)
	if err != nil {
		return nil, SaveEvaluationResult{}, err
	}

	draft := session.Draft{PhysDDX: in.PhysDDX, Scores: in.Scores, Comment: in.Comment}
	eval := draft.Evaluation(in.RowID, rec.FileName(), strings.TrimSpace(in.Reviewer))

	updated, err := t.server.store.Save(ctx, eval)
	if err != nil {
		return nil, SaveEvaluationResult{}, err
	}

	allRows, err := t.server.datasets.RowIDs()
	if err != nil {
		return nil, SaveEvaluationResult{}, err
	}
	_, evaluated, err := t.evaluatedSet(ctx)
	if err != nil {
		return nil, SaveEvaluationResult{}, err
	}

	out := SaveEvaluationResult{
		Evaluation: eval,
		Updated:    updated,
		Progress:   ledger.ComputeProgress(allRows, evaluated),
	}
	if next, ok := ledger.NextUnreviewed(allRows, evaluated, in.RowID); ok {
		out.NextRowID = &next
	}

	t.logger.WithFields(logrus.Fields{
		"row_id":  in.RowID,
		"order":   eval.Order,
		"updated": updated,
	}).Info("Evaluation saved")

	return nil, out, nil
}

// exportPath resolves the target file of an export tool inside the export
// directory.
func (t *toolSet) exportPath(name, format string) (string, error) {
	if strings.TrimSpace(name) == "" {
		name = "evaluations." + format
	}
	if err := t.server.config.EnsureExportDir(); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	return t.server.config.ExportPath(name), nil
}

func (t *toolSet) exportEvaluations(ctx context.Context, _ *mcp.CallToolRequest, in ExportParams) (*mcp.CallToolResult, ExportResult, error) {
	format := strings.ToLower(strings.TrimSpace(in.Format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		return nil, ExportResult{}, domain.NewValidationError("format", "must be csv or json", in.Format)
	}

	path, err := t.exportPath(in.Path, format)
	if err != nil {
		return nil, ExportResult{}, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, ExportResult{}, fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if format == "json" {
		err = t.server.store.ExportJSON(ctx, f)
	} else {
		err = t.server.store.ExportCSV(ctx, f)
	}
	if err != nil {
		return nil, ExportResult{}, err
	}

	count, err := t.server.store.Count(ctx)
	if err != nil {
		return nil, ExportResult{}, err
	}

	t.logger.WithFields(logrus.Fields{"path": path, "format": format, "count": count}).Info("Exported evaluations")
	return nil, ExportResult{Path: path, Format: format, Count: count}, nil
}

func (t *toolSet) exportRecords(_ context.Context, _ *mcp.CallToolRequest, in ExportParams) (*mcp.CallToolResult, ExportResult, error) {
	if f := strings.ToLower(strings.TrimSpace(in.Format)); f != "" && f != "csv" {
		return nil, ExportResult{}, domain.NewValidationError("format", "must be csv", in.Format)
	}
	ds, err := t.server.datasets.Current()
	if err != nil {
		return nil, ExportResult{}, err
	}

	name := in.Path
	if strings.TrimSpace(name) == "" {
		name = "processed.csv"
	}
	path, err := t.exportPath(name, "csv")
	if err != nil {
		return nil, ExportResult{}, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, ExportResult{}, fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := t.server.datasets.ExportCSV(f, nil); err != nil {
		return nil, ExportResult{}, err
	}
	return nil, ExportResult{Path: path, Format: "csv", Count: ds.Rows}, nil
}
