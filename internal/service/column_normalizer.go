package service

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/er-ddx-review-server/internal/domain"
)

// CanonicalColumn is a logical field name plus the source headers that may
// supply it, newest and most specific first.
type CanonicalColumn struct {
	Name    string
	Aliases []string
}

// DefaultCanonicalColumns encodes the schema history of the evaluation
// exports. Applied and base sources always map to distinct canonical columns.
var DefaultCanonicalColumns = []CanonicalColumn{
	{Name: domain.ColumnFileName, Aliases: []string{"file_name"}},
	{Name: domain.ColumnRawVisit, Aliases: []string{"현병력-Free Text#13", "원본 초진기록"}},
	{Name: domain.ColumnCurrentHistory, Aliases: []string{"현병력-Free Text#13_Exaone_clean", "Current History"}},
	{Name: domain.ColumnPastHistory, Aliases: []string{"과거력-Free Text#14_Exaone_clean", "Past History"}},
	{Name: domain.ColumnAssoSymptoms, Aliases: []string{"ASSO_SX_SN"}},
	{Name: domain.ColumnAssoDisease, Aliases: []string{"ASSO_DISEASE"}},
	{Name: domain.ColumnAssoTreatment, Aliases: []string{"ASSO_TREATMENT"}},
	{Name: domain.ColumnLabel, Aliases: []string{"CURRENT_COMPLAINT", "Label"}},
	{Name: domain.ColumnEvalRawApplied, Aliases: []string{"llm_eval_raw_applied"}},
	{Name: domain.ColumnEvalRawBase, Aliases: []string{"llm_eval_raw_base"}},
	{Name: domain.ColumnExpectedApplied, Aliases: []string{"expected_diagnosis_applied", "Expected Diagnosis (applied)"}},
	{Name: domain.ColumnDDXApplied, Aliases: []string{"differential_diagnoses_applied", "Differential Diagnoses (applied)"}},
	{Name: domain.ColumnExpectedBase, Aliases: []string{"expected_diagnosis_base", "Expected Diagnosis (base)"}},
	{Name: domain.ColumnDDXBase, Aliases: []string{"differential_diagnoses_base", "Differential Diagnoses (base)"}},
	{Name: domain.ColumnLegacyExpected, Aliases: []string{"Expected Diagnosis"}},
	{Name: domain.ColumnLegacyDDX, Aliases: []string{"Differential Diagnoses list"}},
	{Name: domain.ColumnEvalLabel, Aliases: []string{"llm_eval_label_applied_strict", "llm_eval_label_applied_lenient", "Llm Evaluation Label"}},
}

// CanonicalColumnNames returns the canonical names in declaration order
func CanonicalColumnNames(columns []CanonicalColumn) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

// ColumnNormalizerService maps arbitrary upload headers onto the canonical
// column set. It is a pure transform: no errors, no side effects.
type ColumnNormalizerService struct {
	columns []CanonicalColumn
}

// NewColumnNormalizerService creates a normalizer for the default schema
func NewColumnNormalizerService() *ColumnNormalizerService {
	return NewColumnNormalizerServiceWithColumns(DefaultCanonicalColumns)
}

// NewColumnNormalizerServiceWithColumns creates a normalizer for a custom schema
func NewColumnNormalizerServiceWithColumns(columns []CanonicalColumn) *ColumnNormalizerService {
	return &ColumnNormalizerService{columns: columns}
}

// Columns returns the canonical column names produced by Normalize
func (s *ColumnNormalizerService) Columns() []string {
	return CanonicalColumnNames(s.columns)
}

// Normalize produces exactly the canonical columns for every row. Row count
// and order are unchanged.
func (s *ColumnNormalizerService) Normalize(table *domain.RawTable) *domain.NormalizedTable {
	out := &domain.NormalizedTable{Columns: s.Columns()}
	if table == nil {
		return out
	}

	sources := s.resolve(table.Header)

	out.Records = make([]domain.NormalizedRecord, len(table.Rows))
	for i, row := range table.Rows {
		fields := make(map[string]string, len(s.columns))
		for _, c := range s.columns {
			idx, ok := sources[c.Name]
			if !ok || idx >= len(row) {
				fields[c.Name] = ""
				continue
			}
			fields[c.Name] = row[idx]
		}
		out.Records[i] = domain.NormalizedRecord{RowID: i, Fields: fields}
	}
	return out
}

// Resolve reports which source header feeds each canonical column; columns
// without a matching alias are absent from the map.
func (s *ColumnNormalizerService) Resolve(header []string) map[string]string {
	sources := s.resolve(header)
	resolved := make(map[string]string, len(sources))
	for name, idx := range sources {
		resolved[name] = header[idx]
	}
	return resolved
}

// resolve picks, per canonical column, the header index of the first alias
// present. The alias order alone decides; header order never does.
func (s *ColumnNormalizerService) resolve(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	sources := make(map[string]int, len(s.columns))
	for _, c := range s.columns {
		for _, alias := range c.Aliases {
			if idx, ok := index[headerKey(alias)]; ok {
				sources[c.Name] = idx
				break
			}
		}
	}
	return sources
}

// headerKey canonicalizes a header for comparison: BOM and surrounding
// whitespace removed, NFC form so NFD-encoded Hangul headers still match.
func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return norm.NFC.String(strings.TrimSpace(h))
}
