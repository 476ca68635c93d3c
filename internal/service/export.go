package service

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/er-ddx-review-server/internal/domain"
)

// DerivedColumns are appended after the canonical columns in the processed
// table export, per variant first and then the preferred view.
var DerivedColumns = []string{
	domain.DerivedExpNameApplied,
	domain.DerivedExpTierApplied,
	domain.DerivedDDXNamesApplied,
	domain.DerivedDDXTiersApplied,
	domain.DerivedExpNameBase,
	domain.DerivedExpTierBase,
	domain.DerivedDDXNamesBase,
	domain.DerivedDDXTiersBase,
	domain.DerivedExpName,
	domain.DerivedExpTier,
	domain.DerivedDDXNames,
	domain.DerivedDDXTiers,
}

// ExportHeader returns the processed-table header: row id, canonical
// columns, derived columns.
func ExportHeader(table *domain.DerivedTable) []string {
	header := make([]string, 0, len(table.Columns)+len(DerivedColumns)+1)
	header = append(header, "row_id")
	header = append(header, table.Columns...)
	return append(header, DerivedColumns...)
}

// ExportRow flattens a derived record in ExportHeader order. List-valued
// derived columns are JSON arrays so they survive a spreadsheet round trip.
func ExportRow(columns []string, rec *domain.DerivedRecord) []string {
	row := make([]string, 0, len(columns)+len(DerivedColumns)+1)
	row = append(row, strconv.Itoa(rec.RowID))
	for _, c := range columns {
		row = append(row, rec.Get(c))
	}
	row = append(row, variantCells(&rec.Applied)...)
	row = append(row, variantCells(&rec.Base)...)
	return append(row, variantCells(rec.Preferred())...)
}

// ExportRows flattens every record of a table
func ExportRows(table *domain.DerivedTable, records []domain.DerivedRecord) [][]string {
	rows := make([][]string, len(records))
	for i := range records {
		rows[i] = ExportRow(table.Columns, &records[i])
	}
	return rows
}

func variantCells(d *domain.VariantDerivation) []string {
	return []string{
		d.Expected.Name,
		d.Expected.Tier,
		jsonList(d.DifferentialNames()),
		jsonList(d.DifferentialTiers()),
	}
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
