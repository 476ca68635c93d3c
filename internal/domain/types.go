// Package domain contains the core entities for reviewing machine-generated
// differential-diagnosis (DDX) lists against physician judgment on
// emergency-room case records.
//
// A record is read from a tabular export, normalized onto a fixed set of
// canonical columns and then enriched with one expected diagnosis and an
// ordered list of differential diagnoses for each of two model variants.
package domain

import (
	"fmt"
	"strings"
)

// ModelVariant identifies one of the two parallel evaluation conditions of a
// record. Data belonging to one variant is never used to fill the other.
type ModelVariant string

const (
	// VariantApplied is the model with the intervention applied.
	VariantApplied ModelVariant = "applied"
	// VariantBase is the unmodified model.
	VariantBase ModelVariant = "base"
)

// ModelVariants lists the variants in derivation order.
var ModelVariants = []ModelVariant{VariantApplied, VariantBase}

// String returns the string representation of the variant
func (v ModelVariant) String() string {
	return string(v)
}

// IsValid reports whether v is a known variant
func (v ModelVariant) IsValid() bool {
	return v == VariantApplied || v == VariantBase
}

// ParseModelVariant parses a variant name. An empty string selects the
// applied variant, which is the default preference.
func ParseModelVariant(s string) (ModelVariant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "applied":
		return VariantApplied, nil
	case "base":
		return VariantBase, nil
	}
	return "", NewValidationError("prefer", "must be 'applied' or 'base'", s)
}

// Role distinguishes the single expected diagnosis from the differentials.
type Role string

const (
	RoleExpected     Role = "Expected"
	RoleDifferential Role = "Differential"
)

// DerivationTier names the input representation a derived value came from.
type DerivationTier string

const (
	TierNone       DerivationTier = "none"
	TierStructured DerivationTier = "structured_json"
	TierLiteral    DerivationTier = "literal_field"
	TierLegacy     DerivationTier = "legacy_combined"
)

// DiagnosisEntry is either the expected diagnosis or one differential
// diagnosis of a variant. Tier is only ever populated from structured input.
type DiagnosisEntry struct {
	Name string `json:"name"`
	Tier string `json:"tier"`
	Role Role   `json:"role"`
}

// DDXTableRow is one line of the presentation table of a variant.
type DDXTableRow struct {
	Diagnosis string `json:"diagnosis"`
	Role      Role   `json:"role"`
	Tier      string `json:"tier,omitempty"`
}

// VariantDerivation holds the derived diagnoses of one record for one variant.
// Differentials keep source order and may contain duplicates; only
// CombinedNames is de-duplicated.
type VariantDerivation struct {
	Variant             ModelVariant     `json:"variant"`
	Expected            DiagnosisEntry   `json:"expected"`
	Differentials       []DiagnosisEntry `json:"differentials"`
	ExpectedSource      DerivationTier   `json:"expected_source"`
	DifferentialsSource DerivationTier   `json:"differentials_source"`

	// Convenience views materialized by the derivation engine.
	Table         []DDXTableRow `json:"table"`
	CombinedNames []string      `json:"combined_names"`
}

// DifferentialNames returns the differential names in source order
func (d *VariantDerivation) DifferentialNames() []string {
	names := make([]string, len(d.Differentials))
	for i, e := range d.Differentials {
		names[i] = e.Name
	}
	return names
}

// DifferentialTiers returns the differential tiers, index-aligned with DifferentialNames
func (d *VariantDerivation) DifferentialTiers() []string {
	tiers := make([]string, len(d.Differentials))
	for i, e := range d.Differentials {
		tiers[i] = e.Tier
	}
	return tiers
}

// IsEmpty reports whether nothing could be derived for the variant.
func (d *VariantDerivation) IsEmpty() bool {
	return d.Expected.Name == "" && len(d.Differentials) == 0
}

// RawTable is an uploaded table as received. Every cell is text and empty
// cells are "".
type RawTable struct {
	Header []string
	Rows   [][]string
}

// NormalizedRecord is one row after column aliasing. Fields holds every
// canonical column, missing ones as "".
type NormalizedRecord struct {
	RowID  int               `json:"row_id"`
	Fields map[string]string `json:"fields"`
}

// Get returns the value of a canonical column, "" when absent
func (r *NormalizedRecord) Get(column string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[column]
}

// NormalizedTable is the output of the column normalizer.
type NormalizedTable struct {
	Columns []string           `json:"columns"`
	Records []NormalizedRecord `json:"records"`
}

// DerivedRecord is a normalized record enriched with both variant derivations.
type DerivedRecord struct {
	NormalizedRecord
	Applied VariantDerivation `json:"applied"`
	Base    VariantDerivation `json:"base"`
	Prefer  ModelVariant      `json:"prefer"`
}

// Derivation returns the derivation of the requested variant
func (r *DerivedRecord) Derivation(v ModelVariant) *VariantDerivation {
	if v == VariantBase {
		return &r.Base
	}
	return &r.Applied
}

// Preferred returns the derivation of the configured default variant, for
// consumers that only understand a single DDX list.
func (r *DerivedRecord) Preferred() *VariantDerivation {
	return r.Derivation(r.Prefer)
}

// FileName returns the record's file name
func (r *DerivedRecord) FileName() string {
	return r.Get(ColumnFileName)
}

// DerivedTable is the fully processed upload. It is immutable once built.
type DerivedTable struct {
	ID      string          `json:"id"`
	Prefer  ModelVariant    `json:"prefer"`
	Columns []string        `json:"columns"`
	Records []DerivedRecord `json:"records"`

	// Sources maps each canonical column to the upload header that fed it.
	// Columns the upload did not supply are absent.
	Sources map[string]string `json:"sources,omitempty"`
}

// Record returns the record with the given row id
func (t *DerivedTable) Record(rowID int) (*DerivedRecord, error) {
	if rowID < 0 || rowID >= len(t.Records) {
		return nil, NewServiceError(ErrRowNotFound, fmt.Sprintf("row %d not found", rowID), "")
	}
	return &t.Records[rowID], nil
}

// RowIDs returns every row id in table order
func (t *DerivedTable) RowIDs() []int {
	ids := make([]int, len(t.Records))
	for i := range t.Records {
		ids[i] = t.Records[i].RowID
	}
	return ids
}
