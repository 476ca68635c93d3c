package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/er-ddx-review-server/internal/domain"
	"github.com/er-ddx-review-server/pkg/ddxparse"
)

// DerivationEngine builds per-variant diagnosis derivations from normalized
// records. It holds no per-row state, so a single engine may serve any number
// of tables.
type DerivationEngine struct {
	logger *logrus.Logger
}

// NewDerivationEngine creates a new derivation engine
func NewDerivationEngine(logger *logrus.Logger) *DerivationEngine {
	return &DerivationEngine{logger: logger}
}

// TierCounts tallies which tier produced the expected name and the
// differentials of each variant across a table.
type TierCounts map[string]int

func (c TierCounts) add(v domain.ModelVariant, field string, tier domain.DerivationTier) {
	c[fmt.Sprintf("%s.%s.%s", v, field, tier)]++
}

// DeriveTable derives every record of a normalized table. Row-level parse
// problems never surface; the only errors are an invalid preference and a
// cancelled context.
func (e *DerivationEngine) DeriveTable(ctx context.Context, table *domain.NormalizedTable, prefer domain.ModelVariant) (*domain.DerivedTable, error) {
	if !prefer.IsValid() {
		return nil, domain.NewValidationError("prefer", "must be 'applied' or 'base'", prefer)
	}
	if table == nil {
		return nil, domain.NewServiceError(domain.ErrInvalidInput, "no table to derive", "")
	}

	start := time.Now()
	counts := TierCounts{}

	out := &domain.DerivedTable{
		Prefer:  prefer,
		Columns: append([]string(nil), table.Columns...),
		Records: make([]domain.DerivedRecord, len(table.Records)),
	}
	for i, rec := range table.Records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("derivation interrupted at row %d: %w", i, err)
		}
		out.Records[i] = e.DeriveRecord(rec, prefer)
		for _, v := range domain.ModelVariants {
			d := out.Records[i].Derivation(v)
			counts.add(v, "expected", d.ExpectedSource)
			counts.add(v, "differentials", d.DifferentialsSource)
		}
	}

	fields := logrus.Fields{
		"rows":     len(out.Records),
		"prefer":   prefer,
		"duration": time.Since(start).String(),
	}
	for k, n := range counts {
		fields[k] = n
	}
	e.logger.WithFields(fields).Info("Derived diagnosis table")

	return out, nil
}

// DeriveRecord derives both variants of a single record. It never fails: a
// record with nothing usable yields empty derivations.
func (e *DerivationEngine) DeriveRecord(rec domain.NormalizedRecord, prefer domain.ModelVariant) domain.DerivedRecord {
	if !prefer.IsValid() {
		prefer = domain.VariantApplied
	}
	return domain.DerivedRecord{
		NormalizedRecord: rec,
		Applied:          e.deriveVariant(rec, domain.VariantApplied),
		Base:             e.deriveVariant(rec, domain.VariantBase),
		Prefer:           prefer,
	}
}

// deriveVariant runs the fallback ladder for one variant. Only the variant's
// own columns are read, plus the legacy combined columns for applied.
func (e *DerivationEngine) deriveVariant(rec domain.NormalizedRecord, v domain.ModelVariant) domain.VariantDerivation {
	cols := domain.ColumnsFor(v)
	d := domain.VariantDerivation{
		Variant:             v,
		Expected:            domain.DiagnosisEntry{Role: domain.RoleExpected},
		Differentials:       []domain.DiagnosisEntry{},
		ExpectedSource:      domain.TierNone,
		DifferentialsSource: domain.TierNone,
	}

	raw := rec.Get(cols.EvalRaw)
	if eval, ok := ddxparse.ParseEvaluation(raw); ok {
		if eval.Expected.Name != "" {
			d.Expected.Name = eval.Expected.Name
			d.Expected.Tier = eval.Expected.Tier
			d.ExpectedSource = domain.TierStructured
		}
		if len(eval.Differentials) > 0 {
			for _, entry := range eval.Differentials {
				d.Differentials = append(d.Differentials, domain.DiagnosisEntry{
					Name: entry.Name,
					Tier: entry.Tier,
					Role: domain.RoleDifferential,
				})
			}
			d.DifferentialsSource = domain.TierStructured
		}
	} else if ddxparse.Classify(raw) != ddxparse.ShapeEmpty {
		e.logger.WithFields(logrus.Fields{
			"row_id":  rec.RowID,
			"variant": v,
			"column":  cols.EvalRaw,
		}).Debug("Evaluation blob not decodable, falling through")
	}

	e.fillFromFlat(&d, rec.Get(cols.Expected), rec.Get(cols.Differential), domain.TierLiteral)
	if v == domain.VariantApplied {
		e.fillFromFlat(&d, rec.Get(domain.ColumnLegacyExpected), rec.Get(domain.ColumnLegacyDDX), domain.TierLegacy)
	}

	d.Table = BuildDDXTable(&d)
	d.CombinedNames = CombinedNames(&d)
	return d
}

// fillFromFlat fills whichever of expected and differentials is still empty
// from a pair of flat text cells. Tiers are not recoverable from flat cells.
func (e *DerivationEngine) fillFromFlat(d *domain.VariantDerivation, expectedRaw, ddxRaw string, tier domain.DerivationTier) {
	if d.Expected.Name == "" {
		if name, _ := ddxparse.ExpectedName(expectedRaw); name != "" {
			d.Expected.Name = name
			d.Expected.Tier = ""
			d.ExpectedSource = tier
		}
	}
	if len(d.Differentials) == 0 {
		if names, _ := ddxparse.DifferentialNames(ddxRaw); len(names) > 0 {
			for _, n := range names {
				d.Differentials = append(d.Differentials, domain.DiagnosisEntry{Name: n, Role: domain.RoleDifferential})
			}
			d.DifferentialsSource = tier
		}
	}
}

// BuildDDXTable returns the presentation rows of a variant: the expected
// diagnosis first when present, then every differential in source order.
func BuildDDXTable(d *domain.VariantDerivation) []domain.DDXTableRow {
	rows := make([]domain.DDXTableRow, 0, len(d.Differentials)+1)
	if d.Expected.Name != "" {
		rows = append(rows, domain.DDXTableRow{
			Diagnosis: d.Expected.Name,
			Role:      domain.RoleExpected,
			Tier:      d.Expected.Tier,
		})
	}
	for _, entry := range d.Differentials {
		rows = append(rows, domain.DDXTableRow{
			Diagnosis: entry.Name,
			Role:      domain.RoleDifferential,
			Tier:      entry.Tier,
		})
	}
	return rows
}

// CombinedNames returns the expected name followed by the differential
// names, de-duplicated by exact string equality in first-seen order.
func CombinedNames(d *domain.VariantDerivation) []string {
	names := make([]string, 0, len(d.Differentials)+1)
	names = append(names, d.Expected.Name)
	names = append(names, d.DifferentialNames()...)
	return ddxparse.Dedupe(names)
}
