package domain

// Canonical column names downstream code relies on, whatever export version
// produced the upload.
const (
	ColumnFileName        = "file_name"
	ColumnRawVisit        = "원본 초진기록"
	ColumnCurrentHistory  = "Current History"
	ColumnPastHistory     = "Past History"
	ColumnAssoSymptoms    = "ASSO_SX_SN"
	ColumnAssoDisease     = "ASSO_DISEASE"
	ColumnAssoTreatment   = "ASSO_TREATMENT"
	ColumnLabel           = "Label"
	ColumnEvalRawApplied  = "llm_eval_raw_applied"
	ColumnEvalRawBase     = "llm_eval_raw_base"
	ColumnExpectedApplied = "Expected Diagnosis (applied)"
	ColumnDDXApplied      = "Differential Diagnoses (applied)"
	ColumnExpectedBase    = "Expected Diagnosis (base)"
	ColumnDDXBase         = "Differential Diagnoses (base)"
	ColumnLegacyExpected  = "Expected Diagnosis"
	ColumnLegacyDDX       = "Differential Diagnoses list"
	ColumnEvalLabel       = "Llm Evaluation Label"
)

// Derived columns appended to the processed-table export.
const (
	DerivedExpNameApplied  = "__exp_name_applied__"
	DerivedExpTierApplied  = "__exp_tier_applied__"
	DerivedDDXNamesApplied = "__ddx_names_applied__"
	DerivedDDXTiersApplied = "__ddx_tiers_applied__"
	DerivedExpNameBase     = "__exp_name_base__"
	DerivedExpTierBase     = "__exp_tier_base__"
	DerivedDDXNamesBase    = "__ddx_names_base__"
	DerivedDDXTiersBase    = "__ddx_tiers_base__"
	DerivedExpName         = "__exp_name__"
	DerivedExpTier         = "__exp_tier__"
	DerivedDDXNames        = "__ddx_names__"
	DerivedDDXTiers        = "__ddx_tiers__"
)

// VariantColumns groups the per-variant source columns of a record.
type VariantColumns struct {
	EvalRaw      string
	Expected     string
	Differential string
}

// ColumnsFor returns the source columns owned by a variant
func ColumnsFor(v ModelVariant) VariantColumns {
	if v == VariantBase {
		return VariantColumns{
			EvalRaw:      ColumnEvalRawBase,
			Expected:     ColumnExpectedBase,
			Differential: ColumnDDXBase,
		}
	}
	return VariantColumns{
		EvalRaw:      ColumnEvalRawApplied,
		Expected:     ColumnExpectedApplied,
		Differential: ColumnDDXApplied,
	}
}
