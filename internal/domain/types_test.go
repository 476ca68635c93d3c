package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelVariant(t *testing.T) {
	tests := []struct {
		in      string
		want    ModelVariant
		wantErr bool
	}{
		{"", VariantApplied, false},
		{"applied", VariantApplied, false},
		{" Base ", VariantBase, false},
		{"BASE", VariantBase, false},
		{"gpt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseModelVariant(tt.in)
			if tt.wantErr {
				assert.Equal(t, ErrValidation, ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}

	assert.False(t, ModelVariant("both").IsValid())
}

func TestVariantDerivation_Views(t *testing.T) {
	d := VariantDerivation{
		Variant:  VariantApplied,
		Expected: DiagnosisEntry{Name: "Stroke", Role: RoleExpected},
		Differentials: []DiagnosisEntry{
			{Name: "TIA", Tier: "must-not-miss", Role: RoleDifferential},
			{Name: "Migraine", Role: RoleDifferential},
			{Name: "TIA", Role: RoleDifferential},
		},
	}

	assert.Equal(t, []string{"TIA", "Migraine", "TIA"}, d.DifferentialNames())
	assert.Equal(t, []string{"must-not-miss", "", ""}, d.DifferentialTiers())
	assert.False(t, d.IsEmpty())

	var empty VariantDerivation
	assert.True(t, empty.IsEmpty())
	assert.Empty(t, empty.DifferentialNames())
}

func TestDerivedRecord_Preferred(t *testing.T) {
	rec := DerivedRecord{
		NormalizedRecord: NormalizedRecord{RowID: 0, Fields: map[string]string{ColumnFileName: "case01.txt"}},
		Applied:          VariantDerivation{Variant: VariantApplied},
		Base:             VariantDerivation{Variant: VariantBase},
		Prefer:           VariantBase,
	}

	assert.Equal(t, VariantBase, rec.Preferred().Variant)
	assert.Equal(t, VariantApplied, rec.Derivation(VariantApplied).Variant)
	assert.Equal(t, "case01.txt", rec.FileName())

	var bare NormalizedRecord
	assert.Equal(t, "", bare.Get(ColumnFileName))
}

func TestDerivedTable_Record(t *testing.T) {
	table := &DerivedTable{Records: []DerivedRecord{
		{NormalizedRecord: NormalizedRecord{RowID: 0}},
		{NormalizedRecord: NormalizedRecord{RowID: 1}},
	}}

	rec, err := table.Record(1)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.RowID)
	assert.Equal(t, []int{0, 1}, table.RowIDs())

	for _, id := range []int{-1, 2} {
		_, err := table.Record(id)
		assert.Equal(t, ErrRowNotFound, ErrorCode(err))
	}
}
