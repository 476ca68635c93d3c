package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServiceError(t *testing.T) {
	before := time.Now().UTC()
	err := NewServiceError(ErrRowNotFound, "row 7 not found", "table has 3 rows")

	assert.Equal(t, ErrRowNotFound, err.Code)
	assert.Equal(t, "row 7 not found", err.Message)
	assert.Equal(t, "table has 3 rows", err.Details)
	assert.False(t, err.Timestamp.Before(before))
	assert.Equal(t, "ROW_NOT_FOUND: row 7 not found", err.Error())
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("prefer", "must be 'applied' or 'base'", "gpt")

	assert.Equal(t, "prefer", err.Field)
	assert.Equal(t, "gpt", err.Value)
	assert.Equal(t, "validation error for field 'prefer': must be 'applied' or 'base'", err.Error())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"service error", NewServiceError(ErrNoDataset, "no dataset loaded", ""), ErrNoDataset},
		{"wrapped service error", fmt.Errorf("load: %w", NewServiceError(ErrUploadParse, "bad", "")), ErrUploadParse},
		{"validation error", NewValidationError("row_id", "required", nil), ErrValidation},
		{"wrapped validation error", fmt.Errorf("save: %w", NewValidationError("scores", "out of range", 9)), ErrValidation},
		{"plain error", fmt.Errorf("boom"), ErrInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
