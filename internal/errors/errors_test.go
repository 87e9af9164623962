package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormat(t *testing.T) {
	err := UnknownDataset("ikat")
	assert.Equal(t, `[ERR_411_UNKNOWN_DATASET] dataset "ikat": not registered`, err.Error())

	plain := New(ErrCodeConfigInvalid, "bad yaml", nil)
	assert.Equal(t, "[ERR_101_CONFIG_INVALID] bad yaml", plain.Error())
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeMissingPath, CategoryStorage},
		{ErrCodeSchemaMismatch, CategoryDataset},
		{ErrCodeDuplicateDataset, CategoryDataset},
		{ErrCodeInvalidState, CategoryBuild},
		{ErrCodeBuilderInvocation, CategoryBuild},
		{"bogus", CategoryBuild},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categoryFromCode(tt.code), tt.code)
	}
}

func TestErrorsIsByCode(t *testing.T) {
	err := DuplicateDocID("toy", "doc-1")
	assert.True(t, stderrors.Is(err, New(ErrCodeDuplicateDocID, "", nil)))
	assert.False(t, stderrors.Is(err, New(ErrCodeSchemaMismatch, "", nil)))
	assert.True(t, IsDuplicateDocID(err))
	assert.False(t, IsSchemaMismatch(err))
}

func TestWrappedChain(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := BuilderInvocation("toy", cause)

	require.ErrorIs(t, err, cause)
	assert.True(t, IsBuilderInvocation(err))

	// Wrapped one level deeper, helpers still match.
	outer := fmt.Errorf("ensure index: %w", err)
	assert.True(t, IsBuilderInvocation(outer))

	var ce *Error
	require.True(t, stderrors.As(outer, &ce))
	assert.Equal(t, "toy", ce.Dataset)
	assert.Equal(t, StageBuilder, ce.Stage)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeBuilderInvocation, nil))
}

func TestStageAttribution(t *testing.T) {
	err := SchemaMismatch("inscit", "missing field: contents")
	assert.Equal(t, StageValidation, err.Stage)
	assert.Equal(t, "inscit", err.Dataset)

	err2 := MissingPath("/data/corpus", nil).WithDataset("ikat")
	assert.Equal(t, "ikat", err2.Dataset)
	assert.True(t, IsMissingPath(err2))
}
