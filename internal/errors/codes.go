// Package errors provides structured error handling for convdex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage and IO errors
//   - 4XX: Dataset and corpus validation errors
//   - 5XX: Build and lifecycle errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates storage path and disk errors.
	CategoryStorage Category = "STORAGE"
	// CategoryDataset indicates dataset and corpus validation errors.
	CategoryDataset Category = "DATASET"
	// CategoryBuild indicates build and lifecycle errors.
	CategoryBuild Category = "BUILD"
)

// Stage identifies the pipeline stage where an error occurred.
// Every failure surfaced to a caller is attributable to a dataset
// name and one of these stages.
type Stage string

const (
	StageRegistry   Stage = "registry"
	StageValidation Stage = "validation"
	StageStaging    Stage = "staging"
	StageBuilder    Stage = "builder"
	StagePublish    Stage = "publish"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// Storage errors (200-299)
	ErrCodeMissingPath  = "ERR_201_MISSING_PATH"
	ErrCodeDiskFull     = "ERR_202_DISK_FULL"
	ErrCodeCorruptIndex = "ERR_203_CORRUPT_INDEX"

	// Dataset errors (400-499)
	ErrCodeSchemaMismatch   = "ERR_401_SCHEMA_MISMATCH"
	ErrCodeDuplicateDocID   = "ERR_402_DUPLICATE_DOC_ID"
	ErrCodeUnknownDataset   = "ERR_411_UNKNOWN_DATASET"
	ErrCodeDuplicateDataset = "ERR_412_DUPLICATE_DATASET"

	// Build errors (500-599)
	ErrCodeInvalidState      = "ERR_501_INVALID_STATE"
	ErrCodeBuildTimeout      = "ERR_502_BUILD_TIMEOUT"
	ErrCodeBuilderInvocation = "ERR_503_BUILDER_INVOCATION"
	ErrCodeBuildCancelled    = "ERR_504_BUILD_CANCELLED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryBuild
	}

	// Numeric portion, e.g. "401" from "ERR_401_SCHEMA_MISMATCH"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '4':
		return CategoryDataset
	default:
		return CategoryBuild
	}
}
