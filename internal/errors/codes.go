// Package errors provides structured error handling for RustRAG.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk)
//   - 3XX: Network errors
//   - 4XX: Input errors
//   - 5XX: Internal errors
//   - 6XX: Parse errors
//   - 7XX: Embedding errors
//   - 8XX: Storage errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryInput indicates invalid caller input, rejected before any work.
	CategoryInput Category = "INPUT"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryParse indicates unsupported or malformed source.
	CategoryParse Category = "PARSE"
	// CategoryEmbedding indicates model, tokenizer or inference failures.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryStorage indicates a failed storage operation or transaction.
	CategoryStorage Category = "STORAGE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull       = "ERR_203_DISK_FULL"
	ErrCodeLockHeld       = "ERR_204_LOCK_HELD"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"

	// Input errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidTopK       = "ERR_403_INVALID_TOP_K"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidPath       = "ERR_406_INVALID_PATH"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"

	// Parse errors (600-699)
	ErrCodeUnsupportedLanguage = "ERR_601_UNSUPPORTED_LANGUAGE"
	ErrCodeParseFailed         = "ERR_602_PARSE_FAILED"
	ErrCodeQueryInvalid        = "ERR_603_QUERY_INVALID"

	// Embedding errors (700-799)
	ErrCodeInferenceFailed = "ERR_701_INFERENCE_FAILED"
	ErrCodeModelLoadFailed = "ERR_702_MODEL_LOAD_FAILED"
	ErrCodeTokenizer       = "ERR_703_TOKENIZER"

	// Storage errors (800-899)
	ErrCodeStorageOpen       = "ERR_801_STORAGE_OPEN"
	ErrCodeTransactionFailed = "ERR_802_TRANSACTION_FAILED"
	ErrCodeStorageQuery      = "ERR_803_QUERY_FAILED"
	ErrCodeSchemaMismatch    = "ERR_804_SCHEMA_MISMATCH"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryInput
	case '6':
		return CategoryParse
	case '7':
		return CategoryEmbedding
	case '8':
		return CategoryStorage
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeDiskFull, ErrCodeSchemaMismatch, ErrCodeStorageOpen:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeLockHeld:
		return true
	default:
		return false
	}
}
