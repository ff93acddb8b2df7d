package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeCancelled          ErrorCode = "COMMON_017"
)

// Aliases
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeRateLimit    = ErrCodeTooManyRequests
	CodeCancelled    = ErrCodeCancelled
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Takeoff Module Error Codes
const (
	ErrCodeTakeoffNotFound      ErrorCode = "QTO_001"
	ErrCodeTakeoffEmptyDrawing  ErrorCode = "QTO_002"
	ErrCodeTakeoffRecognition   ErrorCode = "QTO_003"
	ErrCodeTakeoffDeduction     ErrorCode = "QTO_004"
	ErrCodeTakeoffExportFailed  ErrorCode = "QTO_005"
	ErrCodeTakeoffPublishFailed ErrorCode = "QTO_006"
	ErrCodeTakeoffPersistFailed ErrorCode = "QTO_007"
)

// Pricing Module Error Codes
const (
	ErrCodePriceNotFound     ErrorCode = "PRC_001"
	ErrCodePriceTableInvalid ErrorCode = "PRC_002"
	ErrCodePriceTableLoad    ErrorCode = "PRC_003"
)

// Verification Module Error Codes
const (
	ErrCodeVerifierUnavailable ErrorCode = "VER_001"
	ErrCodeVerifierBadResponse ErrorCode = "VER_002"
	ErrCodeVerifierRateLimited ErrorCode = "VER_003"
)

// Drawing Source Error Codes
const (
	ErrCodeAnnotationSourceInvalid ErrorCode = "DRW_001"
	ErrCodeAnnotationSourceRead    ErrorCode = "DRW_002"
)

// Domain aliases
const (
	CodeTakeoffNotFound         = ErrCodeTakeoffNotFound
	CodePriceNotFound           = ErrCodePriceNotFound
	CodeAnnotationSourceInvalid = ErrCodeAnnotationSourceInvalid
)

// Infrastructure Error Codes
const (
	CodeDBConnectionError = ErrCodeDatabaseError
	CodeDBQueryError      = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeMessageQueueError = ErrCodeTakeoffPublishFailed
	CodeStorageError      = ErrCodeTakeoffExportFailed
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeCancelled:          http.StatusRequestTimeout,

	ErrCodeTakeoffNotFound:      http.StatusNotFound,
	ErrCodeTakeoffEmptyDrawing:  http.StatusUnprocessableEntity,
	ErrCodeTakeoffRecognition:   http.StatusInternalServerError,
	ErrCodeTakeoffDeduction:     http.StatusInternalServerError,
	ErrCodeTakeoffExportFailed:  http.StatusBadGateway,
	ErrCodeTakeoffPublishFailed: http.StatusBadGateway,
	ErrCodeTakeoffPersistFailed: http.StatusInternalServerError,

	ErrCodePriceNotFound:     http.StatusNotFound,
	ErrCodePriceTableInvalid: http.StatusUnprocessableEntity,
	ErrCodePriceTableLoad:    http.StatusInternalServerError,

	ErrCodeVerifierUnavailable: http.StatusServiceUnavailable,
	ErrCodeVerifierBadResponse: http.StatusBadGateway,
	ErrCodeVerifierRateLimited: http.StatusTooManyRequests,

	ErrCodeAnnotationSourceInvalid: http.StatusBadRequest,
	ErrCodeAnnotationSourceRead:    http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeCancelled:          "operation cancelled",

	ErrCodeTakeoffNotFound:      "takeoff run not found",
	ErrCodeTakeoffEmptyDrawing:  "drawing contains no annotations",
	ErrCodeTakeoffRecognition:   "component recognition failed",
	ErrCodeTakeoffDeduction:     "deduction pass failed",
	ErrCodeTakeoffExportFailed:  "failed to export takeoff report",
	ErrCodeTakeoffPublishFailed: "failed to publish takeoff event",
	ErrCodeTakeoffPersistFailed: "failed to persist takeoff run",

	ErrCodePriceNotFound:     "price item not found",
	ErrCodePriceTableInvalid: "invalid price table",
	ErrCodePriceTableLoad:    "failed to load price table",

	ErrCodeVerifierUnavailable: "verification service unavailable",
	ErrCodeVerifierBadResponse: "verification service returned an unusable response",
	ErrCodeVerifierRateLimited: "verification service rate limited",

	ErrCodeAnnotationSourceInvalid: "invalid annotation source",
	ErrCodeAnnotationSourceRead:    "failed to read annotations",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
