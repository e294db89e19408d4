package apperrors

// ErrorCode - тип для кодов ошибок
type ErrorCode string

const (
	// Системные ошибки
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// Ошибки бизнес-логики
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeInvalidOperation ErrorCode = "INVALID_OPERATION"
	CodeMissingMetadata  ErrorCode = "MISSING_METADATA"
	CodeRateLimited      ErrorCode = "RATE_LIMITED"
	CodeHandlerFailed    ErrorCode = "HANDLER_FAILED"
	CodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"

	// Аутентификация
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeInvalidToken     ErrorCode = "INVALID_TOKEN"
	CodeSignatureInvalid ErrorCode = "SIGNATURE_INVALID"
)
