package apperrors

import (
	"net/http"
)

/*
Предопределенные ошибки платежного домена.
*/

// --- Payments & Gateway ---

// ErrSignatureInvalid - подпись webhook не совпала. Запрос отклоняется, а не повторяется.
var ErrSignatureInvalid = New(
	CodeSignatureInvalid,
	"gateway",
	"Webhook signature verification failed",
	http.StatusUnauthorized,
)

// ErrMissingMetadata - в metadata сессии нет member_id
var ErrMissingMetadata = New(
	CodeMissingMetadata,
	"payment",
	"Checkout session metadata is missing member_id",
	http.StatusBadRequest,
)

// ErrAmountBelowMinimum - сумма меньше минимального взноса
var ErrAmountBelowMinimum = New(
	CodeValidationFailed,
	"payment",
	"Amount is below the minimum membership fee",
	http.StatusBadRequest,
)

// ErrSponsorAmountRequired - для спонсорского членства сумма обязательна
var ErrSponsorAmountRequired = New(
	CodeValidationFailed,
	"payment",
	"Amount is required for sponsor membership",
	http.StatusBadRequest,
)

// ErrMembershipNotPurchasable - free/lifetime нельзя купить через checkout
var ErrMembershipNotPurchasable = New(
	CodeInvalidOperation,
	"payment",
	"Membership type cannot be purchased online",
	http.StatusBadRequest,
)

// ErrCheckoutSessionNotFound - шлюз не знает такую сессию
var ErrCheckoutSessionNotFound = NewNotFoundError(
	"payment",
	"Checkout session not found",
	http.StatusBadRequest,
)

// ErrGatewayUnavailable - шлюз вернул ошибку или не ответил
var ErrGatewayUnavailable = New(
	CodeExternalServiceError,
	"gateway",
	"Payment provider error",
	http.StatusInternalServerError,
)

// ErrMemberNotFound - участник не найден
var ErrMemberNotFound = NewNotFoundError(
	"member",
	"Member not found",
	http.StatusNotFound,
)

// --- Allocation ---

// ErrAllocationUnavailable - вариант распределения больше не доступен (баланс уже потрачен)
var ErrAllocationUnavailable = New(
	CodeConflict,
	"allocation",
	"Allocation option is no longer available",
	http.StatusBadRequest,
)

// --- Rate limiting ---

// ErrRateLimited - слишком много запросов
var ErrRateLimited = New(
	CodeRateLimited,
	"request",
	"Too many requests, please retry later",
	http.StatusTooManyRequests,
)
