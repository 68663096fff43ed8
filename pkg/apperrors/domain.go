package apperrors

import (
	"net/http"
)

/*
Predefined errors for the referral graph, payment reconciliation and the
subscription state machine. All of these are recoverable by the caller;
the handler layer translates them into HTTP responses.
*/

// --- Referral graph ---

// ErrUnknownCode - the referral code does not resolve to any account.
var ErrUnknownCode = New(
	CodeNotFound,
	"referral",
	"Referral code does not exist",
	http.StatusNotFound,
)

// ErrCycle - attaching would create a path from an account back to itself.
var ErrCycle = New(
	CodeConflict,
	"referral",
	"Attachment would create a referral cycle",
	http.StatusConflict,
)

// ErrAlreadyAttached - the account already has a referrer; referred-by is immutable.
var ErrAlreadyAttached = New(
	CodeConflict,
	"referral",
	"Account is already attached to a referrer",
	http.StatusConflict,
)

// --- Payment reconciliation ---

// ErrMismatchedOrder - a wallet confirmation callback carried a reference id
// that does not match the order it claims to confirm.
var ErrMismatchedOrder = New(
	CodeConflict,
	"payment",
	"Confirmation does not match the order reference",
	http.StatusConflict,
)

// ErrDuplicatePayment - the external reference id was already processed.
var ErrDuplicatePayment = New(
	CodeAlreadyExists,
	"payment",
	"Payment with this reference was already processed",
	http.StatusConflict,
)

// ErrInvalidSignature - webhook or callback authenticity check failed.
// This is the only error the external caller must NOT retry on.
var ErrInvalidSignature = New(
	CodeUnauthorized,
	"payment",
	"Invalid webhook signature",
	http.StatusUnauthorized,
)

// --- Subscription state machine ---

// ErrInvalidTransition - the requested state change is not allowed from the
// subscription's current status.
var ErrInvalidTransition = New(
	CodeInvalidStatus,
	"subscription",
	"Subscription state transition is not allowed",
	http.StatusConflict,
)

// ErrUnknownPlan - the plan code does not exist in the catalog.
var ErrUnknownPlan = New(
	CodeValidationFailed,
	"subscription",
	"Unknown subscription plan",
	http.StatusBadRequest,
)

// --- Accounts & auth ---

// ErrEmailAlreadyExists - email is already registered.
var ErrEmailAlreadyExists = New(
	CodeAlreadyExists,
	"auth",
	"Email already in use",
	http.StatusConflict,
)

// ErrInvalidCredentials - wrong email or password.
var ErrInvalidCredentials = New(
	CodeInvalidCredentials,
	"auth",
	"Invalid email or password",
	http.StatusUnauthorized,
)

// ErrInvalidToken - invalid or expired JWT.
var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized,
)

// ErrInsufficientPermissions - a non-admin attempted an admin action.
var ErrInsufficientPermissions = New(
	CodeForbidden,
	"auth",
	"Insufficient permissions",
	http.StatusForbidden,
)
