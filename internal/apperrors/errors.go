package apperrors

import (
	"errors"
	"net/http"
)

// Sentinel errors for the booking core. Handlers branch on these with
// errors.Is; services wrap them with context via fmt.Errorf("...: %w", err).
var (
	// Validation: caller input is wrong, nothing was persisted.
	ErrInvalidRate     = errors.New("rate must be a non-negative amount")
	ErrInvalidProposal = errors.New("proposal must change at least one term")
	ErrValidation      = errors.New("invalid request")

	// Authorization: the actor is not entitled to perform the operation.
	ErrUnauthorizedActor = errors.New("company is not entitled to respond to this booking")

	// State conflict: expected under concurrency, recoverable by re-fetching.
	ErrStatusConflict  = errors.New("booking status changed since it was read")
	ErrBookingExpired  = errors.New("negotiation window has expired")
	ErrSelfAcceptance  = errors.New("a party cannot accept its own proposal")

	ErrNotFound = errors.New("not found")

	// Auth gate: realtime connection admission.
	ErrMissingCredential = errors.New("no credential supplied")
	ErrInvalidCredential = errors.New("credential is malformed or has a bad signature")
	ErrExpiredCredential = errors.New("credential has expired")
	ErrUnknownPrincipal  = errors.New("credential principal does not exist or is not verified")
)

// Code returns the stable machine-readable code for an error, so clients can
// tell "someone else already responded" from "fix your input" from "not
// allowed".
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRate):
		return "INVALID_RATE"
	case errors.Is(err, ErrInvalidProposal):
		return "INVALID_PROPOSAL"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, ErrUnauthorizedActor):
		return "UNAUTHORIZED_ACTOR"
	case errors.Is(err, ErrSelfAcceptance):
		return "SELF_ACCEPTANCE"
	case errors.Is(err, ErrBookingExpired):
		return "BOOKING_EXPIRED"
	case errors.Is(err, ErrStatusConflict):
		return "ILLEGAL_TRANSITION"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrMissingCredential):
		return "MISSING_CREDENTIAL"
	case errors.Is(err, ErrInvalidCredential):
		return "INVALID_CREDENTIAL"
	case errors.Is(err, ErrExpiredCredential):
		return "EXPIRED_CREDENTIAL"
	case errors.Is(err, ErrUnknownPrincipal):
		return "UNKNOWN_PRINCIPAL"
	default:
		return "INTERNAL"
	}
}

// StatusCode maps an error to the HTTP status the REST layer responds with.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRate),
		errors.Is(err, ErrInvalidProposal),
		errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorizedActor):
		return http.StatusForbidden
	case errors.Is(err, ErrStatusConflict),
		errors.Is(err, ErrBookingExpired),
		errors.Is(err, ErrSelfAcceptance):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMissingCredential),
		errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrExpiredCredential),
		errors.Is(err, ErrUnknownPrincipal):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// IsConflict reports whether the error is an expected state conflict rather
// than an application failure. Conflicts are logged at info level.
func IsConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict) ||
		errors.Is(err, ErrBookingExpired) ||
		errors.Is(err, ErrSelfAcceptance)
}
