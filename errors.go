package accounts

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidCredentials is returned by Login for both unknown
	// identifiers and wrong passwords; the wrapped message keeps the
	// internal reason distinct without changing the transport status.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when a referenced user record is absent.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned when registration hits an existing
	// username or email.
	ErrAccountExists = errors.New("account already exists")
	// ErrAvatarRequired is returned by Register when no avatar file is
	// supplied.
	ErrAvatarRequired = errors.New("avatar file required")
	// ErrUploadFailed is returned when the media upload collaborator
	// reports failure.
	ErrUploadFailed = errors.New("upload failed")
	// ErrMissingToken is returned when an operation requires a token and
	// none was presented.
	ErrMissingToken = errors.New("missing token")
	// ErrTokenInvalid is returned by the auth guard when an access token
	// fails verification or has expired.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRefreshInvalid is returned when a presented refresh token fails
	// signature or expiry verification.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when a verified refresh token does not
	// match the value currently stored for the user: either a rotated-out
	// token was replayed or the session was logged out.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrPasswordPolicy is returned when a new password violates the
	// configured minimum length.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrLoginRateLimited is returned when login attempts exceed the
	// configured budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when refresh attempts exceed the
	// configured budget.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrDuplicateUser is returned by UserStore.Create on a unique-key
	// violation.
	ErrDuplicateUser = errors.New("duplicate user")
	// ErrStoreUnavailable wraps credential-store I/O failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInternal flags an invariant failure, e.g. a post-create re-fetch
	// miss signalling persistence inconsistency.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build completed.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// FieldErrors maps input field names to human-readable problems.
type FieldErrors map[string]string

// ValidationError carries field-level detail for malformed input. The
// client must fix and resend.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string { return "validation failed" }

// NewValidationError wraps non-empty field errors; returns nil when
// fields is empty so callers can pass through clean input.
func NewValidationError(fields FieldErrors) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// Kind classifies every error the engine returns. Transport bindings map
// kinds to status codes; messages stay stable and never leak collaborator
// internals.
type Kind int

const (
	// KindValidation covers malformed input, including missing uploads.
	KindValidation Kind = iota
	// KindConflict covers duplicate unique keys.
	KindConflict
	// KindUnauthorized covers missing or invalid credentials/tokens.
	KindUnauthorized
	// KindForbidden covers tokens that verify but fail a secondary check.
	KindForbidden
	// KindNotFound covers absent referenced entities.
	KindNotFound
	// KindRateLimited covers throttled operations.
	KindRateLimited
	// KindInternal covers collaborator and invariant failures.
	KindInternal
)

// ErrKind resolves err to its taxonomy kind. Unrecognized errors flatten
// to KindInternal.
func ErrKind(err error) Kind {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, ErrAvatarRequired),
		errors.Is(err, ErrUploadFailed),
		errors.Is(err, ErrPasswordPolicy):
		return KindValidation
	case errors.Is(err, ErrAccountExists), errors.Is(err, ErrDuplicateUser):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrRefreshInvalid):
		return KindUnauthorized
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrRefreshReuse):
		return KindForbidden
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrRefreshRateLimited):
		return KindRateLimited
	default:
		return KindInternal
	}
}

// HTTPStatus maps an engine error to the stable status code a transport
// binding should emit.
func HTTPStatus(err error) int {
	switch ErrKind(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
