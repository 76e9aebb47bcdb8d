/*
Package errs provides custom error types and application-level error code constants.

These error codes identify the failure kinds of the storefront core (session, cart,
remote collaborators) both inside the gateway and in messages pushed to browser tabs.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrValidation indicates malformed local input that has no safe default to fall back to.
	ErrValidation = 1010
)

// 2xxx: Cart Errors
const (
	// ErrInventoryConflict indicates the requested quantity or line is no longer valid against current stock.
	ErrInventoryConflict = 2001

	// ErrCartLineNotFound indicates that the referenced cart line is not present in the local cart.
	ErrCartLineNotFound = 2002
)

// 3xxx: Session and Authentication Errors
const (
	// ErrNotAuthenticated indicates an operation that requires an authenticated session was attempted anonymously.
	ErrNotAuthenticated = 3001

	// ErrInvalidCredentials indicates the identity service rejected the supplied credentials.
	ErrInvalidCredentials = 3002

	// ErrEmailNotVerified indicates the account exists but its e-mail address has not been verified yet.
	ErrEmailNotVerified = 3003

	// ErrAuthRemoteFault indicates the identity service failed while authenticating.
	ErrAuthRemoteFault = 3004

	// ErrLoginSuperseded indicates a login resolved after the user ended the session or started a newer login.
	ErrLoginSuperseded = 3005

	// ErrAccountExists indicates a signup for an identity that is already registered.
	ErrAccountExists = 3006
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general internal error.
	ErrUnknown = 5000

	// ErrRemoteUnavailable indicates a network or server fault on a call to a remote collaborator.
	ErrRemoteUnavailable = 5001
)
