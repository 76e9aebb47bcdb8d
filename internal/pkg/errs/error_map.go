/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses, tab error messages and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrValidation:           {Code: ErrValidation, Message: "Invalid input: %s", Status: http.StatusBadRequest},

	// 2xxx: Cart Errors
	ErrInventoryConflict: {Code: ErrInventoryConflict, Message: "Not enough stock for this item.", Status: http.StatusConflict},
	ErrCartLineNotFound:  {Code: ErrCartLineNotFound, Message: "This item is no longer in your cart.", Status: http.StatusNotFound},

	// 3xxx: Session and Authentication Errors
	ErrNotAuthenticated:   {Code: ErrNotAuthenticated, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect email or password.", Status: http.StatusUnauthorized},
	ErrEmailNotVerified:   {Code: ErrEmailNotVerified, Message: "Please verify your email address before signing in.", Status: http.StatusForbidden},
	ErrAuthRemoteFault:    {Code: ErrAuthRemoteFault, Message: "Sign-in is unavailable right now. Please try again.", Status: http.StatusBadGateway},
	ErrLoginSuperseded:    {Code: ErrLoginSuperseded, Message: "Sign-in was cancelled.", Status: http.StatusConflict},
	ErrAccountExists:      {Code: ErrAccountExists, Message: "An account with this email already exists.", Status: http.StatusConflict},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrRemoteUnavailable: {Code: ErrRemoteUnavailable, Message: "Service temporarily unavailable. Please try again.", Status: http.StatusBadGateway},
}
