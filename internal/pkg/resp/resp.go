/*
Package resp provides helper functions for constructing and sending standardized HTTP JSON responses.

It defines the unified JSON envelope, including a business code, message and optional data,
shared by the gateway's own endpoints and the remote identity and cart services it calls.
*/
package resp

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/logx"
)

// CodeSuccess is the business code of a successful envelope.
const CodeSuccess = 0

// JSONResponse defines the standardized JSON envelope.
type JSONResponse struct {
	// Code is the business status code (0 for success, others for specific errors, see errs package).
	Code int `json:"code"`

	// Message is the client-friendly status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data any `json:"data,omitempty"`
}

// RawResponse is JSONResponse with its payload left undecoded, for reading envelopes
// produced by remote services.
type RawResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RespondJSON sets the Content-Type and sends payload with httpStatus.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
			"path", r.URL.Path,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(response)
}

// RespondSuccess sends a successful HTTP response (HTTP 200 OK).
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	res := JSONResponse{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	}
	RespondJSON(w, r, http.StatusOK, res)
}

// RespondError sends the envelope of err. Errors that are not a *errs.CustomError are
// reported as ErrUnknown without exposing their text.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		if err != nil {
			logx.Error(err, "Unclassified error reached the response writer", "path", r.URL.Path)
		}
		customErr = errs.NewError(errs.ErrUnknown)
	}

	res := JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	}
	RespondJSON(w, r, customErr.Status, res)
}
