/*
Package req provides helper functions for HTTP request parsing and data binding.

It decodes size-limited JSON bodies strictly, reporting malformed input with the
application's error codes.
*/
package req

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/pkg/errs"
)

// MaxJSONBodyBytes bounds the size of a JSON request body (64 KB).
const MaxJSONBodyBytes int64 = 64 << 10

// BindJSON decodes the JSON body of r into dst. Unknown fields, trailing content and
// bodies larger than MaxJSONBodyBytes are rejected.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.NewError(errs.ErrInvalidParams)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
