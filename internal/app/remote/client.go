/*
Package remote implements the HTTP clients of the identity and cart services.

Both services answer with the gateway's JSON envelope ({code, message, data}). Transport
failures, timeouts, 5xx answers and unreadable envelopes are reported as
ErrRemoteUnavailable; every other non-success answer is returned as an *APIError for the
service-specific client to classify.
*/
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/logx"
	"storefront/internal/pkg/resp"
)

// maxEnvelopeBytes bounds how much of a response body is read (1 MB).
const maxEnvelopeBytes = 1 << 20

// APIError is a non-success answer of a remote service.
type APIError struct {
	Status  int
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote answered HTTP %d, code %d: %s", e.Status, e.Code, e.Message)
}

// NewHTTPClient returns the http.Client shared by the remote clients.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

type baseClient struct {
	http    *http.Client
	baseURL string
	logger  zerolog.Logger
}

func newBaseClient(httpClient *http.Client, baseURL, component string) baseClient {
	return baseClient{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logx.Component(component),
	}
}

// do sends in as JSON (if not nil) and decodes the envelope's data into out (if not nil).
func (c *baseClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	request.Header.Set("Accept", "application/json")
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	response, err := c.http.Do(request)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("Remote call failed.")
		return errs.Wrap(errs.ErrRemoteUnavailable, err)
	}
	defer response.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", response.StatusCode).
		Dur("latency", time.Since(started)).
		Msg("Remote call completed.")

	if response.StatusCode >= http.StatusInternalServerError {
		return errs.Wrap(errs.ErrRemoteUnavailable, fmt.Errorf("%s %s answered HTTP %d", method, path, response.StatusCode))
	}

	var envelope resp.RawResponse
	if err := json.NewDecoder(io.LimitReader(response.Body, maxEnvelopeBytes)).Decode(&envelope); err != nil {
		if response.StatusCode == http.StatusNoContent || err == io.EOF {
			if response.StatusCode < http.StatusBadRequest {
				return nil
			}
			return &APIError{Status: response.StatusCode}
		}
		return errs.Wrap(errs.ErrRemoteUnavailable, fmt.Errorf("decode %s %s envelope: %w", method, path, err))
	}

	if response.StatusCode >= http.StatusBadRequest || envelope.Code != resp.CodeSuccess {
		return &APIError{
			Status:  response.StatusCode,
			Code:    envelope.Code,
			Message: envelope.Message,
			Data:    envelope.Data,
		}
	}

	if out == nil || len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return errs.Wrap(errs.ErrRemoteUnavailable, fmt.Errorf("decode %s %s payload: %w", method, path, err))
	}
	return nil
}
