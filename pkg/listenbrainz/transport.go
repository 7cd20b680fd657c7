package listenbrainz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of a failed response is read for the message.
const maxErrorBody = 4096

// call makes a single HTTP request to the ListenBrainz API.
//
// It handles:
// - Request construction with JSON body and headers
// - The Authorization header for authenticated requests
// - Mapping non-2xx responses to *Error
// - Context cancellation
//
// There is no retry: a failed call is reported once and the caller decides.
func (c *Client) call(ctx context.Context, method, path string, body interface{}, requiresAuth bool) ([]byte, error) {
	if requiresAuth && c.token == "" {
		return nil, ErrNoToken
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	c.logDebugf("listenbrainz: %s %s", method, endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, parseError(resp, raw)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logDebugf("listenbrainz: %s %s succeeded (%d)", method, path, resp.StatusCode)
	return data, nil
}

// parseError builds an *Error from a failed response.
func parseError(resp *http.Response, raw []byte) *Error {
	apiErr := &Error{Code: resp.StatusCode}

	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		return apiErr
	}

	if msg := strings.TrimSpace(string(raw)); msg != "" && !strings.HasPrefix(msg, "<") {
		apiErr.Message = msg
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
