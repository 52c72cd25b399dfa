// Package http holds small helpers for consuming HTTP responses.
package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// MaxBodySize caps how much of a response body is read. Reddit listings and
// feeds for a single subreddit stay far below this.
const MaxBodySize = 8 << 20

// ReadResponseBody reads and closes HTTP response body
func ReadResponseBody(resp *http.Response) ([]byte, error) {
	defer closeBody(resp)
	return io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
}

// DecodeJSONResponse decodes a JSON response into target and closes the body
func DecodeJSONResponse(resp *http.Response, target any) error {
	defer closeBody(resp)

	if err := EnsureStatusOK(resp); err != nil {
		return err
	}

	return json.NewDecoder(io.LimitReader(resp.Body, MaxBodySize)).Decode(target)
}

// EnsureStatusOK checks if the response status is 200 OK
func EnsureStatusOK(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d %s", resp.StatusCode, resp.Status)
	}
	return nil
}

func closeBody(resp *http.Response) {
	if closeErr := resp.Body.Close(); closeErr != nil {
		slog.Error("Failed to close response body", "error", closeErr)
	}
}
