package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
)

// errorBody is the shape of error responses; both "error" and "message" are
// accepted.
type errorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// DecodeJSON closes resp.Body. A 2xx body is decoded into v (skipped when v is
// nil or the body is empty); anything else becomes an *errors.APIError.
func DecodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil && err != io.EOF {
		return apperrors.Wrapf(err, "decode response")
	}
	return nil
}

func apiError(resp *http.Response) error {
	apiErr := &apperrors.APIError{Status: resp.StatusCode}

	var body errorBody
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && len(raw) > 0 {
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Message = body.Message
			if apiErr.Message == "" {
				apiErr.Message = body.Error
			}
		} else {
			apiErr.Message = string(raw)
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = body.RetryAfter
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			apiErr.RetryAfter = secs
		}
	}
	return apiErr
}
