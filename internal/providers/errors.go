package providers

import "fmt"

// APIError is a non-2xx response from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// RateLimited reports whether the provider refused the call for quota or
// rate-limit reasons.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == 429
}
