package fetch

import (
	"fmt"
	"net/http"
)

// Kind classifies a fetch failure.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindConnectionRefused
	KindHTTPStatus
	KindRetriesExhausted
	// KindCanceled is returned when the caller's context ends mid-fetch.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionRefused:
		return "connection_refused"
	case KindHTTPStatus:
		return "http_status"
	case KindRetriesExhausted:
		return "retries_exhausted"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// FetchError is the failure result of Client.Do.
type FetchError struct {
	Kind Kind
	// Last is the kind of the final attempt's failure when Kind is KindRetriesExhausted.
	Last     Kind
	Status   int
	Attempts int
	URL      string
	// Detail holds the (truncated) response body or transport message.
	Detail string
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.Status, e.Detail)
	case KindRetriesExhausted:
		if e.Last == KindHTTPStatus {
			return fmt.Sprintf("fetch %s: retries exhausted after %d attempts: last HTTP %d: %s", e.URL, e.Attempts, e.Status, e.Detail)
		}
		return fmt.Sprintf("fetch %s: retries exhausted after %d attempts: last %s: %s", e.URL, e.Attempts, e.Last, e.Detail)
	default:
		return fmt.Sprintf("fetch %s: %s: %s", e.URL, e.Kind, e.Detail)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether the underlying fault is one that retrying may clear.
// Terminal HTTP statuses (4xx other than 429) are not transient.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindConnectionRefused, KindRetriesExhausted:
		return true
	case KindHTTPStatus:
		return retryableStatus(e.Status)
	default:
		return false
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
