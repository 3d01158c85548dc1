package fetcher

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure so callers can decide whether to retry.
type Kind int

const (
	// KindQuotaExceeded means the provider rejected the request for rate
	// limiting; retryable with backoff.
	KindQuotaExceeded Kind = iota
	// KindUpstreamUnavailable covers 5xx responses and transport failures;
	// retryable with bounded attempts.
	KindUpstreamUnavailable
	// KindInvalidCoin means the coin identifier is unknown upstream;
	// never retried, the coin is excluded from the run.
	KindInvalidCoin
	// KindFatal covers authentication and other non-recoverable failures.
	KindFatal
	// KindShortSeries means the upstream returned fewer points than
	// requested; the partial series is attached to the error.
	KindShortSeries
)

func (k Kind) String() string {
	switch k {
	case KindQuotaExceeded:
		return "QuotaExceeded"
	case KindUpstreamUnavailable:
		return "UpstreamUnavailable"
	case KindInvalidCoin:
		return "InvalidCoin"
	case KindFatal:
		return "Fatal"
	case KindShortSeries:
		return "ShortSeries"
	default:
		return "Unknown"
	}
}

// FetchError wraps an upstream failure with its classification.
type FetchError struct {
	Kind   Kind
	CoinID string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.CoinID, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.CoinID, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf extracts the classification of err, defaulting to
// KindUpstreamUnavailable for unclassified errors.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUpstreamUnavailable
}

// Retryable reports whether a failure of this kind is worth another attempt.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindQuotaExceeded, KindUpstreamUnavailable:
		return true
	default:
		return false
	}
}
