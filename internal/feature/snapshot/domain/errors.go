// Package domain defines domain-level errors for the snapshot feature.
package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"market_backend/internal/feature/snapshot/domain/entity"
)

// Errors raised while acquiring provider data.
// Everything except ErrConfiguration and ErrAllTimeframesFailed is recovered per
// timeframe by synthetic substitution and never reaches the caller on its own.
var (
	// ErrConfiguration indicates a missing or placeholder provider API key.
	// It blocks every real fetch and is reported before any network call.
	ErrConfiguration = errors.New("provider api key is not configured")

	// ErrUnauthorized indicates the provider rejected the API key (401/403).
	ErrUnauthorized = errors.New("provider rejected api key")

	// ErrRateLimited indicates the provider's request ceiling was hit (429).
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrBadSymbol indicates the provider does not know the requested symbol or interval (400/404).
	ErrBadSymbol = errors.New("provider rejected symbol")

	// ErrNoData indicates the provider answered without any candles.
	ErrNoData = errors.New("provider returned no data")

	// ErrTransport indicates a network or HTTP-level failure.
	ErrTransport = errors.New("provider transport failure")

	// ErrMalformedData indicates a response that could not be parsed into valid candles.
	ErrMalformedData = errors.New("provider returned malformed data")

	// ErrAllTimeframesFailed is the only error that escalates out of a snapshot fetch.
	ErrAllTimeframesFailed = errors.New("all timeframes failed")

	// ErrDataUnavailable is the name collaborators use for ErrAllTimeframesFailed.
	ErrDataUnavailable = ErrAllTimeframesFailed
)

// ProviderError carries the provider's own code and message alongside the
// classified sentinel in Kind.
type ProviderError struct {
	Kind    error  // one of the sentinels above
	Code    int    // provider or HTTP status code, 0 when not applicable
	Message string // provider message, if any
	Err     error  // underlying cause, if any
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the classification and the cause to errors.Is/As.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// AllTimeframesFailedError is returned when every slot of a snapshot degraded.
type AllTimeframesFailedError struct {
	Symbol string
	Causes map[entity.Timeframe]error
}

func (e *AllTimeframesFailedError) Error() string {
	tfs := make([]string, 0, len(e.Causes))
	for tf := range e.Causes {
		tfs = append(tfs, string(tf))
	}
	sort.Strings(tfs)
	parts := make([]string, 0, len(tfs))
	for _, tf := range tfs {
		parts = append(parts, fmt.Sprintf("%s: %v", tf, e.Causes[entity.Timeframe(tf)]))
	}
	return fmt.Sprintf("%s for %s [%s]", ErrAllTimeframesFailed, e.Symbol, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrAllTimeframesFailed and every per-slot cause.
func (e *AllTimeframesFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Causes)+1)
	errs = append(errs, ErrAllTimeframesFailed)
	for _, tf := range entity.Timeframes {
		if err, ok := e.Causes[tf]; ok {
			errs = append(errs, err)
		}
	}
	return errs
}

// IsPersistent reports whether err stems from configuration or authorization,
// which will not clear up by retrying, as opposed to rate limits or transport hiccups.
func IsPersistent(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrUnauthorized)
}

// Kind returns the short name of the classified failure, for logs and events.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAllTimeframesFailed):
		return "all_timeframes_failed"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrBadSymbol):
		return "bad_symbol"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrMalformedData):
		return "malformed"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}
