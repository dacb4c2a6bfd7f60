// Package dto defines data transfer objects for the Twelve Data API responses.
package dto

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeSeriesResponse represents every shape the time_series endpoint answers with:
// a candle series in Values, an error in Code/Message, or a single quote in Price.
type TimeSeriesResponse struct {
	Status  string       `json:"status"`
	Code    int          `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	Meta    *Meta        `json:"meta,omitempty"`
	Values  []TimeSeries `json:"values"`
	Price   Number       `json:"price"`
}

// Meta describes the returned series.
type Meta struct {
	Symbol           string `json:"symbol"`
	Interval         string `json:"interval"`
	ExchangeTimezone string `json:"exchange_timezone"`
}

// Location returns the exchange timezone the datetimes are written in.
// A missing meta block, an empty name or an unknown zone means UTC.
func (m *Meta) Location() *time.Location {
	if m == nil || m.ExchangeTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(m.ExchangeTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TimeSeries is one bar, newest first in the provider's ordering.
type TimeSeries struct {
	Datetime string `json:"datetime"`
	Open     Number `json:"open"`
	High     Number `json:"high"`
	Low      Number `json:"low"`
	Close    Number `json:"close"`
	Volume   Number `json:"volume"`
}

// IsError reports whether the body is the provider's error shape.
func (r *TimeSeriesResponse) IsError() bool {
	return r.Status == "error" || (r.Code != 0 && r.Code != 200)
}

// Number accepts both quoted ("1.0850") and bare (1.085) JSON numbers.
// A value that is present but not a finite number is kept in Raw and reported by Float.
type Number struct {
	Raw   string
	value float64
	ok    bool
}

// UnmarshalJSON never fails on a bad number so the caller can name the offending field.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = Number{}
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	*n = Number{Raw: s, value: v, ok: err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)}
	return nil
}

// Present reports whether the field carried a non-empty value.
func (n Number) Present() bool { return n.Raw != "" }

// Float returns the parsed value and whether it is a finite number.
func (n Number) Float() (float64, bool) { return n.value, n.ok }
