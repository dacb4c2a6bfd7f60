// Package entity defines the domain models for the snapshot feature.
package entity

import (
	"fmt"
	"math"
	"time"
)

// Candle represents one OHLCV bar for a fixed sampling interval.
// Provider-sourced and synthetic candles share this type and the same invariants.
type Candle struct {
	Time   time.Time // Start of the bar
	Open   float64   // Opening price
	High   float64   // Highest price during the bar
	Low    float64   // Lowest price during the bar
	Close  float64   // Closing price
	Volume float64   // Traded volume, 0 when the provider does not report it (forex)
}

// Validate reports the first violated invariant, or nil.
// The returned error describes the field; callers wrap it with their own sentinel.
func (c Candle) Validate() error {
	fields := [...]struct {
		name string
		v    float64
	}{
		{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close}, {"volume", c.Volume},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s is not finite", f.name)
		}
	}
	if c.High < math.Max(c.Open, c.Close) {
		return fmt.Errorf("high %v below max(open, close)", c.High)
	}
	if c.Low > math.Min(c.Open, c.Close) {
		return fmt.Errorf("low %v above min(open, close)", c.Low)
	}
	if c.Volume < 0 {
		return fmt.Errorf("negative volume %v", c.Volume)
	}
	return nil
}

// Series is a chronologically ascending sequence of candles for one timeframe.
type Series []Candle

// IsAscending reports whether timestamps strictly increase.
func (s Series) IsAscending() bool {
	for i := 1; i < len(s); i++ {
		if !s[i].Time.After(s[i-1].Time) {
			return false
		}
	}
	return true
}
