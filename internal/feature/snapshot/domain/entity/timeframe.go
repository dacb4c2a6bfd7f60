package entity

import "time"

// Timeframe is one of the fixed sampling intervals composing a snapshot.
// The values double as the provider's interval names.
type Timeframe string

const (
	Timeframe5Min  Timeframe = "5min"
	Timeframe15Min Timeframe = "15min"
	Timeframe1H    Timeframe = "1h"
	Timeframe4H    Timeframe = "4h"
)

// Timeframes is the fixed order in which a snapshot is assembled.
var Timeframes = []Timeframe{Timeframe5Min, Timeframe15Min, Timeframe1H, Timeframe4H}

// Cadence returns the nominal spacing between consecutive candles.
func (tf Timeframe) Cadence() time.Duration {
	switch tf {
	case Timeframe5Min:
		return 5 * time.Minute
	case Timeframe15Min:
		return 15 * time.Minute
	case Timeframe1H:
		return time.Hour
	case Timeframe4H:
		return 4 * time.Hour
	default:
		return time.Hour
	}
}

// Valid reports whether tf is one of the snapshot timeframes.
func (tf Timeframe) Valid() bool {
	switch tf {
	case Timeframe5Min, Timeframe15Min, Timeframe1H, Timeframe4H:
		return true
	}
	return false
}

func (tf Timeframe) String() string { return string(tf) }
