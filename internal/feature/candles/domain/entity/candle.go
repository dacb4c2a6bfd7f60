// Package entity defines the domain models for the candles feature.
package entity

import "time"

// Candle represents persisted OHLCV data for a symbol at a specific interval.
// Only provider-sourced bars are stored; synthetic bars never reach this table.
type Candle struct {
	Symbol   string    // Platform symbol (e.g., "EURUSD", "BTCUSD")
	Interval string    // Timeframe (e.g., "5min", "1h", "4h")
	Time     time.Time // Timestamp for the start of this candle period
	Open     float64   // Opening price
	High     float64   // Highest price during this period
	Low      float64   // Lowest price during this period
	Close    float64   // Closing price
	Volume   float64   // Traded volume, 0 for forex
}
