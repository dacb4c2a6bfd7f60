package entity

import "time"

// Source tells a caller whether a snapshot carries provider data.
type Source string

const (
	SourceLive    Source = "live"    // every slot came from the provider
	SourcePartial Source = "partial" // 1-3 slots are synthetic
	SourceDemo    Source = "demo"    // every slot is synthetic
)

// Snapshot is the complete multi-timeframe result for one symbol.
// Timeframes always holds every key of Timeframes; a degraded slot holds
// synthetic data and is listed in Degraded.
type Snapshot struct {
	RunID          string
	Symbol         string
	ProviderSymbol string
	Timeframes     map[Timeframe]Series
	Degraded       []Timeframe
	Source         Source
	GeneratedAt    time.Time
}

// DegradedCount returns the number of synthetic slots.
func (s *Snapshot) DegradedCount() int { return len(s.Degraded) }

// IsDegraded reports whether the slot for tf is synthetic.
func (s *Snapshot) IsDegraded(tf Timeframe) bool {
	for _, d := range s.Degraded {
		if d == tf {
			return true
		}
	}
	return false
}

// SourceFor derives the live/partial/demo indicator from a degraded count.
func SourceFor(degraded, total int) Source {
	switch {
	case degraded == 0:
		return SourceLive
	case degraded >= total:
		return SourceDemo
	default:
		return SourcePartial
	}
}
