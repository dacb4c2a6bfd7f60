package entity

// SymbolSpec is static lookup data mapping a platform instrument code to the
// provider's ticker and a reference price used to scale synthetic data.
type SymbolSpec struct {
	PlatformCode string  // e.g. "EURUSD"
	ProviderCode string  // e.g. "EUR/USD"
	BasePrice    float64 // representative price level
}
