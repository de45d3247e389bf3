package models

// Candle is one fixed-duration price/volume bar. Series are ordered
// most-recent-last; OpenTime doubles as the dedup key for entries.
type Candle struct {
	OpenTime int64 // epoch millis of bar open
	Close    float64
	Volume   float64
}
