package engine

import "breakout/internal/models"

// Breakout reports whether the most recent candle completes a volume/price
// breakout, and returns that candle's open time as the dedup key. The signal
// fires only when the last volume strictly exceeds volumeMultiplier times the
// mean volume of all earlier candles AND the close-to-close change strictly
// exceeds priceIncrease. Fewer than 2 candles never fire.
func Breakout(candles []models.Candle, volumeMultiplier, priceIncrease float64) (bool, int64) {
	if len(candles) < 2 {
		return false, 0
	}
	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	var sum float64
	for _, c := range candles[:len(candles)-1] {
		sum += c.Volume
	}
	meanVolume := sum / float64(len(candles)-1)

	if last.Volume <= meanVolume*volumeMultiplier {
		return false, last.OpenTime
	}
	if prev.Close <= 0 {
		return false, last.OpenTime
	}
	change := (last.Close - prev.Close) / prev.Close
	return change > priceIncrease, last.OpenTime
}
