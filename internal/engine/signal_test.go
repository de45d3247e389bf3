package engine

import (
	"testing"

	"breakout/internal/models"
)

func candleSeries(closes, volumes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	for i := range closes {
		out[i] = models.Candle{
			OpenTime: int64(1700000000000 + i*60000),
			Close:    closes[i],
			Volume:   volumes[i],
		}
	}
	return out
}

func TestBreakout_VolumeAndPriceSpike(t *testing.T) {
	candles := candleSeries(
		[]float64{100, 100, 100, 100, 102},
		[]float64{10, 10, 10, 10, 30},
	)
	fired, candleTime := Breakout(candles, 2.0, 0.01)
	if !fired {
		t.Fatalf("fired=false want=true")
	}
	if candleTime != candles[4].OpenTime {
		t.Fatalf("candleTime=%d want=%d", candleTime, candles[4].OpenTime)
	}
}

func TestBreakout_TooFewCandles(t *testing.T) {
	if fired, _ := Breakout(nil, 2.0, 0.01); fired {
		t.Fatalf("fired=true want=false for empty series")
	}
	one := candleSeries([]float64{100}, []float64{10})
	if fired, _ := Breakout(one, 2.0, 0.01); fired {
		t.Fatalf("fired=true want=false for single candle")
	}
}

func TestBreakout_VolumeEqualToThresholdDoesNotFire(t *testing.T) {
	// mean of earlier volumes is 10; last volume exactly 2x the mean.
	candles := candleSeries(
		[]float64{100, 100, 110},
		[]float64{10, 10, 20},
	)
	if fired, _ := Breakout(candles, 2.0, 0.01); fired {
		t.Fatalf("fired=true want=false at exact volume threshold")
	}
}

func TestBreakout_PriceChangeEqualToThresholdDoesNotFire(t *testing.T) {
	// change is exactly 1%.
	candles := candleSeries(
		[]float64{100, 100, 101},
		[]float64{10, 10, 50},
	)
	if fired, _ := Breakout(candles, 2.0, 0.01); fired {
		t.Fatalf("fired=true want=false at exact price threshold")
	}
}

func TestBreakout_VolumeSpikeWithoutPriceMove(t *testing.T) {
	candles := candleSeries(
		[]float64{100, 100, 100},
		[]float64{10, 10, 50},
	)
	if fired, _ := Breakout(candles, 2.0, 0.01); fired {
		t.Fatalf("fired=true want=false without price move")
	}
}

func TestBreakout_PriceMoveWithoutVolumeSpike(t *testing.T) {
	candles := candleSeries(
		[]float64{100, 100, 105},
		[]float64{10, 10, 11},
	)
	if fired, _ := Breakout(candles, 2.0, 0.01); fired {
		t.Fatalf("fired=true want=false without volume spike")
	}
}

func TestBreakout_ZeroPrevCloseDoesNotFire(t *testing.T) {
	candles := candleSeries(
		[]float64{100, 0, 100},
		[]float64{10, 10, 50},
	)
	if fired, _ := Breakout(candles, 2.0, 0.01); fired {
		t.Fatalf("fired=true want=false with zero previous close")
	}
}
