package models

import "time"

// Candle — закрытая свеча OHLCV. Открытые свечи в буфер не попадают.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF30m Timeframe = "30m"
)

func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF30m:
		return 30 * time.Minute
	default:
		return 0
	}
}

type Trend string

const (
	TrendNeutral Trend = "neutral"
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
)
