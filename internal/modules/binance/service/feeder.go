package service

import (
	"context"
	"fmt"

	"capital_bot/internal/models"
	"capital_bot/internal/modules/config"
	"capital_bot/internal/modules/klines"
	"capital_bot/pkg/logger"
)

var feedTimeframes = []models.Timeframe{models.TF1m, models.TF5m, models.TF30m}

// Feeder кормит kline-буфер: REST-прогрев на старте, дальше WS-стрим.
type Feeder struct {
	cfg *config.Config
	mx  *Client
	buf *klines.Buffer
}

func NewFeeder(cfg *config.Config, mx *Client, buf *klines.Buffer) *Feeder {
	return &Feeder{cfg: cfg, mx: mx, buf: buf}
}

// Warmup сеет буфер историей, если таймфрейм короче минимума.
// Стрим при этом уже может писать — конфликт за последний бакет
// решает буфер (стрим побеждает).
func (f *Feeder) Warmup(ctx context.Context) error {
	for _, tf := range feedTimeframes {
		if f.buf.Len(tf) >= f.cfg.MinSeriesLen {
			continue
		}
		candles, err := f.mx.GetHistoricalCandles(ctx, f.mx.Symbol(), tf, f.cfg.BackfillLimit)
		if err != nil {
			return fmt.Errorf("warmup %s: %w", tf, err)
		}
		n := f.buf.Backfill(tf, candles)
		logger.Info("[FEED] warmup %s: %d candles", tf, n)
	}
	return nil
}

// Run запускает по горутине на таймфрейм и блокируется до ctx.Done().
func (f *Feeder) Run(ctx context.Context) {
	for _, tf := range feedTimeframes {
		tf := tf
		go func() {
			stream := f.mx.StreamClosedCandles(ctx, f.mx.Symbol(), tf)
			for {
				select {
				case <-ctx.Done():
					return
				case c, ok := <-stream:
					if !ok {
						return
					}
					f.buf.Ingest(tf, c)
				}
			}
		}()
	}
	<-ctx.Done()
}
