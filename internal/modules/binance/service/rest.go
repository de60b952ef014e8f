package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"capital_bot/internal/models"
)

// GetHistoricalCandles тянет историю закрытых свечей.
// Формат ответа: массив массивов
// [openTime(ms), "o", "h", "l", "c", "v", closeTime, ...]
func (c *Client) GetHistoricalCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", string(tf))
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.restURL+"/api/v3/klines?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	out := make([]models.Candle, 0, len(rows))
	now := time.Now()
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		var tsMs int64
		if err := json.Unmarshal(row[0], &tsMs); err != nil {
			continue
		}
		// последняя строка ответа — текущий, ещё не закрытый бакет;
		// в буфер идут только закрытые свечи
		var closeMs int64
		if err := json.Unmarshal(row[6], &closeMs); err != nil {
			continue
		}
		if time.UnixMilli(closeMs).After(now) {
			continue
		}
		open, err1 := rawFloat(row[1])
		high, err2 := rawFloat(row[2])
		low, err3 := rawFloat(row[3])
		closep, err4 := rawFloat(row[4])
		vol, err5 := rawFloat(row[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		if closep <= 0 {
			continue
		}
		out = append(out, models.Candle{
			OpenTime: time.UnixMilli(tsMs),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closep,
			Volume:   vol,
		})
	}
	return out, nil
}

// OHLCV приходят строками в кавычках
func rawFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}
