package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"capital_bot/internal/models"
	"capital_bot/pkg/logger"

	"github.com/gorilla/websocket"
)

const readTimeout = 60 * time.Second

// StreamClosedCandles — один WebSocket на таймфрейм, наружу уходят только
// закрытые свечи. Реконнект с паузой в секунду; канал закрывается только
// по ctx.
func (c *Client) StreamClosedCandles(ctx context.Context, symbol string, tf models.Timeframe) <-chan models.Candle {
	ch := make(chan models.Candle)

	go func() {
		defer close(ch)

		stream := strings.ToLower(symbol) + "@kline_" + string(tf)
		url := c.wsURL + "/ws/" + stream

		for {
			logger.Info("[WS] connect %s", stream)
			conn, _, err := c.wsDialer.DialContext(ctx, url, nil)
			if err != nil {
				logger.Error("[WS] dial %s: %v", stream, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
					continue
				}
			}

			c.feedUp()

			// сервер шлёт ping сам; нам достаточно дедлайна на чтение
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			conn.SetPingHandler(func(data string) error {
				_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
				return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
			})

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					logger.Warn("[WS] read %s: %v, reconnecting", stream, err)
					_ = conn.Close()
					c.feedDown()
					break
				}
				_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

				var frame struct {
					K struct {
						Start  int64  `json:"t"`
						Open   string `json:"o"`
						High   string `json:"h"`
						Low    string `json:"l"`
						Close  string `json:"c"`
						Volume string `json:"v"`
						Closed bool   `json:"x"`
					} `json:"k"`
				}
				if err := json.Unmarshal(msg, &frame); err != nil {
					continue
				}
				if !frame.K.Closed {
					continue // ждём закрытую свечу
				}

				open, err1 := strconv.ParseFloat(frame.K.Open, 64)
				high, err2 := strconv.ParseFloat(frame.K.High, 64)
				low, err3 := strconv.ParseFloat(frame.K.Low, 64)
				closep, err4 := strconv.ParseFloat(frame.K.Close, 64)
				if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
					continue
				}
				if closep <= 0 {
					continue
				}
				vol, _ := strconv.ParseFloat(frame.K.Volume, 64)

				candle := models.Candle{
					OpenTime: time.UnixMilli(frame.K.Start),
					Open:     open,
					High:     high,
					Low:      low,
					Close:    closep,
					Volume:   vol,
				}

				select {
				case ch <- candle:
				case <-ctx.Done():
					_ = conn.Close()
					c.feedDown()
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			default:
				time.Sleep(time.Second)
			}
		}
	}()

	return ch
}
