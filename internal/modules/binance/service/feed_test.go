package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"capital_bot/internal/models"
	"capital_bot/internal/modules/config"
	healthsvc "capital_bot/internal/modules/health/service"
	"capital_bot/pkg/logger"

	"github.com/gorilla/websocket"
)

func init() {
	_ = logger.Init("error")
}

func newFeedClient(restURL, wsURL string) (*Client, *healthsvc.State) {
	cfg := &config.Config{}
	cfg.Binance.RestURL = restURL
	cfg.Binance.WSURL = wsURL
	cfg.Binance.Symbol = "BTCUSDT"
	state := healthsvc.NewState()
	return NewClient(cfg, state), state
}

func klineRow(openTime, closeTime time.Time, closep float64) string {
	return fmt.Sprintf(`[%d,"100","101","99","%g","2",%d]`,
		openTime.UnixMilli(), closep, closeTime.UnixMilli())
}

func TestHistoricalCandlesDropUnclosedHead(t *testing.T) {
	now := time.Now()
	rows := []string{
		klineRow(now.Add(-3*time.Minute), now.Add(-2*time.Minute), 100.5),
		klineRow(now.Add(-2*time.Minute), now.Add(-1*time.Minute), 101.5),
		// текущий бакет: closeTime в будущем, свеча ещё не закрыта
		klineRow(now.Add(-1*time.Minute), now.Add(30*time.Second), 102.5),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, "[%s]", strings.Join(rows, ","))
	}))
	defer srv.Close()

	c, _ := newFeedClient(srv.URL, "")
	candles, err := c.GetHistoricalCandles(context.Background(), "BTCUSDT", models.TF1m, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 2 {
		t.Fatalf("candles = %d, want 2 (open bucket dropped)", len(candles))
	}
	if candles[1].Close != 101.5 {
		t.Errorf("last close = %v, want 101.5", candles[1].Close)
	}
}

func TestFeedConnectedFollowsStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		frame := fmt.Sprintf(`{"k":{"t":%d,"o":"100","h":"101","l":"99","c":"100.5","v":"2","x":true}}`,
			time.Now().Add(-time.Minute).UnixMilli())
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		// держим соединение, пока тест его не оборвёт
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		_ = conn.Close()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, state := newFeedClient("", "ws"+strings.TrimPrefix(srv.URL, "http"))
	stream := c.StreamClosedCandles(ctx, c.Symbol(), models.TF1m)

	select {
	case candle := <-stream:
		if candle.Close != 100.5 {
			t.Errorf("close = %v, want 100.5", candle.Close)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no candle from stream")
	}
	if !state.FeedConnected() {
		t.Error("feed should be connected after a successful dial")
	}

	// обрыв сервера: флаг падает, реконнект не может набрать соединение
	srv.CloseClientConnections()
	srv.Close()
	deadline := time.Now().Add(2 * time.Second)
	for state.FeedConnected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if state.FeedConnected() {
		t.Error("feed should be reported down after the connection drops")
	}
}

func TestFeedNotConnectedBeforeDial(t *testing.T) {
	// адрес без слушателя: dial всегда падает
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	wsURL := "ws" + strings.TrimPrefix(dead.URL, "http")
	dead.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, state := newFeedClient("", wsURL)
	_ = c.StreamClosedCandles(ctx, c.Symbol(), models.TF1m)

	time.Sleep(50 * time.Millisecond)
	if state.FeedConnected() {
		t.Error("feed must stay down until a dial succeeds")
	}
}
