package service

import (
	"net/http"
	"sync/atomic"
	"time"

	"capital_bot/internal/modules/config"
	healthsvc "capital_bot/internal/modules/health/service"

	"github.com/gorilla/websocket"
)

// Client — источник рыночных данных: REST для истории, WS для живых
// закрытых свечей.
type Client struct {
	cfg      *config.Config
	http     *http.Client
	wsDialer *websocket.Dialer
	health   *healthsvc.State

	restURL string
	wsURL   string
	symbol  string

	// живые WS-соединения; фид считается поднятым, пока их > 0
	conns atomic.Int32
}

func NewClient(cfg *config.Config, health *healthsvc.State) *Client {
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: 10 * time.Second},
		wsDialer: &websocket.Dialer{},
		health:   health,
		restURL:  cfg.Binance.RestURL,
		wsURL:    cfg.Binance.WSURL,
		symbol:   cfg.Binance.Symbol,
	}
}

func (c *Client) Symbol() string { return c.symbol }

func (c *Client) feedUp() {
	if c.conns.Add(1) > 0 {
		c.health.SetFeedConnected(true)
	}
}

func (c *Client) feedDown() {
	if c.conns.Add(-1) == 0 {
		c.health.SetFeedConnected(false)
	}
}
