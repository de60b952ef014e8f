package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"capital_bot/internal/models"
)

const brokerTimeLayout = "2006-01-02T15:04:05"

func (c *Client) GetOpenPositions(ctx context.Context) ([]models.OpenPosition, error) {
	var resp positionsResponse
	if err := c.doAuthorized(ctx, http.MethodGet, "/positions", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	out := make([]models.OpenPosition, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		created, _ := time.Parse(brokerTimeLayout, p.Position.CreatedAt)
		out = append(out, models.OpenPosition{
			DealID:    p.Position.DealID,
			Epic:      p.Market.Epic,
			Direction: models.Side(p.Position.Direction),
			Size:      p.Position.Size,
			Level:     p.Position.Level,
			UPL:       p.Position.UPL,
			CreatedAt: created,
		})
	}
	return out, nil
}

func (c *Client) GetTransactionHistory(ctx context.Context, since time.Time) ([]models.Transaction, error) {
	params := url.Values{}
	params.Set("from", since.Format(brokerTimeLayout))

	var resp transactionsResponse
	if err := c.doAuthorized(ctx, http.MethodGet, "/history/transactions", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("get transaction history: %w", err)
	}
	out := make([]models.Transaction, 0, len(resp.Transactions))
	for _, t := range resp.Transactions {
		date, _ := time.Parse(brokerTimeLayout, t.Date)
		out = append(out, models.Transaction{
			DealID:   t.DealID,
			Note:     t.Note,
			Size:     t.Size,
			Currency: t.Currency,
			Price:    t.Price,
			Date:     date,
		})
	}
	return out, nil
}
