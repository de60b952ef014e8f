package service

import (
	"context"
	"fmt"
	"net/http"

	"capital_bot/internal/models"
)

func (c *Client) GetAllMarkets(ctx context.Context) ([]models.Market, error) {
	var resp marketsResponse
	if err := c.doAuthorized(ctx, http.MethodGet, "/markets", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}
	out := make([]models.Market, 0, len(resp.Markets))
	for _, m := range resp.Markets {
		out = append(out, models.Market{Epic: m.Epic, InstrumentName: m.InstrumentName})
	}
	return out, nil
}

// FindEpic ищет epic инструмента по человеческому имени ("Bitcoin/USD").
func (c *Client) FindEpic(ctx context.Context, instrumentName string) (string, error) {
	markets, err := c.GetAllMarkets(ctx)
	if err != nil {
		return "", err
	}
	for _, m := range markets {
		if m.InstrumentName == instrumentName {
			return m.Epic, nil
		}
	}
	return "", fmt.Errorf("epic for %q not found", instrumentName)
}

func (c *Client) GetMarketSnapshot(ctx context.Context, epic string) (models.MarketSnapshot, error) {
	var resp marketDetailResponse
	if err := c.doAuthorized(ctx, http.MethodGet, "/markets/"+epic, nil, nil, &resp); err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("get market %s: %w", epic, err)
	}
	snap := models.MarketSnapshot{Bid: resp.Snapshot.Bid, Offer: resp.Snapshot.Offer}
	if snap.Bid <= 0 || snap.Offer <= 0 {
		return models.MarketSnapshot{}, fmt.Errorf("market %s: empty snapshot", epic)
	}
	return snap, nil
}
