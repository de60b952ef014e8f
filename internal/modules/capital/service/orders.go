package service

import (
	"context"
	"fmt"
	"net/http"

	"capital_bot/internal/helper"
	"capital_bot/internal/models"
	"capital_bot/pkg/logger"
)

// PlaceMarketOrder открывает рыночный ордер. stop/profit — предварительные
// уровни от mid-цены, чтобы ордер не отклонили как незащищённый; точные
// уровни выставляет AmendPosition после подтверждения.
func (c *Client) PlaceMarketOrder(ctx context.Context, epic string, direction models.Side, size float64, stop, profit float64) (string, error) {
	order := map[string]any{
		"epic":      epic,
		"direction": string(direction),
		"size":      size,
		"accountId": c.accountID,
	}
	if stop > 0 {
		order["stopLevel"] = helper.Round2(stop)
	}
	if profit > 0 {
		order["profitLevel"] = helper.Round2(profit)
	}

	var resp dealReferenceResponse
	if err := c.doAuthorized(ctx, http.MethodPost, "/positions", nil, order, &resp); err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	if resp.DealReference == "" {
		return "", fmt.Errorf("place order: empty dealReference")
	}
	logger.Debug("[CAPITAL] order placed %s %s size=%v ref=%s", epic, direction, size, resp.DealReference)
	return resp.DealReference, nil
}

func (c *Client) GetOrderConfirmation(ctx context.Context, dealReference string) (models.OrderConfirmation, error) {
	var resp confirmResponse
	if err := c.doAuthorized(ctx, http.MethodGet, "/confirms/"+dealReference, nil, nil, &resp); err != nil {
		return models.OrderConfirmation{}, fmt.Errorf("get confirmation %s: %w", dealReference, err)
	}
	out := models.OrderConfirmation{
		DealReference: dealReference,
		Status:        resp.Status,
		Level:         resp.Level,
	}
	if len(resp.AffectedDeals) > 0 {
		out.DealID = resp.AffectedDeals[0].DealID
	}
	return out, nil
}

func (c *Client) AmendPosition(ctx context.Context, dealID string, stop, profit float64) error {
	body := map[string]any{
		"stopLevel":   helper.Round2(stop),
		"profitLevel": helper.Round2(profit),
	}
	var resp dealReferenceResponse
	if err := c.doAuthorized(ctx, http.MethodPut, "/positions/"+dealID, nil, body, &resp); err != nil {
		return fmt.Errorf("amend position %s: %w", dealID, err)
	}
	if resp.DealReference == "" {
		return fmt.Errorf("amend position %s: no dealReference in response", dealID)
	}
	return nil
}

func (c *Client) ClosePosition(ctx context.Context, dealID string) error {
	if err := c.doAuthorized(ctx, http.MethodDelete, "/positions/"+dealID, nil, nil, nil); err != nil {
		return fmt.Errorf("close position %s: %w", dealID, err)
	}
	return nil
}
