package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"capital_bot/internal/models"
	"capital_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

func (c *Client) GetAccounts(ctx context.Context) ([]models.Account, error) {
	var resp accountsResponse
	if err := c.doAuthorized(ctx, http.MethodGet, "/accounts", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get accounts: %w", err)
	}
	out := make([]models.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		out = append(out, models.Account{
			AccountID:   a.AccountID,
			AccountName: a.AccountName,
			Preferred:   a.Preferred,
		})
	}
	return out, nil
}

// SelectAccount находит счёт по имени (case-insensitive) и делает его
// активным. "Уже активен" от брокера ошибкой не считаем.
func (c *Client) SelectAccount(ctx context.Context, name string) error {
	accounts, err := c.GetAccounts(ctx)
	if err != nil {
		return err
	}

	want := strings.ToLower(strings.TrimSpace(name))
	var id string
	for _, a := range accounts {
		if strings.ToLower(strings.TrimSpace(a.AccountName)) == want {
			id = a.AccountID
			break
		}
	}
	if id == "" {
		names := make([]string, 0, len(accounts))
		for _, a := range accounts {
			names = append(names, a.AccountName)
		}
		return fmt.Errorf("account %q not found, available: %v", name, names)
	}

	err = c.doAuthorized(ctx, http.MethodPut, "/session", nil, map[string]string{"accountId": id}, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			var body errorResponse
			if sonic.Unmarshal([]byte(apiErr.Body), &body) == nil &&
				body.ErrorCode == "error.not-different.accountId" {
				logger.Debug("[CAPITAL] account %s already active", id)
				c.accountID = id
				return nil
			}
		}
		return fmt.Errorf("set active account: %w", err)
	}

	c.accountID = id
	logger.Info("[CAPITAL] active account: %s (%s)", name, id)
	return nil
}
