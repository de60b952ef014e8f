package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"capital_bot/internal/models"
	"capital_bot/internal/modules/config"
	"capital_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

// Client — авторизованный клиент брокера. Владеет сессией (CST +
// X-SECURITY-TOKEN); все компоненты ходят к брокеру только через него.
type Client struct {
	cfg  *config.Config
	http *http.Client

	baseURL     string
	apiKey      string
	identifier  string
	password    string
	sessionFile string

	accountID string

	// сериализует re-auth: N одновременных 401 -> одна реаутентификация
	mu      sync.Mutex
	session models.Session
}

func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.Capital.BaseURL == "" || cfg.Capital.APIKey == "" ||
		cfg.Capital.Identifier == "" || cfg.Capital.Password == "" {
		return nil, fmt.Errorf("capital: missing credentials")
	}

	c := &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: 10 * time.Second},
		baseURL:     cfg.Capital.BaseURL,
		apiKey:      cfg.Capital.APIKey,
		identifier:  cfg.Capital.Identifier,
		password:    cfg.Capital.Password,
		sessionFile: cfg.Capital.SessionFile,
	}
	// сессия с прошлого запуска; если протухла — первый же вызов
	// реаутентифицируется сам
	if !c.loadSession() {
		logger.Info("[CAPITAL] no saved session, will authenticate on first call")
	}
	return c, nil
}

func (c *Client) AccountID() string { return c.accountID }

// doAuthorized выполняет запрос с текущими токенами. На 401/403 один раз
// прозрачно реаутентифицируется и повторяет; второй отказ — ошибка вызова.
func (c *Client) doAuthorized(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	sess := c.currentSession()
	if !sess.Valid() {
		if err := c.reauth(ctx, sess.CST); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
		sess = c.currentSession()
	}

	status, data, err := c.doOnce(ctx, method, path, params, body, sess)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		if err := c.reauth(ctx, sess.CST); err != nil {
			return fmt.Errorf("re-authenticate: %w", err)
		}
		status, data, err = c.doOnce(ctx, method, path, params, body, c.currentSession())
		if err != nil {
			return err
		}
	}
	if status/100 != 2 {
		return &APIError{Status: status, Body: string(data), Path: path}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, params url.Values, body any, sess models.Session) (int, []byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rd io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-CAP-API-KEY", c.apiKey)
	req.Header.Set("CST", sess.CST)
	req.Header.Set("X-SECURITY-TOKEN", sess.SecurityToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data, nil
}

func (c *Client) currentSession() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// APIError — не-2xx ответ брокера после исчерпания retry.
type APIError struct {
	Status int
	Body   string
	Path   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("capital %s: http %d: %s", e.Path, e.Status, e.Body)
}
