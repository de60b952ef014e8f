package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"capital_bot/internal/models"
	"capital_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

// reauth обновляет сессию. usedCST — токен, с которым вызывающий словил
// отказ: если кто-то уже успел обновить сессию, повторно не логинимся.
func (c *Client) reauth(ctx context.Context, usedCST string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Valid() && c.session.CST != usedCST {
		return nil
	}
	return c.authenticateLocked(ctx)
}

// Authenticate — явный логин (используется на старте).
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	payload, err := sonic.Marshal(map[string]any{
		"identifier":        c.identifier,
		"password":          c.password,
		"encryptedPassword": false,
	})
	if err != nil {
		return fmt.Errorf("marshal login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("X-CAP-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("login failed: http %d: %s", resp.StatusCode, string(data))
	}

	cst := resp.Header.Get("CST")
	sec := resp.Header.Get("X-SECURITY-TOKEN")
	if cst == "" || sec == "" {
		return fmt.Errorf("login response without session tokens")
	}

	c.session = models.Session{
		CST:           cst,
		SecurityToken: sec,
		IssuedAt:      time.Now(),
	}
	c.saveSessionLocked()
	logger.Info("[CAPITAL] authenticated, cst=%s...", cst[:min(5, len(cst))])
	return nil
}

// токены переживают рестарт процесса: session.json

func (c *Client) loadSession() bool {
	data, err := os.ReadFile(c.sessionFile)
	if err != nil {
		return false
	}
	var s models.Session
	if err := sonic.Unmarshal(data, &s); err != nil {
		return false
	}
	if !s.Valid() {
		return false
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return true
}

func (c *Client) saveSessionLocked() {
	data, err := sonic.Marshal(c.session)
	if err != nil {
		return
	}
	if err := os.WriteFile(c.sessionFile, data, 0o600); err != nil {
		logger.Warn("[CAPITAL] save session: %v", err)
	}
}
