package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"capital_bot/internal/modules/config"
	"capital_bot/pkg/logger"
)

// Decision выносится советником по уже открытой сделке.
type Decision string

const (
	DecisionHold   Decision = "HOLD"
	DecisionAdjust Decision = "ADJUST_SLTP"
	DecisionClose  Decision = "CLOSE"
)

// RiskQuery — контекст сделки для подбора множителей SL/TP.
type RiskQuery struct {
	Strategy     string
	StrategyType string
	Direction    string
	EntryPrice   float64
	Trend        string
	ATR          float64
}

// TradeReview — открытая сделка на пересмотр советником.
type TradeReview struct {
	DealID       string
	Strategy     string
	StrategyType string
	Direction    string
	EntryPrice   float64
	StopLevel    float64
	ProfitLevel  float64
	CurrentPrice float64
	ProfitLoss   float64
	ATR          float64
	Trend        string
}

// ManagementAdvice — разобранный ответ советника по TradeReview.
type ManagementAdvice struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
	SLMult   float64  `json:"sl_multiplier"`
	TPMult   float64  `json:"tp_multiplier"`
}

// Advisor ходит в generateContent-совместимый LLM endpoint.
// Ответ модели это текст, полезный JSON извлекается из ```json блока.
type Advisor struct {
	http    *resty.Client
	url     string
	apiKey  string
	enabled bool
	manage  bool
}

func NewAdvisor(cfg *config.Config) *Advisor {
	timeout := cfg.Advisor.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)

	return &Advisor{
		http:    client,
		url:     cfg.Advisor.URL,
		apiKey:  cfg.Advisor.APIKey,
		enabled: cfg.Advisor.Enabled,
		manage:  cfg.Advisor.Manage,
	}
}

func (a *Advisor) Enabled() bool { return a.enabled && a.apiKey != "" }

// ManagesOpenTrades: советник пересматривает открытые позиции на каждом
// цикле сверки.
func (a *Advisor) ManagesOpenTrades() bool { return a.Enabled() && a.manage }

// SuggestRiskLevels запрашивает множители SL/TP под конкретный сетап.
func (a *Advisor) SuggestRiskLevels(ctx context.Context, q RiskQuery) (slMult, tpMult float64, err error) {
	if !a.Enabled() {
		return 0, 0, fmt.Errorf("advisor disabled")
	}

	prompt := fmt.Sprintf(`You are a risk manager for a crypto trading bot. Choose stop-loss and take-profit ATR multipliers for this setup.

Strategy: %s (type: %s)
Direction: %s
Entry price: %.2f
Current 30m trend: %s
ATR (5m): %.4f

Scalping setups need tight multipliers. Counter-trend setups need a conservative tp_multiplier.

Reply with JSON only:
`+"```json"+`
{"sl_multiplier": <value>, "tp_multiplier": <value>}
`+"```", q.Strategy, q.StrategyType, q.Direction, q.EntryPrice, q.Trend, q.ATR)

	var out struct {
		SLMult float64 `json:"sl_multiplier"`
		TPMult float64 `json:"tp_multiplier"`
	}
	if err := a.generate(ctx, prompt, &out); err != nil {
		return 0, 0, err
	}
	if out.SLMult <= 0 || out.TPMult <= 0 {
		return 0, 0, fmt.Errorf("advisor returned non-positive multipliers: sl=%v tp=%v", out.SLMult, out.TPMult)
	}
	return out.SLMult, out.TPMult, nil
}

// AdviseOnOpenTrade просит советника решить судьбу открытой сделки.
func (a *Advisor) AdviseOnOpenTrade(ctx context.Context, tr TradeReview) (ManagementAdvice, error) {
	if !a.Enabled() {
		return ManagementAdvice{}, fmt.Errorf("advisor disabled")
	}

	prompt := fmt.Sprintf(`You are managing an open position for a crypto trading bot.

Deal: %s
Strategy: %s (type: %s)
Direction: %s
Entry price: %.2f
Stop level: %.2f
Profit level: %.2f
Current price: %.2f
Unrealized P/L: %.2f
ATR (5m): %.4f
Current 30m trend: %s

Decide the best action: "HOLD", "ADJUST_SLTP" or "CLOSE".
If ADJUST_SLTP, include new sl_multiplier and tp_multiplier.

Reply with JSON only:
`+"```json"+`
{"decision": "<HOLD|ADJUST_SLTP|CLOSE>", "reason": "<short reason>", "sl_multiplier": <value or 0>, "tp_multiplier": <value or 0>}
`+"```", tr.DealID, tr.Strategy, tr.StrategyType, tr.Direction, tr.EntryPrice, tr.StopLevel, tr.ProfitLevel,
		tr.CurrentPrice, tr.ProfitLoss, tr.ATR, tr.Trend)

	var advice ManagementAdvice
	if err := a.generate(ctx, prompt, &advice); err != nil {
		return ManagementAdvice{}, err
	}
	switch advice.Decision {
	case DecisionHold, DecisionAdjust, DecisionClose:
	default:
		return ManagementAdvice{}, fmt.Errorf("advisor returned unknown decision %q", advice.Decision)
	}
	return advice, nil
}

type genPart struct {
	Text string `json:"text"`
}

type genContent struct {
	Parts []genPart `json:"parts"`
}

type generateRequest struct {
	Contents []genContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content genContent `json:"content"`
	} `json:"candidates"`
}

func (a *Advisor) generate(ctx context.Context, prompt string, out any) error {
	req := generateRequest{
		Contents: []genContent{{Parts: []genPart{{Text: prompt}}}},
	}
	body, err := sonic.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal advisor request: %w", err)
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", a.apiKey).
		SetBody(body).
		Post(a.url)
	if err != nil {
		return fmt.Errorf("advisor call: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("advisor status %d: %s", resp.StatusCode(), resp.String())
	}

	var gr generateResponse
	if err := sonic.Unmarshal(resp.Body(), &gr); err != nil {
		return fmt.Errorf("decode advisor response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("advisor response has no candidates")
	}

	text := gr.Candidates[0].Content.Parts[0].Text
	payload, err := ExtractFencedJSON(text)
	if err != nil {
		logger.Error("advisor: no JSON block in response: %s", text)
		return err
	}
	if err := sonic.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("decode advisor payload: %w", err)
	}
	return nil
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ExtractFencedJSON вытаскивает содержимое первого ```json блока.
// Если блока нет, но весь текст похож на JSON, возвращает его как есть.
func ExtractFencedJSON(text string) (string, error) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 1 && trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}' {
		return trimmed, nil
	}
	return "", fmt.Errorf("no fenced JSON block in advisor response")
}
