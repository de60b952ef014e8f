package service

import (
	"context"
	"fmt"
	"sync"

	"capital_bot/internal/engine"
	"capital_bot/internal/modules/config"
	"capital_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram — единственный операторский чат: уведомления движка и команды
// управления. Engine подвязывается через SetEngine после сборки графа,
// иначе цикл зависимостей (движку нужен Notifier, командам нужен движок).
type Telegram struct {
	bot    *tgbot.BotAPI
	cfg    *config.Config
	chatID int64

	mu     sync.Mutex
	engine *engine.Engine
}

func NewTelegram(cfg *config.Config) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}

	return &Telegram{
		bot:    b,
		cfg:    cfg,
		chatID: cfg.Telegram.ChatID,
	}, nil
}

func (t *Telegram) SetEngine(e *engine.Engine) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.engine = e
}

func (t *Telegram) Engine() *engine.Engine {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine
}

func (t *Telegram) Send(msg string) {
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Error("telegram send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) {
	t.Send(fmt.Sprintf(format, args...))
}

// Start — long-polling. Сообщения из чужих чатов игнорируем.
func (t *Telegram) Start(ctx context.Context) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			if update.Message.Chat.ID != t.chatID {
				continue
			}
			t.handleCommand(ctx, update.Message.Text)
		}
	}
}
