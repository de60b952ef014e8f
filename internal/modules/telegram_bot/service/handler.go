package service

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"capital_bot/pkg/logger"
)

var (
	reToggle = regexp.MustCompile(`^/(pause|resume)(\d+)$`)
	reLevel  = regexp.MustCompile(`^/level(\d+)$`)
)

func (t *Telegram) handleCommand(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" || !strings.HasPrefix(text, "/") {
		return
	}

	e := t.Engine()
	if e == nil {
		t.Send("⏳ Движок ещё не запущен, подожди немного")
		return
	}

	logger.Debug("telegram command: %s", text)

	// /pause3, /resume1 — по номеру из /list
	if m := reToggle.FindStringSubmatch(text); m != nil {
		t.toggleByIndex(e, m[1] == "resume", m[2])
		return
	}
	// /level7 — агрессивность 1..10
	if m := reLevel.FindStringSubmatch(text); m != nil {
		t.setLevel(e, m[1])
		return
	}

	cmd, arg := splitCommand(text)
	switch cmd {
	case "/list":
		t.Send(formatStrategyList(e))
	case "/status":
		t.Send(formatStatus(e))
	case "/start":
		e.Resume()
		t.Send("▶️ Движок запущен")
	case "/stop":
		e.Pause()
		t.Send("⏸ Движок на паузе: новые сделки не открываются")
	case "/pause_all":
		e.Registry().SetAllActive(false)
		t.Send("⏸ Все стратегии поставлены на паузу")
	case "/resume_all":
		e.Registry().SetAllActive(true)
		t.Send("▶️ Все стратегии снова активны")
	case "/size":
		t.setSize(e, arg)
	case "/close_strategy":
		t.closeStrategy(ctx, e, arg)
	case "/history":
		trades, err := e.History(ctx, 10)
		if err != nil {
			t.Sendf("❗️ Не удалось прочитать журнал: %v", err)
			return
		}
		t.Send(formatHistory(trades))
	case "/summary":
		trades, err := e.History(ctx, 200)
		if err != nil {
			t.Sendf("❗️ Не удалось прочитать журнал: %v", err)
			return
		}
		t.Send(formatSummary(trades))
	case "/help":
		t.Send(helpText)
	default:
		t.Sendf("🤷 Неизвестная команда %s, смотри /help", cmd)
	}
}

func splitCommand(text string) (cmd, arg string) {
	parts := strings.SplitN(text, " ", 2)
	cmd = parts[0]
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}

// номер стратегии — позиция в отсортированном списке имён, как в /list
func (t *Telegram) toggleByIndex(e enginer, resume bool, rawIdx string) {
	idx, err := strconv.Atoi(rawIdx)
	names := e.Registry().Names()
	if err != nil || idx < 1 || idx > len(names) {
		t.Sendf("❗️ Нет стратегии с номером %s, смотри /list", rawIdx)
		return
	}

	name := names[idx-1]
	if err := e.Registry().SetActive(name, resume); err != nil {
		t.Sendf("❗️ %v", err)
		return
	}
	if resume {
		t.Sendf("▶️ Стратегия %s снова активна", name)
	} else {
		t.Sendf("⏸ Стратегия %s на паузе", name)
	}
}

func (t *Telegram) setLevel(e enginer, raw string) {
	level, err := strconv.Atoi(raw)
	if err != nil || level < 1 || level > 10 {
		t.Send("❗️ Уровень агрессивности: от 1 до 10, например /level5")
		return
	}
	e.SetAggressiveness(level)
	t.Sendf("🎚 Агрессивность: %d. Стратегии переконфигурированы", level)
}

func (t *Telegram) setSize(e enginer, arg string) {
	size, err := strconv.ParseFloat(arg, 64)
	if err != nil || size <= 0 {
		t.Send("❗️ Размер ордера: положительное число, например /size 0.002")
		return
	}
	e.SetOrderSize(size)
	t.Sendf("📐 Размер ордера: %g", size)
}

func (t *Telegram) closeStrategy(ctx context.Context, e enginer, name string) {
	if name == "" {
		t.Send("❗️ Укажи имя стратегии: /close_strategy <name>")
		return
	}
	n, err := e.CloseStrategyTrades(ctx, name)
	if err != nil {
		t.Sendf("❗️ Не удалось закрыть сделки %s: %v", name, err)
		return
	}
	t.Sendf("🔒 Отправлено закрытие %d сделок стратегии %s", n, name)
}

const helpText = `📖 Команды:
/list — стратегии, номера и последние сигналы
/status — состояние движка
/pause<N> /resume<N> — пауза/запуск стратегии по номеру
/pause_all /resume_all — все стратегии сразу
/level<1-10> — уровень агрессивности
/size <число> — размер ордера
/close_strategy <имя> — закрыть открытые сделки стратегии
/history — последние 10 сделок
/summary — сводка по стратегиям
/start /stop — запустить/остановить открытие сделок`
