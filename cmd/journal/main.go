package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"capital_bot/internal/ledger"
	"capital_bot/internal/models"
	"capital_bot/pkg/db"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Офлайн-просмотр журнала сделок: та же база, что у бота,
// но без запуска движка. Удобно для разбора полётов.
func main() {
	var (
		limit    = flag.Int("limit", 50, "сколько последних сделок показать")
		strategy = flag.String("strategy", "", "фильтр по имени стратегии")
		openOnly = flag.Bool("open", false, "только открытые сделки")
	)
	flag.Parse()

	if err := run(*limit, *strategy, *openOnly); err != nil {
		fmt.Fprintf(os.Stderr, "journal: %v\n", err)
		os.Exit(1)
	}
}

func run(limit int, strategy string, openOnly bool) error {
	dsn, err := loadDSN()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn})
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer pool.Close()

	lg := ledger.NewPg(db.NewPgTxManager(pool))

	var trades []models.Trade
	if openOnly {
		trades, err = lg.OpenTrades(ctx)
	} else {
		trades, err = lg.History(ctx, limit)
	}
	if err != nil {
		return errors.Wrap(err, "load trades")
	}

	shown := 0
	for _, t := range trades {
		if strategy != "" && t.Strategy != strategy {
			continue
		}
		printTrade(t)
		shown++
	}
	fmt.Printf("\n%d сделок\n", shown)
	return nil
}

// DSN ищем как сам бот: env поверх yaml-конфига.
func loadDSN() (string, error) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn, nil
	}

	configFileName := os.Getenv("CONFIG_FILE")
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}

	v := viper.New()
	v.SetConfigFile("configs/" + configFileName)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return "", errors.Wrap(err, "read config")
	}

	dsn := v.GetString("db_dsn")
	if dsn == "" {
		return "", errors.New("db_dsn is empty, set DATABASE_DSN or fill the config")
	}
	return dsn, nil
}

func printTrade(t models.Trade) {
	switch t.Status {
	case models.TradeClosed:
		fmt.Printf("#%d %s %s %s  %.2f -> %.2f  %+.2f  [%s]  %s\n",
			t.ID, t.OpenTime.Format("2006-01-02 15:04"), t.Strategy, t.Direction,
			t.EntryPrice, t.ClosePrice, t.ProfitLoss, t.ExitReason, t.DealID)
	default:
		fmt.Printf("#%d %s %s %s  %.2f  SL %.2f / TP %.2f  [%s]  %s\n",
			t.ID, t.OpenTime.Format("2006-01-02 15:04"), t.Strategy, t.Direction,
			t.EntryPrice, t.StopLevel, t.ProfitLevel, t.Status, t.DealID)
	}
}
