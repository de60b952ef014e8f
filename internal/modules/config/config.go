package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
	capitalAPIKeyENV  = "CAPITAL_API_KEY"
	capitalIdentENV   = "CAPITAL_IDENTIFIER"
	capitalPassENV    = "CAPITAL_API_PASSWORD"
	advisorAPIKeyENV  = "GEMINI_API_KEY"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB string `yaml:"db_dsn"`

	Capital struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		Identifier  string `yaml:"identifier"`
		Password    string `yaml:"password"`
		AccountName string `yaml:"account_name"` // имя счёта, который делаем активным
		SessionFile string `yaml:"session_file"` // куда сохраняем токены между рестартами
		// имя инструмента на Capital, по нему ищется epic
		InstrumentName string `yaml:"instrument_name"`
	} `yaml:"capital"`

	Binance struct {
		RestURL string `yaml:"rest_url"`
		WSURL   string `yaml:"ws_url"`
		Symbol  string `yaml:"symbol"`
	} `yaml:"binance"`

	Advisor struct {
		URL     string        `yaml:"url"`
		APIKey  string        `yaml:"api_key"`
		Enabled bool          `yaml:"enabled"`
		Manage  bool          `yaml:"manage"` // советник ведёт открытые сделки (HOLD/ADJUST/CLOSE)
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"advisor"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Движок
	PollInterval      time.Duration
	Cooldown          time.Duration
	ReconcileInterval time.Duration
	ConfirmPoll       time.Duration
	ConfirmTimeout    time.Duration
	AdvisoryWait      time.Duration
	HistoryLookback   time.Duration

	// Классификация причины выхода: близость цены закрытия к SL/TP.
	// Эвристика, не гарантия — см. DESIGN.md.
	ExitTolerance float64

	OrderSize           float64
	AggressivenessLevel int
	PreventCounterTrend bool
	// TP=SL при сделке против старшего тренда
	TPEqualsSLAgainstTrend bool
	// две сделки на сигнал со сниженным вторым тейком
	TwoTPTrades       bool
	SecondTPReduction float64

	TrendTimeframe string
	TrendEMAPeriod int

	BufferLimit   int
	BackfillLimit int
	MinSeriesLen  int

	LogLevel   string
	HealthAddr string
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		PollInterval:      durationFromEnv("POLL_INTERVAL", "20s"),
		Cooldown:          durationFromEnv("STRATEGY_COOLDOWN", "5m"),
		ReconcileInterval: durationFromEnv("RECONCILE_INTERVAL", "60s"),
		ConfirmPoll:       durationFromEnv("CONFIRM_POLL", "2s"),
		ConfirmTimeout:    durationFromEnv("CONFIRM_TIMEOUT", "120s"),
		AdvisoryWait:      durationFromEnv("ADVISORY_WAIT", "10s"),
		HistoryLookback:   durationFromEnv("HISTORY_LOOKBACK", "24h"),

		ExitTolerance: floatFromEnv("EXIT_TOLERANCE", 0.01),

		OrderSize:           floatFromEnv("ORDER_SIZE", 0.0015),
		AggressivenessLevel: intFromEnv("AGGRESSIVENESS_LEVEL", 3),
		PreventCounterTrend: boolFromEnv("PREVENT_COUNTER_TREND", true),

		TPEqualsSLAgainstTrend: boolFromEnv("TP_EQUALS_SL_AGAINST_TREND", false),
		TwoTPTrades:            boolFromEnv("TWO_TP_TRADES", false),
		SecondTPReduction:      floatFromEnv("SECOND_TP_REDUCTION", 0.001),

		TrendTimeframe: getenvDefault("TREND_TIMEFRAME", "30m"),
		TrendEMAPeriod: intFromEnv("TREND_EMA_PERIOD", 30),

		BufferLimit:   intFromEnv("KLINE_BUFFER_LIMIT", 2000),
		BackfillLimit: intFromEnv("KLINE_BACKFILL_LIMIT", 1000),
		MinSeriesLen:  intFromEnv("KLINE_MIN_SERIES", 50),

		LogLevel:   getenvDefault("LOG_LEVEL", "info"),
		HealthAddr: getenvDefault("HEALTH_ADDR", ":8080"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if chat := os.Getenv(chatTelegramENV); chat != "" {
		if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if v := os.Getenv(capitalAPIKeyENV); v != "" {
		config.Capital.APIKey = v
	}
	if v := os.Getenv(capitalIdentENV); v != "" {
		config.Capital.Identifier = v
	}
	if v := os.Getenv(capitalPassENV); v != "" {
		config.Capital.Password = v
	}
	if v := os.Getenv(advisorAPIKeyENV); v != "" {
		config.Advisor.APIKey = v
	}

	if config.Capital.SessionFile == "" {
		config.Capital.SessionFile = "session.json"
	}
	if config.Capital.AccountName == "" {
		config.Capital.AccountName = "bot"
	}
	if config.Capital.InstrumentName == "" {
		config.Capital.InstrumentName = "Bitcoin/USD"
	}
	if config.Advisor.Timeout <= 0 {
		config.Advisor.Timeout = config.AdvisoryWait
	}
	if config.Binance.RestURL == "" {
		config.Binance.RestURL = "https://api.binance.com"
	}
	if config.Binance.WSURL == "" {
		config.Binance.WSURL = "wss://stream.binance.com:9443"
	}
	if config.Binance.Symbol == "" {
		config.Binance.Symbol = "BTCUSDT"
	}

	return &config, nil
}

func getenvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("env %s is required", key))
	}
	return v
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
