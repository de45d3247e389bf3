package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Binance     BinanceConfig     `mapstructure:"binance"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Engine      EngineConfig      `mapstructure:"engine"`
	PriceStream PriceStreamConfig `mapstructure:"price_stream"`
	Cron        CronConfig        `mapstructure:"cron"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	BearerToken string `mapstructure:"bearer_token"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// DSN empty disables the journal entirely; the engine runs memory-only.
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type BinanceConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	DataBaseURL string        `mapstructure:"data_base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RecvWindow  int64         `mapstructure:"recv_window_ms"`

	// Fallback credentials; a run request may override them.
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
}

type EngineConfig struct {
	ScanInterval    time.Duration `mapstructure:"scan_interval"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	MaxRuns         int           `mapstructure:"max_runs"`
}

type PriceStreamConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type CronConfig struct {
	JournalFlush string `mapstructure:"journal_flush"`
	DailySummary string `mapstructure:"daily_summary"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BRK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.bearer_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("binance.base_url", "https://api.binance.com")
	v.SetDefault("binance.data_base_url", "https://data-api.binance.vision")
	v.SetDefault("binance.timeout", "10s")
	v.SetDefault("binance.recv_window_ms", 5000)
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("engine.scan_interval", "10s")
	v.SetDefault("engine.monitor_interval", "10s")
	v.SetDefault("engine.max_runs", 4)
	v.SetDefault("price_stream.enabled", false)
	v.SetDefault("price_stream.url", "wss://stream.binance.com:9443/stream")
	v.SetDefault("price_stream.stale_after", "5s")
	v.SetDefault("cron.journal_flush", "@every 30s")
	v.SetDefault("cron.daily_summary", "0 0 0 * * *")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
