package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TAIXIU"

type StoreConfig struct {
	Driver      string
	DataPath    string
	Compress    bool
	DatabaseURL string
	SaveEvery   time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type APIConfig struct {
	Addr        string
	LogLevel    string
	JWTSecret   string
	TokenTTL    time.Duration
	AdminToken  string
	CORSOrigins []string

	Store StoreConfig
	Redis RedisConfig

	BetDelay        time.Duration
	MarketTickEvery time.Duration
	AgentBetEvery   time.Duration
	AgentTradeEvery time.Duration
	HistoryCapacity int
	SeedDefaults    bool
	Seed            int64
}

type CLIConfig struct {
	APIBaseURL string
	TokenPath  string
	AdminToken string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setAPIDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("admin.token", "")
	v.SetDefault("cors.origins", "*")

	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", "data/ledger.json")
	v.SetDefault("store.compress", false)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.save_every", 250*time.Millisecond)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "taixiu:events")

	v.SetDefault("bet.delay", 30*time.Second)
	v.SetDefault("market.tick_every", 60*time.Second)
	v.SetDefault("agents.bet_every", 20*time.Second)
	v.SetDefault("agents.trade_every", 90*time.Second)
	v.SetDefault("market.history_cap", 200)
	v.SetDefault("seed.defaults", true)
	v.SetDefault("seed.value", 0)
}

// LoadAPIFromEnv reads TAIXIU_* variables on top of the defaults. PORT, when set, wins
// over TAIXIU_ADDR.
func LoadAPIFromEnv() (APIConfig, error) {
	v := newViper()
	setAPIDefaults(v)
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("store.database_url", envPrefix+"_STORE_DATABASE_URL", "DATABASE_URL")

	addr := strings.TrimSpace(v.GetString("addr"))
	if port := strings.TrimSpace(v.GetString("port")); port != "" {
		addr = port
	}
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	cfg := APIConfig{
		Addr:        addr,
		LogLevel:    strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
		JWTSecret:   strings.TrimSpace(v.GetString("jwt.secret")),
		TokenTTL:    v.GetDuration("jwt.ttl"),
		AdminToken:  strings.TrimSpace(v.GetString("admin.token")),
		CORSOrigins: splitList(v.GetString("cors.origins")),
		Store: StoreConfig{
			Driver:      strings.ToLower(strings.TrimSpace(v.GetString("store.driver"))),
			DataPath:    strings.TrimSpace(v.GetString("store.path")),
			Compress:    v.GetBool("store.compress"),
			DatabaseURL: strings.TrimSpace(v.GetString("store.database_url")),
			SaveEvery:   v.GetDuration("store.save_every"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis.addr")),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Channel:  strings.TrimSpace(v.GetString("redis.channel")),
		},
		BetDelay:        v.GetDuration("bet.delay"),
		MarketTickEvery: v.GetDuration("market.tick_every"),
		AgentBetEvery:   v.GetDuration("agents.bet_every"),
		AgentTradeEvery: v.GetDuration("agents.trade_every"),
		HistoryCapacity: v.GetInt("market.history_cap"),
		SeedDefaults:    v.GetBool("seed.defaults"),
		Seed:            v.GetInt64("seed.value"),
	}
	return cfg, cfg.validate()
}

func (c APIConfig) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%s_JWT_SECRET is required", envPrefix)
	}
	if c.AdminToken == "" {
		return fmt.Errorf("%s_ADMIN_TOKEN is required", envPrefix)
	}
	switch c.Store.Driver {
	case "file", "sqlite":
		if c.Store.DataPath == "" {
			return fmt.Errorf("%s_STORE_PATH is required for the %s store", envPrefix, c.Store.Driver)
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.BetDelay < 0 {
		return fmt.Errorf("bet delay must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"market tick":      c.MarketTickEvery,
		"agent bet tick":   c.AgentBetEvery,
		"agent trade tick": c.AgentTradeEvery,
	} {
		if d <= 0 {
			return fmt.Errorf("%s interval must be > 0", name)
		}
	}
	return nil
}

func LoadCLIFromEnv() CLIConfig {
	v := newViper()
	v.SetDefault("api_base_url", "http://localhost:8080")
	v.SetDefault("token_path", "")
	v.SetDefault("admin_token", "")
	return CLIConfig{
		APIBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("api_base_url")), "/"),
		TokenPath:  strings.TrimSpace(v.GetString("token_path")),
		AdminToken: strings.TrimSpace(v.GetString("admin_token")),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
