package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	WebAppDir       string
	WebAppURL       string
	WebAppAutostart bool
	CORSOrigins     []string

	SupabaseURL     string
	SupabaseKey     string
	SupabaseTable   string
	ObjectIDColumn  string
	CianBase        string
	CianToken       string
	CianRPS         int
	TelegramToken   string
	TelegramProxy   string
	TelegramTimeout time.Duration
	NotifyToken     string
	NotifyChatID    int64
	NotifyThreadID  int
	RedisAddr       string
	RedisPass       string
	RedisDB         int
	StateTTL        time.Duration
	CacheTTL        time.Duration
	MySQLDSN        string
	SyncWorkers     int
	SyncInterval    time.Duration
	BotWorkers      int
}

// Load reads the process environment. A .env file in the working directory,
// if present, fills in variables that are not already set.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg(".env not loaded")
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		WebAppDir:       env("WEBAPP_DIR", "webapp"),
		WebAppURL:       env("TELEGRAM_WEBAPP_URL", ""),
		WebAppAutostart: flag("WEBAPP_AUTOSTART", false),
		CORSOrigins:     list("CORS_ORIGINS", []string{"https://web.telegram.org"}),

		SupabaseURL:     strings.TrimRight(env("SUPABASE_URL", ""), "/"),
		SupabaseKey:     env("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseTable:   env("SUPABASE_TABLE", "objects"),
		ObjectIDColumn:  env("SUPABASE_OBJECT_ID_COLUMN", "id"),
		CianBase:        strings.TrimRight(env("CIAN_API_BASE_URL", "https://public-api.cian.ru"), "/"),
		CianToken:       env("CIAN_API_TOKEN", ""),
		CianRPS:         atoi("CIAN_RPS", 5),
		TelegramToken:   env("TELEGRAM_BOT_TOKEN", ""),
		TelegramProxy:   env("TELEGRAM_PROXY_URL", ""),
		TelegramTimeout: time.Duration(atoi("TELEGRAM_CONNECT_TIMEOUT", 20)) * time.Second,
		NotifyToken:     env("NOTIFY_BOT_TOKEN", ""),
		NotifyChatID:    int64(atoi("NOTIFY_CHAT_ID", 0)),
		NotifyThreadID:  atoi("NOTIFY_THREAD_ID", 0),
		RedisAddr:       env("REDIS_ADDR", ""),
		RedisPass:       env("REDIS_PASSWORD", ""),
		RedisDB:         atoi("REDIS_DB", 0),
		StateTTL:        time.Duration(atoi("STATE_TTL_SECONDS", 3600)) * time.Second,
		CacheTTL:        time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		MySQLDSN:        env("MYSQL_DSN", ""),
		SyncWorkers:     atoi("SYNC_WORKERS", 4),
		SyncInterval:    time.Duration(atoi("SYNC_INTERVAL_SECONDS", 0)) * time.Second,
		BotWorkers:      atoi("BOT_WORKERS", 8),
	}
	if c.CianToken == "" {
		log.Warn().Msg("CIAN_API_TOKEN is empty, CIAN endpoints serve demo data")
	}
	return c
}

// Missing returns the keys among keys that have no value in the environment.
func (Config) Missing(keys ...string) []string {
	var out []string
	for _, k := range keys {
		if strings.TrimSpace(os.Getenv(k)) == "" {
			out = append(out, k)
		}
	}
	return out
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
	}
	return def
}

func flag(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func list(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
