package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewNotifyConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	Environment string

	// AdminIDs is the statically configured administrator set. When empty the
	// first actor to use a privileged command claims the role (stored in the
	// settings table).
	AdminIDs []int64

	// ConsoleActorID identifies the local console operator in cmd/simroster.
	ConsoleActorID int64

	DBType        string
	DBHost        string
	DBPort        string
	DBName        string
	DBUser        string
	DBPassword    string
	DBSSLMode     string
	DBPath        string
	DBMaxIdleConn int
	DBMaxOpenConn int

	// LegacyFile is the flat-file JSON roster imported once on first start.
	LegacyFile string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:        getenv("APP_SERVICE", "simroster"),
		Environment:    getenv("ENVIRONMENT", "development"),
		AdminIDs:       parseIDs(os.Getenv("ADMIN_CHAT_IDS")),
		ConsoleActorID: getenvInt64("CONSOLE_ACTOR_ID", 1),
		DBType:         getenv("DATABASE_TYPE", "sqlite"),
		DBHost:         getenv("DATABASE_HOST", "localhost"),
		DBPort:         getenv("DATABASE_PORT", "5432"),
		DBName:         getenv("DATABASE_NAME", "simroster"),
		DBUser:         getenv("DATABASE_USER", "simroster"),
		DBPassword:     getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:      getenv("DATABASE_SSLMODE", "disable"),
		DBPath:         getenv("DATABASE_PATH", "simroster.db"),
		DBMaxIdleConn:  int(getenvInt64("DATABASE_MAX_IDLE_CONN", 2)),
		DBMaxOpenConn:  int(getenvInt64("DATABASE_MAX_OPEN_CONN", 10)),
		LegacyFile:     getenv("LEGACY_JSON_FILE", "sim_users.json"),
	}
}

// IsAdmin reports whether actorID belongs to the statically configured set.
// It is always false when the set is empty; the caller falls back to the
// claimed administrator in that case.
func (c Config) IsAdmin(actorID int64) bool {
	for _, id := range c.AdminIDs {
		if id == actorID {
			return true
		}
	}
	return false
}

func parseIDs(raw string) []int64 {
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
