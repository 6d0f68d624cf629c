package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/councilbot/councillor/src/shared/data"
	"github.com/councilbot/councillor/src/shared/logx"
)

type Config struct {
	Token       string
	AdminUserID string

	MySQLDSN string
	RedisURL string

	// Status server; empty port disables it.
	HTTPPort string

	// Defaults applied to newly created guilds.
	DaysRequirement int
	MaxCouncillors  int

	// Resolver schedule (UTC wall clock). In debug mode the wait is skipped
	// and the job runs every DebugInterval seconds.
	ResolveHour   int
	ResolveMinute int
	DebugMode     bool

	// Max candidates shown as ballot buttons on one election message.
	MaxCandidates int
}

// Load reads .env, then the settings table, then the environment. Settings
// rows win over env vars so operators can reconfigure without a redeploy.
func Load(db *gorm.DB) Config {
	_ = godotenv.Load()

	if db != nil {
		if err := data.LoadSettings(db); err != nil {
			logx.Warn("config", "failed to load settings: %v", err)
		}
	}

	return Config{
		Token:           setting("discord_token", "DISCORD_TOKEN", ""),
		AdminUserID:     setting("admin_user_id", "ADMIN_USER_ID", ""),
		MySQLDSN:        getenv("MYSQL_DSN", "councillor:councillor@tcp(127.0.0.1:3306)/councillor?parseTime=true"),
		RedisURL:        getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		HTTPPort:        setting("http_port", "HTTP_PORT", "8090"),
		DaysRequirement: intSetting("days_requirement", "DAYS_REQUIREMENT", 180),
		MaxCouncillors:  intSetting("max_councillors", "MAX_COUNCILLORS", 9),
		ResolveHour:     intSetting("resolve_hour", "RESOLVE_HOUR", 0),
		ResolveMinute:   intSetting("resolve_minute", "RESOLVE_MINUTE", 5),
		DebugMode:       getenv("DEBUG_MODE", "") == "true",
		MaxCandidates:   intSetting("max_candidates", "MAX_CANDIDATES", 25),
	}
}

func setting(name, envKey, def string) string {
	if v := data.GetSetting(name); v != "" {
		return v
	}
	return getenv(envKey, def)
}

func intSetting(name, envKey string, def int) int {
	raw := setting(name, envKey, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		logx.Warn("config", "ignoring bad value %q for %s", raw, name)
		return def
	}
	return n
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
