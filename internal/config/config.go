package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	Env             string
	LogLevel        string
	MongoURI        string
	MongoDB         string
	DefaultLocale   string
	Timezone        string
	RosterCronSpec  string
	RosterHeadcount int
	WebhookURL      string
	WebhookToken    string
}

func Load() *Config {
	// Missing .env is fine; containers set real env vars directly.
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "3000"),
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		MongoURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:         getEnv("MONGODB_DATABASE", "tellerops"),
		DefaultLocale:   getEnv("DEFAULT_LOCALE", "en"),
		Timezone:        getEnv("TIMEZONE", "Asia/Manila"),
		RosterCronSpec:  getEnv("ROSTER_CRON_SPEC", "0 18 * * *"),
		RosterHeadcount: getEnvInt("ROSTER_HEADCOUNT", 3),
		WebhookURL:      strings.TrimRight(getEnv("SCHEDULE_WEBHOOK_URL", ""), "/"),
		WebhookToken:    getEnv("SCHEDULE_WEBHOOK_TOKEN", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
