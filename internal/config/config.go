package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	PharmacyName          string
	TaxPercent            float64
	NearExpiryDays        int
	AlertTTLSeconds       int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
}

func Load() Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	taxPercent, err := strconv.ParseFloat(getEnv("TAX_PERCENT", "16"), 64)
	if err != nil || taxPercent < 0 || taxPercent > 100 {
		taxPercent = 16
	}
	nearExpiryDays, err := strconv.Atoi(getEnv("NEAR_EXPIRY_DAYS", "90"))
	if err != nil || nearExpiryDays < 1 {
		nearExpiryDays = 90
	}
	alertTTL, err := strconv.Atoi(getEnv("ALERT_TTL_SECONDS", "60"))
	if err != nil || alertTTL < 1 {
		alertTTL = 60
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		PharmacyName:          getEnv("PHARMACY_NAME", "main-pharmacy"),
		TaxPercent:            taxPercent,
		NearExpiryDays:        nearExpiryDays,
		AlertTTLSeconds:       alertTTL,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
