package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port       string
	BackendURL string
	JWTSecret  string

	// Admin sessions expire after SessionTTL or when the backend token does,
	// whichever comes first.
	SessionTTL   time.Duration
	FetchTimeout time.Duration

	ClearCartOnPlace           bool
	CoalesceActiveOrderFetches bool

	PublicMenuURL  string
	AllowedOrigins []string
	NATSURL        string
}

func Load() *Config {
	return &Config{
		Port:                       getEnv("PORT", "8082"),
		BackendURL:                 getEnv("BACKEND_URL", "http://localhost:5000/api"),
		JWTSecret:                  getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		SessionTTL:                 getDuration("SESSION_TTL", 12*time.Hour),
		FetchTimeout:               getDuration("FETCH_TIMEOUT", 10*time.Second),
		ClearCartOnPlace:           getBool("CLEAR_CART_ON_PLACE", false),
		CoalesceActiveOrderFetches: getBool("COALESCE_ACTIVE_ORDER_FETCHES", false),
		PublicMenuURL:              getEnv("PUBLIC_MENU_URL", "http://localhost:5173"),
		AllowedOrigins:             getList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		NATSURL:                    os.Getenv("NATS_URL"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARNING: invalid %s %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARNING: invalid %s %q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
