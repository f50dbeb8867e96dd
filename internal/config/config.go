package config

import "os"

// Config holds server configuration read from the environment.
type Config struct {
	Port          string
	DBPath        string
	TemplateDir   string
	StaticDir     string
	SecureCookies bool
	// AdminUser/AdminPassword optionally bootstrap a first account on startup.
	AdminUser     string
	AdminPassword string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "budgeter.db"),
		TemplateDir:   getEnv("TEMPLATE_DIR", "web/templates"),
		StaticDir:     getEnv("STATIC_DIR", "web/static"),
		SecureCookies: os.Getenv("SECURE_COOKIES") == "true",
		AdminUser:     os.Getenv("ADMIN_USER"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
