// Package config loads daemon configuration from environment variables.
package config

import "os"

// Config holds daemon configuration.
type Config struct {
	Port         string
	LogLevel     string
	DatabaseURL  string // Postgres; empty selects SQLite
	SQLitePath   string
	RedisAddr    string // empty disables the cross-replica sweep lock
	ScheduleFile string // bootstrap schedule; empty skips initialization
	JWTSecret    string
	SweepRPS     int
	SweepBurst   int
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "disburse.db"
	}

	return &Config{
		Port:         port,
		LogLevel:     logLevel,
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SQLitePath:   sqlitePath,
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		ScheduleFile: os.Getenv("SCHEDULE_FILE"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		SweepRPS:     1,
		SweepBurst:   3,
	}
}
