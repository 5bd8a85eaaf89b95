package main

import (
	"log/slog"
	"time"

	"github.com/profilehub/mypts/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT"`
	// NotifyBuffer caps the threshold-event queue; events past it are dropped.
	NotifyBuffer int `env:"APP_NOTIFY_BUFFER"`
	Postgres     config.PostgresConfig
}
