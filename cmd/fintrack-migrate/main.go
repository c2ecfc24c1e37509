// Command fintrack-migrate applies the embedded schema migrations and exits.
package main

import (
	"os"

	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(nil))
	logger := cli.SetupLogger(cfg).With(log.FieldOperation, log.OpMigrate)

	var (
		dialect storage.Dialect
		dsn     string
	)
	switch cfg.DataBackend {
	case "sqlite":
		dialect, dsn = storage.DialectSQLite, cfg.SQLiteDBPath
	case "postgres":
		dialect, dsn = storage.DialectPostgres, cfg.PostgresURL
	default:
		logger.Info("Backend has no schema, nothing to migrate", "backend", cfg.DataBackend)
		return
	}

	if err := storage.RunMigrations(dialect, dsn); err != nil {
		logger.Error("Migration failed", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Migrations applied", "backend", cfg.DataBackend)
}
