// Command migrate applies or rolls back the pet-events schema migrations.
//
//	migrate -cmd up | down | auto | version
//	migrate -cmd to -version 1
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-petevents/internal/config"
	"ms-petevents/internal/database/migrations"
	"ms-petevents/internal/logger"
)

func main() {
	cmd := flag.String("cmd", "auto", "up, down, to, version or auto (schema plus seed when SEED_DATA is set)")
	version := flag.Uint("version", 0, "target version for -cmd to")
	dir := flag.String("dir", "", "migrations directory, defaults to MIGRATIONS_DIR")
	flag.Parse()

	log := logger.NewLoggerWithWriter(os.Stdout)

	if err := godotenv.Load(); err == nil {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()
	if *dir != "" {
		cfg.Migrations.Dir = *dir
	}

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.OptionsFromConfig(cfg.Migrations), log)
	defer runner.Close()

	switch *cmd {
	case "auto":
		err = runner.RunMigrations()
	case "up":
		err = runner.MigrateUp()
	case "down":
		err = runner.MigrateDown()
	case "to":
		if *version == 0 {
			log.Fatal("MIGRATE", "-version is required with -cmd to")
		}
		err = runner.MigrateTo(*version)
	case "version":
		v, dirty, verr := runner.Version()
		if verr != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Failed to read version: %v", verr))
		}
		log.Info("MIGRATE", fmt.Sprintf("Version %d (dirty: %t)", v, dirty))
		return
	default:
		log.Fatal("MIGRATE", fmt.Sprintf("unknown command %q", *cmd))
	}

	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", fmt.Sprintf("%s complete", *cmd))
}
