// Command migrate runs the embedded database migrations via goose.
//
// Usage:
//
//	go run ./cmd/migrate up          # Apply all pending migrations
//	go run ./cmd/migrate down        # Roll back the last migration
//	go run ./cmd/migrate status      # Show migration status
//	go run ./cmd/migrate version     # Show current schema version
//	go run ./cmd/migrate redo        # Roll back and re-apply last migration
//
// The database URL comes from -db, then DATABASE_URL, then the config file.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/finsphere/finsphere/internal/config"
	"github.com/finsphere/finsphere/internal/db"
	"github.com/finsphere/finsphere/internal/vault"
)

func main() {
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "Database connection URL")
	configPath := flag.String("config", "", "Path to config file, used when no URL is given")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: migrate [-db url] [-config path] <command> [args]")
		fmt.Println("Commands: up, down, status, version, redo, up-to <version>, down-to <version>")
		os.Exit(1)
	}

	ctx := context.Background()

	if *dbURL == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		if cfg.Vault.Enabled {
			client, err := vault.NewClient(vault.Config{
				Address: cfg.Vault.Address,
				Token:   cfg.Vault.Token,
				Mount:   cfg.Vault.Mount,
				Path:    cfg.Vault.Path,
			})
			if err == nil {
				_, err = client.ApplyTo(ctx, cfg)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load secrets from Vault: %v\n", err)
				os.Exit(1)
			}
		}
		*dbURL = cfg.Database.GetDSN()
	}

	database, err := sql.Open("postgres", *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close database connection: %v\n", err)
		}
	}()

	if err := database.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to ping database: %v\n", err)
		os.Exit(1)
	}

	command := flag.Arg(0)
	if err := db.Migrate(ctx, database, command, flag.Args()[1:]...); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
