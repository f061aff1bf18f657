// Package main applies or rolls back the database schema.
//
//	migrate up
//	migrate down -steps 1
//	migrate version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"supplyhub/internal/config"
	"supplyhub/internal/infrastructure/storage/postgres"
	"supplyhub/pkg/logger"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back (down only)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		fmt.Printf("migrations apply to the postgres driver only (STORAGE_DRIVER=%s)\n", cfg.Storage.Driver)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.IsDevelopment()})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	ctx := logger.WithLogger(context.Background(), log)

	m, err := postgres.NewMigrator(cfg.Storage.DatabaseURL)
	if err != nil {
		log.Fatalw("failed to open migrator", "error", err)
	}
	defer m.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up(ctx)
	case "down":
		err = m.Down(ctx, *steps)
	case "version":
		var (
			v     uint
			dirty bool
		)
		v, dirty, err = m.Version()
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalw("migration failed", "command", flag.Arg(0), "error", err)
	}
}
