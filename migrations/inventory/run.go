package main

import (
	"context"
	"embed"
	"log"

	"github.com/ghuser/inventory/pkg/config"
	"github.com/ghuser/inventory/pkg/migrator"
)

//go:embed *.sql
var MigrationsFS embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := migrator.Run(context.Background(), cfg.DatabaseURL, MigrationsFS); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}
