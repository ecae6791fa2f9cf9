package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/NordCoder/Gatekeeper/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbURL := os.Getenv("DB_DSN")
	if dbURL == "" {
		log.Fatal("DB_DSN is empty")
	}

	db, err := goose.OpenDBWithDriver("pgx", dbURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := migrations.Up(ctx, db); err != nil {
		log.Fatalf("%v", err)
	}
	log.Println("migrations: up OK")
}
