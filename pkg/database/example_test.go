package database_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/jhquant/pkg/config"
	"github.com/wonny/jhquant/pkg/database"
)

// Example_countBars connects with DATABASE_URL and counts stored daily bars
func Example_countBars() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	var rows int64
	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM stock_daily`).Scan(&rows)
	})
	if err != nil {
		log.Fatalf("count: %v", err)
	}

	fmt.Printf("stock_daily rows: %d (pool idle %d)\n", rows, db.Stats().IdleConns)
}
