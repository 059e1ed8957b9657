package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"wagerbook/application"
	"wagerbook/cmd"
	"wagerbook/config"
	"wagerbook/database"
	"wagerbook/domain/entities"
	"wagerbook/domain/events"
	"wagerbook/domain/services"
	"wagerbook/infrastructure"
	"wagerbook/infrastructure/cache"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := handleMigrationCommand(); err != nil {
				log.Fatal("Migration error:", err)
			}
			return
		case "update-balance":
			if err := handleUpdateBalanceCommand(); err != nil {
				log.Fatal("Update balance error:", err)
			}
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error:", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: wagerbook migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

// handleUpdateBalanceCommand applies an operator adjustment through the ledger,
// so the change is recorded like any other balance movement
func handleUpdateBalanceCommand() error {
	if len(os.Args) < 5 {
		return fmt.Errorf("usage: wagerbook update-balance <user-id> <practice|real> <delta> [description]")
	}

	userID := os.Args[2]
	currency := entities.Currency(os.Args[3])
	if err := currency.Validate(); err != nil {
		return err
	}
	delta, err := strconv.ParseInt(os.Args[4], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid delta %q: %w", os.Args[4], err)
	}
	description := "Operator adjustment"
	if len(os.Args) > 5 {
		description = os.Args[5]
	}

	ctx := context.Background()
	cfg := config.Get()
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Committed adjustments still invalidate the display cache the server reads through
	publisher := infrastructure.NewLocalEventPublisher()
	if cfg.RedisAddr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		balanceCache := cache.NewRedisBalanceCache(redisClient, cfg.BalanceCacheTTL)
		publisher.RegisterLocalHandler(events.EventTypeBalanceChange, balanceCache.HandleBalanceChange)
	}

	uowFactory := infrastructure.NewUnitOfWorkFactory(db, publisher)
	atomic := application.NewAtomic(uowFactory, application.DefaultRetryPolicy())
	policy := services.DefaultLedgerPolicy()
	policy.StartingPracticeBalance = cfg.StartingPracticeBalance
	accounts := application.NewAccountHandler(atomic, policy, nil)

	if _, _, err := accounts.EnsureUser(ctx, userID); err != nil {
		return err
	}
	tx, err := accounts.AdjustBalance(ctx, userID, currency, delta, description)
	if err != nil {
		return err
	}
	log.Printf("Applied %d %s to %s, balance now %d (transaction %s)", delta, currency, userID, tx.BalanceAfter, tx.ID)
	return nil
}
