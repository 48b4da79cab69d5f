// Command migrate creates the gateway's schema and optionally seeds
// development fixtures (a demo customer and product catalog).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finbank/backend/internal/application/catalog"
	"github.com/finbank/backend/internal/application/customer"
	"github.com/finbank/backend/internal/infrastructure/config"
	"github.com/finbank/backend/internal/infrastructure/logger"
	"github.com/finbank/backend/internal/infrastructure/persistence"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&persistence.DatabaseConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, nil)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	switch command {
	case "up":
		if err := db.Migrate(); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("schema migrated")

	case "seed":
		if err := db.Migrate(); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		if err := seed(db); err != nil {
			log.Fatal("seeding failed", zap.Error(err))
		}
		log.Info("development fixtures seeded")

	default:
		log.Error("unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

// seed inserts a demo customer (password "demo1234") and two products.
// It is idempotent only in the sense that rerunning against seeded data
// fails on unique constraints rather than duplicating rows.
func seed(db *persistence.Database) error {
	ctx := context.Background()

	hash, err := customer.HashPassword("demo1234")
	if err != nil {
		return err
	}

	customers := persistence.NewGormCustomerRepository(db.DB)
	if err := customers.Create(ctx, &customer.Customer{
		ID:           uuid.NewString(),
		Email:        "demo@finbank.example",
		FullName:     "Demo Customer",
		Role:         "USER",
		PasswordHash: hash,
		Active:       true,
	}); err != nil {
		return fmt.Errorf("failed to seed customer: %w", err)
	}

	products := persistence.NewGormProductRepository(db.DB)
	for _, p := range []*catalog.Product{
		{
			Code:         "SAV-01",
			Name:         "Everyday Savings",
			Type:         "SAVINGS",
			InterestRate: decimal.RequireFromString("2.75"),
			MonthlyFee:   decimal.Zero,
			Active:       true,
		},
		{
			Code:         "CHK-01",
			Name:         "Standard Checking",
			Type:         "CHECKING",
			InterestRate: decimal.RequireFromString("0.10"),
			MonthlyFee:   decimal.RequireFromString("4.99"),
			Active:       true,
		},
	} {
		if err := products.Create(ctx, p); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.Code, err)
		}
	}
	return nil
}

func printUsage() {
	fmt.Println(`finbank schema tool

Usage:
  migrate [flags] <command>

Commands:
  up        Create or update the schema
  seed      Migrate, then insert development fixtures

Flags:
  -log-level string   Log level: debug, info, warn, error (default: info)`)
}
