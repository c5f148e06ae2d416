package main

import (
	"context"
	"fmt"

	"orbe/internal/db"
	"orbe/internal/seed"
	"orbe/internal/store"
	"orbe/internal/workflow"

	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with demo cases and donation requests",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "cases",
			Usage: "Number of cases to create",
			Value: 25,
		},
		&cli.IntFlag{
			Name:  "requests",
			Usage: "Number of donation requests to create",
			Value: 10,
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "Random seed, 0 picks one from the clock",
		},
		&cli.BoolFlag{
			Name:  "reset",
			Usage: "Delete previously seeded rows first",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger := newLogger(cfg)
		ctx := context.Background()

		// Connect to database
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logger.Info("Connected to database")

		if c.Bool("reset") {
			if err := seed.Reset(ctx, pool); err != nil {
				return err
			}
		}

		seeder := seed.NewSeeder(workflow.New(store.NewTransactor(pool), logger), c.Int64("seed"))

		logger.Info("Seeding cases...")
		if _, err := seeder.SeedCases(ctx, c.Int("cases")); err != nil {
			return fmt.Errorf("failed to seed cases: %w", err)
		}

		logger.Info("Seeding donation requests...")
		if err := seeder.SeedDonationRequests(ctx, c.Int("requests")); err != nil {
			return fmt.Errorf("failed to seed donation requests: %w", err)
		}

		logger.Info("Seed completed successfully")

		return nil
	},
}
