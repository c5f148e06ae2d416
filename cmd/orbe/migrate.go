package main

import (
	"context"

	"orbe/internal/db"

	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Apply pending database migrations",
	Action: func(c *cli.Context) error {
		config, err := loadConfig(c)
		if err != nil {
			return err
		}

		logger := newLogger(config)
		ctx := context.Background()

		pool, err := db.Connect(ctx, config)
		if err != nil {
			return err
		}
		defer pool.Close()

		return db.Migrate(ctx, pool, logger)
	},
}
