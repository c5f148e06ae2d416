package main

import (
	"context"
	"fmt"

	"orbe/internal/db"
	"orbe/internal/store"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

var inspectCommand = &cli.Command{
	Name:      "inspect",
	Usage:     "Print a case with its attachments, timeline and review flags",
	ArgsUsage: "<case-id>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored output",
		},
	},
	Action: func(c *cli.Context) error {
		caseID := c.Args().First()
		if caseID == "" {
			return fmt.Errorf("a case id is required")
		}

		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		printer := pp.New()
		if c.Bool("no-color") {
			printer.SetColoringEnabled(false)
		}

		kase, err := store.NewCaseRepository(pool).Case(ctx, caseID)
		if err != nil {
			return err
		}

		attachments, err := store.NewAttachmentRepository(pool).AttachmentsByCase(ctx, caseID)
		if err != nil {
			return err
		}

		events, err := store.NewTimelineRepository(pool).EventsByCase(ctx, caseID)
		if err != nil {
			return err
		}

		flags, err := store.NewReviewFlagRepository(pool).FlagsByCase(ctx, caseID)
		if err != nil {
			return err
		}

		printer.Println(kase)
		printer.Println(attachments)
		printer.Println(events)
		printer.Println(flags)

		if err := kase.CheckMilestones(); err != nil {
			fmt.Printf("milestones: %v\n", err)
		}

		return nil
	},
}
