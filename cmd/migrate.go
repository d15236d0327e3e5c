package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"writingstuff/config/database"

	"github.com/spf13/cobra"
)

func migrateCMD() *cobra.Command {
	var direction string

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != "postgres" {
				return errors.New("migrations need database.driver=postgres")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := database.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			switch direction {
			case "up":
				return database.Migrate(ctx, db)
			case "down":
				return database.Rollback(ctx, db)
			case "status":
				return database.Status(ctx, db)
			default:
				return fmt.Errorf("unknown direction %q (up, down or status)", direction)
			}
		},
	}
	migrate.Flags().StringVar(&direction, "direction", "up", "up, down or status")

	return migrate
}
