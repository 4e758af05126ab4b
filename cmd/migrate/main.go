package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"auctiondesk.app/internal/migrate"
	"auctiondesk.app/internal/obs"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("AUCTIONDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var (
		db     *sql.DB
		mgr    *migrate.Manager
		cancel context.CancelFunc
	)

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the Postgres document store schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dsn := v.GetString("pg-dsn")
			if dsn == "" {
				return errors.New("missing DSN: provide via --pg-dsn or AUCTIONDESK_PG_DSN")
			}
			logger, err := obs.NewLogger("info", "console", "migrate")
			if err != nil {
				return err
			}
			db, err = sql.Open("pgx", dsn)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			var ctx context.Context
			ctx, cancel = context.WithTimeout(cmd.Context(), 30*time.Second)
			cmd.SetContext(ctx)
			mgr = migrate.NewManager(db, migrate.WithTable(v.GetString("table")), migrate.WithLogger(logger))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cancel != nil {
				cancel()
			}
			if db != nil {
				_ = db.Close()
			}
		},
	}
	root.PersistentFlags().String("pg-dsn", "", "PostgreSQL DSN")
	root.PersistentFlags().String("table", "schema_migrations", "Migration bookkeeping table")
	_ = v.BindPFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return mgr.Up(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				err := mgr.Down(cmd.Context())
				if errors.Is(err, migrate.ErrNothingApplied) {
					fmt.Println("nothing to roll back")
					return nil
				}
				return err
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				history, err := mgr.Status(cmd.Context())
				if err != nil {
					return err
				}
				for _, item := range history {
					fmt.Println(item)
				}
				return nil
			},
		},
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
