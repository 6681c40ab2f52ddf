package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/repohub/repohub-backend/internal/config"
	"github.com/repohub/repohub-backend/internal/database"
	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/internal/server"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "repohub",
		Short: "RepoHub content-sharing backend",
		// Running the binary without a subcommand starts the API.
		RunE:          runServe,
		SilenceUsage: true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Starts the HTTP API server",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "indexes",
			Short: "Creates the MongoDB indexes and exits",
			RunE:  runIndexes,
		},
	)
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.IsProduction())

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to start server", "err", err)
		return err
	}
	defer srv.Close()

	return srv.Run(ctx)
}

func runIndexes(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.IsProduction())

	client, db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer database.Disconnect(client)

	if err := database.EnsureIndexes(ctx, db); err != nil {
		return err
	}
	log.Info(ctx, "✅ MongoDB indexes ensured", "db", db.Name())
	return nil
}
