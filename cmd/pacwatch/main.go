package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "pacwatch",
	Short:         "Pacific news watch",
	Long:          `Fetches Pacific and Indo-Pacific news feeds, classifies, scores and deduplicates the articles and serves the ranked result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCommand())
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(reportCommand())
	rootCmd.AddCommand(mgrsCommand())
	rootCmd.AddCommand(validateCommand())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// env is what every pipeline command needs before it can start.
type env struct {
	cfg *config.Config
	ref *config.Reference
	log *zap.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return nil, err
	}
	ref, err := config.LoadReference(cfg.ReferencePath)
	if err != nil {
		return nil, err
	}
	log.Info("configuration loaded",
		zap.String("reference", cfg.ReferencePath),
		zap.Int("feeds", len(ref.Feeds)),
		zap.Int("categories", len(ref.Categories)),
		zap.Int("countries", len(ref.Countries)),
		zap.Int("actors", len(ref.Actors)),
		zap.String("sentiment_backend", cfg.SentimentBackend))
	return &env{cfg: cfg, ref: ref, log: log}, nil
}
