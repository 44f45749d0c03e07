package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deusflow/pacwatch/internal/api"
	"github.com/deusflow/pacwatch/internal/app"
	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/filter"
	"github.com/deusflow/pacwatch/internal/metrics"
	"github.com/deusflow/pacwatch/internal/mgrs"
)

func runCommand() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one refresh and print the top articles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer func() { _ = e.log.Sync() }()

			m := metrics.New()
			pipeline, closeFn, err := app.Build(cmd.Context(), e.cfg, e.ref, m, e.log)
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := pipeline.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), app.FormatTop(snap, top))
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of articles to print (0 = all)")
	return cmd
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and refresh on a schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer func() { _ = e.log.Sync() }()
			ctx := cmd.Context()

			m := metrics.New()
			pipeline, closeFn, err := app.Build(ctx, e.cfg, e.ref, m, e.log)
			if err != nil {
				return err
			}
			defer closeFn()

			refresher := app.NewRefresher(pipeline, m, e.log.Named("refresh"))
			defer refresher.Close()

			scheduler := cron.New()
			if _, err := scheduler.AddFunc(e.cfg.RefreshSchedule, func() {
				refresher.Trigger(ctx)
			}); err != nil {
				return &config.ConfigurationError{
					Source:   "environment",
					Problems: []string{fmt.Sprintf("REFRESH_SCHEDULE %q: %v", e.cfg.RefreshSchedule, err)},
				}
			}
			scheduler.Start()
			defer scheduler.Stop()
			e.log.Info("refresh scheduled", zap.String("schedule", e.cfg.RefreshSchedule))

			refresher.Trigger(ctx)

			server := api.NewServer(api.Options{
				Addr:        e.cfg.HTTPAddr,
				Debug:       e.cfg.Debug,
				Snapshots:   refresher,
				Reference:   e.ref,
				Metrics:     m,
				ResultLimit: e.cfg.ResultLimit,
				Logger:      e.log.Named("api"),

				SentimentStats: pipeline.Stats,
			})
			return server.Run(ctx)
		},
	}
}

func reportCommand() *cobra.Command {
	var (
		kind, title, period, output string
		categories, countries       []string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run one refresh and write a Markdown report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := app.ParseReportKind(kind)
			if err != nil {
				return err
			}
			since, err := reportPeriod(period)
			if err != nil {
				return err
			}

			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer func() { _ = e.log.Sync() }()

			pipeline, closeFn, err := app.Build(cmd.Context(), e.cfg, e.ref, metrics.New(), e.log)
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := pipeline.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			out, err := app.FormatReport(snap, app.ReportOptions{
				Kind:  k,
				Title: title,
				Filter: filter.Spec{
					Categories: categories,
					Countries:  countries,
					Since:      since,
					Now:        snap.GeneratedAt,
				},
				Sections:   e.ref.ReportSections,
				Categories: e.ref.CategoryNames(),
			})
			if err != nil {
				return err
			}

			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			}
			if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			e.log.Info("report written", zap.String("path", output), zap.String("type", string(k)))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "type", "comprehensive", "comprehensive, summary, security or economic")
	cmd.Flags().StringVar(&title, "title", app.DefaultReportTitle, "report title")
	cmd.Flags().StringVar(&period, "period", "week", "day, week, month, all or a duration such as 36h")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "only these categories")
	cmd.Flags().StringSliceVar(&countries, "country", nil, "only these countries")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

// reportPeriod turns a --period value into a look-back window, 0 for all.
func reportPeriod(p string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "", "all":
		return 0, nil
	case "day":
		return 24 * time.Hour, nil
	case "week":
		return 7 * 24 * time.Hour, nil
	case "month":
		return 30 * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(p)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid period %q", p)
	}
	return d, nil
}

func mgrsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mgrs <coordinate>",
		Short: "Convert an MGRS coordinate to latitude/longitude",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord := args[0]
			for _, a := range args[1:] {
				coord += a
			}
			pos, ok := mgrs.ToLatLon(coord)
			if !ok {
				return errors.New("invalid coordinate")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.6f, %.6f\n", pos.Lat, pos.Lon)
			return nil
		},
	}
}

func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check settings and reference data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ref, err := config.LoadReference(cfg.ReferencePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d feeds, %d categories, %d countries, %d actors\n",
				len(ref.Feeds), len(ref.Categories), len(ref.Countries), len(ref.Actors))
			return nil
		},
	}
}
