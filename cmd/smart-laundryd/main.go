package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/awaistahir/smart-laundry/internal/advisor"
	"github.com/awaistahir/smart-laundry/internal/config"
	"github.com/awaistahir/smart-laundry/internal/geocode"
	"github.com/awaistahir/smart-laundry/internal/logging"
	"github.com/awaistahir/smart-laundry/internal/openei"
	"github.com/awaistahir/smart-laundry/internal/store"
	"github.com/awaistahir/smart-laundry/internal/uiapi"
)

func main() {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:          "smart-laundryd",
		Short:        "SmartLaundry HTTP server, keeps advice up to date in the background",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.New(cfgFile)
			if err != nil {
				return err
			}
			if err := v.BindPFlag("server.port", cmd.Flags().Lookup("port")); err != nil {
				return err
			}
			if err := v.BindPFlag("db", cmd.Flags().Lookup("db")); err != nil {
				return err
			}
			if err := v.BindPFlag("poll_interval", cmd.Flags().Lookup("poll")); err != nil {
				return err
			}
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.smartlaundry/config.yaml)")
	rootCmd.Flags().IntP("port", "p", 8080, "HTTP port")
	rootCmd.Flags().String("db", "", "Database path")
	rootCmd.Flags().Duration("poll", 15*time.Minute, "How often to recompute advice")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logging.New("smart-laundryd", cfg.Log.Level, cfg.Log.Format)

	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	st, err := store.NewStore(cfg.DB)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	registry, settings, err := st.Restore(cfg.Settings(), cfg.SeedLocations())
	if err != nil {
		return err
	}

	adv, err := advisor.New(advisor.Deps{
		Fetcher: openei.NewClient(cfg.OpenEI.APIKey,
			openei.WithBaseURL(cfg.OpenEI.BaseURL),
			openei.WithHTTPClient(&http.Client{Timeout: cfg.OpenEI.Timeout}),
		),
		Geocoder:     geocode.NewNominatimClient(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent),
		Store:        st,
		Logger:       log,
		PollInterval: cfg.PollInterval,
	}, registry, settings)
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- adv.Run(ctx) }()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           uiapi.NewServer(adv, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("db", cfg.DB).
			Str("location", settings.Location).Dur("poll", cfg.PollInterval).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}

	return <-runErr
}
