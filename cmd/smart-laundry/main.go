package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/awaistahir/smart-laundry/internal/advisor"
	"github.com/awaistahir/smart-laundry/internal/config"
	"github.com/awaistahir/smart-laundry/internal/engine"
	"github.com/awaistahir/smart-laundry/internal/geocode"
	"github.com/awaistahir/smart-laundry/internal/logging"
	"github.com/awaistahir/smart-laundry/internal/openei"
	"github.com/awaistahir/smart-laundry/internal/store"
)

var (
	cfgFile string
	dbPath  string
	cfg     config.Config
	logger  zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "smart-laundry",
		Short: "SmartLaundry - Find the cheapest time to run your washer and dryer",
		Long: `SmartLaundry looks up your utility's time-of-use electricity tariff on OpenEI
and tells you whether to wash now or wait for a cheaper hour.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return nil
			}
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.smartlaundry/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default is $HOME/.smartlaundry/smartlaundry.db)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(adviseCmd())
	rootCmd.AddCommand(geocodeCmd())
	rootCmd.AddCommand(locationsCmd())
	rootCmd.AddCommand(settingsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() error {
	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}
	if dbPath != "" {
		v.Set("db", dbPath)
	}

	cfg, err = config.FromViper(v)
	if err != nil {
		return err
	}
	logger = logging.New("cli", cfg.Log.Level, cfg.Log.Format)
	return nil
}

func openStore() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	st, err := store.NewStore(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

func newOpenEIClient() *openei.Client {
	return openei.NewClient(cfg.OpenEI.APIKey,
		openei.WithBaseURL(cfg.OpenEI.BaseURL),
		openei.WithHTTPClient(&http.Client{Timeout: cfg.OpenEI.Timeout}),
	)
}

func newGeocoder() *geocode.NominatimClient {
	return geocode.NewNominatimClient(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent)
}

// restore loads the registry and the saved settings
func restore(st *store.Store) (*advisor.Registry, advisor.Settings, error) {
	return st.Restore(cfg.Settings(), cfg.SeedLocations())
}

func printJSON(data interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file and initialize the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				dir, err := config.Dir()
				if err != nil {
					return err
				}
				path = filepath.Join(dir, "config.yaml")
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			cfgFile = path
			if err := loadConfig(); err != nil {
				return err
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			_, settings, err := restore(st)
			if err != nil {
				return err
			}
			if err := st.SaveSettings(settings); err != nil {
				return err
			}

			fmt.Println("✓ Initialized SmartLaundry")
			fmt.Printf("Config:   %s\n", path)
			fmt.Printf("Database: %s\n", cfg.DB)
			fmt.Printf("Location: %s\n", settings.Location)
			fmt.Println("\nNext steps:")
			fmt.Println("  1. Get advice: smart-laundry advise")
			fmt.Println("  2. Find your town: smart-laundry geocode \"Raleigh, NC\" --save")

			return nil
		},
	}
}

func fetchCmd() *cobra.Command {
	var location string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the utility rate schedule for a location from OpenEI",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			reg, settings, err := restore(st)
			if err != nil {
				return err
			}
			loc, err := pickLocation(reg, settings, location)
			if err != nil {
				return err
			}

			schedule, err := newOpenEIClient().FetchSchedule(ctx, loc.Latitude, loc.Longitude)
			if err != nil {
				return fmt.Errorf("fetching rate schedule for %s: %w", loc.Name, err)
			}

			fmt.Fprintf(os.Stderr, "Fetched tariff %q for %s\n", schedule.ProviderName, loc.Name)
			return printJSON(schedule)
		},
	}

	cmd.Flags().StringVarP(&location, "location", "l", "", "Location name (default is the current location)")

	return cmd
}

func adviseCmd() *cobra.Command {
	var location string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "advise",
		Short: "Tell whether to run the laundry now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			reg, settings, err := restore(st)
			if err != nil {
				return err
			}
			loc, err := pickLocation(reg, settings, location)
			if err != nil {
				return err
			}

			schedule, fetchErr := newOpenEIClient().FetchSchedule(ctx, loc.Latitude, loc.Longitude)
			if fetchErr != nil {
				logger.Warn().Err(fetchErr).Str("location", loc.Name).Msg("rate schedule unavailable, using fallback price")
				schedule = nil
			}

			snap := advisor.Evaluate(advisor.Inputs{
				Schedule:      schedule,
				FetchErr:      fetchErr,
				Location:      loc,
				Appliance:     settings.Appliance,
				SolarPriority: settings.SolarPriority,
				Now:           time.Now(),
			})

			if asJSON {
				return printJSON(snap)
			}
			printAdvice(snap)
			return nil
		},
	}

	cmd.Flags().StringVarP(&location, "location", "l", "", "Location name (default is the current location)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")

	return cmd
}

func printAdvice(s advisor.Snapshot) {
	f := s.Forecast
	fmt.Printf("%s  [%s]\n", s.Location.Name, s.Provider)
	fmt.Printf("Rate:          $%.3f /kWh\n", f.CurrentPrice)
	fmt.Printf("Cost per load: $%s (%s dryer)\n", engine.FormatMoney(s.CostPerLoad), s.Appliance.DryerMode)
	fmt.Printf("Status:        %s\n", strings.ReplaceAll(string(s.Advice.Status), "_", " "))
	fmt.Printf("               %s\n", s.Advice.Message)
	if !f.BestFutureTime.IsZero() && f.BestFuturePrice < f.CurrentPrice {
		fmt.Printf("Cheapest soon: $%.3f at %s\n", f.BestFuturePrice, f.BestFutureTime.Format("03 PM"))
	}

	fmt.Println("\nLast 24 hours ($/kWh):")
	start := s.ComputedAt.Add(-time.Duration(engine.HistoryHours-1) * time.Hour)
	for i, p := range f.History {
		fmt.Printf("  %s  %.3f\n", start.Add(time.Duration(i)*time.Hour).Format("Mon 03 PM"), p)
	}
}

func pickLocation(reg *advisor.Registry, settings advisor.Settings, name string) (engine.LocationProfile, error) {
	if name == "" {
		name = settings.Location
	}
	loc, ok := reg.Lookup(name)
	if !ok {
		return engine.LocationProfile{}, fmt.Errorf("%w: %q (see 'smart-laundry locations')", advisor.ErrUnknownLocation, name)
	}
	return loc, nil
}

func geocodeCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "geocode QUERY",
		Short: "Look up a place with OpenStreetMap Nominatim",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return advisor.ErrEmptyQuery
			}

			loc, err := newGeocoder().ResolveLocation(ctx, query)
			if errors.Is(err, geocode.ErrLocationNotFound) {
				return fmt.Errorf("no match for %q", query)
			}
			if err != nil {
				return err
			}

			fmt.Printf("%s  (%.4f, %.4f)  water $%.3f/gal\n", loc.Name, loc.Latitude, loc.Longitude, loc.WaterPricePerGal)
			if !save {
				return nil
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			reg, settings, err := restore(st)
			if err != nil {
				return err
			}
			loc, added := reg.Add(loc)
			if added {
				if err := st.SaveLocation(loc); err != nil {
					return err
				}
			}
			settings.Location = loc.Name
			if err := st.SaveSettings(settings); err != nil {
				return err
			}
			fmt.Printf("✓ Selected %s\n", loc.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Add the place to the saved locations and select it")

	return cmd
}

func locationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List known locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			reg, settings, err := restore(st)
			if err != nil {
				return err
			}

			fmt.Printf("  %-32s %10s %10s %10s\n", "NAME", "LAT", "LON", "WATER")
			fmt.Println("------------------------------------------------------------------")
			for _, l := range reg.All() {
				mark := " "
				if l.Name == settings.Location {
					mark = "*"
				}
				fmt.Printf("%s %-32s %10.4f %10.4f %10.3f\n", mark, l.Name, l.Latitude, l.Longitude, l.WaterPricePerGal)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "use NAME",
		Short: "Select the current location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			reg, settings, err := restore(st)
			if err != nil {
				return err
			}
			loc, err := pickLocation(reg, settings, args[0])
			if err != nil {
				return err
			}
			settings.Location = loc.Name
			if err := st.SaveSettings(settings); err != nil {
				return err
			}
			fmt.Printf("✓ Selected %s\n", loc.Name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a location added by search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteLocation(args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%q is not a saved location", args[0])
				}
				return err
			}
			fmt.Printf("✓ Removed %s\n", args[0])
			return nil
		},
	})

	return cmd
}
