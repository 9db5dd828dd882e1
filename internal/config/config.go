package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/awaistahir/smart-laundry/internal/advisor"
	"github.com/awaistahir/smart-laundry/internal/engine"
	"github.com/awaistahir/smart-laundry/internal/geocode"
	"github.com/awaistahir/smart-laundry/internal/openei"
)

const (
	EnvPrefix  = "LAUNDRY"
	dirName    = ".smartlaundry"
	configName = "config"
	dbName     = "smartlaundry.db"
)

// Config is the full runtime configuration
type Config struct {
	OpenEI        OpenEIConfig     `mapstructure:"openei"`
	Geocode       GeocodeConfig    `mapstructure:"geocode"`
	Appliance     ApplianceConfig  `mapstructure:"appliance"`
	SolarPriority bool             `mapstructure:"solar_priority"`
	Location      string           `mapstructure:"location"`
	Locations     []LocationConfig `mapstructure:"locations"`
	PollInterval  time.Duration    `mapstructure:"poll_interval"`
	Server        ServerConfig     `mapstructure:"server"`
	DB            string           `mapstructure:"db"`
	Log           LogConfig        `mapstructure:"log"`
}

type OpenEIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GeocodeConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

type ApplianceConfig struct {
	WasherKWh        float64 `mapstructure:"washer_kwh"`
	ElectricDryerKWh float64 `mapstructure:"electric_dryer_kwh"`
	GasDryerKWh      float64 `mapstructure:"gas_dryer_kwh"`
	WaterGallons     float64 `mapstructure:"water_gallons"`
	DryerMode        string  `mapstructure:"dryer_mode"`
}

type LocationConfig struct {
	Name       string  `mapstructure:"name"`
	Latitude   float64 `mapstructure:"latitude"`
	Longitude  float64 `mapstructure:"longitude"`
	WaterPrice float64 `mapstructure:"water_price"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Dir returns the directory holding the config file and database
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	def := engine.DefaultAppliance()

	v.SetDefault("openei.api_key", openei.DemoAPIKey)
	v.SetDefault("openei.base_url", openei.DefaultBaseURL)
	v.SetDefault("openei.timeout", 5*time.Second)
	v.SetDefault("geocode.base_url", geocode.DefaultBaseURL)
	v.SetDefault("geocode.user_agent", geocode.DefaultUserAgent)
	v.SetDefault("appliance.washer_kwh", def.WasherKWh)
	v.SetDefault("appliance.electric_dryer_kwh", def.ElectricDryerKWh)
	v.SetDefault("appliance.gas_dryer_kwh", def.GasDryerKWh)
	v.SetDefault("appliance.water_gallons", def.WaterGallons)
	v.SetDefault("appliance.dryer_mode", string(def.DryerMode))
	v.SetDefault("solar_priority", false)
	v.SetDefault("location", advisor.DefaultLocations()[0].Name)
	v.SetDefault("poll_interval", 15*time.Minute)
	v.SetDefault("server.port", 8080)
	v.SetDefault("db", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// New returns a viper instance with defaults and LAUNDRY_ environment
// overrides, reading cfgFile or $HOME/.smartlaundry/config.yaml.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
		return v, nil
	}

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	v.AddConfigPath(dir)
	v.SetConfigName(configName)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// Load reads and validates the configuration
func Load(cfgFile string) (Config, error) {
	v, err := New(cfgFile)
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.DB == "" {
		dir, err := Dir()
		if err != nil {
			return Config{}, err
		}
		cfg.DB = filepath.Join(dir, dbName)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if err := c.ApplianceProfile().Validate(); err != nil {
		return fmt.Errorf("appliance: %w", err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", engine.ErrInvalidConfiguration)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", engine.ErrInvalidConfiguration, c.Server.Port)
	}
	if strings.TrimSpace(c.Location) == "" {
		return fmt.Errorf("%w: location is empty", engine.ErrInvalidConfiguration)
	}

	found := false
	for _, l := range c.SeedLocations() {
		if l.Name == "" {
			return fmt.Errorf("%w: seed location without a name", engine.ErrInvalidConfiguration)
		}
		if math.Abs(l.Latitude) > 90 || math.Abs(l.Longitude) > 180 {
			return fmt.Errorf("%w: %q has invalid coordinates", engine.ErrInvalidConfiguration, l.Name)
		}
		if l.WaterPricePerGal < 0 {
			return fmt.Errorf("%w: %q has a negative water price", engine.ErrInvalidConfiguration, l.Name)
		}
		if l.Name == c.Location {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: location %q is not among the configured locations", engine.ErrInvalidConfiguration, c.Location)
	}
	return nil
}

// ApplianceProfile converts the appliance section
func (c Config) ApplianceProfile() engine.ApplianceProfile {
	return engine.ApplianceProfile{
		WasherKWh:        c.Appliance.WasherKWh,
		ElectricDryerKWh: c.Appliance.ElectricDryerKWh,
		GasDryerKWh:      c.Appliance.GasDryerKWh,
		DryerMode:        engine.DryerMode(c.Appliance.DryerMode),
		WaterGallons:     c.Appliance.WaterGallons,
	}
}

// SeedLocations returns the configured locations, or the built-in ones
func (c Config) SeedLocations() []engine.LocationProfile {
	if len(c.Locations) == 0 {
		return advisor.DefaultLocations()
	}
	locs := make([]engine.LocationProfile, 0, len(c.Locations))
	for _, l := range c.Locations {
		locs = append(locs, engine.LocationProfile{
			Name:             l.Name,
			Latitude:         l.Latitude,
			Longitude:        l.Longitude,
			WaterPricePerGal: l.WaterPrice,
		})
	}
	return locs
}

// Settings returns the initial advisor settings
func (c Config) Settings() advisor.Settings {
	return advisor.Settings{
		Location:      c.Location,
		Appliance:     c.ApplianceProfile(),
		SolarPriority: c.SolarPriority,
	}
}

// WriteDefault writes a config file with the default values to path.
// An existing file is left alone.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	var locs []map[string]any
	for _, l := range advisor.DefaultLocations() {
		locs = append(locs, map[string]any{
			"name":        l.Name,
			"latitude":    l.Latitude,
			"longitude":   l.Longitude,
			"water_price": l.WaterPricePerGal,
		})
	}
	v.Set("locations", locs)

	if err := v.SafeWriteConfigAs(path); err != nil {
		var exists viper.ConfigFileAlreadyExistsError
		if errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
