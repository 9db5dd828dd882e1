package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awaistahir/smart-laundry/internal/engine"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "db: /tmp/laundry.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "DEMO_KEY", cfg.OpenEI.APIKey)
	assert.Equal(t, "Morrisville, NC", cfg.Location)
	assert.Equal(t, 15*time.Minute, cfg.PollInterval)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/tmp/laundry.db", cfg.DB)
	assert.Equal(t, engine.DefaultAppliance(), cfg.ApplianceProfile())
	assert.Len(t, cfg.SeedLocations(), 3)
	assert.False(t, cfg.Settings().SolarPriority)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
location: Raleigh
solar_priority: true
poll_interval: 5m
appliance:
  washer_kwh: 0.7
  dryer_mode: gas
locations:
  - name: Raleigh
    latitude: 35.78
    longitude: -78.64
    water_price: 0.015
`)
	t.Setenv("LAUNDRY_OPENEI_API_KEY", "secret")
	t.Setenv("LAUNDRY_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.OpenEI.APIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)

	st := cfg.Settings()
	assert.Equal(t, "Raleigh", st.Location)
	assert.True(t, st.SolarPriority)
	assert.Equal(t, 0.7, st.Appliance.WasherKWh)
	assert.Equal(t, 3.0, st.Appliance.ElectricDryerKWh)
	assert.Equal(t, engine.DryerGas, st.Appliance.DryerMode)

	locs := cfg.SeedLocations()
	require.Len(t, locs, 1)
	assert.Equal(t, engine.LocationProfile{Name: "Raleigh", Latitude: 35.78, Longitude: -78.64, WaterPricePerGal: 0.015}, locs[0])
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero washer", "appliance:\n  washer_kwh: 0\n"},
		{"unknown dryer", "appliance:\n  dryer_mode: steam\n"},
		{"unknown location", "location: Atlantis\n"},
		{"zero poll", "poll_interval: 0s\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"bad coordinates", "location: X\nlocations:\n  - name: X\n    latitude: 91\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "db: /tmp/x.db\n"+tt.body))
			assert.ErrorIs(t, err, engine.ErrInvalidConfiguration)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.SeedLocations(), 3)
	assert.Equal(t, "Lebanon, KS (US Center)", cfg.SeedLocations()[2].Name)

	// second call keeps the file
	require.NoError(t, os.WriteFile(path, []byte("location: Charlotte, NC\n"), 0644))
	require.NoError(t, WriteDefault(path))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Charlotte, NC", cfg.Location)
}
