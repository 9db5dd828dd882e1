package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/awaistahir/smart-laundry/internal/advisor"
	"github.com/awaistahir/smart-laundry/internal/engine"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

const settingsID = "default"

// Store handles persistent storage using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new store and initializes the database
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// in-memory databases are per connection
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the database schema
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		id TEXT PRIMARY KEY,
		location TEXT NOT NULL,
		washer_kwh REAL NOT NULL DEFAULT 0.5,
		electric_dryer_kwh REAL NOT NULL DEFAULT 3.0,
		gas_dryer_kwh REAL NOT NULL DEFAULT 0.3,
		dryer_mode TEXT NOT NULL DEFAULT 'electric',
		water_gallons REAL NOT NULL DEFAULT 20,
		solar_priority INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS locations (
		name TEXT PRIMARY KEY,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		water_price REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSettings saves or updates the settings
func (s *Store) SaveSettings(st advisor.Settings) error {
	a := st.Appliance
	query := `INSERT OR REPLACE INTO settings
		(id, location, washer_kwh, electric_dryer_kwh, gas_dryer_kwh, dryer_mode, water_gallons, solar_priority, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, settingsID, st.Location, a.WasherKWh, a.ElectricDryerKWh, a.GasDryerKWh,
		string(a.DryerMode), a.WaterGallons, boolToInt(st.SolarPriority), time.Now())
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// GetSettings retrieves the saved settings
func (s *Store) GetSettings() (advisor.Settings, error) {
	query := `SELECT location, washer_kwh, electric_dryer_kwh, gas_dryer_kwh, dryer_mode, water_gallons, solar_priority
		FROM settings WHERE id = ?`

	var st advisor.Settings
	var dryerMode string
	var solarInt int

	err := s.db.QueryRow(query, settingsID).Scan(&st.Location, &st.Appliance.WasherKWh, &st.Appliance.ElectricDryerKWh,
		&st.Appliance.GasDryerKWh, &dryerMode, &st.Appliance.WaterGallons, &solarInt)
	if errors.Is(err, sql.ErrNoRows) {
		return advisor.Settings{}, fmt.Errorf("settings: %w", ErrNotFound)
	}
	if err != nil {
		return advisor.Settings{}, err
	}

	st.Appliance.DryerMode = engine.DryerMode(dryerMode)
	st.SolarPriority = solarInt == 1

	return st, nil
}

// SaveLocation stores a location. An existing entry with the same name is kept.
func (s *Store) SaveLocation(l engine.LocationProfile) error {
	query := `INSERT OR IGNORE INTO locations (name, latitude, longitude, water_price)
		VALUES (?, ?, ?, ?)`

	_, err := s.db.Exec(query, l.Name, l.Latitude, l.Longitude, l.WaterPricePerGal)
	if err != nil {
		return fmt.Errorf("saving location %q: %w", l.Name, err)
	}
	return nil
}

// GetLocations retrieves stored locations in the order they were added
func (s *Store) GetLocations() ([]engine.LocationProfile, error) {
	rows, err := s.db.Query(`SELECT name, latitude, longitude, water_price FROM locations ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locs := []engine.LocationProfile{}
	for rows.Next() {
		var l engine.LocationProfile
		if err := rows.Scan(&l.Name, &l.Latitude, &l.Longitude, &l.WaterPricePerGal); err != nil {
			return nil, err
		}
		locs = append(locs, l)
	}

	return locs, rows.Err()
}

// DeleteLocation removes a stored location by name
func (s *Store) DeleteLocation(name string) error {
	res, err := s.db.Exec(`DELETE FROM locations WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("location %q: %w", name, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Restore builds the location registry from seed plus stored locations and
// returns the saved settings, or defaults when nothing valid was saved.
func (s *Store) Restore(defaults advisor.Settings, seed []engine.LocationProfile) (*advisor.Registry, advisor.Settings, error) {
	registry := advisor.NewRegistry(seed...)

	stored, err := s.GetLocations()
	if err != nil {
		return nil, advisor.Settings{}, fmt.Errorf("loading locations: %w", err)
	}
	for _, l := range stored {
		registry.Add(l)
	}

	st, err := s.GetSettings()
	if errors.Is(err, ErrNotFound) {
		return registry, defaults, nil
	}
	if err != nil {
		return nil, advisor.Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	if _, ok := registry.Lookup(st.Location); !ok {
		st.Location = defaults.Location
	}
	if st.Appliance.Validate() != nil {
		st.Appliance = defaults.Appliance
	}

	return registry, st, nil
}
