package engine

import "time"

// Schedule table dimensions
const (
	MonthsPerYear = 12
	HoursPerDay   = 24
)

// RateTier is one tier of a tariff period. Only the first tier of each period is used.
type RateTier struct {
	Rate *float64 `json:"rate,omitempty"` // nil when missing or non-numeric in the source document
	Max  *float64 `json:"max,omitempty"`
	Unit string   `json:"unit,omitempty"`
}

// RateSchedule is a normalized time-of-use tariff
type RateSchedule struct {
	ProviderName string       `json:"provider_name"`
	WeekdaySlots [][]int      `json:"weekday_slots"` // [month 0-11][hour 0-23] -> period index
	WeekendSlots [][]int      `json:"weekend_slots"`
	Periods      [][]RateTier `json:"periods"` // period index -> tiers
}

// DryerMode selects which dryer energy figure applies to a load
type DryerMode string

const (
	DryerElectric DryerMode = "electric"
	DryerGas      DryerMode = "gas"
)

// Valid reports whether m is a known dryer mode
func (m DryerMode) Valid() bool {
	return m == DryerElectric || m == DryerGas
}

// ApplianceProfile describes the energy and water drawn by one laundry load
type ApplianceProfile struct {
	WasherKWh        float64   `json:"washer_kwh"`
	ElectricDryerKWh float64   `json:"electric_dryer_kwh"`
	GasDryerKWh      float64   `json:"gas_dryer_kwh"` // electricity used by a gas dryer's drum and fan
	DryerMode        DryerMode `json:"dryer_mode"`
	WaterGallons     float64   `json:"water_gallons"`
}

// DefaultAppliance returns the stock washer/dryer figures
func DefaultAppliance() ApplianceProfile {
	return ApplianceProfile{
		WasherKWh:        0.5,
		ElectricDryerKWh: 3.0,
		GasDryerKWh:      0.3,
		DryerMode:        DryerElectric,
		WaterGallons:     20,
	}
}

// DryerKWh returns the energy of the dryer selected by DryerMode
func (a ApplianceProfile) DryerKWh() float64 {
	if a.DryerMode == DryerGas {
		return a.GasDryerKWh
	}
	return a.ElectricDryerKWh
}

// SavingsKWh is the per-load energy used when quoting savings in advice.
// It always counts the electric dryer, whatever DryerMode is selected.
func (a ApplianceProfile) SavingsKWh() float64 {
	return a.WasherKWh + a.ElectricDryerKWh
}

// LocationProfile is a named place with coordinates and a local water price
type LocationProfile struct {
	Name             string  `json:"name"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	WaterPricePerGal float64 `json:"water_price_per_gal"`
}

// ForecastResult is the trailing price history and the cheapest slot in the forward horizon
type ForecastResult struct {
	History         [HistoryHours]float64 `json:"history"` // oldest (now-23h) first, History[23] is now
	CurrentPrice    float64               `json:"current_price"`
	BestFutureTime  time.Time             `json:"best_future_time"`
	BestFuturePrice float64               `json:"best_future_price"`
}

// Status is the actionable classification of the current price
type Status string

const (
	StatusWashNow    Status = "WASH_NOW"
	StatusOKToWash   Status = "OK_TO_WASH"
	StatusWait       Status = "WAIT"
	StatusSolarPower Status = "SOLAR_POWER"
)

// Emphasis is the presentation tier for a status
type Emphasis string

const (
	EmphasisFavorable   Emphasis = "favorable"
	EmphasisNeutral     Emphasis = "neutral"
	EmphasisUnfavorable Emphasis = "unfavorable"
)

// Emphasis returns the default presentation tier of s
func (s Status) Emphasis() Emphasis {
	switch s {
	case StatusWashNow, StatusSolarPower:
		return EmphasisFavorable
	case StatusWait:
		return EmphasisUnfavorable
	default:
		return EmphasisNeutral
	}
}

// Advice is the classifier output
type Advice struct {
	Status   Status   `json:"status"`
	Emphasis Emphasis `json:"emphasis"`
	Message  string   `json:"message"`
}
