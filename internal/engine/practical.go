package engine

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidConfiguration = errors.New("invalid appliance configuration")

// EstimateCost returns the cost of one load run at currentPrice: washer and the
// selected dryer's energy plus the water drawn. Inputs are assumed validated.
func EstimateCost(a ApplianceProfile, currentPrice, waterPricePerGal float64) float64 {
	energyCost := (a.WasherKWh + a.DryerKWh()) * currentPrice
	waterCost := a.WaterGallons * waterPricePerGal
	return energyCost + waterCost
}

// ApplianceEdit holds raw settings input. Empty fields leave the current value alone.
type ApplianceEdit struct {
	WasherKWh        string `json:"washer_kwh,omitempty"`
	ElectricDryerKWh string `json:"electric_dryer_kwh,omitempty"`
	GasDryerKWh      string `json:"gas_dryer_kwh,omitempty"`
}

// Empty reports whether the edit changes nothing
func (e ApplianceEdit) Empty() bool {
	return strings.TrimSpace(e.WasherKWh) == "" &&
		strings.TrimSpace(e.ElectricDryerKWh) == "" &&
		strings.TrimSpace(e.GasDryerKWh) == ""
}

// ApplyEdit returns a copy of a with the edit applied. The edit is all or nothing:
// if any field fails to parse as a positive finite number, a is returned unchanged
// along with an error wrapping ErrInvalidConfiguration.
func ApplyEdit(a ApplianceProfile, e ApplianceEdit) (ApplianceProfile, error) {
	next := a

	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"washer_kwh", e.WasherKWh, &next.WasherKWh},
		{"electric_dryer_kwh", e.ElectricDryerKWh, &next.ElectricDryerKWh},
		{"gas_dryer_kwh", e.GasDryerKWh, &next.GasDryerKWh},
	}

	for _, f := range fields {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			continue
		}
		v, err := ParseEnergy(raw)
		if err != nil {
			return a, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	return next, nil
}

// ParseEnergy parses a positive finite kWh figure
func ParseEnergy(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidConfiguration, s)
	}
	if err := CheckEnergy(v); err != nil {
		return 0, err
	}
	return v, nil
}

// CheckEnergy rejects values that are not positive finite numbers
func CheckEnergy(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %v must be a positive finite number", ErrInvalidConfiguration, v)
	}
	return nil
}

// Validate checks every figure of the profile
func (a ApplianceProfile) Validate() error {
	for name, v := range map[string]float64{
		"washer_kwh":         a.WasherKWh,
		"electric_dryer_kwh": a.ElectricDryerKWh,
		"gas_dryer_kwh":      a.GasDryerKWh,
		"water_gallons":      a.WaterGallons,
	} {
		if err := CheckEnergy(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if !a.DryerMode.Valid() {
		return fmt.Errorf("%w: unknown dryer mode %q", ErrInvalidConfiguration, a.DryerMode)
	}
	return nil
}
