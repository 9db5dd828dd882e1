package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name      string
		appliance ApplianceProfile
		price     float64
		water     float64
		want      float64
	}{
		{
			name:      "electric dryer",
			appliance: DefaultAppliance(),
			price:     0.10,
			water:     0.018,
			want:      0.71, // (0.5+3.0)*0.10 + 20*0.018
		},
		{
			name: "gas dryer",
			appliance: ApplianceProfile{
				WasherKWh: 0.5, ElectricDryerKWh: 3.0, GasDryerKWh: 0.3, DryerMode: DryerGas, WaterGallons: 20,
			},
			price: 0.10,
			water: 0.012,
			want:  0.08 + 0.24,
		},
		{
			name:      "fallback price",
			appliance: DefaultAppliance(),
			price:     FallbackPrice,
			water:     0.010,
			want:      3.5*0.15 + 0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateCost(tt.appliance, tt.price, tt.water)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EstimateCost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimateCostIsLinearInPrice(t *testing.T) {
	a := DefaultAppliance()
	base := EstimateCost(a, 0, 0.018)
	slope := EstimateCost(a, 1, 0.018) - base

	for _, p := range []float64{0.05, 0.12, 0.2, 0.37} {
		assert.InDelta(t, base+slope*p, EstimateCost(a, p, 0.018), 1e-12)
	}
}

func TestApplyEdit(t *testing.T) {
	orig := DefaultAppliance()

	got, err := ApplyEdit(orig, ApplianceEdit{WasherKWh: "0.7", GasDryerKWh: " 0.4 "})
	require.NoError(t, err)
	assert.Equal(t, 0.7, got.WasherKWh)
	assert.Equal(t, 3.0, got.ElectricDryerKWh)
	assert.Equal(t, 0.4, got.GasDryerKWh)
	assert.Equal(t, 0.5, orig.WasherKWh, "original must not change")
}

func TestApplyEditRejectsWholeEdit(t *testing.T) {
	orig := DefaultAppliance()

	for _, bad := range []string{"abc", "0", "-1", "NaN", "Inf", "1e400"} {
		t.Run(bad, func(t *testing.T) {
			got, err := ApplyEdit(orig, ApplianceEdit{WasherKWh: "0.9", ElectricDryerKWh: bad})
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
			assert.Equal(t, orig, got)
		})
	}
}

func TestApplianceValidate(t *testing.T) {
	require.NoError(t, DefaultAppliance().Validate())

	a := DefaultAppliance()
	a.DryerMode = "steam"
	assert.ErrorIs(t, a.Validate(), ErrInvalidConfiguration)

	a = DefaultAppliance()
	a.WaterGallons = 0
	assert.ErrorIs(t, a.Validate(), ErrInvalidConfiguration)
}

func TestApplianceEditEmpty(t *testing.T) {
	assert.True(t, ApplianceEdit{}.Empty())
	assert.True(t, ApplianceEdit{WasherKWh: "  "}.Empty())
	assert.False(t, ApplianceEdit{GasDryerKWh: "1"}.Empty())
}
