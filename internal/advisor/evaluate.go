package advisor

import (
	"errors"
	"time"

	"github.com/awaistahir/smart-laundry/internal/engine"
	"github.com/awaistahir/smart-laundry/internal/openei"
)

// Provider placeholders shown when no tariff could be used
const (
	ProviderUnknown      = "Unknown Provider"
	ProviderUnnamed      = "Unknown Utility"
	ProviderFetchFailure = "API Error (Using Default)"
)

// Trigger names what started a computation
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerManual   Trigger = "manual"
	TriggerLocation Trigger = "location"
	TriggerPoll     Trigger = "poll"
	TriggerConfig   Trigger = "config"
)

// Settings are the user adjustable inputs of a computation
type Settings struct {
	Location      string                  `json:"location"`
	Appliance     engine.ApplianceProfile `json:"appliance"`
	SolarPriority bool                    `json:"solar_priority"`
}

// Snapshot is one complete, immutable advice result
type Snapshot struct {
	Generation        uint64                  `json:"generation"`
	Trigger           Trigger                 `json:"trigger"`
	Location          engine.LocationProfile  `json:"location"`
	Provider          string                  `json:"provider"`
	ScheduleAvailable bool                    `json:"schedule_available"`
	Forecast          engine.ForecastResult   `json:"forecast"`
	Advice            engine.Advice           `json:"advice"`
	CostPerLoad       float64                 `json:"cost_per_load"`
	Appliance         engine.ApplianceProfile `json:"appliance"`
	SolarPriority     bool                    `json:"solar_priority"`
	ComputedAt        time.Time               `json:"computed_at"`
}

// Inputs to Evaluate. Schedule is nil when the fetch failed or found nothing;
// FetchErr tells the two apart for the provider placeholder.
type Inputs struct {
	Schedule      *engine.RateSchedule
	FetchErr      error
	Location      engine.LocationProfile
	Appliance     engine.ApplianceProfile
	SolarPriority bool
	Now           time.Time
}

// Evaluate runs the resolver, forecast, classifier and cost estimator over in
func Evaluate(in Inputs) Snapshot {
	forecast := engine.BuildForecast(in.Schedule, in.Now)
	advice := engine.ClassifyForecast(forecast, in.SolarPriority, in.Now, in.Appliance)

	return Snapshot{
		Location:          in.Location,
		Provider:          providerName(in.Schedule, in.FetchErr),
		ScheduleAvailable: in.Schedule != nil,
		Forecast:          forecast,
		Advice:            advice,
		CostPerLoad:       engine.EstimateCost(in.Appliance, forecast.CurrentPrice, in.Location.WaterPricePerGal),
		Appliance:         in.Appliance,
		SolarPriority:     in.SolarPriority,
		ComputedAt:        in.Now,
	}
}

func providerName(s *engine.RateSchedule, fetchErr error) string {
	switch {
	case s != nil && s.ProviderName != "":
		return s.ProviderName
	case s != nil:
		return ProviderUnnamed
	case fetchErr == nil, errors.Is(fetchErr, openei.ErrNoTariff):
		return ProviderUnknown
	default:
		return ProviderFetchFailure
	}
}
