package openei

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/awaistahir/smart-laundry/internal/engine"
)

// ParseTariff normalizes one utility_rates item into a RateSchedule.
//
// Only a document that is not a JSON object is an error. Missing or malformed
// tables, periods or rates are kept as gaps (nil rows, -1 period indexes, nil
// rates) so that the affected lookups fall back on their own while the rest of
// the schedule stays usable.
func ParseTariff(raw json.RawMessage) (*engine.RateSchedule, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding tariff: %w", err)
	}
	if fields == nil {
		return nil, ErrNoTariff
	}

	var name string
	_ = json.Unmarshal(fields["name"], &name)

	return &engine.RateSchedule{
		ProviderName: strings.TrimSpace(name),
		WeekdaySlots: parseSlots(fields["energyweekdayschedule"]),
		WeekendSlots: parseSlots(fields["energyweekendschedule"]),
		Periods:      parsePeriods(fields["energyratestructure"]),
	}, nil
}

func parseSlots(raw json.RawMessage) [][]int {
	var months []json.RawMessage
	if err := json.Unmarshal(raw, &months); err != nil {
		return nil
	}

	slots := make([][]int, len(months))
	for m, rawMonth := range months {
		var hours []any
		if err := json.Unmarshal(rawMonth, &hours); err != nil {
			continue
		}
		row := make([]int, len(hours))
		for h, v := range hours {
			row[h] = periodIndex(v)
		}
		slots[m] = row
	}
	return slots
}

func periodIndex(v any) int {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return -1
	}
	return int(f)
}

func parsePeriods(raw json.RawMessage) [][]engine.RateTier {
	var periods []json.RawMessage
	if err := json.Unmarshal(raw, &periods); err != nil {
		return nil
	}

	out := make([][]engine.RateTier, len(periods))
	for p, rawPeriod := range periods {
		var tiers []map[string]any
		if err := json.Unmarshal(rawPeriod, &tiers); err != nil {
			continue
		}
		rt := make([]engine.RateTier, len(tiers))
		for i, tier := range tiers {
			rt[i] = engine.RateTier{
				Rate: number(tier["rate"]),
				Max:  number(tier["max"]),
			}
			if unit, ok := tier["unit"].(string); ok {
				rt[i].Unit = unit
			}
		}
		out[p] = rt
	}
	return out
}

// number accepts JSON numbers and numeric strings
func number(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
