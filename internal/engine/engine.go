package engine

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// FallbackPrice is used whenever a price cannot be resolved from a schedule
const FallbackPrice = 0.15

const (
	HistoryHours   = 24
	ForwardHorizon = 12
)

var (
	ErrNoSchedule        = errors.New("no rate schedule available")
	ErrMalformedSchedule = errors.New("malformed rate schedule")
)

// ResolvePrice returns the price per kWh in effect at t. It never fails: an absent
// schedule or any bad lookup yields FallbackPrice.
func ResolvePrice(s *RateSchedule, t time.Time) float64 {
	price, err := LookupPrice(s, t)
	if err != nil {
		return FallbackPrice
	}
	return price
}

// LookupPrice resolves the price at t and reports why it could not.
// t is read as local wall-clock time; minutes and seconds are ignored.
func LookupPrice(s *RateSchedule, t time.Time) (float64, error) {
	if s == nil {
		return 0, ErrNoSchedule
	}

	month := int(t.Month()) - 1
	hour := t.Hour()

	slots := s.WeekdaySlots
	if isWeekend(t) {
		slots = s.WeekendSlots
	}

	if month >= len(slots) {
		return 0, fmt.Errorf("%w: no entry for month %d", ErrMalformedSchedule, month+1)
	}
	if hour >= len(slots[month]) {
		return 0, fmt.Errorf("%w: no entry for month %d hour %d", ErrMalformedSchedule, month+1, hour)
	}

	period := slots[month][hour]
	if period < 0 || period >= len(s.Periods) || len(s.Periods[period]) == 0 {
		return 0, fmt.Errorf("%w: period %d not defined", ErrMalformedSchedule, period)
	}

	rate := s.Periods[period][0].Rate
	if rate == nil {
		return 0, fmt.Errorf("%w: period %d has no rate", ErrMalformedSchedule, period)
	}
	if math.IsNaN(*rate) || math.IsInf(*rate, 0) || *rate < 0 {
		return 0, fmt.Errorf("%w: period %d rate %v out of range", ErrMalformedSchedule, period, *rate)
	}

	return *rate, nil
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// BuildForecast reconstructs the trailing 24 hours of prices ending at now and
// finds the cheapest of the next ForwardHorizon hourly checkpoints. Hours are
// stepped on the wall clock of now's location, so a DST change neither repeats
// nor skips an hour of the schedule.
func BuildForecast(s *RateSchedule, now time.Time) ForecastResult {
	var res ForecastResult
	wall := wallClock(now)

	for i := 0; i < HistoryHours; i++ {
		t := wall.Add(-time.Duration(HistoryHours-1-i) * time.Hour)
		res.History[i] = ResolvePrice(s, t)
	}
	res.CurrentPrice = res.History[HistoryHours-1]

	// Strict < keeps the earliest of equal minima
	for i := 1; i <= ForwardHorizon; i++ {
		t := wall.Add(time.Duration(i) * time.Hour)
		price := ResolvePrice(s, t)
		if i == 1 || price < res.BestFuturePrice {
			res.BestFutureTime = inLocation(t, now.Location())
			res.BestFuturePrice = price
		}
	}

	return res
}

// wallClock keeps the date and clock reading of t in a zone without DST
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// inLocation reads a wallClock value back as a time in loc
func inLocation(wall time.Time, loc *time.Location) time.Time {
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)
}

// FlatHistory is the history shown before any schedule has been evaluated
func FlatHistory() [HistoryHours]float64 {
	var h [HistoryHours]float64
	for i := range h {
		h[i] = FallbackPrice
	}
	return h
}
