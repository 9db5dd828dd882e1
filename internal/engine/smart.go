package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Price thresholds in currency per kWh
const (
	CheapThreshold     = 0.12
	ExpensiveThreshold = 0.20
)

// Peak solar window, local hours [SolarStartHour, SolarEndHour)
const (
	SolarStartHour = 11
	SolarEndHour   = 15
)

const (
	msgWashNowBest = "Best time to wash is right now."
	msgSolarPeak   = "Solar mode: running on peak sun."
	msgSolarWait   = "Solar mode: wait for 11 AM - 3 PM for max power."
)

// Classify turns the current price and the best upcoming slot into advice.
// savingsKWh is the per-load energy used to quote savings (see ApplianceProfile.SavingsKWh).
// With solarPriority set, only the hour of now matters.
func Classify(currentPrice, bestFuturePrice float64, bestFutureTime time.Time, solarPriority bool, now time.Time, savingsKWh float64) Advice {
	if solarPriority {
		return classifySolar(now)
	}

	var status Status
	switch {
	case currentPrice < CheapThreshold:
		status = StatusWashNow
	case currentPrice > ExpensiveThreshold:
		status = StatusWait
	default:
		status = StatusOKToWash
	}

	return Advice{
		Status:   status,
		Emphasis: status.Emphasis(),
		Message:  savingsMessage(currentPrice, bestFuturePrice, bestFutureTime, savingsKWh),
	}
}

// ClassifyForecast is Classify fed from a ForecastResult
func ClassifyForecast(f ForecastResult, solarPriority bool, now time.Time, appliance ApplianceProfile) Advice {
	return Classify(f.CurrentPrice, f.BestFuturePrice, f.BestFutureTime, solarPriority, now, appliance.SavingsKWh())
}

func classifySolar(now time.Time) Advice {
	if h := now.Hour(); h >= SolarStartHour && h < SolarEndHour {
		return Advice{
			Status:   StatusSolarPower,
			Emphasis: StatusSolarPower.Emphasis(),
			Message:  msgSolarPeak,
		}
	}
	// Waiting for the sun is not as bad as waiting out a price peak
	return Advice{
		Status:   StatusWait,
		Emphasis: EmphasisNeutral,
		Message:  msgSolarWait,
	}
}

// QuotedSavings is the per-load saving the advice message quotes, zero when
// the message quotes none: in solar priority mode or when nothing cheaper is coming.
func QuotedSavings(currentPrice, bestFuturePrice float64, solarPriority bool, savingsKWh float64) float64 {
	if solarPriority || bestFuturePrice >= currentPrice {
		return 0
	}
	return Savings(currentPrice, bestFuturePrice, savingsKWh)
}

func savingsMessage(currentPrice, bestFuturePrice float64, bestFutureTime time.Time, savingsKWh float64) string {
	if bestFuturePrice >= currentPrice {
		return msgWashNowBest
	}
	return fmt.Sprintf("Tip: wait until %s to save $%s per load.",
		bestFutureTime.Format("03 PM"), FormatMoney(Savings(currentPrice, bestFuturePrice, savingsKWh)))
}

// Savings is the per-load saving of running at bestFuturePrice instead of currentPrice
func Savings(currentPrice, bestFuturePrice, kwh float64) float64 {
	return (currentPrice - bestFuturePrice) * kwh
}

// FormatMoney renders an amount rounded to cents
func FormatMoney(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}
