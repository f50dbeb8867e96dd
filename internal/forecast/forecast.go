// Package forecast projects a user's spending trend forward using an
// ordinary least-squares fit of expense amount against elapsed days.
package forecast

import (
	"errors"
	"math"
	"sort"
	"time"

	"smart-budgeter/internal/models"
)

var (
	// ErrInsufficientData is returned when the history has fewer than two
	// records. It is informational, not a failure.
	ErrInsufficientData = errors.New("not enough data for prediction")
	// ErrPredictionFailed is returned when the fit produced no usable number.
	ErrPredictionFailed = errors.New("prediction failed")
)

// HorizonDays is how far past the latest expense the forecast projects.
const HorizonDays = 30

// Forecast is a point estimate of spend at TargetDay days after the
// earliest recorded expense.
type Forecast struct {
	Amount    float64
	Slope     float64
	Intercept float64
	TargetDay float64
	// Degenerate is set when every record falls on the same day. The slope
	// is undefined there, so Amount is the mean of the recorded amounts.
	Degenerate bool
}

// Predict fits a linear trend to the history and projects it HorizonDays
// past the most recent record. The history does not need to be sorted.
func Predict(history []models.Expense) (*Forecast, error) {
	if len(history) < 2 {
		return nil, ErrInsufficientData
	}

	sorted := make([]models.Expense, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	earliest := dayOf(sorted[0].Date)
	x := make([]float64, len(sorted))
	y := make([]float64, len(sorted))
	for i, e := range sorted {
		x[i] = math.Floor(dayOf(e.Date).Sub(earliest).Hours() / 24)
		y[i] = e.Amount
	}

	n := float64(len(sorted))
	var xBar, yBar float64
	for i := range x {
		xBar += x[i]
		yBar += y[i]
	}
	xBar /= n
	yBar /= n

	var sxx, sxy float64
	for i := range x {
		dx := x[i] - xBar
		sxx += dx * dx
		sxy += dx * (y[i] - yBar)
	}

	targetDay := x[len(x)-1] + HorizonDays

	// Zero variance in the day offsets: slope is undefined, fall back to
	// the mean amount.
	if sxx == 0 {
		return &Forecast{
			Amount:     yBar,
			Intercept:  yBar,
			TargetDay:  targetDay,
			Degenerate: true,
		}, nil
	}

	slope := sxy / sxx
	intercept := yBar - slope*xBar
	amount := slope*targetDay + intercept

	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, ErrPredictionFailed
	}

	return &Forecast{
		Amount:    amount,
		Slope:     slope,
		Intercept: intercept,
		TargetDay: targetDay,
	}, nil
}

// dayOf truncates a timestamp to its calendar day.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
