package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"smart-budgeter/internal/forecast"
	"smart-budgeter/internal/models"
)

// ExpenseItem represents an expense row in the dashboard table.
type ExpenseItem struct {
	Date          string
	Category      string
	Amount        float64
	CategoryStyle CategoryStyle
}

// ChartBar represents one bar of the category breakdown chart.
type ChartBar struct {
	Category      string
	Total         float64
	Count         int
	Percentage    float64
	CategoryStyle CategoryStyle
}

// ForecastView holds the rendered forecast figures.
type ForecastView struct {
	Amount     float64
	Degenerate bool
}

// DashboardViewModel is the data passed to the dashboard template.
type DashboardViewModel struct {
	Username     string
	Categories   []CategoryDef
	Today        string
	Expenses     []ExpenseItem
	Total        float64
	Chart        []ChartBar
	Forecast     *ForecastView
	ForecastNote string
	Error        string
	Success      string
}

// Dashboard renders the dashboard: expense form, history table, total,
// category breakdown and the next-month forecast.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, "", "")
}

// AddExpense handles the expense entry form submission.
func (h *Handlers) AddExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderDashboard(w, r, "Invalid form submission", "")
		return
	}

	date, err := time.Parse("2006-01-02", r.FormValue("date"))
	if err != nil {
		h.renderDashboard(w, r, "A valid date is required", "")
		return
	}

	category := r.FormValue("category")
	if !models.ValidCategory(category) {
		h.renderDashboard(w, r, "Unknown category", "")
		return
	}

	// The store does no validation of its own, so the amount is checked
	// here before anything is written.
	amount, err := strconv.ParseFloat(r.FormValue("amount"), 64)
	if err != nil || amount <= 0 {
		h.renderDashboard(w, r, "Amount must be a positive number", "")
		return
	}

	if err := h.db.AddExpense(user.Username, date, category, amount); err != nil {
		h.logger.Error().Err(err).Str("username", user.Username).Msg("failed to add expense")
		h.renderDashboard(w, r, "Could not save the expense. Please try again.", "")
		return
	}

	h.renderDashboard(w, r, "", "Expense added successfully!")
}

func (h *Handlers) renderDashboard(w http.ResponseWriter, r *http.Request, errMsg, successMsg string) {
	user := GetUserFromContext(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	history, err := h.db.ExpenseHistory(user.Username)
	if err != nil {
		h.logger.Error().Err(err).Str("username", user.Username).Msg("failed to load expense history")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	vm := DashboardViewModel{
		Username:   user.Username,
		Categories: categories,
		Today:      time.Now().Format("2006-01-02"),
		Error:      errMsg,
		Success:    successMsg,
	}

	for _, e := range history {
		vm.Total += e.Amount
		vm.Expenses = append(vm.Expenses, ExpenseItem{
			Date:          e.Date.Format("2006-01-02"),
			Category:      e.Category,
			Amount:        e.Amount,
			CategoryStyle: getCategoryStyle(e.Category),
		})
	}

	totals, err := h.db.CategoryTotals(user.Username)
	if err != nil {
		h.logger.Error().Err(err).Str("username", user.Username).Msg("failed to load category totals")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	vm.Chart = buildChart(totals)

	vm.Forecast, vm.ForecastNote = h.buildForecast(history)

	h.render(w, r, "dashboard.html", vm)
}

// buildChart scales the category totals against the largest one so the
// template can render each row as a proportional bar.
func buildChart(totals []models.CategoryTotal) []ChartBar {
	var max float64
	for _, ct := range totals {
		if ct.Total > max {
			max = ct.Total
		}
	}

	bars := make([]ChartBar, 0, len(totals))
	for _, ct := range totals {
		percentage := 0.0
		if max > 0 {
			percentage = (ct.Total / max) * 100
		}
		bars = append(bars, ChartBar{
			Category:      ct.Category,
			Total:         ct.Total,
			Count:         ct.Count,
			Percentage:    percentage,
			CategoryStyle: getCategoryStyle(ct.Category),
		})
	}
	return bars
}

func (h *Handlers) buildForecast(history []models.Expense) (*ForecastView, string) {
	f, err := forecast.Predict(history)
	switch {
	case errors.Is(err, forecast.ErrInsufficientData):
		return nil, "Not enough data for prediction"
	case errors.Is(err, forecast.ErrPredictionFailed):
		return nil, "Could not compute a forecast from the recorded expenses"
	case err != nil:
		h.logger.Error().Err(err).Msg("forecast failed")
		return nil, "Could not compute a forecast from the recorded expenses"
	}
	return &ForecastView{Amount: f.Amount, Degenerate: f.Degenerate}, ""
}
