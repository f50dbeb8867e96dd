package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"smart-budgeter/internal/auth"
	"smart-budgeter/internal/models"
	"smart-budgeter/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const templateDir = "../../web/templates"

// HandlersTestSuite drives the handlers against an in-memory database and
// the real templates.
type HandlersTestSuite struct {
	suite.Suite
	db *storage.DB
	h  *Handlers
}

func (suite *HandlersTestSuite) SetupTest() {
	if _, err := os.Stat(templateDir); os.IsNotExist(err) {
		suite.T().Skip("Template directory not found")
	}

	db, err := storage.NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.h = NewHandlers(db, templateDir, false, zerolog.Nop())
}

func (suite *HandlersTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *HandlersTestSuite) registerUser(username, password string) {
	hash, err := auth.HashPassword(password)
	require.NoError(suite.T(), err)
	_, err = suite.db.CreateUser(username, hash)
	require.NoError(suite.T(), err)
}

func (suite *HandlersTestSuite) postForm(handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

// asUser builds a request carrying an authenticated user, the way
// AuthMiddleware would hand it to a protected handler.
func (suite *HandlersTestSuite) asUser(req *http.Request, username string) *http.Request {
	user, err := suite.db.GetUserByUsername(username)
	require.NoError(suite.T(), err)
	return req.WithContext(context.WithValue(req.Context(), UserContextKey, user))
}

func (suite *HandlersTestSuite) TestRegisterSuccess() {
	w := suite.postForm(suite.h.Register, "/register", url.Values{
		"username": {"alice"},
		"password": {"secret123"},
	})

	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "Account created successfully!")

	_, err := suite.db.GetUserByUsername("alice")
	assert.NoError(suite.T(), err)
}

func (suite *HandlersTestSuite) TestRegisterDuplicateUsername() {
	suite.registerUser("alice", "first")

	// Same username with a different password still conflicts
	w := suite.postForm(suite.h.Register, "/register", url.Values{
		"username": {"alice"},
		"password": {"second"},
	})

	assert.Contains(suite.T(), w.Body.String(), "Username already exists")
}

func (suite *HandlersTestSuite) TestLoginSuccessSetsSession() {
	suite.registerUser("alice", "secret123")

	w := suite.postForm(suite.h.Login, "/login", url.Values{
		"username": {"alice"},
		"password": {"secret123"},
	})

	require.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/dashboard", w.Header().Get("Location"))

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(suite.T(), sessionCookie, "login should set a session cookie")
	require.NotEmpty(suite.T(), sessionCookie.Value)

	user, err := suite.db.ValidateSession(sessionCookie.Value)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "alice", user.Username)
}

func (suite *HandlersTestSuite) TestLoginFailureIsIndistinguishable() {
	suite.registerUser("alice", "secret123")

	wrongPassword := suite.postForm(suite.h.Login, "/login", url.Values{
		"username": {"alice"},
		"password": {"nope"},
	})
	unknownUser := suite.postForm(suite.h.Login, "/login", url.Values{
		"username": {"mallory"},
		"password": {"nope"},
	})

	// Both failures render the same message so usernames cannot be probed
	assert.Contains(suite.T(), wrongPassword.Body.String(), "Invalid username or password")
	assert.Contains(suite.T(), unknownUser.Body.String(), "Invalid username or password")
	assert.Equal(suite.T(), wrongPassword.Code, unknownUser.Code)
}

func (suite *HandlersTestSuite) TestLogoutClearsSession() {
	suite.registerUser("alice", "secret123")

	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.db.CreateSession(token, "alice", time.Now().Add(time.Hour)))

	req := httptest.NewRequest("POST", "/logout", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	w := httptest.NewRecorder()
	suite.h.Logout(w, req)

	assert.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/login", w.Header().Get("Location"))

	_, err = suite.db.ValidateSession(token)
	assert.Error(suite.T(), err, "session should be gone after logout")
}

func (suite *HandlersTestSuite) TestAuthMiddlewareRedirectsWithoutSession() {
	protected := suite.h.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.T().Fatal("protected handler must not run without a session")
	}))

	req := httptest.NewRequest("GET", "/dashboard", http.NoBody)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	assert.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/login", w.Header().Get("Location"))
}

func (suite *HandlersTestSuite) TestAuthMiddlewarePassesUser() {
	suite.registerUser("alice", "secret123")
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.db.CreateSession(token, "alice", time.Now().Add(time.Hour)))

	var seen *models.User
	protected := suite.h.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserFromContext(r)
	}))

	req := httptest.NewRequest("GET", "/dashboard", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	require.NotNil(suite.T(), seen)
	assert.Equal(suite.T(), "alice", seen.Username)
}

func (suite *HandlersTestSuite) TestDashboardEmptyState() {
	suite.registerUser("alice", "secret123")

	req := suite.asUser(httptest.NewRequest("GET", "/dashboard", http.NoBody), "alice")
	w := httptest.NewRecorder()
	suite.h.Dashboard(w, req)

	body := w.Body.String()
	assert.Contains(suite.T(), body, "No expenses added yet!")
	assert.Contains(suite.T(), body, "Not enough data for prediction")
}

func (suite *HandlersTestSuite) TestAddExpenseAndSummary() {
	suite.registerUser("alice", "secret123")

	form := url.Values{
		"date":     {"2026-03-10"},
		"category": {"Food"},
		"amount":   {"12.50"},
	}
	req := httptest.NewRequest("POST", "/expenses", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = suite.asUser(req, "alice")
	w := httptest.NewRecorder()
	suite.h.AddExpense(w, req)

	body := w.Body.String()
	assert.Contains(suite.T(), body, "Expense added successfully!")
	assert.Contains(suite.T(), body, "$12.50")

	history, err := suite.db.ExpenseHistory("alice")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), history, 1)
	assert.Equal(suite.T(), "Food", history[0].Category)
	assert.Equal(suite.T(), 12.50, history[0].Amount)
}

func (suite *HandlersTestSuite) TestAddExpenseRejectsNonPositiveAmount() {
	suite.registerUser("alice", "secret123")

	for _, amount := range []string{"0", "-5", "abc", ""} {
		form := url.Values{
			"date":     {"2026-03-10"},
			"category": {"Food"},
			"amount":   {amount},
		}
		req := httptest.NewRequest("POST", "/expenses", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req = suite.asUser(req, "alice")
		w := httptest.NewRecorder()
		suite.h.AddExpense(w, req)

		assert.Contains(suite.T(), w.Body.String(), "Amount must be a positive number",
			"amount %q should be rejected", amount)
	}

	history, err := suite.db.ExpenseHistory("alice")
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), history, "nothing should be persisted for invalid amounts")
}

func (suite *HandlersTestSuite) TestAddExpenseRejectsUnknownCategory() {
	suite.registerUser("alice", "secret123")

	form := url.Values{
		"date":     {"2026-03-10"},
		"category": {"Yachts"},
		"amount":   {"10"},
	}
	req := httptest.NewRequest("POST", "/expenses", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = suite.asUser(req, "alice")
	w := httptest.NewRecorder()
	suite.h.AddExpense(w, req)

	assert.Contains(suite.T(), w.Body.String(), "Unknown category")
}

func (suite *HandlersTestSuite) TestDashboardShowsForecast() {
	suite.registerUser("alice", "secret123")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(suite.T(), suite.db.AddExpense("alice", base, "Food", 50))
	require.NoError(suite.T(), suite.db.AddExpense("alice", base.AddDate(0, 0, 2), "Transport", 15))
	require.NoError(suite.T(), suite.db.AddExpense("alice", base.AddDate(0, 0, 4), "Shopping", 100))

	req := suite.asUser(httptest.NewRequest("GET", "/dashboard", http.NoBody), "alice")
	w := httptest.NewRecorder()
	suite.h.Dashboard(w, req)

	body := w.Body.String()
	// OLS over (0,50) (2,15) (4,100) projected to day 34
	assert.Contains(suite.T(), body, "$455.00")
	assert.Contains(suite.T(), body, "Total Expenses: <strong>$165.00")
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
