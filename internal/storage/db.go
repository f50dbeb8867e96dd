package storage

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"smart-budgeter/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

var (
	// ErrUsernameTaken is returned when registering a username that already exists.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
	`); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL REFERENCES users(username),
			date DATETIME NOT NULL,
			category TEXT NOT NULL,
			amount REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_username ON expenses(username)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
			expires_at DATETIME NOT NULL,
			last_activity DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser creates a new user with the given username and password hash.
// Returns ErrUsernameTaken if the username already exists.
func (db *DB) CreateUser(username, passwordHash string) (*models.User, error) {
	_, err := db.conn.Exec(
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, passwordHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "constraint failed: users.username") {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	return db.GetUserByUsername(username)
}

// GetUserByUsername retrieves a user by username.
// Returns ErrNotFound if no such user exists.
func (db *DB) GetUserByUsername(username string) (*models.User, error) {
	row := db.conn.QueryRow(
		"SELECT username, password_hash, created_at FROM users WHERE username = ?",
		username,
	)

	var u models.User
	if err := row.Scan(&u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// AddExpense inserts a new expense for a user. Amount validation is the
// caller's responsibility.
func (db *DB) AddExpense(username string, date time.Time, category string, amount float64) error {
	if date.IsZero() {
		date = time.Now()
	}
	_, err := db.conn.Exec(
		"INSERT INTO expenses (username, date, category, amount) VALUES (?, ?, ?, ?)",
		username, date, category, amount,
	)
	return err
}

// ExpenseHistory retrieves all expenses for a user in insertion order.
// A user with no expenses yields an empty slice, not an error.
func (db *DB) ExpenseHistory(username string) ([]models.Expense, error) {
	rows, err := db.conn.Query(
		"SELECT id, username, date, category, amount FROM expenses WHERE username = ? ORDER BY id",
		username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.Username, &e.Date, &e.Category, &e.Amount); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}

	return expenses, rows.Err()
}

// CategoryTotals returns the per-category spend totals for a user,
// largest total first.
func (db *DB) CategoryTotals(username string) ([]models.CategoryTotal, error) {
	rows, err := db.conn.Query(`
		SELECT category, SUM(amount), COUNT(*)
		FROM expenses
		WHERE username = ?
		GROUP BY category
		ORDER BY SUM(amount) DESC
	`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := []models.CategoryTotal{}
	for rows.Next() {
		var ct models.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total, &ct.Count); err != nil {
			return nil, err
		}
		totals = append(totals, ct)
	}

	return totals, rows.Err()
}

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(token, username string, expiresAt time.Time) error {
	now := time.Now()
	_, err := db.conn.Exec(
		"INSERT INTO sessions (token, username, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, username, expiresAt, now,
	)
	return err
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *models.User
	LastActivity time.Time
	ExpiresAt    time.Time
}

// ValidateSession checks if a session token is valid and returns the associated user.
func (db *DB) ValidateSession(token string) (*models.User, error) {
	info, err := db.ValidateSessionWithInfo(token)
	if err != nil {
		return nil, err
	}
	return info.User, nil
}

// ValidateSessionWithInfo checks if a session token is valid and returns session details.
func (db *DB) ValidateSessionWithInfo(token string) (*SessionInfo, error) {
	row := db.conn.QueryRow(`
		SELECT u.username, u.password_hash, u.created_at, s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.username = u.username
		WHERE s.token = ? AND s.expires_at > CURRENT_TIMESTAMP
	`, token)

	var u models.User
	var lastActivity, expiresAt time.Time
	if err := row.Scan(&u.Username, &u.PasswordHash, &u.CreatedAt, &lastActivity, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &SessionInfo{
		User:         &u,
		LastActivity: lastActivity,
		ExpiresAt:    expiresAt,
	}, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(token string, newExpiresAt time.Time) error {
	now := time.Now()
	_, err := db.conn.Exec(
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		now, newExpiresAt, token,
	)
	return err
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(token string) error {
	_, err := db.conn.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions.
func (db *DB) CleanExpiredSessions() error {
	_, err := db.conn.Exec("DELETE FROM sessions WHERE expires_at <= CURRENT_TIMESTAMP")
	return err
}
