package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/pavelanni/questionnaire/internal/model"
)

// CreateUser inserts a new user.
func (s *Store) CreateUser(u model.User) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO users (username, display_name, idnumber, password_hash, role, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.DisplayName, u.IDNumber, u.PasswordHash, u.Role, u.Active, time.Now(),
	)
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username, "role", u.Role)
	return id, nil
}

func (s *Store) scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.IDNumber, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, display_name, idnumber, password_hash, role, active, created_at
		 FROM users WHERE username = ?`, username,
	))
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(id int64) (*model.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, display_name, idnumber, password_hash, role, active, created_at
		 FROM users WHERE id = ?`, id,
	))
}

// GetUserByIDNumber returns the user whose institutional identifier matches
// exactly. Matching is case-sensitive.
func (s *Store) GetUserByIDNumber(idnumber string) (*model.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, display_name, idnumber, password_hash, role, active, created_at
		 FROM users WHERE idnumber = ?`, idnumber,
	))
}

// ListUsers returns all users.
func (s *Store) ListUsers() ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT id, username, display_name, idnumber, password_hash, role, active, created_at
		 FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.IDNumber, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ToggleUserActive flips the active flag on a user.
func (s *Store) ToggleUserActive(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET active = NOT active WHERE id = ?`, id)
	return err
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// Enrol adds a user to a course. Enrolling twice is not an error.
func (s *Store) Enrol(courseID, userID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO enrolments (course_id, user_id) VALUES (?, ?)
		 ON CONFLICT(course_id, user_id) DO NOTHING`,
		courseID, userID,
	)
	return err
}

// Unenrol removes a user from a course.
func (s *Store) Unenrol(courseID, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM enrolments WHERE course_id = ? AND user_id = ?`, courseID, userID)
	return err
}

// IsEnrolled reports whether the user is enrolled in the course.
func (s *Store) IsEnrolled(courseID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM enrolments WHERE course_id = ? AND user_id = ?`,
		courseID, userID,
	).Scan(&n)
	return n > 0, err
}
