package model

import (
	"context"
	"fmt"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// CanManage reports whether the role may manage questionnaires and
// personal files.
func (r UserRole) CanManage() bool {
	return r == UserRoleTeacher || r == UserRoleAdmin
}

// User represents a system user. IDNumber is the institutional student
// identifier that personal-file uploads are matched against.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	IDNumber     string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// QuestionKind identifies a survey question type.
type QuestionKind string

const (
	KindText         QuestionKind = "text"
	KindSingleChoice QuestionKind = "singlechoice"
	KindStarRating   QuestionKind = "starrating"
)

const (
	// MinStars is the smallest configurable star count.
	MinStars = 3
	// MaxStarsLimit is the largest configurable star count.
	MaxStarsLimit = 10
	// DefaultStars is the star count used when none is configured.
	DefaultStars = 5
)

// Questionnaire is a single questionnaire instance within a course. It is
// the administrative scope for questions, responses and personal files.
type Questionnaire struct {
	ID       int64  `json:"id"`
	CourseID int64  `json:"course_id"`
	Name     string `json:"name"`
}

// Question represents one question in a questionnaire.
type Question struct {
	ID              int64        `json:"id"`
	QuestionnaireID int64        `json:"questionnaire_id"`
	Kind            QuestionKind `json:"kind"`
	Name            string       `json:"name"`
	Content         string       `json:"content"`
	Required        bool         `json:"required"`
	// MaxStars is the star count for starrating questions, 3..10.
	MaxStars int `json:"max_stars"`
	// Precision is part of the generic question surface; the starrating
	// kind keeps it hidden and unset.
	Precision int      `json:"precision"`
	Position  int      `json:"position"`
	Choices   []Choice `json:"choices"`
}

// Choice is one sub-row of a question, independently answerable.
type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Content    string `json:"content"`
	Position   int    `json:"position"`
}

// FieldKey returns the stable form field name for one choice of a
// question ("q<questionid>_<choiceid>").
func FieldKey(questionID, choiceID int64) string {
	return fmt.Sprintf("q%d_%d", questionID, choiceID)
}

// Response holds a user's stored answers for one questionnaire.
type Response struct {
	ID              int64
	QuestionnaireID int64
	UserID          int64
	SubmittedAt     time.Time
	// Answers maps question id -> choice id -> stored integer value.
	Answers map[int64]map[int64]int
}

// Value returns the stored value for a (question, choice) pair, 0 when
// nothing was stored.
func (r *Response) Value(questionID, choiceID int64) int {
	if r == nil {
		return 0
	}
	return r.Answers[questionID][choiceID]
}

// PersonalFile is a per-student attachment record. At most one record
// exists per (questionnaire, user); re-imports replace it in place.
type PersonalFile struct {
	ID              int64     `json:"id"`
	QuestionnaireID int64     `json:"questionnaire_id"`
	UserID          int64     `json:"user_id"`
	IDNumber        string    `json:"idnumber"`
	Filename        string    `json:"filename"`
	FileArea        string    `json:"filearea"`
	TimeCreated     time.Time `json:"time_created"`
	TimeModified    time.Time `json:"time_modified"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	Addr          string
	DataDir       string
	Lang          string
	SecureCookies bool
}
