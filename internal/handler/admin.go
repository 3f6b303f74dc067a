package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/questionnaire/internal/model"
)

type adminUserRow struct {
	ID          int64          `json:"id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	IDNumber    string         `json:"idnumber"`
	Role        model.UserRole `json:"role"`
	Active      bool           `json:"active"`
}

type adminUsersPage struct {
	CSRFToken string         `json:"csrf_token"`
	Users     []adminUserRow `json:"users"`
}

func (h *Handler) handleAdminUsersPage(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		slog.Error("failed to list users", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	page := adminUsersPage{CSRFToken: model.CSRFTokenFromContext(r.Context())}
	for _, u := range users {
		page.Users = append(page.Users, adminUserRow{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			IDNumber:    u.IDNumber,
			Role:        u.Role,
			Active:      u.Active,
		})
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	displayName := r.FormValue("display_name")
	idnumber := r.FormValue("idnumber")
	password := r.FormValue("password")
	role := r.FormValue("role")

	if username == "" || password == "" {
		http.Error(w, "username and password required", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if displayName == "" {
		displayName = username
	}

	userID, err := h.store.CreateUser(model.User{
		Username:     username,
		DisplayName:  displayName,
		IDNumber:     idnumber,
		PasswordHash: string(hash),
		Role:         model.UserRole(role),
		Active:       true,
	})
	if err != nil {
		slog.Error("failed to create user", "error", err)
		http.Error(w, "failed to create user: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Optional immediate enrolment on creation.
	if courseStr := r.FormValue("course_id"); courseStr != "" {
		courseID, err := strconv.ParseInt(courseStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid course ID", http.StatusBadRequest)
			return
		}
		if err := h.store.Enrol(courseID, userID); err != nil {
			slog.Error("failed to enrol user", "user_id", userID, "course_id", courseID, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt64(r, "userID")
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.store.ToggleUserActive(id); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// A deactivated user should not stay logged in.
	user, err := h.store.GetUserByID(id)
	if err == nil && user != nil && !user.Active {
		if err := h.store.DeleteUserSessions(id); err != nil {
			slog.Error("failed to revoke sessions", "id", id, "error", err)
		}
	}

	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (h *Handler) handleEnrolUser(w http.ResponseWriter, r *http.Request) {
	userID, err := urlParamInt64(r, "userID")
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}
	courseID, err := strconv.ParseInt(r.FormValue("course_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid course ID", http.StatusBadRequest)
		return
	}

	if err := h.store.Enrol(courseID, userID); err != nil {
		slog.Error("failed to enrol user", "user_id", userID, "course_id", courseID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}
