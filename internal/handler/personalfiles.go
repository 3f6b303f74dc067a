package handler

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	appI18n "github.com/pavelanni/questionnaire/internal/i18n"
	"github.com/pavelanni/questionnaire/internal/model"
)

const flashCookieName = "notifications"

// maxUploadBytes bounds one upload batch.
const maxUploadBytes = 50 << 20

// flash messages survive exactly one redirect: set on the mutating action,
// consumed by the next management-view GET.
func (h *Handler) setFlash(w http.ResponseWriter, messages []string) {
	if len(messages) == 0 {
		return
	}
	data, err := json.Marshal(messages)
	if err != nil {
		slog.Error("marshal notifications", "error", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.URLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
}

func (h *Handler) takeFlash(w http.ResponseWriter, r *http.Request) []string {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	data, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var messages []string
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil
	}
	return messages
}

type personalFileRow struct {
	ID           int64     `json:"id"`
	IDNumber     string    `json:"idnumber"`
	DisplayName  string    `json:"display_name"`
	Filename     string    `json:"filename"`
	TimeModified time.Time `json:"time_modified"`
	DeleteURL    string    `json:"delete_url"`
}

type personalFilesPage struct {
	Questionnaire model.Questionnaire `json:"questionnaire"`
	UploadURL     string              `json:"upload_url"`
	UploadHelp    string              `json:"upload_help"`
	CSRFToken     string              `json:"csrf_token"`
	Files         []personalFileRow   `json:"files"`
	EmptyMessage  string              `json:"empty_message,omitempty"`
	Notifications []string            `json:"notifications,omitempty"`
}

func (h *Handler) personalFilesPath(qnrID int64) string {
	return "/questionnaire/" + strconv.FormatInt(qnrID, 10) + "/personalfiles"
}

// handlePersonalFilesPage renders the management view: the upload form
// descriptor plus the current records sorted by idnumber.
func (h *Handler) handlePersonalFilesPage(w http.ResponseWriter, r *http.Request) {
	qnr, ok := h.questionnaireFromRequest(w, r)
	if !ok {
		return
	}

	files, err := h.store.ListPersonalFiles(qnr.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page := personalFilesPage{
		Questionnaire: qnr,
		UploadURL:     h.personalFilesPath(qnr.ID) + "/upload",
		UploadHelp:    appI18n.T(r.Context(), "PersonalFileUploadHelp"),
		CSRFToken:     model.CSRFTokenFromContext(r.Context()),
		Notifications: h.takeFlash(w, r),
	}

	for _, f := range files {
		row := personalFileRow{
			ID:           f.ID,
			IDNumber:     f.IDNumber,
			Filename:     f.Filename,
			TimeModified: f.TimeModified,
			DeleteURL:    h.personalFilesPath(qnr.ID) + "/" + strconv.FormatInt(f.ID, 10) + "/delete",
		}
		user, err := h.store.GetUserByID(f.UserID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if user != nil {
			row.DisplayName = user.DisplayName
		}
		page.Files = append(page.Files, row)
	}
	if len(page.Files) == 0 {
		page.EmptyMessage = appI18n.T(r.Context(), "PersonalFileNoFiles")
	}

	writeJSON(w, http.StatusOK, page)
}

// handlePersonalFilesUpload stages the multipart batch, runs the import,
// and redirects back to the management view with status notifications.
func (h *Handler) handlePersonalFilesUpload(w http.ResponseWriter, r *http.Request) {
	qnr, ok := h.questionnaireFromRequest(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "upload too large", http.StatusBadRequest)
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["personalfiles"]) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}

	draftID := h.files.NewDraft()
	for _, header := range r.MultipartForm.File["personalfiles"] {
		src, err := header.Open()
		if err != nil {
			http.Error(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		err = h.files.SaveDraft(draftID, header.Filename, src)
		src.Close()
		if err != nil {
			slog.Error("failed to stage upload", "filename", header.Filename, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	result, err := h.personal.Import(qnr, draftID)
	if err != nil {
		slog.Error("personal file import failed", "questionnaire_id", qnr.ID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var messages []string
	if result.Imported > 0 {
		messages = append(messages, appI18n.Tp(r.Context(), "PersonalFileImported", result.Imported))
	}
	for _, ie := range result.Errors {
		messages = append(messages, appI18n.Td(r.Context(), ie.MessageID(),
			map[string]any{"IDNumber": ie.IDNumber}))
	}
	h.setFlash(w, messages)

	http.Redirect(w, r, h.personalFilesPath(qnr.ID), http.StatusSeeOther)
}

// handlePersonalFileDelete removes one record and its stored bytes. The
// delete is scoped to the questionnaire in the URL; ids from other
// questionnaires are ignored.
func (h *Handler) handlePersonalFileDelete(w http.ResponseWriter, r *http.Request) {
	qnr, ok := h.questionnaireFromRequest(w, r)
	if !ok {
		return
	}
	fileID, err := urlParamInt64(r, "fileID")
	if err != nil {
		http.Error(w, "invalid file ID", http.StatusBadRequest)
		return
	}

	deleted, err := h.personal.Delete(qnr.ID, fileID)
	if err != nil {
		slog.Error("personal file delete failed", "file_id", fileID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if deleted {
		h.setFlash(w, []string{appI18n.T(r.Context(), "PersonalFileDeleted")})
	}

	http.Redirect(w, r, h.personalFilesPath(qnr.ID), http.StatusSeeOther)
}

// handlePersonalFileDownload serves a stored file to a manager.
func (h *Handler) handlePersonalFileDownload(w http.ResponseWriter, r *http.Request) {
	qnr, ok := h.questionnaireFromRequest(w, r)
	if !ok {
		return
	}
	fileID, err := urlParamInt64(r, "fileID")
	if err != nil {
		http.Error(w, "invalid file ID", http.StatusBadRequest)
		return
	}

	pf, err := h.store.GetPersonalFileByID(fileID, qnr.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if pf == nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	h.servePersonalFile(w, r, pf)
}
