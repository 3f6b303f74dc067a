package handler

import (
	"embed"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/questionnaire/internal/filestore"
	appI18n "github.com/pavelanni/questionnaire/internal/i18n"
	"github.com/pavelanni/questionnaire/internal/model"
	"github.com/pavelanni/questionnaire/internal/personalfile"
	"github.com/pavelanni/questionnaire/internal/question"
	"github.com/pavelanni/questionnaire/internal/store"
)

//go:embed static
var staticFS embed.FS

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	files    *filestore.FileStore
	personal *personalfile.Service
	config   model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, f *filestore.FileStore, cfg model.ServerConfig) *Handler {
	return &Handler{
		store:    s,
		files:    f,
		personal: personalfile.New(s, f),
		config:   cfg,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Handle("/static/*", http.FileServer(http.FS(staticFS)))

	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(h.csrfMiddleware)

		r.Post("/logout", h.handleLogout)

		r.Get("/", h.handleIndex)
		r.Route("/questionnaire/{qnrID}", func(r chi.Router) {
			r.Get("/", h.handleQuestionnaireView)
			r.Post("/answer", h.handleAnswer)
			r.Get("/response", h.handleResponseView)
			r.Get("/mobile", h.handleMobileView)
			r.Get("/myfile", h.handleMyFile)

			r.Route("/personalfiles", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
				r.Get("/", h.handlePersonalFilesPage)
				r.Post("/upload", h.handlePersonalFilesUpload)
				r.Post("/{fileID}/delete", h.handlePersonalFileDelete)
				r.Get("/{fileID}/download", h.handlePersonalFileDownload)
			})
		})

		r.Route("/admin/users", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/", h.handleAdminUsersPage)
			r.Post("/", h.handleCreateUser)
			r.Post("/{userID}/toggle", h.handleToggleUserActive)
			r.Post("/{userID}/enrol", h.handleEnrolUser)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func urlParamInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) questionnaireFromRequest(w http.ResponseWriter, r *http.Request) (model.Questionnaire, bool) {
	id, err := urlParamInt64(r, "qnrID")
	if err != nil {
		http.Error(w, "invalid questionnaire ID", http.StatusBadRequest)
		return model.Questionnaire{}, false
	}
	qnr, err := h.store.GetQuestionnaire(id)
	if err != nil {
		http.Error(w, "questionnaire not found", http.StatusNotFound)
		return model.Questionnaire{}, false
	}
	return qnr, true
}

type indexPage struct {
	Questionnaires []model.Questionnaire `json:"questionnaires"`
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	qnrs, err := h.store.ListQuestionnaires()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, indexPage{Questionnaires: qnrs})
}

type questionnairePage struct {
	Questionnaire model.Questionnaire  `json:"questionnaire"`
	Questions     []model.InputPayload `json:"questions"`
	// PersonalFile points at the current user's attachment when one
	// exists for this questionnaire.
	PersonalFile *personalFileInfo `json:"personal_file,omitempty"`
}

type personalFileInfo struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

func (h *Handler) handleQuestionnaireView(w http.ResponseWriter, r *http.Request) {
	qnr, ok := h.questionnaireFromRequest(w, r)
	if !ok {
		return
	}
	user := model.UserFromContext(r.Context())

	questions, err := h.store.ListQuestions(qnr.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp, err := h.store.GetResponse(qnr.ID, user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page := questionnairePage{Questionnaire: qnr}
	for _, q := range questions {
		sq, ok := question.ForKind(q.Kind)
		if !ok {
			slog.Warn("skipping question of unknown kind", "question_id", q.ID, "kind", q.Kind)
			continue
		}
		page.Questions = append(page.Questions, sq.InputPayload(q, resp, false))
	}

	pf, err := h.store.GetPersonalFile(qnr.ID, user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if pf != nil {
		page.PersonalFile = &personalFileInfo{
			Filename: pf.Filename,
			URL:      "/questionnaire/" + strconv.FormatInt(qnr.ID, 10) + "/myfile",
		}
	}

	writeJSON(w, http.StatusOK, page)
}

// responseFromForm rebuilds a candidate response from submitted form
// values so the question kinds can validate it before anything persists.
func responseFromForm(r *http.Request, qnr model.Questionnaire, userID int64, questions []model.Question) *model.Response {
	resp := &model.Response{
		QuestionnaireID: qnr.ID,
		UserID:          userID,
		Answers:         make(map[int64]map[int64]int),
	}
	for _, q := range questions {
		choiceIDs := []int64{0}
		if len(q.Choices) > 0 {
			choiceIDs = choiceIDs[:0]
			for _, c := range q.Choices {
				choiceIDs = append(choiceIDs, c.ID)
			}
		}
		for _, cid := range choiceIDs {
			raw := r.FormValue(model.FieldKey(q.ID, cid))
			if raw == "" {
				continue
			}
			value, err := strconv.Atoi(raw)
			if err != nil {
				// Non-numeric input invalidates like an out-of-range value.
				value = -1
			}
			if resp.Answers[q.ID] == nil {
				resp.Answers[q.ID] = make(map[int64]int)
			}
			resp.Answers[q.ID][cid] = value
		}
	}
	return resp
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	qnr, ok := h.questionnaireFromRequest(w, r)
	if !ok {
		return
	}
	user := model.UserFromContext(r.Context())

	questions, err := h.store.ListQuestions(qnr.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := responseFromForm(r, qnr, user.ID, questions)

	for _, q := range questions {
		sq, ok := question.ForKind(q.Kind)
		if !ok {
			continue
		}
		if !sq.Valid(q, resp) {
			http.Error(w, appI18n.T(r.Context(), "InvalidResponse"), http.StatusBadRequest)
			return
		}
		if !sq.Complete(q, resp) {
			http.Error(w, appI18n.T(r.Context(), "IncompleteResponse"), http.StatusBadRequest)
			return
		}
	}

	for qid, byChoice := range resp.Answers {
		for cid, value := range byChoice {
			if err := h.store.SaveAnswer(qnr.ID, user.ID, qid, cid, value); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
	}

	http.Redirect(w, r, "/questionnaire/"+strconv.FormatInt(qnr.ID, 10)+"/response", http.StatusSeeOther)
}

type responsePage struct {
	Questionnaire model.Questionnaire    `json:"questionnaire"`
	Questions     []model.DisplayPayload `json:"questions"`
}

func (h *Handler) handleResponseView(w http.ResponseWriter, r *http.Request) {
	qnr, ok := h.questionnaireFromRequest(w, r)
	if !ok {
		return
	}
	user := model.UserFromContext(r.Context())

	questions, err := h.store.ListQuestions(qnr.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp, err := h.store.GetResponse(qnr.ID, user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page := responsePage{Questionnaire: qnr}
	for _, q := range questions {
		sq, ok := question.ForKind(q.Kind)
		if !ok {
			continue
		}
		page.Questions = append(page.Questions, sq.DisplayPayload(q, resp))
	}
	writeJSON(w, http.StatusOK, page)
}

type mobileQuestion struct {
	QuestionID   int64                `json:"question_id"`
	Kind         model.QuestionKind   `json:"kind"`
	IsStarRating bool                 `json:"isstarrating,omitempty"`
	MaxStars     int                  `json:"maxstars,omitempty"`
	Choices      []model.MobileChoice `json:"choices,omitempty"`
	Responses    map[string]int       `json:"responses,omitempty"`
}

type mobilePage struct {
	Questionnaire model.Questionnaire `json:"questionnaire"`
	Questions     []mobileQuestion    `json:"questions"`
}

func (h *Handler) handleMobileView(w http.ResponseWriter, r *http.Request) {
	qnr, ok := h.questionnaireFromRequest(w, r)
	if !ok {
		return
	}
	user := model.UserFromContext(r.Context())

	questions, err := h.store.ListQuestions(qnr.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp, err := h.store.GetResponse(qnr.ID, user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page := mobilePage{Questionnaire: qnr}
	for _, q := range questions {
		sq, ok := question.ForKind(q.Kind)
		if !ok || !sq.SupportsMobile() {
			continue
		}
		mq := mobileQuestion{
			QuestionID: q.ID,
			Kind:       q.Kind,
			Choices:    sq.MobileChoices(q),
			Responses:  sq.MobileResponseData(q, resp),
		}
		if q.Kind == model.KindStarRating {
			mq.IsStarRating = true
			if len(mq.Choices) > 0 {
				mq.MaxStars = mq.Choices[0].Max
			}
		}
		page.Questions = append(page.Questions, mq)
	}
	writeJSON(w, http.StatusOK, page)
}

// handleMyFile serves the current user's own personal file.
func (h *Handler) handleMyFile(w http.ResponseWriter, r *http.Request) {
	qnr, ok := h.questionnaireFromRequest(w, r)
	if !ok {
		return
	}
	user := model.UserFromContext(r.Context())

	pf, err := h.store.GetPersonalFile(qnr.ID, user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if pf == nil {
		http.Error(w, appI18n.T(r.Context(), "PersonalFileNotFound"), http.StatusNotFound)
		return
	}
	h.servePersonalFile(w, r, pf)
}

func (h *Handler) servePersonalFile(w http.ResponseWriter, r *http.Request, pf *model.PersonalFile) {
	f, err := h.files.Open(pf.FileArea, pf.ID, pf.Filename)
	if err != nil {
		slog.Error("stored file missing", "file_id", pf.ID, "filename", pf.Filename, "error", err)
		http.Error(w, "stored file missing", http.StatusNotFound)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pf.Filename+`"`)
	if _, err := io.Copy(w, f); err != nil {
		slog.Error("serve stored file", "file_id", pf.ID, "error", err)
	}
}
