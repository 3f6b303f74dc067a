package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/questionnaire/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		idnumber TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS enrolments (
		course_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		PRIMARY KEY (course_id, user_id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS questionnaires (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id INTEGER NOT NULL DEFAULT 1,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		questionnaire_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		required INTEGER NOT NULL DEFAULT 0,
		max_stars INTEGER NOT NULL DEFAULT 0,
		precise INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (questionnaire_id) REFERENCES questionnaires(id)
	);

	CREATE TABLE IF NOT EXISTS question_choices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		questionnaire_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		submitted_at DATETIME NOT NULL,
		UNIQUE (questionnaire_id, user_id),
		FOREIGN KEY (questionnaire_id) REFERENCES questionnaires(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		response_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		choice_id INTEGER NOT NULL DEFAULT 0,
		value INTEGER NOT NULL DEFAULT 0,
		UNIQUE (response_id, question_id, choice_id),
		FOREIGN KEY (response_id) REFERENCES responses(id)
	);

	CREATE TABLE IF NOT EXISTS personal_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		questionnaire_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		idnumber TEXT NOT NULL,
		filename TEXT NOT NULL,
		filearea TEXT NOT NULL DEFAULT 'personalfile',
		time_created DATETIME NOT NULL,
		time_modified DATETIME NOT NULL,
		UNIQUE (questionnaire_id, user_id),
		FOREIGN KEY (questionnaire_id) REFERENCES questionnaires(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateQuestionnaire creates a questionnaire instance.
func (s *Store) CreateQuestionnaire(q model.Questionnaire) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO questionnaires (course_id, name) VALUES (?, ?)`,
		q.CourseID, q.Name,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetQuestionnaire returns a questionnaire by ID.
func (s *Store) GetQuestionnaire(id int64) (model.Questionnaire, error) {
	var q model.Questionnaire
	err := s.db.QueryRow(
		`SELECT id, course_id, name FROM questionnaires WHERE id = ?`, id,
	).Scan(&q.ID, &q.CourseID, &q.Name)
	return q, err
}

// ListQuestionnaires returns all questionnaires.
func (s *Store) ListQuestionnaires() ([]model.Questionnaire, error) {
	rows, err := s.db.Query(`SELECT id, course_id, name FROM questionnaires ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var qs []model.Questionnaire
	for rows.Next() {
		var q model.Questionnaire
		if err := rows.Scan(&q.ID, &q.CourseID, &q.Name); err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// InsertQuestion stores a question and its choices.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO questions (questionnaire_id, kind, name, content, required, max_stars, precise, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.QuestionnaireID, q.Kind, q.Name, q.Content, q.Required, q.MaxStars, q.Precision, q.Position,
	)
	if err != nil {
		return 0, err
	}
	questionID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, c := range q.Choices {
		_, err := tx.Exec(
			`INSERT INTO question_choices (question_id, content, position) VALUES (?, ?, ?)`,
			questionID, c.Content, i,
		)
		if err != nil {
			return 0, err
		}
	}

	return questionID, tx.Commit()
}

// GetQuestion returns a question with its choices.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	var q model.Question
	err := s.db.QueryRow(
		`SELECT id, questionnaire_id, kind, name, content, required, max_stars, precise, position
		 FROM questions WHERE id = ?`, id,
	).Scan(&q.ID, &q.QuestionnaireID, &q.Kind, &q.Name, &q.Content, &q.Required, &q.MaxStars, &q.Precision, &q.Position)
	if err != nil {
		return q, err
	}
	q.Choices, err = s.listChoices(q.ID)
	return q, err
}

// ListQuestions returns all questions of a questionnaire in position order,
// each with its choices.
func (s *Store) ListQuestions(questionnaireID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT id, questionnaire_id, kind, name, content, required, max_stars, precise, position
		 FROM questions WHERE questionnaire_id = ? ORDER BY position, id`, questionnaireID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuestionnaireID, &q.Kind, &q.Name, &q.Content, &q.Required, &q.MaxStars, &q.Precision, &q.Position); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].Choices, err = s.listChoices(questions[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return questions, nil
}

func (s *Store) listChoices(questionID int64) ([]model.Choice, error) {
	rows, err := s.db.Query(
		`SELECT id, question_id, content, position FROM question_choices
		 WHERE question_id = ? ORDER BY position, id`, questionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var choices []model.Choice
	for rows.Next() {
		var c model.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Content, &c.Position); err != nil {
			return nil, err
		}
		choices = append(choices, c)
	}
	return choices, rows.Err()
}

// SaveAnswer upserts one stored value for a (question, choice) pair in the
// user's response, creating the response row on first write.
func (s *Store) SaveAnswer(questionnaireID, userID, questionID, choiceID int64, value int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var responseID int64
	err = tx.QueryRow(
		`SELECT id FROM responses WHERE questionnaire_id = ? AND user_id = ?`,
		questionnaireID, userID,
	).Scan(&responseID)
	if err == sql.ErrNoRows {
		res, err := tx.Exec(
			`INSERT INTO responses (questionnaire_id, user_id, submitted_at) VALUES (?, ?, ?)`,
			questionnaireID, userID, time.Now(),
		)
		if err != nil {
			return err
		}
		responseID, err = res.LastInsertId()
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO answers (response_id, question_id, choice_id, value)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(response_id, question_id, choice_id) DO UPDATE SET value = ?`,
		responseID, questionID, choiceID, value, value,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`UPDATE responses SET submitted_at = ? WHERE id = ?`, time.Now(), responseID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetResponse returns the user's stored response for a questionnaire, or
// nil if nothing was stored yet.
func (s *Store) GetResponse(questionnaireID, userID int64) (*model.Response, error) {
	var resp model.Response
	err := s.db.QueryRow(
		`SELECT id, questionnaire_id, user_id, submitted_at FROM responses
		 WHERE questionnaire_id = ? AND user_id = ?`, questionnaireID, userID,
	).Scan(&resp.ID, &resp.QuestionnaireID, &resp.UserID, &resp.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT question_id, choice_id, value FROM answers WHERE response_id = ? ORDER BY id`, resp.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp.Answers = make(map[int64]map[int64]int)
	for rows.Next() {
		var questionID, choiceID int64
		var value int
		if err := rows.Scan(&questionID, &choiceID, &value); err != nil {
			return nil, err
		}
		if resp.Answers[questionID] == nil {
			resp.Answers[questionID] = make(map[int64]int)
		}
		resp.Answers[questionID][choiceID] = value
	}
	return &resp, rows.Err()
}

// ListResponses returns all responses for a questionnaire.
func (s *Store) ListResponses(questionnaireID int64) ([]model.Response, error) {
	rows, err := s.db.Query(
		`SELECT user_id FROM responses WHERE questionnaire_id = ? ORDER BY id`, questionnaireID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var userIDs []int64
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var responses []model.Response
	for _, uid := range userIDs {
		resp, err := s.GetResponse(questionnaireID, uid)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			responses = append(responses, *resp)
		}
	}
	return responses, nil
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}
