package store

import (
	"database/sql"
	"time"

	"github.com/pavelanni/questionnaire/internal/model"
)

// GetPersonalFile returns the personal-file record for a (questionnaire,
// user) pair, or nil when none exists.
func (s *Store) GetPersonalFile(questionnaireID, userID int64) (*model.PersonalFile, error) {
	return s.scanPersonalFile(s.db.QueryRow(
		`SELECT id, questionnaire_id, user_id, idnumber, filename, filearea, time_created, time_modified
		 FROM personal_files WHERE questionnaire_id = ? AND user_id = ?`,
		questionnaireID, userID,
	))
}

// GetPersonalFileByID returns a record by id scoped to a questionnaire, or
// nil when the record does not exist or belongs to another questionnaire.
func (s *Store) GetPersonalFileByID(id, questionnaireID int64) (*model.PersonalFile, error) {
	return s.scanPersonalFile(s.db.QueryRow(
		`SELECT id, questionnaire_id, user_id, idnumber, filename, filearea, time_created, time_modified
		 FROM personal_files WHERE id = ? AND questionnaire_id = ?`,
		id, questionnaireID,
	))
}

func (s *Store) scanPersonalFile(row *sql.Row) (*model.PersonalFile, error) {
	var f model.PersonalFile
	err := row.Scan(&f.ID, &f.QuestionnaireID, &f.UserID, &f.IDNumber, &f.Filename, &f.FileArea, &f.TimeCreated, &f.TimeModified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreatePersonalFile inserts a new record with creation and modification
// timestamps.
func (s *Store) CreatePersonalFile(f model.PersonalFile) (int64, error) {
	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO personal_files (questionnaire_id, user_id, idnumber, filename, filearea, time_created, time_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.QuestionnaireID, f.UserID, f.IDNumber, f.Filename, f.FileArea, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdatePersonalFile replaces the filename and bumps the modification
// timestamp of an existing record, keeping its identity.
func (s *Store) UpdatePersonalFile(id int64, filename string) error {
	_, err := s.db.Exec(
		`UPDATE personal_files SET filename = ?, time_modified = ? WHERE id = ?`,
		filename, time.Now(), id,
	)
	return err
}

// ListPersonalFiles returns a questionnaire's records ordered by idnumber.
func (s *Store) ListPersonalFiles(questionnaireID int64) ([]model.PersonalFile, error) {
	rows, err := s.db.Query(
		`SELECT id, questionnaire_id, user_id, idnumber, filename, filearea, time_created, time_modified
		 FROM personal_files WHERE questionnaire_id = ? ORDER BY idnumber`,
		questionnaireID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []model.PersonalFile
	for rows.Next() {
		var f model.PersonalFile
		if err := rows.Scan(&f.ID, &f.QuestionnaireID, &f.UserID, &f.IDNumber, &f.Filename, &f.FileArea, &f.TimeCreated, &f.TimeModified); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeletePersonalFile removes a record scoped by both id and questionnaire
// id and reports whether a row was deleted. A record belonging to another
// questionnaire is left untouched.
func (s *Store) DeletePersonalFile(id, questionnaireID int64) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM personal_files WHERE id = ? AND questionnaire_id = ?`,
		id, questionnaireID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
