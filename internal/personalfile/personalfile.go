// Package personalfile reconciles batches of uploaded files, named by
// student identifier, against enrolled users and maintains the per-user
// attachment records and their stored bytes.
package personalfile

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pavelanni/questionnaire/internal/filestore"
	"github.com/pavelanni/questionnaire/internal/model"
	"github.com/pavelanni/questionnaire/internal/store"
)

// FileArea is the permanent storage area for personal files.
const FileArea = "personalfile"

// ErrorReason classifies why one file in a batch could not be imported.
type ErrorReason string

const (
	ReasonUserNotFound    ErrorReason = "usernotfound"
	ReasonUserNotEnrolled ErrorReason = "usernotenrolled"
)

// ImportError is one per-file failure. The batch keeps going; these are
// collected and shown to the uploader afterwards.
type ImportError struct {
	Reason   ErrorReason `json:"reason"`
	IDNumber string      `json:"idnumber"`
}

// MessageID returns the string-table key for this error.
func (e ImportError) MessageID() string {
	switch e.Reason {
	case ReasonUserNotEnrolled:
		return "PersonalFileUserNotEnrolled"
	default:
		return "PersonalFileUserNotFound"
	}
}

func (e ImportError) String() string {
	return fmt.Sprintf("%s(%s)", e.Reason, e.IDNumber)
}

// Result reports the outcome of one import batch.
type Result struct {
	Imported int           `json:"imported"`
	Errors   []ImportError `json:"errors,omitempty"`
}

// Service runs imports and deletions against the store and file store.
type Service struct {
	store *store.Store
	files *filestore.FileStore
}

// New creates a personal-file service.
func New(s *store.Store, f *filestore.FileStore) *Service {
	return &Service{store: s, files: f}
}

// Import matches every staged file to a user by its basename, upserts the
// per-user record, and relocates the bytes into the permanent area. The
// staging area is discarded afterwards regardless of the outcome. Files
// that resolve to the same identifier within one batch overwrite each
// other; the last one processed wins.
func (s *Service) Import(qnr model.Questionnaire, draftID string) (Result, error) {
	var result Result
	defer func() {
		if err := s.files.ClearDraft(draftID); err != nil {
			slog.Error("failed to clear staging area", "draft_id", draftID, "error", err)
		}
	}()

	drafts, err := s.files.ListDraft(draftID)
	if err != nil {
		return result, fmt.Errorf("list staging area: %w", err)
	}

	for _, draft := range drafts {
		idnumber := identifierFromFilename(draft.Filename)
		if idnumber == "" {
			// Would otherwise match accounts without an identifier.
			result.Errors = append(result.Errors, ImportError{Reason: ReasonUserNotFound, IDNumber: idnumber})
			continue
		}

		user, err := s.store.GetUserByIDNumber(idnumber)
		if err != nil {
			return result, fmt.Errorf("look up user %q: %w", idnumber, err)
		}
		if user == nil {
			result.Errors = append(result.Errors, ImportError{Reason: ReasonUserNotFound, IDNumber: idnumber})
			continue
		}

		enrolled, err := s.store.IsEnrolled(qnr.CourseID, user.ID)
		if err != nil {
			return result, fmt.Errorf("check enrolment for %q: %w", idnumber, err)
		}
		if !enrolled {
			result.Errors = append(result.Errors, ImportError{Reason: ReasonUserNotEnrolled, IDNumber: idnumber})
			continue
		}

		itemID, err := s.upsertRecord(qnr, user, idnumber, draft.Filename)
		if err != nil {
			return result, err
		}

		src, err := s.files.OpenDraft(draftID, draft.Filename)
		if err != nil {
			return result, fmt.Errorf("open staged file %q: %w", draft.Filename, err)
		}
		err = s.files.Save(FileArea, itemID, draft.Filename, src)
		src.Close()
		if err != nil {
			return result, fmt.Errorf("store file %q: %w", draft.Filename, err)
		}

		result.Imported++
	}

	slog.Info("personal file import finished",
		"questionnaire_id", qnr.ID,
		"imported", result.Imported,
		"errors", len(result.Errors),
	)
	return result, nil
}

// upsertRecord updates the existing record for (questionnaire, user) after
// deleting its stored bytes, or creates a fresh one. Returns the record id,
// which is also the permanent storage key.
func (s *Service) upsertRecord(qnr model.Questionnaire, user *model.User, idnumber, filename string) (int64, error) {
	existing, err := s.store.GetPersonalFile(qnr.ID, user.ID)
	if err != nil {
		return 0, fmt.Errorf("look up existing record: %w", err)
	}
	if existing != nil {
		if err := s.files.Delete(FileArea, existing.ID); err != nil {
			return 0, fmt.Errorf("delete replaced file: %w", err)
		}
		if err := s.store.UpdatePersonalFile(existing.ID, filename); err != nil {
			return 0, fmt.Errorf("update record: %w", err)
		}
		return existing.ID, nil
	}

	id, err := s.store.CreatePersonalFile(model.PersonalFile{
		QuestionnaireID: qnr.ID,
		UserID:          user.ID,
		IDNumber:        idnumber,
		Filename:        filename,
		FileArea:        FileArea,
	})
	if err != nil {
		return 0, fmt.Errorf("create record: %w", err)
	}
	return id, nil
}

// Delete removes a record and its stored bytes. The delete is scoped by
// both record id and questionnaire id; a record belonging to another
// questionnaire is a silent no-op.
func (s *Service) Delete(questionnaireID, fileID int64) (bool, error) {
	record, err := s.store.GetPersonalFileByID(fileID, questionnaireID)
	if err != nil {
		return false, fmt.Errorf("look up record: %w", err)
	}
	if record == nil {
		return false, nil
	}
	if err := s.files.Delete(FileArea, record.ID); err != nil {
		return false, fmt.Errorf("delete stored file: %w", err)
	}
	deleted, err := s.store.DeletePersonalFile(fileID, questionnaireID)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	return deleted, nil
}

// identifierFromFilename strips the extension; a name without one is used
// whole.
func identifierFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
