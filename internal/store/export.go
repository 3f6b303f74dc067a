package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/pavelanni/questionnaire/internal/model"
)

// ExportAll builds an export-ready view of every questionnaire with its
// questions, responses and personal-file records.
func (s *Store) ExportAll() (model.Export, error) {
	export := model.Export{ExportedAt: time.Now()}

	questionnaires, err := s.ListQuestionnaires()
	if err != nil {
		return export, fmt.Errorf("list questionnaires: %w", err)
	}

	for _, qnr := range questionnaires {
		qe, err := s.exportQuestionnaire(qnr)
		if err != nil {
			return export, fmt.Errorf("export questionnaire %d: %w", qnr.ID, err)
		}
		export.Questionnaires = append(export.Questionnaires, qe)
	}
	return export, nil
}

func (s *Store) exportQuestionnaire(qnr model.Questionnaire) (model.QuestionnaireExport, error) {
	qe := model.QuestionnaireExport{Questionnaire: qnr}

	questions, err := s.ListQuestions(qnr.ID)
	if err != nil {
		return qe, fmt.Errorf("list questions: %w", err)
	}
	qe.Questions = questions

	responses, err := s.ListResponses(qnr.ID)
	if err != nil {
		return qe, fmt.Errorf("list responses: %w", err)
	}
	for _, resp := range responses {
		user, err := s.GetUserByID(resp.UserID)
		if err != nil {
			return qe, fmt.Errorf("get user %d: %w", resp.UserID, err)
		}
		re := model.ResponseExport{SubmittedAt: resp.SubmittedAt}
		if user != nil {
			re.IDNumber = user.IDNumber
			re.DisplayName = user.DisplayName
		}
		for qid, byChoice := range resp.Answers {
			for cid, value := range byChoice {
				re.Answers = append(re.Answers, model.AnswerExport{
					QuestionID: qid,
					ChoiceID:   cid,
					Value:      value,
				})
			}
		}
		sort.Slice(re.Answers, func(i, j int) bool {
			a, b := re.Answers[i], re.Answers[j]
			if a.QuestionID != b.QuestionID {
				return a.QuestionID < b.QuestionID
			}
			return a.ChoiceID < b.ChoiceID
		})
		qe.Responses = append(qe.Responses, re)
	}

	files, err := s.ListPersonalFiles(qnr.ID)
	if err != nil {
		return qe, fmt.Errorf("list personal files: %w", err)
	}
	for _, f := range files {
		user, err := s.GetUserByID(f.UserID)
		if err != nil {
			return qe, fmt.Errorf("get user %d: %w", f.UserID, err)
		}
		fe := model.PersonalFileExport{
			IDNumber:     f.IDNumber,
			Filename:     f.Filename,
			TimeModified: f.TimeModified,
		}
		if user != nil {
			fe.DisplayName = user.DisplayName
		}
		qe.PersonalFiles = append(qe.PersonalFiles, fe)
	}

	return qe, nil
}
