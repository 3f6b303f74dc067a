package model

import "time"

// Export is the top-level JSON structure for questionnaire result export.
type Export struct {
	ExportedAt     time.Time             `json:"exported_at"`
	Questionnaires []QuestionnaireExport `json:"questionnaires"`
}

// QuestionnaireExport holds one questionnaire's data for export.
type QuestionnaireExport struct {
	Questionnaire Questionnaire        `json:"questionnaire"`
	Questions     []Question           `json:"questions"`
	Responses     []ResponseExport     `json:"responses"`
	PersonalFiles []PersonalFileExport `json:"personal_files"`
}

// ResponseExport holds one user's answers for export.
type ResponseExport struct {
	IDNumber    string         `json:"idnumber"`
	DisplayName string         `json:"display_name"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Answers     []AnswerExport `json:"answers"`
}

// AnswerExport is a single stored value for export.
type AnswerExport struct {
	QuestionID int64 `json:"question_id"`
	ChoiceID   int64 `json:"choice_id"`
	Value      int   `json:"value"`
}

// PersonalFileExport is a personal-file record for export.
type PersonalFileExport struct {
	IDNumber     string    `json:"idnumber"`
	DisplayName  string    `json:"display_name"`
	Filename     string    `json:"filename"`
	TimeModified time.Time `json:"time_modified"`
}
