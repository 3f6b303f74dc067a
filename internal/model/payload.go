package model

// StarDescriptor describes one star position in a rendered row. Selected
// is set in input mode, Filled in display mode.
type StarDescriptor struct {
	Value    int  `json:"value"`
	Selected bool `json:"selected,omitempty"`
	Filled   bool `json:"filled,omitempty"`
}

// InputRow is one choice row rendered for filling out the survey.
type InputRow struct {
	Name     string           `json:"name"`
	ChoiceID int64            `json:"choice_id"`
	Content  string           `json:"content"`
	Value    int              `json:"value"`
	Disabled bool             `json:"disabled"`
	Stars    []StarDescriptor `json:"stars,omitempty"`
}

// InputPayload is the input-mode rendering of one question.
type InputPayload struct {
	QuestionID int64      `json:"question_id"`
	MaxStars   int        `json:"max_stars,omitempty"`
	Rows       []InputRow `json:"rows"`
}

// DisplayRow is one choice row rendered for viewing a submitted response.
type DisplayRow struct {
	Content string           `json:"content"`
	Value   int              `json:"value"`
	Stars   []StarDescriptor `json:"stars,omitempty"`
}

// DisplayPayload is the display-mode rendering of one question.
type DisplayPayload struct {
	QuestionID int64        `json:"question_id"`
	MaxStars   int          `json:"max_stars,omitempty"`
	Rows       []DisplayRow `json:"rows"`
}

// MobileChoice is the mobile-app export payload for one choice.
type MobileChoice struct {
	ChoiceID   int64  `json:"choice_id"`
	QuestionID int64  `json:"question_id"`
	FieldKey   string `json:"fieldkey"`
	Content    string `json:"content"`
	Min        int    `json:"min"`
	Max        int    `json:"max"`
}

// FieldKind identifies the widget used for a settings-form field.
type FieldKind string

const (
	FieldSelect   FieldKind = "select"
	FieldTextArea FieldKind = "textarea"
	FieldHidden   FieldKind = "hidden"
)

// FieldSpec describes one field of a question's configuration form.
type FieldSpec struct {
	Name     string    `json:"name"`
	LabelID  string    `json:"label_id,omitempty"`
	Kind     FieldKind `json:"kind"`
	Options  []int     `json:"options,omitempty"`
	Default  int       `json:"default,omitempty"`
	Required bool      `json:"required"`
}
