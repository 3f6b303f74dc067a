// Package question defines the survey question kinds and the rendering,
// validation and export capabilities each kind implements.
package question

import (
	"strings"

	"github.com/pavelanni/questionnaire/internal/model"
)

// SurveyQuestion is the capability surface a question kind exposes to the
// generic display pipeline. Implementations are stateless; all per-question
// data travels in the model.Question argument.
type SurveyQuestion interface {
	Kind() model.QuestionKind
	HasChoices() bool
	SupportsFeedback() bool

	// ValidFeedback reports whether feedback settings are usable for this
	// question instance.
	ValidFeedback(q model.Question) bool
	// FeedbackMaxScore returns the maximum feedback score. The bool is
	// false when no score is defined for this question.
	FeedbackMaxScore(q model.Question) (int, bool)

	// InputPayload renders the question for filling out. disabled marks a
	// read-only preview.
	InputPayload(q model.Question, resp *model.Response, disabled bool) model.InputPayload
	// DisplayPayload renders a submitted response for viewing.
	DisplayPayload(q model.Question, resp *model.Response) model.DisplayPayload

	// Complete reports whether the response satisfies a required question.
	Complete(q model.Question, resp *model.Response) bool
	// Valid reports whether every stored value is in range for this kind.
	Valid(q model.Question, resp *model.Response) bool

	// SettingsForm describes the question-specific configuration fields.
	SettingsForm(q model.Question) []model.FieldSpec
	// PreprocessChoices turns the raw choices text into stored choice
	// content lines.
	PreprocessChoices(raw string) []string

	SupportsMobile() bool
	MobileChoices(q model.Question) []model.MobileChoice
	MobileResponseData(q model.Question, resp *model.Response) map[string]int
}

var registry = map[model.QuestionKind]SurveyQuestion{}

func register(sq SurveyQuestion) {
	registry[sq.Kind()] = sq
}

// ForKind returns the implementation for a question kind.
func ForKind(kind model.QuestionKind) (SurveyQuestion, bool) {
	sq, ok := registry[kind]
	return sq, ok
}

// Kinds returns all registered question kinds.
func Kinds() []model.QuestionKind {
	kinds := make([]model.QuestionKind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	return kinds
}

// base supplies the defaults most kinds share.
type base struct{}

func (base) HasChoices() bool       { return false }
func (base) SupportsFeedback() bool { return false }
func (base) SupportsMobile() bool   { return false }

func (base) ValidFeedback(model.Question) bool          { return false }
func (base) FeedbackMaxScore(model.Question) (int, bool) { return 0, false }

func (base) Valid(model.Question, *model.Response) bool { return true }

func (base) SettingsForm(model.Question) []model.FieldSpec { return nil }

func (base) MobileChoices(model.Question) []model.MobileChoice { return nil }

func (base) MobileResponseData(model.Question, *model.Response) map[string]int { return nil }

// PreprocessChoices splits the raw textarea content into one choice per
// non-empty line.
func (base) PreprocessChoices(raw string) []string {
	var choices []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			choices = append(choices, line)
		}
	}
	return choices
}
