package question

import (
	"strings"

	"github.com/pavelanni/questionnaire/internal/model"
)

func init() {
	register(starRating{})
}

// starRating renders a fixed row of selectable stars per choice item.
// Stored values are integers 0..MaxStars where 0 means unrated.
type starRating struct {
	base
}

func (starRating) Kind() model.QuestionKind { return model.KindStarRating }

func (starRating) HasChoices() bool       { return true }
func (starRating) SupportsFeedback() bool { return true }
func (starRating) SupportsMobile() bool   { return true }

// maxStars returns the configured star count, falling back to the default
// when the stored value is out of the 3..10 range.
func maxStars(q model.Question) int {
	if q.MaxStars < model.MinStars || q.MaxStars > model.MaxStarsLimit {
		return model.DefaultStars
	}
	return q.MaxStars
}

func (s starRating) ValidFeedback(q model.Question) bool {
	return s.SupportsFeedback() && s.HasChoices() && q.Required && q.Name != ""
}

func (s starRating) FeedbackMaxScore(q model.Question) (int, bool) {
	if !s.ValidFeedback(q) {
		return 0, false
	}
	return len(q.Choices) * maxStars(q), true
}

func (s starRating) InputPayload(q model.Question, resp *model.Response, disabled bool) model.InputPayload {
	max := maxStars(q)
	payload := model.InputPayload{QuestionID: q.ID, MaxStars: max}
	for _, c := range q.Choices {
		value := resp.Value(q.ID, c.ID)
		row := model.InputRow{
			Name:     model.FieldKey(q.ID, c.ID),
			ChoiceID: c.ID,
			Content:  c.Content,
			Value:    value,
			Disabled: disabled,
		}
		for i := 1; i <= max; i++ {
			row.Stars = append(row.Stars, model.StarDescriptor{
				Value:    i,
				Selected: i <= value,
			})
		}
		payload.Rows = append(payload.Rows, row)
	}
	return payload
}

func (s starRating) DisplayPayload(q model.Question, resp *model.Response) model.DisplayPayload {
	max := maxStars(q)
	payload := model.DisplayPayload{QuestionID: q.ID, MaxStars: max}
	for _, c := range q.Choices {
		value := resp.Value(q.ID, c.ID)
		row := model.DisplayRow{Content: c.Content, Value: value}
		for i := 1; i <= max; i++ {
			row.Stars = append(row.Stars, model.StarDescriptor{
				Value:  i,
				Filled: i <= value,
			})
		}
		payload.Rows = append(payload.Rows, row)
	}
	return payload
}

// Complete counts choices rated in 1..maxStars. A required question with
// none rated is incomplete; with zero choices it can never be satisfied.
func (s starRating) Complete(q model.Question, resp *model.Response) bool {
	max := maxStars(q)
	rated := 0
	for _, c := range q.Choices {
		v := resp.Value(q.ID, c.ID)
		if v > 0 && v <= max {
			rated++
		}
	}
	if rated == 0 && q.Required {
		return false
	}
	return true
}

// Valid rejects the whole response when any stored value falls outside
// 0..maxStars.
func (s starRating) Valid(q model.Question, resp *model.Response) bool {
	if resp == nil {
		return true
	}
	max := maxStars(q)
	for _, v := range resp.Answers[q.ID] {
		if v < 0 || v > max {
			return false
		}
	}
	return s.base.Valid(q, resp)
}

func (s starRating) SettingsForm(q model.Question) []model.FieldSpec {
	options := make([]int, 0, model.MaxStarsLimit-model.MinStars+1)
	for i := model.MinStars; i <= model.MaxStarsLimit; i++ {
		options = append(options, i)
	}
	return []model.FieldSpec{
		{
			Name:    "max_stars",
			LabelID: "MaxStars",
			Kind:    model.FieldSelect,
			Options: options,
			Default: model.DefaultStars,
		},
		{
			Name: "precision",
			Kind: model.FieldHidden,
		},
		{
			Name:     "choices",
			LabelID:  "PossibleAnswers",
			Kind:     model.FieldTextArea,
			Required: false,
		},
	}
}

// PreprocessChoices allows an empty choices field: an empty list is stored
// as a single blank placeholder rather than rejected.
func (s starRating) PreprocessChoices(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{" "}
	}
	return s.base.PreprocessChoices(raw)
}

func (s starRating) MobileChoices(q model.Question) []model.MobileChoice {
	max := maxStars(q)
	choices := make([]model.MobileChoice, 0, len(q.Choices))
	for _, c := range q.Choices {
		choices = append(choices, model.MobileChoice{
			ChoiceID:   c.ID,
			QuestionID: q.ID,
			FieldKey:   model.FieldKey(q.ID, c.ID),
			Content:    c.Content,
			Min:        0,
			Max:        max,
		})
	}
	return choices
}

func (s starRating) MobileResponseData(q model.Question, resp *model.Response) map[string]int {
	if resp == nil {
		return nil
	}
	data := make(map[string]int)
	for cid, v := range resp.Answers[q.ID] {
		data[model.FieldKey(q.ID, cid)] = v
	}
	return data
}
