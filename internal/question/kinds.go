package question

import "github.com/pavelanni/questionnaire/internal/model"

func init() {
	register(textKind{})
	register(singleChoice{})
}

// textKind is a free-text question; the stored value only marks whether an
// answer was given.
type textKind struct {
	base
}

func (textKind) Kind() model.QuestionKind { return model.KindText }

func (textKind) InputPayload(q model.Question, resp *model.Response, disabled bool) model.InputPayload {
	return model.InputPayload{
		QuestionID: q.ID,
		Rows: []model.InputRow{{
			Name:     model.FieldKey(q.ID, 0),
			Content:  q.Content,
			Value:    resp.Value(q.ID, 0),
			Disabled: disabled,
		}},
	}
}

func (textKind) DisplayPayload(q model.Question, resp *model.Response) model.DisplayPayload {
	return model.DisplayPayload{
		QuestionID: q.ID,
		Rows:       []model.DisplayRow{{Content: q.Content, Value: resp.Value(q.ID, 0)}},
	}
}

func (textKind) Complete(q model.Question, resp *model.Response) bool {
	if !q.Required {
		return true
	}
	return resp.Value(q.ID, 0) != 0
}

// singleChoice lets the user pick exactly one of the question's choices.
type singleChoice struct {
	base
}

func (singleChoice) Kind() model.QuestionKind { return model.KindSingleChoice }

func (singleChoice) HasChoices() bool { return true }

func (singleChoice) InputPayload(q model.Question, resp *model.Response, disabled bool) model.InputPayload {
	payload := model.InputPayload{QuestionID: q.ID}
	for _, c := range q.Choices {
		payload.Rows = append(payload.Rows, model.InputRow{
			Name:     model.FieldKey(q.ID, c.ID),
			ChoiceID: c.ID,
			Content:  c.Content,
			Value:    resp.Value(q.ID, c.ID),
			Disabled: disabled,
		})
	}
	return payload
}

func (singleChoice) DisplayPayload(q model.Question, resp *model.Response) model.DisplayPayload {
	payload := model.DisplayPayload{QuestionID: q.ID}
	for _, c := range q.Choices {
		payload.Rows = append(payload.Rows, model.DisplayRow{
			Content: c.Content,
			Value:   resp.Value(q.ID, c.ID),
		})
	}
	return payload
}

func (singleChoice) Complete(q model.Question, resp *model.Response) bool {
	if !q.Required {
		return true
	}
	for _, c := range q.Choices {
		if resp.Value(q.ID, c.ID) != 0 {
			return true
		}
	}
	return false
}

// Valid rejects more than one selected choice.
func (s singleChoice) Valid(q model.Question, resp *model.Response) bool {
	if resp == nil {
		return true
	}
	selected := 0
	for _, c := range q.Choices {
		if resp.Value(q.ID, c.ID) != 0 {
			selected++
		}
	}
	return selected <= 1
}
