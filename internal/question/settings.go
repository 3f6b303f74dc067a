package question

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/questionnaire/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// settings is the validated view of a question's configurable surface.
type settings struct {
	Kind     string `validate:"required,oneof=text singlechoice starrating"`
	MaxStars int    `validate:"omitempty,min=3,max=10"`
}

// ValidateSettings checks a question's configuration before it is saved.
// MaxStars of zero means "use the default" and is accepted.
func ValidateSettings(q model.Question) error {
	if _, ok := ForKind(q.Kind); !ok {
		return fmt.Errorf("unknown question kind %q", q.Kind)
	}
	s := settings{Kind: string(q.Kind), MaxStars: q.MaxStars}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("question settings: %w", err)
	}
	return nil
}
