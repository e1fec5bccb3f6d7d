package assessment

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/victornm/elearn/internal/errors"
)

// QuestionFile is the import format for quiz questions:
// {"Questions": [{questionId, questionText, options[4], correctAnswer, points}, ...]}.
type QuestionFile struct {
	Questions []FileQuestion `json:"Questions" validate:"required,min=1,dive"`
}

type FileQuestion struct {
	QuestionID    int      `json:"questionId" validate:"required"`
	QuestionText  string   `json:"questionText" validate:"required"`
	Options       []string `json:"options" validate:"required,len=4,dive,required"`
	CorrectAnswer int      `json:"correctAnswer" validate:"min=0,max=3"`
	Points        int      `json:"points" validate:"required,gt=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseQuestionFile accepts either the wrapped object form or a bare
// question array and always returns the wrapped form.
func ParseQuestionFile(raw []byte) (*QuestionFile, error) {
	var qf QuestionFile
	if err := json.Unmarshal(raw, &qf); err == nil && len(qf.Questions) > 0 {
		return &qf, nil
	}

	var questions []FileQuestion
	if err := json.Unmarshal(raw, &questions); err != nil || len(questions) == 0 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef(`the file must contain a "Questions" array`))
	}

	return &QuestionFile{Questions: questions}, nil
}

// Validate checks every question and enforces that the points sum to
// maxScore. The mismatch error names both numbers.
func (qf *QuestionFile) Validate(maxScore int) error {
	if err := validate.Struct(qf); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("%s", describeFieldError(verrs[0])),
				errors.WithCause(err))
		}
		return errors.New(errors.CodeInvalidArgument, errors.WithCause(err))
	}

	total := 0
	for _, q := range qf.Questions {
		total += q.Points
	}
	if total != maxScore {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("the sum of question points (%d) must match the maximum score (%d)", total, maxScore))
	}

	return nil
}

func describeFieldError(fe validator.FieldError) string {
	// Namespace looks like QuestionFile.Questions[2].Points; drop the root.
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "len":
		return fmt.Sprintf("%s must have exactly %s entries", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	}

	return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
}
