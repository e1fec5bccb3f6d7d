package assessment_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/elearn/internal/assessment"
	"github.com/victornm/elearn/internal/errors"
)

func TestParseQuestionFile(t *testing.T) {
	tests := map[string]struct {
		raw string

		wantErr   bool
		wantCount int
	}{
		"wrapped object form": {
			raw:       `{"Questions":[{"questionId":1,"questionText":"q","options":["a","b","c","d"],"correctAnswer":0,"points":5}]}`,
			wantCount: 1,
		},
		"bare array form": {
			raw:       `[{"questionId":1,"questionText":"q","options":["a","b","c","d"],"correctAnswer":0,"points":5}]`,
			wantCount: 1,
		},
		"empty questions array": {
			raw:     `{"Questions":[]}`,
			wantErr: true,
		},
		"not json at all": {
			raw:     `points,text,options`,
			wantErr: true,
		},
		"unrelated object": {
			raw:     `{"title":"quiz"}`,
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			qf, err := assessment.ParseQuestionFile([]byte(tt.raw))

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
				return
			}

			require.NoError(t, err)
			assert.Len(t, qf.Questions, tt.wantCount)
		})
	}
}

func TestQuestionFileValidate(t *testing.T) {
	tests := map[string]struct {
		mutate   func(*assessment.QuestionFile)
		maxScore int

		wantMessage string
	}{
		"valid file": {
			maxScore: 10,
		},
		"points off by five": {
			maxScore:    15,
			wantMessage: "the sum of question points (10) must match the maximum score (15)",
		},
		"missing question text": {
			mutate: func(qf *assessment.QuestionFile) {
				qf.Questions[0].QuestionText = ""
			},
			maxScore:    10,
			wantMessage: "Questions[0].QuestionText is required",
		},
		"three options instead of four": {
			mutate: func(qf *assessment.QuestionFile) {
				qf.Questions[1].Options = qf.Questions[1].Options[:3]
			},
			maxScore:    10,
			wantMessage: "Questions[1].Options must have exactly 4 entries",
		},
		"blank option": {
			mutate: func(qf *assessment.QuestionFile) {
				qf.Questions[0].Options[2] = ""
			},
			maxScore:    10,
			wantMessage: "Questions[0].Options[2] is required",
		},
		"correct answer out of range": {
			mutate: func(qf *assessment.QuestionFile) {
				qf.Questions[0].CorrectAnswer = 4
			},
			maxScore:    10,
			wantMessage: "Questions[0].CorrectAnswer must be at most 3",
		},
		"negative points": {
			mutate: func(qf *assessment.QuestionFile) {
				qf.Questions[1].Points = -1
			},
			maxScore:    4,
			wantMessage: "Questions[1].Points must be greater than 0",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			qf := validQuestionFile(t)
			if tt.mutate != nil {
				tt.mutate(qf)
			}

			err := qf.Validate(tt.maxScore)

			if tt.wantMessage == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
			assert.Equal(t, tt.wantMessage, errors.Convert(err).Message)
		})
	}
}

func validQuestionFile(t *testing.T) *assessment.QuestionFile {
	t.Helper()

	raw := `{"Questions":[
		{"questionId":1,"questionText":"What does go vet do?","options":["Formats","Reports suspicious constructs","Builds","Tests"],"correctAnswer":1,"points":5},
		{"questionId":2,"questionText":"Zero value of a slice?","options":["empty slice","nil","panic","undefined"],"correctAnswer":1,"points":5}
	]}`

	var qf assessment.QuestionFile
	require.NoError(t, json.Unmarshal([]byte(raw), &qf))

	return &qf
}
