package engine

import (
	"errors"
	"fmt"
)

var ErrInvalidDefinition = errors.New("invalid test definition")

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
)

// AnswerOption 选项，IsCorrect 由出题端设定，会话期间不可变
type AnswerOption struct {
	ID        string
	Content   string
	IsCorrect bool
}

type Question struct {
	ID          string
	Type        QuestionType
	Content     string
	Points      int
	Options     []AnswerOption
	Explanation string
}

type Section struct {
	ID        string
	Title     string
	Questions []Question
}

// TestDefinition 完整试卷定义，加载后只读，可被多个组件安全共享
type TestDefinition struct {
	ID              string
	Title           string
	DurationSeconds int
	PassingScore    float64
	Sections        []Section
}

// CorrectIDs 返回该题全部正确选项 ID，保持选项原始顺序
func (q *Question) CorrectIDs() []string {
	ids := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

func (q *Question) hasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// QuestionByID 按文档顺序线性查找，试卷规模下无需索引
func (d *TestDefinition) QuestionByID(id string) (*Question, bool) {
	for si := range d.Sections {
		for qi := range d.Sections[si].Questions {
			if d.Sections[si].Questions[qi].ID == id {
				return &d.Sections[si].Questions[qi], true
			}
		}
	}
	return nil, false
}

func (d *TestDefinition) QuestionCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Questions)
	}
	return n
}

func (d *TestDefinition) TotalPoints() int {
	total := 0
	for _, s := range d.Sections {
		for _, q := range s.Questions {
			total += q.Points
		}
	}
	return total
}

// Validate 校验试卷结构，失败的试卷不允许开考
func (d *TestDefinition) Validate() error {
	if d.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidDefinition, d.DurationSeconds)
	}
	if d.PassingScore < 0 || d.PassingScore > 100 {
		return fmt.Errorf("%w: passing score %.2f out of range [0,100]", ErrInvalidDefinition, d.PassingScore)
	}
	if len(d.Sections) == 0 {
		return fmt.Errorf("%w: test has no sections", ErrInvalidDefinition)
	}

	seenQuestions := make(map[string]bool)
	for si, s := range d.Sections {
		if len(s.Questions) == 0 {
			return fmt.Errorf("%w: section %q has no questions", ErrInvalidDefinition, s.ID)
		}
		for qi, q := range s.Questions {
			if q.ID == "" {
				return fmt.Errorf("%w: section %d question %d has empty id", ErrInvalidDefinition, si, qi)
			}
			if seenQuestions[q.ID] {
				return fmt.Errorf("%w: duplicate question id %q", ErrInvalidDefinition, q.ID)
			}
			seenQuestions[q.ID] = true

			if err := q.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (q *Question) validate() error {
	if q.Type != SingleChoice && q.Type != MultipleChoice {
		return fmt.Errorf("%w: question %q has unknown type %q", ErrInvalidDefinition, q.ID, q.Type)
	}
	if q.Points <= 0 {
		return fmt.Errorf("%w: question %q has non-positive points %d", ErrInvalidDefinition, q.ID, q.Points)
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("%w: question %q has no options", ErrInvalidDefinition, q.ID)
	}

	seen := make(map[string]bool, len(q.Options))
	correct := 0
	for _, o := range q.Options {
		if o.ID == "" {
			return fmt.Errorf("%w: question %q has option with empty id", ErrInvalidDefinition, q.ID)
		}
		if seen[o.ID] {
			return fmt.Errorf("%w: question %q has duplicate option id %q", ErrInvalidDefinition, q.ID, o.ID)
		}
		seen[o.ID] = true
		if o.IsCorrect {
			correct++
		}
	}

	switch q.Type {
	case SingleChoice:
		if correct != 1 {
			return fmt.Errorf("%w: single choice question %q must have exactly one correct option, got %d", ErrInvalidDefinition, q.ID, correct)
		}
	case MultipleChoice:
		if correct == 0 {
			return fmt.Errorf("%w: multiple choice question %q has no correct option", ErrInvalidDefinition, q.ID)
		}
	}
	return nil
}
