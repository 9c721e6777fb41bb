package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleDef 一节两题：q1 单选（正确 a，6 分），q2 多选（正确 b、c，4 分）
func sampleDef() *TestDefinition {
	return &TestDefinition{
		ID:              "test-1",
		Title:           "示例试卷",
		DurationSeconds: 60,
		PassingScore:    70,
		Sections: []Section{
			{
				ID:    "sec-1",
				Title: "第一节",
				Questions: []Question{
					{
						ID: "q1", Type: SingleChoice, Content: "单选题", Points: 6,
						Options: []AnswerOption{
							{ID: "a", Content: "甲", IsCorrect: true},
							{ID: "b", Content: "乙"},
							{ID: "c", Content: "丙"},
						},
					},
					{
						ID: "q2", Type: MultipleChoice, Content: "多选题", Points: 4,
						Options: []AnswerOption{
							{ID: "a", Content: "甲"},
							{ID: "b", Content: "乙", IsCorrect: true},
							{ID: "c", Content: "丙", IsCorrect: true},
						},
					},
				},
			},
		},
	}
}

// twoSectionDef 两节四题，供跨节导航与分节汇总用例
func twoSectionDef() *TestDefinition {
	def := sampleDef()
	def.Sections = append(def.Sections, Section{
		ID:    "sec-2",
		Title: "第二节",
		Questions: []Question{
			{
				ID: "q3", Type: SingleChoice, Content: "第三题", Points: 5,
				Options: []AnswerOption{
					{ID: "a", Content: "甲", IsCorrect: true},
					{ID: "b", Content: "乙"},
				},
			},
			{
				ID: "q4", Type: MultipleChoice, Content: "第四题", Points: 5,
				Options: []AnswerOption{
					{ID: "a", Content: "甲", IsCorrect: true},
					{ID: "b", Content: "乙", IsCorrect: true},
					{ID: "c", Content: "丙"},
				},
			},
		},
	})
	return def
}

func TestScoreSetEquality(t *testing.T) {
	def := sampleDef()

	// q2 正确集合为 {b, c}，只有完全一致才得分
	tests := []struct {
		name     string
		selected []string
		correct  bool
	}{
		{"完全一致", []string{"b", "c"}, true},
		{"顺序无关", []string{"c", "b"}, true},
		{"重复选项去重后一致", []string{"b", "c", "b"}, true},
		{"只选一部分", []string{"b"}, false},
		{"多选了干扰项", []string{"a", "b", "c"}, false},
		{"空选集", []string{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			report, err := Score(def, map[string][]string{"q2": tc.selected}, 10)
			require.NoError(t, err)

			qr := report.Sections[0].Questions[1]
			require.Equal(t, "q2", qr.QuestionID)
			assert.True(t, qr.Answered)
			assert.Equal(t, tc.correct, qr.Correct)
			if tc.correct {
				assert.Equal(t, 4, qr.EarnedPoints)
			} else {
				assert.Equal(t, 0, qr.EarnedPoints)
			}
		})
	}
}

func TestScoreNoPartialCredit(t *testing.T) {
	def := sampleDef()
	report, err := Score(def, map[string][]string{"q2": {"b"}}, 10)
	require.NoError(t, err)

	// 部分正确不给部分分
	assert.Equal(t, 0, report.EarnedPoints)
	assert.Equal(t, 10, report.TotalPoints)
}

func TestScoreUnansweredVersusIncorrect(t *testing.T) {
	def := sampleDef()

	// q1 答错，q2 未作答：incorrect 与 unanswered 互斥计数
	report, err := Score(def, map[string][]string{"q1": {"b"}}, 30)
	require.NoError(t, err)

	sr := report.Sections[0]
	assert.Equal(t, 0, sr.CorrectCount)
	assert.Equal(t, 1, sr.IncorrectCount)
	assert.Equal(t, 1, sr.UnansweredCount)
	assert.Equal(t, 1, report.AnsweredCount)
	assert.Equal(t, 2, report.QuestionCount)

	// 空选集条目算已作答且判错，不算未作答
	report, err = Score(def, map[string][]string{"q1": {}}, 30)
	require.NoError(t, err)
	sr = report.Sections[0]
	assert.Equal(t, 1, sr.IncorrectCount)
	assert.Equal(t, 1, sr.UnansweredCount)
}

func TestScoreFullScenario(t *testing.T) {
	def := sampleDef()
	answers := map[string][]string{
		"q1": {"a"},
	}

	report, err := Score(def, answers, 10)
	require.NoError(t, err)

	assert.Equal(t, "test-1", report.TestID)
	assert.Equal(t, 6, report.EarnedPoints)
	assert.Equal(t, 10, report.TotalPoints)
	assert.InDelta(t, 60.0, report.Percentage, 0.001)
	assert.False(t, report.Passed)
	assert.Equal(t, "D", report.Grade)
	assert.Equal(t, 1, report.CorrectCount)
	assert.Equal(t, 0, report.IncorrectCount)
	assert.Equal(t, 1, report.AnsweredCount)
	assert.Equal(t, 10, report.ElapsedSeconds)
	assert.False(t, report.TimedOut)
}

func TestScoreSectionRollups(t *testing.T) {
	def := twoSectionDef()
	answers := map[string][]string{
		"q1": {"a"},        // 对，6 分
		"q3": {"b"},        // 错
		"q4": {"a", "b"},   // 对，5 分
	}

	report, err := Score(def, answers, 45)
	require.NoError(t, err)
	require.Len(t, report.Sections, 2)

	first := report.Sections[0]
	assert.Equal(t, "sec-1", first.SectionID)
	assert.Equal(t, 6, first.EarnedPoints)
	assert.Equal(t, 10, first.TotalPoints)
	assert.InDelta(t, 60.0, first.Percentage, 0.001)
	assert.Equal(t, 1, first.UnansweredCount)

	second := report.Sections[1]
	assert.Equal(t, 5, second.EarnedPoints)
	assert.Equal(t, 10, second.TotalPoints)
	assert.Equal(t, 1, second.CorrectCount)
	assert.Equal(t, 1, second.IncorrectCount)
	assert.Equal(t, 0, second.UnansweredCount)

	assert.Equal(t, 11, report.EarnedPoints)
	assert.Equal(t, 20, report.TotalPoints)
	assert.InDelta(t, 55.0, report.Percentage, 0.001)
}

func TestScoreDeterministic(t *testing.T) {
	def := twoSectionDef()
	answers := map[string][]string{
		"q1": {"a"},
		"q2": {"c", "b"},
		"q4": {"b"},
	}

	first, err := Score(def, answers, 30)
	require.NoError(t, err)
	second, err := Score(def, answers, 30)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPassVerdictUsesUnroundedPercentage(t *testing.T) {
	// 2/3 = 66.666...%，展示舍入到 66.67，但及格判定不能被舍入抬过线
	def := sampleDef()
	def.PassingScore = 66.67
	def.Sections[0].Questions[0].Points = 2
	def.Sections[0].Questions[1].Points = 1

	report, err := Score(def, map[string][]string{"q1": {"a"}}, 10)
	require.NoError(t, err)
	assert.Equal(t, 66.67, report.Percentage)
	assert.False(t, report.Passed)

	// 线降到真实比值以下则及格
	def.PassingScore = 66.66
	report, err = Score(def, map[string][]string{"q1": {"a"}}, 10)
	require.NoError(t, err)
	assert.True(t, report.Passed)

	// 恰好等于线（含等号）仍及格
	def = sampleDef()
	def.PassingScore = 60
	report, err = Score(def, map[string][]string{"q1": {"a"}}, 10)
	require.NoError(t, err)
	assert.Equal(t, 60.0, report.Percentage)
	assert.True(t, report.Passed)
}

func TestScorePercentageRounding(t *testing.T) {
	assert.Equal(t, 33.33, percentage(1, 3))
	assert.Equal(t, 66.67, percentage(2, 3))
	assert.Equal(t, 100.0, percentage(7, 7))
	// 总分为零时直接给 0，不做除法
	assert.Equal(t, 0.0, percentage(0, 0))
}

func TestGradeLetterBoundaries(t *testing.T) {
	tests := []struct {
		percentage float64
		want       string
	}{
		{100, "A"},
		{90, "A"},
		{89.99, "B"},
		{80, "B"},
		{79.5, "C"},
		{70, "C"},
		{69.99, "D"},
		{60, "D"},
		{59.99, "F"},
		{0, "F"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, GradeLetter(tc.percentage))
	}
}

func TestScorePassIndependentOfGrade(t *testing.T) {
	// 及格线 65，得分 68%：及格但等级为 D，两者互不影响
	def := sampleDef()
	def.PassingScore = 65
	def.Sections[0].Questions[0].Points = 17
	def.Sections[0].Questions[1].Points = 8

	report, err := Score(def, map[string][]string{"q1": {"a"}}, 20)
	require.NoError(t, err)
	assert.InDelta(t, 68.0, report.Percentage, 0.001)
	assert.True(t, report.Passed)
	assert.Equal(t, "D", report.Grade)
}

func TestScoreRejectsUnknownReferences(t *testing.T) {
	def := sampleDef()

	_, err := Score(def, map[string][]string{"ghost": {"a"}}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = Score(def, map[string][]string{"q1": {"zz"}}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestValidateRejectsMalformedDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TestDefinition)
	}{
		{"时长为零", func(d *TestDefinition) { d.DurationSeconds = 0 }},
		{"及格线越界", func(d *TestDefinition) { d.PassingScore = 101 }},
		{"无小节", func(d *TestDefinition) { d.Sections = nil }},
		{"小节无题目", func(d *TestDefinition) { d.Sections[0].Questions = nil }},
		{"题目重复 ID", func(d *TestDefinition) { d.Sections[0].Questions[1].ID = "q1" }},
		{"未知题型", func(d *TestDefinition) { d.Sections[0].Questions[0].Type = "essay" }},
		{"分值非正", func(d *TestDefinition) { d.Sections[0].Questions[0].Points = 0 }},
		{"题目无选项", func(d *TestDefinition) { d.Sections[0].Questions[0].Options = nil }},
		{"选项重复 ID", func(d *TestDefinition) {
			d.Sections[0].Questions[0].Options[1].ID = "a"
		}},
		{"单选多个正确项", func(d *TestDefinition) {
			d.Sections[0].Questions[0].Options[1].IsCorrect = true
		}},
		{"多选无正确项", func(d *TestDefinition) {
			for i := range d.Sections[0].Questions[1].Options {
				d.Sections[0].Questions[1].Options[i].IsCorrect = false
			}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := sampleDef()
			tc.mutate(def)
			err := def.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDefinition)

			// 校验失败的试卷拿不到成绩单，也建不了会话
			_, err = Score(def, nil, 0)
			assert.Error(t, err)
			_, err = NewSession(def, DefaultThresholds())
			assert.Error(t, err)
		})
	}
}

func TestDefinitionHelpers(t *testing.T) {
	def := twoSectionDef()

	assert.Equal(t, 4, def.QuestionCount())
	assert.Equal(t, 20, def.TotalPoints())

	q, ok := def.QuestionByID("q3")
	require.True(t, ok)
	assert.Equal(t, SingleChoice, q.Type)
	assert.Equal(t, []string{"a"}, q.CorrectIDs())

	_, ok = def.QuestionByID("missing")
	assert.False(t, ok)

	q, _ = def.QuestionByID("q4")
	assert.Equal(t, []string{"a", "b"}, q.CorrectIDs())
}
