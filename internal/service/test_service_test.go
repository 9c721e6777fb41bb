package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContentLinksHierarchy(t *testing.T) {
	reqs := []TestSectionReq{
		{
			Title: "第一节",
			Questions: []TestQuestionReq{
				{
					QuestionType: "single_choice",
					Content:      "单选题",
					Points:       5,
					Options: []TestOptionReq{
						{Content: "甲", IsCorrect: true},
						{Content: "乙"},
					},
				},
				{
					QuestionType: "multiple_choice",
					Content:      "多选题",
					Points:       3,
					Order:        9,
					Options: []TestOptionReq{
						{Content: "甲", IsCorrect: true},
						{Content: "乙", IsCorrect: true},
					},
				},
			},
		},
		{
			Title:     "第二节",
			Questions: []TestQuestionReq{{QuestionType: "single_choice", Content: "题", Points: 1, Options: []TestOptionReq{{Content: "甲", IsCorrect: true}}}},
		},
	}

	sections, questions, options := buildContent("test-1", reqs)

	require.Len(t, sections, 2)
	require.Len(t, questions, 3)
	require.Len(t, options, 5)

	for _, sec := range sections {
		assert.Equal(t, "test-1", sec.TestID)
		assert.NotEmpty(t, sec.ID)
	}
	assert.NotEqual(t, sections[0].ID, sections[1].ID)

	// 题目挂在所属小节下，同时冗余 test_id 方便整卷查询
	assert.Equal(t, sections[0].ID, questions[0].SectionID)
	assert.Equal(t, sections[0].ID, questions[1].SectionID)
	assert.Equal(t, sections[1].ID, questions[2].SectionID)
	for _, q := range questions {
		assert.Equal(t, "test-1", q.TestID)
		assert.NotEmpty(t, q.ID)
	}

	assert.Equal(t, questions[0].ID, options[0].QuestionID)
	assert.Equal(t, questions[0].ID, options[1].QuestionID)
	assert.Equal(t, questions[1].ID, options[2].QuestionID)
	assert.True(t, options[0].IsCorrect)
	assert.False(t, options[1].IsCorrect)

	// 未指定顺序按出现位置兜底，显式指定的保留
	assert.Equal(t, 1, questions[0].Order)
	assert.Equal(t, 9, questions[1].Order)
	assert.Equal(t, 1, sections[0].Order)
	assert.Equal(t, 2, sections[1].Order)
}
