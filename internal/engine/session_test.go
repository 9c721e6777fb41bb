package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, def *TestDefinition) *Session {
	t.Helper()
	s, err := NewSession(def, DefaultThresholds())
	require.NoError(t, err)
	return s
}

func TestRecordAnswerReplacesSelection(t *testing.T) {
	s := newTestSession(t, sampleDef())

	require.NoError(t, s.RecordAnswer("q2", []string{"b"}))
	require.NoError(t, s.RecordAnswer("q2", []string{"b", "c"}))

	selected, ok := s.SelectedAnswers("q2")
	require.True(t, ok)
	assert.Equal(t, []string{"b", "c"}, selected)
}

func TestRecordAnswerIdempotent(t *testing.T) {
	s := newTestSession(t, sampleDef())

	require.NoError(t, s.RecordAnswer("q1", []string{"a"}))
	before := s.TotalProgress()

	require.NoError(t, s.RecordAnswer("q1", []string{"a"}))
	after := s.TotalProgress()

	assert.Equal(t, before, after)
	selected, _ := s.SelectedAnswers("q1")
	assert.Equal(t, []string{"a"}, selected)
}

func TestRecordAnswerValidatesReferences(t *testing.T) {
	s := newTestSession(t, sampleDef())

	err := s.RecordAnswer("ghost", []string{"a"})
	assert.ErrorIs(t, err, ErrUnknownQuestion)

	err = s.RecordAnswer("q1", []string{"zz"})
	assert.ErrorIs(t, err, ErrUnknownOption)

	// 非法调用不产生条目
	assert.False(t, s.IsAnswered("q1"))
}

func TestRecordAnswerStoresCopy(t *testing.T) {
	s := newTestSession(t, sampleDef())

	input := []string{"b", "c"}
	require.NoError(t, s.RecordAnswer("q2", input))
	input[0] = "a"

	selected, _ := s.SelectedAnswers("q2")
	assert.Equal(t, []string{"b", "c"}, selected)
}

func TestEmptySelectionCountsAsAnswered(t *testing.T) {
	s := newTestSession(t, sampleDef())

	require.NoError(t, s.RecordAnswer("q2", []string{}))
	assert.True(t, s.IsAnswered("q2"))
	assert.Equal(t, 1, s.TotalProgress().Answered)

	selected, ok := s.SelectedAnswers("q2")
	require.True(t, ok)
	assert.Empty(t, selected)
}

func TestProgressProjection(t *testing.T) {
	s := newTestSession(t, twoSectionDef())

	assert.Equal(t, Progress{Answered: 0, Total: 4, Percentage: 0}, s.TotalProgress())

	require.NoError(t, s.RecordAnswer("q1", []string{"a"}))
	require.NoError(t, s.RecordAnswer("q3", []string{"b"}))

	total := s.TotalProgress()
	assert.Equal(t, 2, total.Answered)
	assert.Equal(t, 4, total.Total)
	assert.InDelta(t, 50.0, total.Percentage, 0.001)

	first := s.SectionProgress(0)
	assert.Equal(t, 1, first.Answered)
	assert.Equal(t, 2, first.Total)

	// 改答已答题不改变进度计数
	require.NoError(t, s.RecordAnswer("q1", []string{"b"}))
	assert.Equal(t, 2, s.TotalProgress().Answered)
}

func TestNavigationAcrossSections(t *testing.T) {
	s := newTestSession(t, twoSectionDef())

	assert.Equal(t, Cursor{Section: 0, Question: 0}, s.Cursor())

	assert.Equal(t, Cursor{Section: 0, Question: 1}, s.Advance())
	// 节末前进滚入下一节
	assert.Equal(t, Cursor{Section: 1, Question: 0}, s.Advance())
	assert.Equal(t, Cursor{Section: 1, Question: 1}, s.Advance())
	// 最后一题上前进为空操作
	assert.Equal(t, Cursor{Section: 1, Question: 1}, s.Advance())

	assert.Equal(t, Cursor{Section: 1, Question: 0}, s.Retreat())
	// 节首后退滚回上一节末题
	assert.Equal(t, Cursor{Section: 0, Question: 1}, s.Retreat())
	assert.Equal(t, Cursor{Section: 0, Question: 0}, s.Retreat())
	// 第一题上后退为空操作
	assert.Equal(t, Cursor{Section: 0, Question: 0}, s.Retreat())
}

func TestJumpClampsOutOfRange(t *testing.T) {
	s := newTestSession(t, twoSectionDef())

	assert.Equal(t, Cursor{Section: 1, Question: 0}, s.JumpToSection(99))
	assert.Equal(t, Cursor{Section: 0, Question: 0}, s.JumpToSection(-3))

	assert.Equal(t, Cursor{Section: 0, Question: 1}, s.JumpToQuestion(99))
	assert.Equal(t, Cursor{Section: 0, Question: 0}, s.JumpToQuestion(-1))

	// 跳节重置节内题目位置
	s.JumpToQuestion(1)
	assert.Equal(t, Cursor{Section: 1, Question: 0}, s.JumpToSection(1))
}

func TestCurrentQuestionFollowsCursor(t *testing.T) {
	s := newTestSession(t, twoSectionDef())

	assert.Equal(t, "q1", s.CurrentQuestion().ID)
	s.Advance()
	assert.Equal(t, "q2", s.CurrentQuestion().ID)
	s.JumpToSection(1)
	assert.Equal(t, "q3", s.CurrentQuestion().ID)
}

func TestTickFiresExactlyOnceAtZero(t *testing.T) {
	def := sampleDef()
	def.DurationSeconds = 3
	s := newTestSession(t, def)

	assert.False(t, s.Tick())
	assert.False(t, s.Tick())
	// 恰好归零的那次 Tick 返回 true
	assert.True(t, s.Tick())
	// 之后永远为 false
	assert.False(t, s.Tick())
	assert.False(t, s.Tick())
	assert.True(t, s.Clock().TimeUp())
}

func TestRecordAnswerRejectedAfterTimeUp(t *testing.T) {
	def := sampleDef()
	def.DurationSeconds = 2
	s := newTestSession(t, def)

	require.NoError(t, s.RecordAnswer("q1", []string{"a"}))
	s.Tick()
	s.Tick()

	err := s.RecordAnswer("q2", []string{"b", "c"})
	assert.ErrorIs(t, err, ErrSessionClosed)

	// 超时前的作答保留在快照中
	report, err := s.Submit(true)
	require.NoError(t, err)
	assert.True(t, report.TimedOut)
	assert.Equal(t, 6, report.EarnedPoints)
	assert.Equal(t, 1, report.AnsweredCount)
	assert.Equal(t, 2, report.ElapsedSeconds)
}

func TestSubmitIsOneShot(t *testing.T) {
	s := newTestSession(t, sampleDef())
	require.NoError(t, s.RecordAnswer("q1", []string{"a"}))
	require.NoError(t, s.RecordAnswer("q2", []string{"b", "c"}))

	report, err := s.Submit(false)
	require.NoError(t, err)
	assert.Equal(t, 10, report.EarnedPoints)
	assert.InDelta(t, 100.0, report.Percentage, 0.001)
	assert.True(t, report.Passed)
	assert.Equal(t, "A", report.Grade)
	assert.False(t, report.TimedOut)

	// 重复提交与提交后作答一律拒绝
	_, err = s.Submit(false)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	err = s.RecordAnswer("q1", []string{"b"})
	assert.ErrorIs(t, err, ErrSessionClosed)

	// 成绩单冻结后可重复读取
	assert.Same(t, report, s.Report())
}

func TestSubmitStopsClock(t *testing.T) {
	def := sampleDef()
	def.DurationSeconds = 10
	s := newTestSession(t, def)

	s.Tick()
	s.Tick()
	_, err := s.Submit(false)
	require.NoError(t, err)

	// 提交后 Tick 不再推进，也不会再触发超时信号
	for i := 0; i < 20; i++ {
		assert.False(t, s.Tick())
	}
	assert.Equal(t, 8, s.Clock().Remaining())
}

func TestReportNilBeforeSubmit(t *testing.T) {
	s := newTestSession(t, sampleDef())
	assert.Nil(t, s.Report())
}
