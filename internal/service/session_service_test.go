package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"examhub_backend/internal/config"
	"examhub_backend/internal/engine"
	"examhub_backend/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionDef() *engine.TestDefinition {
	return &engine.TestDefinition{
		ID:              "test-1",
		Title:           "示例试卷",
		DurationSeconds: 30,
		PassingScore:    70,
		Sections: []engine.Section{
			{
				ID:    "sec-1",
				Title: "第一节",
				Questions: []engine.Question{
					{
						ID: "q1", Type: engine.SingleChoice, Content: "单选题", Points: 6,
						Options: []engine.AnswerOption{
							{ID: "a", Content: "甲", IsCorrect: true},
							{ID: "b", Content: "乙"},
						},
					},
					{
						ID: "q2", Type: engine.MultipleChoice, Content: "多选题", Points: 4,
						Options: []engine.AnswerOption{
							{ID: "a", Content: "甲", IsCorrect: true},
							{ID: "b", Content: "乙", IsCorrect: true},
							{ID: "c", Content: "丙"},
						},
					},
				},
			},
		},
	}
}

func newLiveSession(t *testing.T, userID uint) *liveSession {
	t.Helper()

	eng, err := engine.NewSession(sessionDef(), engine.DefaultThresholds())
	require.NoError(t, err)

	_, cancel := context.WithCancel(context.Background())
	return &liveSession{
		ID:        uuid.New().String(),
		TestID:    "test-1",
		UserID:    userID,
		StartedAt: time.Now(),
		Engine:    eng,
		cancel:    cancel,
	}
}

// newServiceWithSession 绕过开考流程直接挂一个进行中的会话，
// 计时协程不启动，测试里手动 Tick
func newServiceWithSession(t *testing.T, userID uint) (*SessionService, *liveSession) {
	t.Helper()

	ls := newLiveSession(t, userID)
	svc := NewSessionService(nil, nil, &config.Config{})
	svc.register(ls)
	return svc, ls
}

func TestRegisterKeepsFirstSessionForSameOwner(t *testing.T) {
	svc := NewSessionService(nil, nil, &config.Config{})

	first := newLiveSession(t, 1)
	winner, inserted := svc.register(first)
	require.True(t, inserted)
	require.Same(t, first, winner)

	// 同一考生同一试卷的第二次登记放弃自己，拿回先到者的会话
	second := newLiveSession(t, 1)
	winner, inserted = svc.register(second)
	assert.False(t, inserted)
	assert.Same(t, first, winner)
	assert.Len(t, svc.sessions, 1)

	// 其他考生互不影响
	other := newLiveSession(t, 2)
	_, inserted = svc.register(other)
	assert.True(t, inserted)
	assert.Len(t, svc.sessions, 2)
}

func TestRegisterRacingStartsInsertExactlyOnce(t *testing.T) {
	svc := NewSessionService(nil, nil, &config.Config{})

	const racers = 16
	candidates := make([]*liveSession, racers)
	for i := range candidates {
		candidates[i] = newLiveSession(t, 7)
	}

	var wg sync.WaitGroup
	var insertCount int32
	for _, ls := range candidates {
		wg.Add(1)
		go func(ls *liveSession) {
			defer wg.Done()
			if _, inserted := svc.register(ls); inserted {
				atomic.AddInt32(&insertCount, 1)
			}
		}(ls)
	}
	wg.Wait()

	assert.Equal(t, int32(1), insertCount)
	assert.Len(t, svc.sessions, 1)
	assert.Len(t, svc.byOwner, 1)
}

func TestRetakeAllowedAfterSessionEnds(t *testing.T) {
	svc, first := newServiceWithSession(t, 1)

	// 交卷（或弃考）撤掉会话后，同一试卷可以重新开考，得到全新会话
	svc.evict(first.ID)
	assert.Empty(t, svc.sessions)

	second := newLiveSession(t, 1)
	winner, inserted := svc.register(second)
	assert.True(t, inserted)
	assert.Same(t, second, winner)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 0, second.Engine.TotalProgress().Answered)
}

func TestRecordAnswerSingleChoiceCardinality(t *testing.T) {
	svc, ls := newServiceWithSession(t, 1)

	// 单选题多于一个选项直接拒绝，不落入引擎
	err := svc.RecordAnswer(1, ls.ID, "q1", []string{"a", "b"})
	assert.ErrorIs(t, err, util.ErrTooManySelections)
	assert.False(t, ls.Engine.IsAnswered("q1"))

	require.NoError(t, svc.RecordAnswer(1, ls.ID, "q1", []string{"a"}))
	require.NoError(t, svc.RecordAnswer(1, ls.ID, "q2", []string{"a", "b"}))

	selected, _ := ls.Engine.SelectedAnswers("q2")
	assert.Equal(t, []string{"a", "b"}, selected)
}

func TestRecordAnswerAfterTimeoutMapsError(t *testing.T) {
	svc, ls := newServiceWithSession(t, 1)

	for !ls.Engine.Clock().TimeUp() {
		ls.Engine.Tick()
	}

	err := svc.RecordAnswer(1, ls.ID, "q1", []string{"a"})
	assert.ErrorIs(t, err, util.ErrTestAlreadySubmitted)
}

func TestSessionOwnershipEnforced(t *testing.T) {
	svc, ls := newServiceWithSession(t, 1)

	_, err := svc.State(2, ls.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	err = svc.RecordAnswer(2, ls.ID, "q1", []string{"a"})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = svc.State(1, "no-such-session")
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
}

func TestStateProjectionHidesCorrectness(t *testing.T) {
	svc, ls := newServiceWithSession(t, 1)
	require.NoError(t, svc.RecordAnswer(1, ls.ID, "q1", []string{"a"}))

	state, err := svc.State(1, ls.ID)
	require.NoError(t, err)

	assert.Equal(t, ls.ID, state.SessionID)
	assert.Equal(t, "q1", state.Question.ID)
	assert.True(t, state.Question.Answered)
	assert.Equal(t, []string{"a"}, state.Question.SelectedIDs)
	assert.Equal(t, 1, state.Progress.Answered)
	assert.Equal(t, 2, state.Progress.Total)
	assert.Equal(t, 30, state.RemainingSeconds)
	assert.Equal(t, "0:30", state.Clock)
	assert.Equal(t, engine.WarnNormal, state.WarningLevel)
}

func TestNavigationUpdatesCursor(t *testing.T) {
	svc, ls := newServiceWithSession(t, 1)

	state, err := svc.Advance(1, ls.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.Cursor{Section: 0, Question: 1}, state.Cursor)
	assert.Equal(t, "q2", state.Question.ID)

	state, err = svc.Retreat(1, ls.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.Cursor{Section: 0, Question: 0}, state.Cursor)

	state, err = svc.JumpToQuestion(1, ls.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Cursor.Question)
}
