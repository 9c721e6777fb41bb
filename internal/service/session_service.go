package service

import (
	"context"
	"encoding/json"
	"errors"
	"examhub_backend/internal/config"
	"examhub_backend/internal/engine"
	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"
	"examhub_backend/pkg/monitoring"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionService 是引擎三个组件的协调器：持有进行中的会话，驱动每秒一次的
// 倒计时，并在计时耗尽时触发唯一一次强制提交。进程重启后进行中的会话不恢复，
// 视为弃考（无服务端续考语义）。
type SessionService struct {
	Tests       *TestService
	AttemptRepo *repository.AttemptRepository
	Cfg         *config.Config

	mu       sync.Mutex
	sessions map[string]*liveSession
	byOwner  map[string]string // "userID:testID" -> sessionID
}

type liveSession struct {
	ID        string
	TestID    string
	UserID    uint
	StartedAt time.Time
	Engine    *engine.Session
	cancel    context.CancelFunc
}

func NewSessionService(tests *TestService, attemptRepo *repository.AttemptRepository, cfg *config.Config) *SessionService {
	return &SessionService{
		Tests:       tests,
		AttemptRepo: attemptRepo,
		Cfg:         cfg,
		sessions:    make(map[string]*liveSession),
		byOwner:     make(map[string]string),
	}
}

type StudentOption struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// StudentQuestion 发给考生的题目视图，不携带 IsCorrect 标记
type StudentQuestion struct {
	ID           string          `json:"id"`
	QuestionType string          `json:"questionType"`
	Content      string          `json:"content"`
	Points       int             `json:"points"`
	Options      []StudentOption `json:"options"`
	SelectedIDs  []string        `json:"selectedIds,omitempty"`
	Answered     bool            `json:"answered"`
}

type StudentSection struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Questions []StudentQuestion `json:"questions"`
}

type SectionState struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Progress engine.Progress `json:"progress"`
}

// SessionState 游标、进度与倒计时的即时投影
type SessionState struct {
	SessionID        string           `json:"sessionId"`
	TestID           string           `json:"testId"`
	Cursor           engine.Cursor    `json:"cursor"`
	Question         StudentQuestion  `json:"question"`
	Progress         engine.Progress  `json:"progress"`
	Sections         []SectionState   `json:"sections"`
	RemainingSeconds int              `json:"remainingSeconds"`
	Clock            string           `json:"clock"`
	WarningLevel     engine.WarnLevel `json:"warningLevel"`
	TimeUp           bool             `json:"timeUp"`
}

// SessionView 开考时下发的完整视图：脱敏试卷 + 初始状态
type SessionView struct {
	SessionID       string           `json:"sessionId"`
	TestID          string           `json:"testId"`
	Title           string           `json:"title"`
	DurationSeconds int              `json:"durationSeconds"`
	PassingScore    float64          `json:"passingScore"`
	Sections        []StudentSection `json:"sections"`
	State           SessionState     `json:"state"`
}

// StartSession 校验试卷并建立会话。校验失败的试卷返回 ErrTestNotLoadable，
// 不产生任何半残会话。已交卷的试卷可以重考：每次开考都是全新会话、全新成绩单，
// 成绩查询取最近一次提交。
func (s *SessionService) StartSession(ctx context.Context, userID uint, testID string) (*SessionView, error) {
	test, err := s.Tests.Repo.FindTestByID(testID)
	if err != nil {
		return nil, util.ErrTestNotFound
	}
	if !test.IsPublished {
		return nil, util.ErrTestNotPublished
	}

	// 同一考生同一试卷已有进行中的会话时直接复用
	s.mu.Lock()
	if sid, ok := s.byOwner[ownerKey(userID, testID)]; ok {
		ls := s.sessions[sid]
		s.mu.Unlock()
		return s.buildView(ls), nil
	}
	s.mu.Unlock()

	def, err := s.Tests.Materialize(ctx, testID)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidDefinition) {
			logger.Log.Error("refusing to start session on malformed test",
				zap.String("testId", testID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", util.ErrTestNotLoadable, err)
		}
		return nil, err
	}

	eng, err := engine.NewSession(def, engine.Thresholds{
		Warning:  s.Cfg.Engine.WarningFraction,
		Critical: s.Cfg.Engine.CriticalFraction,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrTestNotLoadable, err)
	}

	timerCtx, cancel := context.WithCancel(context.Background())
	ls := &liveSession{
		ID:        uuid.New().String(),
		TestID:    testID,
		UserID:    userID,
		StartedAt: time.Now(),
		Engine:    eng,
		cancel:    cancel,
	}

	// Materialize 期间锁是放开的，两个并发开考可能都通过了上面的复用检查，
	// 登记时在同一把锁内复查，后到的一方放弃自己的会话、拿回先到者的
	winner, inserted := s.register(ls)
	if !inserted {
		cancel()
		return s.buildView(winner), nil
	}
	monitoring.ActiveSessions.Inc()

	go s.runTimer(timerCtx, ls)

	logger.Log.Info("exam session started",
		zap.String("sessionId", ls.ID),
		zap.String("testId", testID),
		zap.Uint("userId", userID),
		zap.Int("durationSeconds", def.DurationSeconds))

	return s.buildView(ls), nil
}

// register 复查并登记必须在同一把锁内完成，否则竞态的双方都会登记，
// 先到者的会话被覆盖后计时协程仍在运行，到点会重复提交
func (s *SessionService) register(ls *liveSession) (*liveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sid, ok := s.byOwner[ownerKey(ls.UserID, ls.TestID)]; ok {
		return s.sessions[sid], false
	}
	s.sessions[ls.ID] = ls
	s.byOwner[ownerKey(ls.UserID, ls.TestID)] = ls.ID
	return ls, true
}

// runTimer 每秒推进一次倒计时；归零的那一个 Tick 触发强制提交后退出
func (s *SessionService) runTimer(ctx context.Context, ls *liveSession) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ls.Engine.Tick() {
				s.forceSubmit(ls)
				return
			}
		}
	}
}

// forceSubmit 计时器到点的自动提交，用当时已有的答案评分
func (s *SessionService) forceSubmit(ls *liveSession) {
	report, err := ls.Engine.Submit(true)
	if err != nil {
		// 与手动提交竞争时后到的一方放弃
		if errors.Is(err, engine.ErrAlreadySubmitted) {
			return
		}
		logger.Log.Error("forced submission failed",
			zap.String("sessionId", ls.ID), zap.Error(err))
		s.evict(ls.ID)
		return
	}

	if err := s.persist(ls, report); err != nil {
		logger.Log.Error("failed to persist forced submission",
			zap.String("sessionId", ls.ID), zap.Error(err))
	}
	monitoring.SubmissionCounter.WithLabelValues("timeout").Inc()
	s.evict(ls.ID)

	logger.Log.Info("exam session force-submitted on timeout",
		zap.String("sessionId", ls.ID),
		zap.Float64("percentage", report.Percentage),
		zap.Bool("passed", report.Passed))
}

// Submit 考生主动交卷
func (s *SessionService) Submit(userID uint, sessionID string) (*engine.ScoreReport, error) {
	ls, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}

	report, err := ls.Engine.Submit(false)
	if err != nil {
		if errors.Is(err, engine.ErrAlreadySubmitted) {
			return nil, util.ErrTestAlreadySubmitted
		}
		return nil, err
	}

	if err := s.persist(ls, report); err != nil {
		return nil, err
	}
	monitoring.SubmissionCounter.WithLabelValues("manual").Inc()
	s.evict(sessionID)

	logger.Log.Info("exam session submitted",
		zap.String("sessionId", sessionID),
		zap.Float64("percentage", report.Percentage),
		zap.Bool("passed", report.Passed))

	return report, nil
}

// RecordAnswer 整体替换作答。单选题的基数不变量在这一层强制：
// 多于一个选项的单选作答直接拒绝，不落入引擎。
func (s *SessionService) RecordAnswer(userID uint, sessionID, questionID string, selectedIDs []string) error {
	ls, err := s.lookup(userID, sessionID)
	if err != nil {
		return err
	}

	if q, ok := ls.Engine.Definition().QuestionByID(questionID); ok {
		if q.Type == engine.SingleChoice && len(selectedIDs) > 1 {
			return util.ErrTooManySelections
		}
	}

	if err := ls.Engine.RecordAnswer(questionID, selectedIDs); err != nil {
		if errors.Is(err, engine.ErrSessionClosed) {
			return util.ErrTestAlreadySubmitted
		}
		return err
	}
	return nil
}

func (s *SessionService) Advance(userID uint, sessionID string) (*SessionState, error) {
	ls, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	ls.Engine.Advance()
	return s.buildState(ls), nil
}

func (s *SessionService) Retreat(userID uint, sessionID string) (*SessionState, error) {
	ls, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	ls.Engine.Retreat()
	return s.buildState(ls), nil
}

func (s *SessionService) JumpToSection(userID uint, sessionID string, index int) (*SessionState, error) {
	ls, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	ls.Engine.JumpToSection(index)
	return s.buildState(ls), nil
}

func (s *SessionService) JumpToQuestion(userID uint, sessionID string, index int) (*SessionState, error) {
	ls, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	ls.Engine.JumpToQuestion(index)
	return s.buildState(ls), nil
}

func (s *SessionService) State(userID uint, sessionID string) (*SessionState, error) {
	ls, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.buildState(ls), nil
}

// Abandon 弃考：撤掉会话即可，不产生任何成绩
func (s *SessionService) Abandon(userID uint, sessionID string) error {
	if _, err := s.lookup(userID, sessionID); err != nil {
		return err
	}
	s.evict(sessionID)
	logger.Log.Info("exam session abandoned", zap.String("sessionId", sessionID))
	return nil
}

// History 当前考生的全部历史成绩，按时间倒序
func (s *SessionService) History(userID uint) ([]model.ExamAttempt, error) {
	return s.AttemptRepo.ListByUser(userID)
}

// Result 查询已落库的成绩单
func (s *SessionService) Result(userID uint, testID string) (*model.ExamAttempt, []model.ExamAttemptAnswer, error) {
	attempt, err := s.AttemptRepo.FindByUserAndTest(userID, testID)
	if err != nil {
		return nil, nil, err
	}
	answers, err := s.AttemptRepo.ListAnswers(attempt.ID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, answers, nil
}

func (s *SessionService) lookup(userID uint, sessionID string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ls, ok := s.sessions[sessionID]
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	if ls.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return ls, nil
}

func (s *SessionService) evict(sessionID string) {
	s.mu.Lock()
	ls, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
		delete(s.byOwner, ownerKey(ls.UserID, ls.TestID))
	}
	s.mu.Unlock()

	if ok {
		ls.cancel()
		monitoring.ActiveSessions.Dec()
	}
}

func (s *SessionService) persist(ls *liveSession, report *engine.ScoreReport) error {
	now := time.Now()

	sectionsJSON, err := json.Marshal(report.Sections)
	if err != nil {
		return err
	}

	attempt := &model.ExamAttempt{
		TestID:         ls.TestID,
		UserID:         ls.UserID,
		EarnedPoints:   report.EarnedPoints,
		TotalPoints:    report.TotalPoints,
		Percentage:     report.Percentage,
		Passed:         report.Passed,
		Grade:          report.Grade,
		AnsweredCount:  report.AnsweredCount,
		CorrectCount:   report.CorrectCount,
		IncorrectCount: report.IncorrectCount,
		ElapsedSeconds: report.ElapsedSeconds,
		TimedOut:       report.TimedOut,
		Sections:       sectionsJSON,
		StartedAt:      ls.StartedAt,
		CompletedAt:    &now,
	}

	var answers []model.ExamAttemptAnswer
	for _, sec := range report.Sections {
		for _, qr := range sec.Questions {
			selected, _ := json.Marshal(qr.SelectedIDs)
			correct, _ := json.Marshal(qr.CorrectIDs)
			answers = append(answers, model.ExamAttemptAnswer{
				QuestionID:  qr.QuestionID,
				SelectedIDs: selected,
				CorrectIDs:  correct,
				IsCorrect:   qr.Correct,
				Score:       qr.EarnedPoints,
			})
		}
	}

	return s.AttemptRepo.CreateWithAnswers(attempt, answers)
}

func (s *SessionService) buildState(ls *liveSession) *SessionState {
	eng := ls.Engine
	def := eng.Definition()
	cursor := eng.Cursor()
	clock := eng.Clock()

	sections := make([]SectionState, len(def.Sections))
	for i, sec := range def.Sections {
		sections[i] = SectionState{
			ID:       sec.ID,
			Title:    sec.Title,
			Progress: eng.SectionProgress(i),
		}
	}

	return &SessionState{
		SessionID:        ls.ID,
		TestID:           ls.TestID,
		Cursor:           cursor,
		Question:         s.studentQuestion(eng, def.Sections[cursor.Section].Questions[cursor.Question]),
		Progress:         eng.TotalProgress(),
		Sections:         sections,
		RemainingSeconds: clock.Remaining(),
		Clock:            clock.Clock(),
		WarningLevel:     clock.Level(),
		TimeUp:           clock.TimeUp(),
	}
}

func (s *SessionService) buildView(ls *liveSession) *SessionView {
	def := ls.Engine.Definition()

	sections := make([]StudentSection, len(def.Sections))
	for i, sec := range def.Sections {
		qs := make([]StudentQuestion, len(sec.Questions))
		for j, q := range sec.Questions {
			qs[j] = s.studentQuestion(ls.Engine, q)
		}
		sections[i] = StudentSection{ID: sec.ID, Title: sec.Title, Questions: qs}
	}

	return &SessionView{
		SessionID:       ls.ID,
		TestID:          ls.TestID,
		Title:           def.Title,
		DurationSeconds: def.DurationSeconds,
		PassingScore:    def.PassingScore,
		Sections:        sections,
		State:           *s.buildState(ls),
	}
}

func (s *SessionService) studentQuestion(eng *engine.Session, q engine.Question) StudentQuestion {
	opts := make([]StudentOption, len(q.Options))
	for i, o := range q.Options {
		opts[i] = StudentOption{ID: o.ID, Content: o.Content}
	}

	selected, answered := eng.SelectedAnswers(q.ID)
	return StudentQuestion{
		ID:           q.ID,
		QuestionType: string(q.Type),
		Content:      q.Content,
		Points:       q.Points,
		Options:      opts,
		SelectedIDs:  selected,
		Answered:     answered,
	}
}

func ownerKey(userID uint, testID string) string {
	return fmt.Sprintf("%d:%s", userID, testID)
}
