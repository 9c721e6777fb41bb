package engine

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrSessionClosed    = errors.New("session closed")
	ErrAlreadySubmitted = errors.New("session already submitted")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrUnknownOption    = errors.New("unknown answer option")
)

// Cursor 当前所在小节与小节内题目下标，始终处于试卷边界内
type Cursor struct {
	Section  int `json:"section"`
	Question int `json:"question"`
}

// Progress 作答进度，由答案映射实时推导，绝不单独计数
type Progress struct {
	Answered   int     `json:"answered"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Session 一次答题会话：游标 + 答案映射 + 倒计时。
// 宿主是多线程运行时，内部用互斥量保证答案映射单写者不变量。
// 提交是单次状态迁移：in-progress -> scored，之后所有修改操作被拒绝。
type Session struct {
	mu      sync.Mutex
	def     *TestDefinition
	byID    map[string]*Question
	cursor  Cursor
	answers map[string][]string
	clock   Countdown
	report  *ScoreReport
}

// NewSession 校验试卷并建立会话，校验失败的试卷不产生会话
func NewSession(def *TestDefinition, th Thresholds) (*Session, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	byID := make(map[string]*Question, def.QuestionCount())
	for si := range def.Sections {
		for qi := range def.Sections[si].Questions {
			q := &def.Sections[si].Questions[qi]
			byID[q.ID] = q
		}
	}

	return &Session{
		def:     def,
		byID:    byID,
		answers: make(map[string][]string),
		clock:   NewCountdown(def.DurationSeconds, th),
	}, nil
}

func (s *Session) Definition() *TestDefinition { return s.def }

// RecordAnswer 整体替换该题的选中集合。时间耗尽或已评分后一律拒绝。
func (s *Session) RecordAnswer(questionID string, selectedIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.report != nil || s.clock.TimeUp() {
		return ErrSessionClosed
	}

	q, ok := s.byID[questionID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, questionID)
	}
	for _, id := range selectedIDs {
		if !q.hasOption(id) {
			return fmt.Errorf("%w: question %q option %q", ErrUnknownOption, questionID, id)
		}
	}

	// 去重后存副本，调用方之后改动切片不影响会话状态
	stored := make([]string, 0, len(selectedIDs))
	seen := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		if !seen[id] {
			seen[id] = true
			stored = append(stored, id)
		}
	}
	s.answers[questionID] = stored
	return nil
}

// Advance 前进一题，跨小节连续；最后一题上前进为空操作
func (s *Session) Advance() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec := s.def.Sections[s.cursor.Section]
	if s.cursor.Question < len(sec.Questions)-1 {
		s.cursor.Question++
	} else if s.cursor.Section < len(s.def.Sections)-1 {
		s.cursor.Section++
		s.cursor.Question = 0
	}
	return s.cursor
}

// Retreat 后退一题，跨小节连续；第一题上后退为空操作
func (s *Session) Retreat() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor.Question > 0 {
		s.cursor.Question--
	} else if s.cursor.Section > 0 {
		s.cursor.Section--
		s.cursor.Question = len(s.def.Sections[s.cursor.Section].Questions) - 1
	}
	return s.cursor
}

// JumpToSection 越界下标收敛到边界，不报错
func (s *Session) JumpToSection(index int) Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor.Section = clamp(index, 0, len(s.def.Sections)-1)
	s.cursor.Question = 0
	return s.cursor
}

// JumpToQuestion 在当前小节内跳题，越界收敛
func (s *Session) JumpToQuestion(index int) Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec := s.def.Sections[s.cursor.Section]
	s.cursor.Question = clamp(index, 0, len(sec.Questions)-1)
	return s.cursor
}

func (s *Session) Cursor() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Session) CurrentQuestion() Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def.Sections[s.cursor.Section].Questions[s.cursor.Question]
}

// IsAnswered 判定映射中是否存在条目；存在空选集的条目也算已作答
func (s *Session) IsAnswered(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.answers[questionID]
	return ok
}

// SelectedAnswers 返回该题当前选中集合的副本
func (s *Session) SelectedAnswers(questionID string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.answers[questionID]
	if !ok {
		return nil, false
	}
	out := make([]string, len(stored))
	copy(out, stored)
	return out, true
}

// SectionProgress 单节进度，纯投影
func (s *Session) SectionProgress(index int) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	index = clamp(index, 0, len(s.def.Sections)-1)
	sec := s.def.Sections[index]
	answered := 0
	for _, q := range sec.Questions {
		if _, ok := s.answers[q.ID]; ok {
			answered++
		}
	}
	return newProgress(answered, len(sec.Questions))
}

// TotalProgress 全卷进度，纯投影
func (s *Session) TotalProgress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	answered := 0
	total := 0
	for _, sec := range s.def.Sections {
		total += len(sec.Questions)
		for _, q := range sec.Questions {
			if _, ok := s.answers[q.ID]; ok {
				answered++
			}
		}
	}
	return newProgress(answered, total)
}

// Tick 推进倒计时一秒。返回值表示本次 Tick 是否恰好耗尽时间，
// 仅在归零那一刻返回 true 一次，供协调器触发唯一一次强制提交。
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.report != nil {
		return false
	}
	wasUp := s.clock.TimeUp()
	s.clock = s.clock.Tick()
	return !wasUp && s.clock.TimeUp()
}

// Clock 倒计时快照
func (s *Session) Clock() Countdown {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// Submit 冻结答案快照并评分，单次操作；重复提交返回 ErrAlreadySubmitted
func (s *Session) Submit(timedOut bool) (*ScoreReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.report != nil {
		return nil, ErrAlreadySubmitted
	}

	// 评分使用不可变副本而非活引用
	snapshot := make(map[string][]string, len(s.answers))
	for qid, ids := range s.answers {
		cp := make([]string, len(ids))
		copy(cp, ids)
		snapshot[qid] = cp
	}

	report, err := Score(s.def, snapshot, s.clock.Elapsed())
	if err != nil {
		return nil, err
	}
	report.TimedOut = timedOut

	s.report = report
	return report, nil
}

// Report 已评分时返回成绩单，否则返回 nil
func (s *Session) Report() *ScoreReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

func newProgress(answered, total int) Progress {
	return Progress{
		Answered:   answered,
		Total:      total,
		Percentage: percentage(answered, total),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
