package model

import (
	"encoding/json"
	"time"
)

// ExamAttempt 一次提交的持久化成绩单，写入后不再重算
type ExamAttempt struct {
	UUIDBase
	TestID         string          `gorm:"index;type:varchar(36)" json:"testId"`
	UserID         uint            `gorm:"index;type:bigint unsigned" json:"userId"`
	EarnedPoints   int             `gorm:"default:0" json:"earnedPoints"`
	TotalPoints    int             `gorm:"default:0" json:"totalPoints"`
	Percentage     float64         `gorm:"default:0" json:"percentage"`
	Passed         bool            `gorm:"default:false" json:"passed"`
	Grade          string          `gorm:"size:2" json:"grade"`
	AnsweredCount  int             `gorm:"default:0" json:"answeredCount"`
	CorrectCount   int             `gorm:"default:0" json:"correctCount"`
	IncorrectCount int             `gorm:"default:0" json:"incorrectCount"`
	ElapsedSeconds int             `gorm:"default:0" json:"elapsedSeconds"`
	TimedOut       bool            `gorm:"default:false" json:"timedOut"` // 是否由计时器到点强制提交
	Sections       json.RawMessage `gorm:"type:json" json:"sections,omitempty"`
	StartedAt      time.Time       `json:"startedAt"`
	CompletedAt    *time.Time      `json:"completedAt"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

type ExamAttemptAnswer struct {
	UUIDBase
	AttemptID   string          `gorm:"index;type:varchar(36)" json:"attemptId"`
	QuestionID  string          `gorm:"index;type:varchar(36)" json:"questionId"`
	SelectedIDs json.RawMessage `gorm:"type:json" json:"selectedIds"`
	CorrectIDs  json.RawMessage `gorm:"type:json" json:"correctIds"`
	IsCorrect   bool            `gorm:"default:false" json:"isCorrect"`
	Score       int             `gorm:"default:0" json:"score"`
}

func (ExamAttemptAnswer) TableName() string {
	return "exam_attempt_answers"
}
