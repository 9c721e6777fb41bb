package model

import "time"

// swagger:model ExamTest
type ExamTest struct {
	UUIDBase
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	DurationSeconds int        `gorm:"default:0" json:"durationSeconds"`
	PassingScore    float64    `gorm:"default:60" json:"passingScore"` // 及格线，百分比
	IsPublished     bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	CreatorID       uint       `gorm:"index;type:bigint unsigned" json:"creatorId"`
}

func (ExamTest) TableName() string {
	return "exam_tests"
}

type ExamSection struct {
	UUIDBase
	TestID string `gorm:"index;type:varchar(36)" json:"testId"`
	Title  string `gorm:"size:255;not null" json:"title"`
	Order  int    `gorm:"default:0" json:"order"`
}

func (ExamSection) TableName() string {
	return "exam_sections"
}

type ExamQuestion struct {
	UUIDBase
	SectionID    string `gorm:"index;type:varchar(36)" json:"sectionId"`
	TestID       string `gorm:"index;type:varchar(36)" json:"testId"`
	QuestionType string `gorm:"size:50;not null" json:"questionType"`
	Content      string `gorm:"type:text;not null" json:"content"`
	Points       int    `gorm:"default:1" json:"points"`
	Explanation  string `gorm:"type:text" json:"explanation"`
	Order        int    `gorm:"default:0" json:"order"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}

type ExamOption struct {
	UUIDBase
	QuestionID string `gorm:"index;type:varchar(36)" json:"questionId"`
	Content    string `gorm:"type:text;not null" json:"content"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
	Order      int    `gorm:"default:0" json:"order"`
}

func (ExamOption) TableName() string {
	return "exam_options"
}
