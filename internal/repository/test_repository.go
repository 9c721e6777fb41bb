package repository

import (
	"examhub_backend/internal/model"

	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

// CreateTest 试卷与小节/题目/选项在同一事务内落库，小节建失败不留孤儿试卷
func (r *TestRepository) CreateTest(test *model.ExamTest, sections []model.ExamSection, questions []model.ExamQuestion, options []model.ExamOption) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(test).Error; err != nil {
			return err
		}
		return insertContent(tx, sections, questions, options)
	})
}

func (r *TestRepository) FindTestByID(id string) (*model.ExamTest, error) {
	var test model.ExamTest
	err := r.DB.First(&test, "id = ?", id).Error
	return &test, err
}

func (r *TestRepository) UpdateTest(test *model.ExamTest) error {
	return r.DB.Save(test).Error
}

// DeleteTest 连同小节、题目、选项一并删除
func (r *TestRepository) DeleteTest(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var questionIDs []string
		if err := tx.Model(&model.ExamQuestion{}).Where("test_id = ?", id).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.ExamOption{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("test_id = ?", id).Delete(&model.ExamQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", id).Delete(&model.ExamSection{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ExamTest{}, "id = ?", id).Error
	})
}

type TestListRow struct {
	model.ExamTest
	SectionCount  int `json:"sectionCount"`
	QuestionCount int `json:"questionCount"`
	AttemptCount  int `json:"attemptCount"`
}

func (r *TestRepository) ListTests(page, limit int) ([]TestListRow, int64, error) {
	var total int64
	if err := r.DB.Model(&model.ExamTest{}).Where("deleted_at IS NULL").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tests []TestListRow
	query := r.DB.Table("exam_tests t").
		Select("t.*, " +
			"(SELECT COUNT(*) FROM exam_sections s WHERE s.test_id = t.id AND s.deleted_at IS NULL) as section_count, " +
			"(SELECT COUNT(*) FROM exam_questions q WHERE q.test_id = t.id AND q.deleted_at IS NULL) as question_count, " +
			"(SELECT COUNT(*) FROM exam_attempts a WHERE a.test_id = t.id AND a.deleted_at IS NULL) as attempt_count").
		Where("t.deleted_at IS NULL")

	if limit > 0 {
		offset := (page - 1) * limit
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("t.created_at desc").Scan(&tests).Error
	return tests, total, err
}

func (r *TestRepository) ListSections(testID string) ([]model.ExamSection, error) {
	var sections []model.ExamSection
	err := r.DB.Where("test_id = ?", testID).Order("`order` asc, created_at asc").Find(&sections).Error
	return sections, err
}

func (r *TestRepository) ListQuestions(testID string) ([]model.ExamQuestion, error) {
	var questions []model.ExamQuestion
	err := r.DB.Where("test_id = ?", testID).Order("`order` asc, created_at asc").Find(&questions).Error
	return questions, err
}

func (r *TestRepository) ListOptions(questionIDs []string) ([]model.ExamOption, error) {
	var options []model.ExamOption
	if len(questionIDs) == 0 {
		return options, nil
	}
	err := r.DB.Where("question_id IN ?", questionIDs).Order("`order` asc, created_at asc").Find(&options).Error
	return options, err
}

// ReplaceContent 整卷覆盖：删除旧的小节/题目/选项后按新结构重建
func (r *TestRepository) ReplaceContent(testID string, sections []model.ExamSection, questions []model.ExamQuestion, options []model.ExamOption) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var oldQuestionIDs []string
		if err := tx.Model(&model.ExamQuestion{}).Where("test_id = ?", testID).Pluck("id", &oldQuestionIDs).Error; err != nil {
			return err
		}
		if len(oldQuestionIDs) > 0 {
			if err := tx.Unscoped().Where("question_id IN ?", oldQuestionIDs).Delete(&model.ExamOption{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("test_id = ?", testID).Delete(&model.ExamQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("test_id = ?", testID).Delete(&model.ExamSection{}).Error; err != nil {
			return err
		}

		return insertContent(tx, sections, questions, options)
	})
}

func insertContent(tx *gorm.DB, sections []model.ExamSection, questions []model.ExamQuestion, options []model.ExamOption) error {
	for i := range sections {
		if err := tx.Create(&sections[i]).Error; err != nil {
			return err
		}
	}
	for i := range questions {
		if err := tx.Create(&questions[i]).Error; err != nil {
			return err
		}
	}
	for i := range options {
		if err := tx.Create(&options[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *TestRepository) SetPublished(testID string, published bool) error {
	updates := map[string]interface{}{"is_published": published}
	if published {
		updates["published_at"] = gorm.Expr("CURRENT_TIMESTAMP(3)")
	}
	return r.DB.Model(&model.ExamTest{}).Where("id = ?", testID).Updates(updates).Error
}
