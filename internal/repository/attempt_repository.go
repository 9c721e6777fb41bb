package repository

import (
	"examhub_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// CreateWithAnswers 成绩单与逐题明细在同一事务内落库
func (r *AttemptRepository) CreateWithAnswers(attempt *model.ExamAttempt, answers []model.ExamAttemptAnswer) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attempt).Error; err != nil {
			return err
		}
		for i := range answers {
			answers[i].AttemptID = attempt.ID
			if err := tx.Create(&answers[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AttemptRepository) FindByID(id string) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := r.DB.First(&attempt, "id = ?", id).Error
	return &attempt, err
}

func (r *AttemptRepository) FindByUserAndTest(userID uint, testID string) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := r.DB.Where("user_id = ? AND test_id = ?", userID, testID).
		Order("created_at desc").First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) ListAnswers(attemptID string) ([]model.ExamAttemptAnswer, error) {
	var answers []model.ExamAttemptAnswer
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}

type AttemptListRow struct {
	model.ExamAttempt
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
}

func (r *AttemptRepository) ListByTest(testID string, page, limit int, studentName string) ([]AttemptListRow, int64, error) {
	base := r.DB.Table("exam_attempts a").
		Joins("JOIN users u ON u.id = a.user_id").
		Where("a.test_id = ? AND a.deleted_at IS NULL", testID)

	if studentName != "" {
		base = base.Where("u.name LIKE ?", "%"+studentName+"%")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []AttemptListRow
	query := base.Select("a.*, u.name as student_name, u.email as student_email")
	if limit > 0 {
		query = query.Offset((page - 1) * limit).Limit(limit)
	}
	err := query.Order("a.created_at desc").Scan(&rows).Error
	return rows, total, err
}

func (r *AttemptRepository) ListByUser(userID uint) ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.DB.Where("user_id = ?", userID).Order("created_at desc").Find(&attempts).Error
	return attempts, err
}
