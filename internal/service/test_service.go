package service

import (
	"context"
	"encoding/json"
	"errors"
	"examhub_backend/internal/engine"
	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const defCacheTTL = 10 * time.Minute

type TestService struct {
	Repo *repository.TestRepository
	Rdb  *redis.Client
}

func NewTestService(repo *repository.TestRepository, rdb *redis.Client) *TestService {
	return &TestService{Repo: repo, Rdb: rdb}
}

type TestOptionReq struct {
	Content   string `json:"content" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
	Order     int    `json:"order"`
}

type TestQuestionReq struct {
	QuestionType string          `json:"questionType" binding:"required"`
	Content      string          `json:"content" binding:"required"`
	Points       int             `json:"points"`
	Explanation  string          `json:"explanation"`
	Order        int             `json:"order"`
	Options      []TestOptionReq `json:"options" binding:"required"`
}

type TestSectionReq struct {
	Title     string            `json:"title" binding:"required"`
	Order     int               `json:"order"`
	Questions []TestQuestionReq `json:"questions" binding:"required"`
}

type TestReq struct {
	Title           *string           `json:"title"`
	Description     *string           `json:"description"`
	DurationSeconds *int              `json:"durationSeconds"`
	PassingScore    *float64          `json:"passingScore"`
	IsPublished     *bool             `json:"isPublished"`
	Sections        *[]TestSectionReq `json:"sections"`
}

func (s *TestService) CreateTest(creatorID uint, req TestReq) (*model.ExamTest, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, errors.New("title is required")
	}

	test := &model.ExamTest{
		Title:     *req.Title,
		CreatorID: creatorID,
	}
	test.ID = model.NewID()
	if req.Description != nil {
		test.Description = *req.Description
	}
	if req.DurationSeconds != nil {
		test.DurationSeconds = *req.DurationSeconds
	}
	if req.PassingScore != nil {
		test.PassingScore = *req.PassingScore
	}
	if req.IsPublished != nil {
		test.IsPublished = *req.IsPublished
	}

	var sections []model.ExamSection
	var questions []model.ExamQuestion
	var options []model.ExamOption
	if req.Sections != nil {
		sections, questions, options = buildContent(test.ID, *req.Sections)
	}

	if err := s.Repo.CreateTest(test, sections, questions, options); err != nil {
		return nil, err
	}

	return test, nil
}

func (s *TestService) UpdateTest(testID string, req TestReq) (*model.ExamTest, error) {
	test, err := s.Repo.FindTestByID(testID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Description != nil {
		test.Description = *req.Description
	}
	if req.DurationSeconds != nil {
		test.DurationSeconds = *req.DurationSeconds
	}
	if req.PassingScore != nil {
		test.PassingScore = *req.PassingScore
	}
	if req.IsPublished != nil {
		test.IsPublished = *req.IsPublished
	}

	if err := s.Repo.UpdateTest(test); err != nil {
		return nil, err
	}

	// 结构性修改采用整卷覆盖，避免三层嵌套的增量比对
	if req.Sections != nil {
		if err := s.replaceContent(testID, *req.Sections); err != nil {
			return nil, err
		}
	}

	s.invalidateCache(testID)
	return test, nil
}

func (s *TestService) replaceContent(testID string, sectionReqs []TestSectionReq) error {
	sections, questions, options := buildContent(testID, sectionReqs)
	return s.Repo.ReplaceContent(testID, sections, questions, options)
}

// buildContent 把请求结构展平成带 ID 的三层存储模型
func buildContent(testID string, sectionReqs []TestSectionReq) ([]model.ExamSection, []model.ExamQuestion, []model.ExamOption) {
	var sections []model.ExamSection
	var questions []model.ExamQuestion
	var options []model.ExamOption

	for si, sr := range sectionReqs {
		sec := model.ExamSection{
			TestID: testID,
			Title:  sr.Title,
			Order:  orderOr(sr.Order, si),
		}
		sec.ID = model.NewID()
		sections = append(sections, sec)

		for qi, qr := range sr.Questions {
			q := model.ExamQuestion{
				SectionID:    sec.ID,
				TestID:       testID,
				QuestionType: qr.QuestionType,
				Content:      qr.Content,
				Points:       qr.Points,
				Explanation:  qr.Explanation,
				Order:        orderOr(qr.Order, qi),
			}
			q.ID = model.NewID()
			questions = append(questions, q)

			for oi, or := range qr.Options {
				opt := model.ExamOption{
					QuestionID: q.ID,
					Content:    or.Content,
					IsCorrect:  or.IsCorrect,
					Order:      orderOr(or.Order, oi),
				}
				opt.ID = model.NewID()
				options = append(options, opt)
			}
		}
	}

	return sections, questions, options
}

func (s *TestService) DeleteTest(testID string) error {
	if err := s.Repo.DeleteTest(testID); err != nil {
		return err
	}
	s.invalidateCache(testID)
	return nil
}

func (s *TestService) GetTest(testID string) (*model.ExamTest, []model.ExamSection, []model.ExamQuestion, []model.ExamOption, error) {
	test, err := s.Repo.FindTestByID(testID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	sections, err := s.Repo.ListSections(testID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	questions, err := s.Repo.ListQuestions(testID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	options, err := s.Repo.ListOptions(ids)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return test, sections, questions, options, nil
}

func (s *TestService) ListTests(page, limit int) ([]repository.TestListRow, int64, error) {
	return s.Repo.ListTests(page, limit)
}

func (s *TestService) SetPublished(testID string, published bool) error {
	// 发布前先确认试卷能通过引擎校验，坏卷不对学生可见
	if published {
		if _, err := s.materializeFromDB(testID); err != nil {
			return err
		}
	}
	if err := s.Repo.SetPublished(testID, published); err != nil {
		return err
	}
	s.invalidateCache(testID)
	return nil
}

// Materialize 把存储结构组装为引擎使用的不可变试卷定义，带 Redis 缓存
func (s *TestService) Materialize(ctx context.Context, testID string) (*engine.TestDefinition, error) {
	key := defCacheKey(testID)

	if s.Rdb != nil {
		if raw, err := s.Rdb.Get(ctx, key).Bytes(); err == nil {
			var def engine.TestDefinition
			if err := json.Unmarshal(raw, &def); err == nil {
				return &def, nil
			}
		}
	}

	def, err := s.materializeFromDB(testID)
	if err != nil {
		return nil, err
	}

	if s.Rdb != nil {
		if raw, err := json.Marshal(def); err == nil {
			if err := s.Rdb.Set(ctx, key, raw, defCacheTTL).Err(); err != nil {
				logger.Log.Warn("failed to cache test definition", zap.String("testId", testID), zap.Error(err))
			}
		}
	}

	return def, nil
}

func (s *TestService) materializeFromDB(testID string) (*engine.TestDefinition, error) {
	test, sections, questions, options, err := s.GetTest(testID)
	if err != nil {
		return nil, err
	}

	optsByQuestion := make(map[string][]engine.AnswerOption)
	for _, o := range options {
		optsByQuestion[o.QuestionID] = append(optsByQuestion[o.QuestionID], engine.AnswerOption{
			ID:        o.ID,
			Content:   o.Content,
			IsCorrect: o.IsCorrect,
		})
	}

	questionsBySection := make(map[string][]engine.Question)
	for _, q := range questions {
		questionsBySection[q.SectionID] = append(questionsBySection[q.SectionID], engine.Question{
			ID:          q.ID,
			Type:        engine.QuestionType(q.QuestionType),
			Content:     q.Content,
			Points:      q.Points,
			Options:     optsByQuestion[q.ID],
			Explanation: q.Explanation,
		})
	}

	def := &engine.TestDefinition{
		ID:              test.ID,
		Title:           test.Title,
		DurationSeconds: test.DurationSeconds,
		PassingScore:    test.PassingScore,
		Sections:        make([]engine.Section, 0, len(sections)),
	}
	for _, sec := range sections {
		def.Sections = append(def.Sections, engine.Section{
			ID:        sec.ID,
			Title:     sec.Title,
			Questions: questionsBySection[sec.ID],
		})
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func (s *TestService) invalidateCache(testID string) {
	if s.Rdb == nil {
		return
	}
	if err := s.Rdb.Del(context.Background(), defCacheKey(testID)).Err(); err != nil {
		logger.Log.Warn("failed to invalidate test definition cache", zap.String("testId", testID), zap.Error(err))
	}
}

func defCacheKey(testID string) string {
	return "examhub:def:" + testID
}

func orderOr(order, fallback int) int {
	if order > 0 {
		return order
	}
	return fallback + 1
}
