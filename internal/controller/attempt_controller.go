package controller

import (
	"errors"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AttemptController 教师端查看学生提交情况
type AttemptController struct {
	Repo *repository.AttemptRepository
}

func NewAttemptController(repo *repository.AttemptRepository) *AttemptController {
	return &AttemptController{Repo: repo}
}

// @Summary 某试卷的提交列表
// @Tags 成绩管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param studentName query string false "按学生姓名过滤"
// @Success 200 {object} util.Response
// @Router /api/teacher/tests/{id}/attempts [get]
func (c *AttemptController) ListByTest(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	studentName := ctx.Query("studentName")

	rows, total, err := c.Repo.ListByTest(ctx.Param("id"), page, limit, studentName)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.SuccessPage(ctx, rows, total, page, limit)
}

// @Summary 提交明细
// @Tags 成绩管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "提交ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/attempts/{id} [get]
func (c *AttemptController) Detail(ctx *gin.Context) {
	attempt, err := c.Repo.FindByID(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	answers, err := c.Repo.ListAnswers(attempt.ID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"attempt": attempt, "answers": answers})
}
