package controller

import (
	"errors"
	"examhub_backend/internal/engine"
	"examhub_backend/internal/service"
	"examhub_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SessionController 学生答题流程：开考、作答、导航、交卷、查成绩
type SessionController struct {
	Service *service.SessionService
}

func NewSessionController(svc *service.SessionService) *SessionController {
	return &SessionController{Service: svc}
}

// @Summary 开始答题
// @Description 校验试卷并建立计时会话；已交卷的试卷可重考，产生全新会话；结构非法的试卷返回 422（cannot load this test）
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Param testId path string true "试卷ID"
// @Success 201 {object} util.Response
// @Router /api/tests/{testId}/sessions [post]
func (c *SessionController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.Service.StartSession(ctx.Request.Context(), user.UserID, ctx.Param("testId"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrTestNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrTestNotPublished):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrTestNotLoadable):
			util.UnprocessableEntity(ctx, util.ErrTestNotLoadable.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, view)
}

// @Summary 会话状态
// @Description 游标、进度、剩余时间、倒计时告警级别
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id} [get]
func (c *SessionController) State(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	state, err := c.Service.State(user.UserID, ctx.Param("id"))
	if err != nil {
		c.writeSessionError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// swagger:model AnswerRequest
type AnswerRequest struct {
	QuestionID  string   `json:"questionId" binding:"required"`
	SelectedIDs []string `json:"selectedIds"`
}

// @Summary 记录作答
// @Description 整体替换该题选中集合；时间耗尽或已交卷后拒绝
// @Tags 答题
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param body body AnswerRequest true "作答内容"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/answers [put]
func (c *SessionController) Answer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	err := c.Service.RecordAnswer(user.UserID, ctx.Param("id"), req.QuestionID, req.SelectedIDs)
	if err != nil {
		if errors.Is(err, util.ErrTooManySelections) {
			util.BadRequest(ctx, err.Error())
			return
		}
		if errors.Is(err, util.ErrTestAlreadySubmitted) {
			util.Conflict(ctx, err.Error())
			return
		}
		c.writeSessionError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

// swagger:model NavigateRequest
type NavigateRequest struct {
	Action string `json:"action" binding:"required,oneof=advance retreat section question"`
	Index  int    `json:"index"`
}

// @Summary 导航
// @Description advance/retreat 跨小节连续移动；section/question 直接跳转，越界收敛不报错
// @Tags 答题
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param body body NavigateRequest true "导航动作"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/navigate [post]
func (c *SessionController) Navigate(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req NavigateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	sessionID := ctx.Param("id")
	var state *service.SessionState
	var err error

	switch req.Action {
	case "advance":
		state, err = c.Service.Advance(user.UserID, sessionID)
	case "retreat":
		state, err = c.Service.Retreat(user.UserID, sessionID)
	case "section":
		state, err = c.Service.JumpToSection(user.UserID, sessionID, req.Index)
	case "question":
		state, err = c.Service.JumpToQuestion(user.UserID, sessionID, req.Index)
	}

	if err != nil {
		c.writeSessionError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// @Summary 交卷
// @Description 冻结当前答案并评分，单次操作；重复交卷返回 409
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/submit [post]
func (c *SessionController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	report, err := c.Service.Submit(user.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrTestAlreadySubmitted) {
			util.Conflict(ctx, err.Error())
			return
		}
		c.writeSessionError(ctx, err)
		return
	}

	util.Success(ctx, report)
}

// @Summary 弃考
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id} [delete]
func (c *SessionController) Abandon(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.Abandon(user.UserID, ctx.Param("id")); err != nil {
		c.writeSessionError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 我的成绩单
// @Description 已交卷（含超时强制交卷）的成绩查询，TimedOut 标明是否自动交卷
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Param testId path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/tests/{testId}/result [get]
func (c *SessionController) Result(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, answers, err := c.Service.Result(user.UserID, ctx.Param("testId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"attempt":        attempt,
		"answers":        answers,
		"elapsedDisplay": engine.FormatElapsed(attempt.ElapsedSeconds),
	})
}

// @Summary 我的历史成绩
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/attempts [get]
func (c *SessionController) History(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempts, err := c.Service.History(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

func (c *SessionController) writeSessionError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrSessionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
