package app

import (
	"examhub_backend/internal/config"
	"examhub_backend/internal/middleware"
	"examhub_backend/internal/model"
	"examhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/me", c.auth.Me)

		// 学生答题流程
		authGroup.POST("/tests/:testId/sessions", c.session.Start)
		authGroup.GET("/tests/:testId/result", c.session.Result)
		authGroup.GET("/attempts", c.session.History)
		authGroup.GET("/sessions/:id", c.session.State)
		authGroup.PUT("/sessions/:id/answers", c.session.Answer)
		authGroup.POST("/sessions/:id/navigate", c.session.Navigate)
		authGroup.POST("/sessions/:id/submit", c.session.Submit)
		authGroup.DELETE("/sessions/:id", c.session.Abandon)

		// 教师端
		teacher := authGroup.Group("/teacher")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacher.POST("/tests", c.test.CreateTest)
			teacher.GET("/tests", c.test.ListTests)
			teacher.GET("/tests/:id", c.test.GetTest)
			teacher.PUT("/tests/:id", c.test.UpdateTest)
			teacher.DELETE("/tests/:id", c.test.DeleteTest)
			teacher.PUT("/tests/:id/publish", c.test.Publish)
			teacher.GET("/tests/:id/attempts", c.attempt.ListByTest)
			teacher.GET("/attempts/:id", c.attempt.Detail)
		}
	}
}
