package app

import (
	"lms_backend/docs"
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
		public.POST("/auth/forgot-password", c.auth.ForgotPassword)
		public.POST("/auth/reset-password", c.auth.ResetPassword)

		// 课程目录对游客开放，登录用户能看到自己的购买状态
		public.GET("/courses", c.course.List)
		public.GET("/courses/:id", middleware.TryAuthMiddleware(cfg), c.course.Get)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)
		authGroup.PUT("/profile", c.auth.UpdateProfile)
		authGroup.PUT("/profile/password", c.auth.ChangePassword)

		// 订单与支付
		authGroup.POST("/orders", c.order.Create)
		authGroup.GET("/orders", c.order.List)
		authGroup.GET("/orders/:id", c.order.Get)
		authGroup.POST("/orders/:id/capture", c.order.Capture)

		// 通知
		authGroup.GET("/notifications", c.notification.List)
		authGroup.GET("/notifications/unread-count", c.notification.UnreadCount)
		authGroup.PUT("/notifications/:id/read", c.notification.MarkRead)
		authGroup.PUT("/notifications/read-all", c.notification.MarkAllRead)

		// 课程下的直播排期（已购学生或讲师）
		authGroup.GET("/courses/:id/sessions", c.liveSession.ListForCourse)

		// 媒体上传（讲师）
		media := authGroup.Group("/media")
		media.Use(middleware.RoleMiddleware(model.Instructor))
		{
			media.POST("/images", c.media.UploadImage)
			media.POST("/videos", c.media.UploadVideo)
			media.DELETE("", c.media.Delete)
		}

		// 学生端
		student := authGroup.Group("/student")
		{
			student.GET("/courses", c.course.ListPurchased)
			student.GET("/sessions", c.liveSession.ListUpcoming)

			student.POST("/courses/:courseId/progress", c.progress.MarkViewed)
			student.GET("/courses/:courseId/progress", c.progress.GetProgress)
			student.POST("/courses/:courseId/progress/reset", c.progress.ResetProgress)

			student.GET("/courses/:courseId/certificate/eligibility", c.progress.CheckCertificate)
			student.GET("/courses/:courseId/certificate", c.progress.DownloadCertificate)
		}

		// 讲师端
		instructor := authGroup.Group("/instructor")
		instructor.Use(middleware.RoleMiddleware(model.Instructor))
		{
			instructor.POST("/courses", c.course.Create)
			instructor.GET("/courses", c.course.ListMine)
			instructor.GET("/courses/:id", c.course.GetMine)
			instructor.PUT("/courses/:id", c.course.Update)
			instructor.PUT("/courses/:id/curriculum", c.course.ReplaceCurriculum)
			instructor.POST("/courses/:id/publish", c.course.Publish)
			instructor.DELETE("/courses/:id/publish", c.course.Unpublish)
			instructor.GET("/courses/:id/students", c.course.ListStudents)

			instructor.GET("/courses/:id/approvals", c.course.ListApprovals)
			instructor.POST("/courses/:id/approvals", c.course.GrantApproval)
			instructor.DELETE("/courses/:id/approvals/:studentId", c.course.RevokeApproval)

			instructor.POST("/sessions", c.liveSession.Create)
			instructor.POST("/sessions/:id/cancel", c.liveSession.Cancel)
			instructor.POST("/sessions/:id/finish", c.liveSession.Finish)
		}

		// 管理员
		admin := authGroup.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.Admin))
		{
			admin.GET("/users", c.user.List)
			admin.PUT("/users/:id/disabled", c.user.SetDisabled)
			admin.DELETE("/courses/:id", c.course.Delete)
		}
	}
}
