package app

import (
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		authGroup.GET("/auth/me", c.auth.Me)

		// 学生相关接口
		a.registerStudentRoutes(authGroup, c)

		// 机构相关接口
		a.registerCompanyRoutes(authGroup, c)

		// 管理员相关接口
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)

		public.GET("/courses", c.course.ListPublished)
		public.GET("/courses/:id", middleware.OptionalAuth(cfg.JWT.Secret), c.course.Get)
		public.GET("/courses/:id/feedback", c.course.ListFeedback)

		public.GET("/certificates/verify/:certificateId", c.certificate.Verify)
		public.GET("/settings", c.admin.GetSettings)
	}
}

func (a *App) registerStudentRoutes(api *gin.RouterGroup, c *controllers) {
	student := middleware.RoleMiddleware(model.Student)

	api.POST("/courses/:id/enroll", student, c.enrollment.Enroll)
	api.POST("/courses/:id/feedback", student, c.course.SubmitFeedback)
	api.GET("/courses/:id/assignments", c.assignment.ListForCourse)
	api.POST("/payments/verify", student, c.enrollment.VerifyPayment)

	students := api.Group("/students")
	students.Use(student)
	{
		students.GET("/courses", c.enrollment.EnrolledCourses)
		students.GET("/payments", c.enrollment.PaymentHistory)

		students.POST("/progress", a.limiters.progress.Middleware(middleware.UserKey), c.progress.UpdateProgress)
		students.GET("/progress/:courseId", c.progress.GetProgress)

		students.GET("/certificates", c.certificate.List)
		students.GET("/certificates/:id", c.certificate.Get)

		students.POST("/assignments/:assignmentId/submit", c.assignment.Submit)
		students.GET("/submissions", c.assignment.MySubmissions)
	}
}

func (a *App) registerCompanyRoutes(api *gin.RouterGroup, c *controllers) {
	company := api.Group("/company")
	company.Use(middleware.RoleMiddleware(model.Company))
	{
		company.GET("/courses", c.course.ListMine)
		company.POST("/courses", c.course.Create)
		company.PUT("/courses/:id", c.course.Update)
		company.DELETE("/courses/:id", c.course.Delete)
		company.POST("/courses/:id/thumbnail", c.course.UploadThumbnail)
		company.POST("/courses/:id/lessons/:lessonId/video", c.course.UploadLessonVideo)
		company.POST("/courses/:id/publish", c.course.Publish)
		company.POST("/courses/:id/unpublish", c.course.Unpublish)
		company.GET("/courses/:id/students", c.course.Students)

		company.POST("/courses/:id/assignments", c.assignment.Create)
		company.DELETE("/assignments/:assignmentId", c.assignment.Delete)
		company.GET("/assignments/:assignmentId/submissions", c.assignment.ListSubmissions)
		company.POST("/submissions/:submissionId/grade", c.assignment.Grade)
	}
}

func (a *App) registerAdminRoutes(api *gin.RouterGroup, c *controllers) {
	admin := api.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.PUT("/settings", c.admin.UpdateSettings)
		admin.DELETE("/students/:id", c.admin.DeleteStudent)
		admin.DELETE("/courses/:id", c.admin.DeleteCourse)
	}
}
