package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("inkwell_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// 公开路由
	public := r.Group("/api")
	{
		public.GET("/articles", api.GetArticles)
		public.GET("/articles/:id", api.GetArticle)
		public.POST("/subscribers", api.Subscribe)

		auth := public.Group("/auth")
		{
			auth.POST("/register", api.Register)
			auth.POST("/login", api.Login)
			auth.POST("/logout", api.Logout)
			auth.POST("/forgot-password", api.ForgotPassword)
			auth.POST("/reset-password", api.ResetPassword)
		}
	}

	// 需要管理员身份的后台路由
	admin := r.Group("/api")
	admin.Use(handler.AuthRequired(), handler.AdminRequired())
	{
		admin.POST("/articles", api.CreateArticle)
		admin.PUT("/articles/:id", api.UpdateArticle)
		admin.DELETE("/articles/:id", api.DeleteArticle)

		admin.GET("/subscribers", api.ListSubscribers)
		admin.DELETE("/subscribers/:id", api.DeleteSubscriber)
		admin.PATCH("/subscribers/:id", api.UpdateSubscriberStatus)

		admin.GET("/analytics", api.GetDashboard)
	}

	return r
}
