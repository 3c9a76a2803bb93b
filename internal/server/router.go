package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/visaflow/visaflow-backend/internal/handlers"
	"github.com/visaflow/visaflow-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName        string
	AllowedOrigins     []string
	HealthcheckHandler *handlers.HealthcheckHandler
	VisaHandler        *handlers.VisaHandler
	UserHandler        *handlers.UserHandler
	AuthMiddleware     *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)

	api := router.Group("/api")
	{
		visa := api.Group("/visa")
		{
			visa.POST("/create", cfg.VisaHandler.Create)
			visa.GET("", cfg.VisaHandler.GetAll)
			visa.GET("/:id", cfg.VisaHandler.GetByID)
			visa.PUT("/:id", cfg.VisaHandler.Update)
			visa.DELETE("/:id", cfg.VisaHandler.Delete)
			visa.GET("/:id/sub-traveler/:subId", cfg.VisaHandler.GetSubTraveler)
			visa.PUT("/:id/sub-traveler/:subId", cfg.VisaHandler.UpdateSubTraveler)
			visa.DELETE("/:id/sub-traveler/:subId", cfg.VisaHandler.DeleteSubTraveler)
		}

		users := api.Group("/users")
		{
			users.POST("/register", cfg.UserHandler.Register)
			users.POST("/login", cfg.UserHandler.Login)

			protected := users.Group("")
			protected.Use(cfg.AuthMiddleware.RequireAuth())
			protected.GET("/:id", cfg.UserHandler.GetByID)

			admin := protected.Group("")
			admin.Use(cfg.AuthMiddleware.RequireAdmin())
			admin.GET("", cfg.UserHandler.GetAll)
			admin.DELETE("/:id", cfg.UserHandler.Delete)
		}
	}

	return router
}
