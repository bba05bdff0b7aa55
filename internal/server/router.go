package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/handlers"
)

type RouterConfig struct {
	SchedulerHandler *handlers.SchedulerHandler
	AllowOrigins     []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/volume/calculate", cfg.SchedulerHandler.CalculateVolume)
		api.POST("/schedule/generate", cfg.SchedulerHandler.GenerateSchedule)
		api.POST("/batch/run", cfg.SchedulerHandler.RunBatch)
		api.GET("/schedule/:creator_id", cfg.SchedulerHandler.GetWeek)
		api.GET("/saga/:creator_id", cfg.SchedulerHandler.ListSagas)
	}

	return router
}
