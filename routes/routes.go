package routes

import (
	"net/http"

	"crm-backend/config"
	"crm-backend/controllers"
	"crm-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type RouterDeps struct {
	Config    *config.Config
	Customers controllers.CustomerManager
	Logger    *logrus.Logger
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
	}))

	r.Use(utils.RequestID())
	r.Use(config.PerformanceLogger(deps.Logger, deps.Config.Server.SlowRequest))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	customerController := controllers.NewCustomerController(deps.Customers, deps.Logger)

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware(deps.Config.JWT.Secret))
	{
		customers := api.Group("/customers")
		{
			customers.GET("", customerController.GetCustomers)
			customers.GET("/segments", customerController.GetCustomerSegments)
			customers.POST("", customerController.CreateCustomer)
			customers.POST("/bulk-delete", customerController.BulkDeleteCustomers)
			customers.GET("/:id", customerController.GetCustomer)
			customers.PUT("/:id", customerController.UpdateCustomer)
			customers.PUT("/:id/score", customerController.UpdateCustomerScore)
			customers.DELETE("/:id", customerController.DeleteCustomer)
		}
	}

	return r
}
