package main

import (
	"context"
	"log"

	"crm-backend/cache"
	"crm-backend/config"
	"crm-backend/events"
	"crm-backend/metrics"
	"crm-backend/models"
	"crm-backend/repository"
	"crm-backend/routes"
	"crm-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := config.NewLogger(cfg.Log)
	gin.SetMode(cfg.Server.Mode)

	dialect, err := repository.ParseDialect(cfg.Database.Dialect)
	if err != nil {
		logger.WithError(err).Fatal("Invalid database dialect")
	}

	db, err := config.ConnectDB(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			logger.WithError(err).Fatal("Failed to migrate database")
		}
	}

	ctx := context.Background()
	caps := repository.ResolveCapabilities(ctx, repository.NewIntrospector(db, dialect, logger))
	logger.WithFields(logrus.Fields{
		"dialect": dialect,
		"tables":  caps.Tables(),
	}).Info("Schema capabilities resolved")

	segmentsCache := cache.New(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	defer segmentsCache.Close()

	publisher := events.New(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
	defer publisher.Close()

	customerService := services.NewCustomerService(services.CustomerServiceDeps{
		DB:                  db,
		Dialect:             dialect,
		Capabilities:        caps,
		Cache:               segmentsCache,
		Publisher:           publisher,
		Metrics:             metrics.New(prometheus.DefaultRegisterer),
		Logger:              logger,
		TransactionalDelete: cfg.Delete.Transactional,
		SegmentsTTL:         cfg.Redis.SegmentsTTL,
	})

	r := routes.SetupRouter(routes.RouterDeps{
		Config:    cfg,
		Customers: customerService,
		Logger:    logger,
	})
	printRoutes(r, logger)

	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
}

func printRoutes(r *gin.Engine, logger *logrus.Logger) {
	for _, route := range r.Routes() {
		logger.Debugf("%-6s %s", route.Method, route.Path)
	}
}
