package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/middlewares"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.NewLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	db := config.ConnectDatabaseWithRetry()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	// IMPORTANT: AutoMigrate can run DDL that blocks tables. Allow disabling
	// migrations on startup and running them as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal("migration failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	if err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error; err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).Warn("failed to set isolation level: " + err.Error())
	}

	redisClient, locker := config.ConnectRedisWithRetry()
	if locker == nil {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("redis not configured; posting relies on database locks only")
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	api := &apiServer{
		inventory:  workflow.NewInventoryService(db, logger),
		production: workflow.NewProductionService(db, logger, locker),
		reports:    workflow.NewReportService(db),
		auth:       workflow.NewAuthService(db, logger),
		logger:     logger,
	}

	r := newRouter(api, logger, redisClient)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}

func newRouter(api *apiServer, logger *logrus.Logger, redisClient *redis.Client) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS
	// (comma-separated). In non-production, allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "X-Correlation-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if redisClient != nil && strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limit := int64FromEnv("RATE_LIMIT_MAX_REQUESTS", 600)
		windowSec := int64FromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)
		rateLimiter := NewRateLimiter(redisClient, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/auth/login", api.login)

	authorized := r.Group("/", middlewares.RequireAuth())
	{
		authorized.GET("/materials", api.listMaterials)
		authorized.GET("/materials/:id", api.getMaterial)
		authorized.GET("/materials/:id/transactions", api.materialTransactions)
		authorized.POST("/materials/:id/restock", api.restockMaterial)
		authorized.GET("/low-stock", api.lowStock)

		authorized.GET("/recipe", api.getRecipe)

		authorized.POST("/productions", api.logProduction)
		authorized.GET("/productions/:id", api.getProduction)
		authorized.GET("/productions/:id/transactions", api.productionTransactions)

		authorized.GET("/reports/summary", api.productionSummary)
		authorized.GET("/reports/consumption/:id", api.materialConsumption)
		authorized.GET("/reports/stockout/:id", api.stockoutPrediction)
		authorized.GET("/reports/transactions", api.transactionsInRange)
		authorized.GET("/reports/productions", api.productionsInRange)
	}

	admin := r.Group("/", middlewares.RequireAuth(), middlewares.RequireAdmin())
	{
		admin.POST("/materials", api.createMaterial)
		admin.PUT("/materials/:id", api.updateMaterial)
		admin.POST("/materials/:id/adjust", api.adjustMaterial)
		admin.PUT("/recipe", api.setRecipeRequirement)
		admin.DELETE("/productions/:id", api.undoProduction)
		admin.POST("/auth/users", api.createUser)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

// customErrorLogger logs only requests that ended with gin errors attached.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// RateLimitMiddleware is IP-based fixed-window limiting backed by Redis.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "rate:" + c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		// Redis trouble must not take the API down.
		c.Next()
		return
	}

	if exists == 0 {
		if err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err(); err != nil {
			c.Next()
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.Next()
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func int64FromEnv(key string, def int64) int64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
