package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/woventales/backend/internal/handlers"
	"github.com/woventales/backend/internal/metrics"
	"github.com/woventales/backend/internal/middleware"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/repositories"
	"github.com/woventales/backend/internal/repositories/memstore"
	"github.com/woventales/backend/internal/services"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories bundles the storage implementations the services run on
type Repositories struct {
	Stories  repositories.StoryRepository
	Scenes   repositories.SceneRepository
	Users    repositories.UserRepository
	Comments repositories.CommentRepository
	Progress repositories.ProgressRepository
}

// NewDatabaseRepositories migrates PostgreSQL, creates the MongoDB indexes
// and returns the database-backed repositories
func NewDatabaseRepositories(ctx context.Context, pgdb *gorm.DB, mongoDB *mongo.Database, logger *zap.Logger) (Repositories, error) {
	if err := pgdb.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Comment{},
		&models.StoryProgress{},
	); err != nil {
		return Repositories{}, fmt.Errorf("failed to auto migrate models: %w", err)
	}
	logger.Info("PostgreSQL auto-migrations completed")

	stories := repositories.NewMongoStoryRepository(mongoDB, logger)
	scenes := repositories.NewMongoSceneRepository(mongoDB, logger)
	if err := stories.EnsureIndexes(ctx); err != nil {
		return Repositories{}, fmt.Errorf("failed to create story indexes: %w", err)
	}
	if err := scenes.EnsureIndexes(ctx); err != nil {
		return Repositories{}, fmt.Errorf("failed to create scene indexes: %w", err)
	}
	logger.Info("MongoDB indexes ensured")

	return Repositories{
		Stories:  stories,
		Scenes:   scenes,
		Users:    repositories.NewPostgresUserRepository(pgdb),
		Comments: repositories.NewPostgresCommentRepository(pgdb),
		Progress: repositories.NewPostgresProgressRepository(pgdb),
	}, nil
}

// NewMemoryRepositories returns repositories backed by a fresh in-memory store
func NewMemoryRepositories() Repositories {
	store := memstore.New()
	return Repositories{
		Stories:  store.Stories,
		Scenes:   store.Scenes,
		Users:    store.Users,
		Comments: store.Comments,
		Progress: store.Progress,
	}
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, logger *zap.Logger, m *metrics.Metrics, requestTimeout time.Duration) {
	e.HTTPErrorHandler = handlers.NewErrorHandler(logger)
	e.Use(eMiddleware.RequestIDWithConfig(eMiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.EchoZapLogger(logger.Named("HTTP"), m))
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	if requestTimeout > 0 {
		e.Use(eMiddleware.ContextTimeout(requestTimeout))
	}
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, repos Repositories, auth echo.MiddlewareFunc, m *metrics.Metrics, logger *zap.Logger) {
	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Services ---
	authors := services.NewAuthorDirectory(repos.Users, logger)
	registry := services.NewStoryRegistry(repos.Stories, repos.Scenes, m, logger)
	graph := services.NewSceneGraph(repos.Stories, repos.Scenes, m, logger)
	engagement := services.NewEngagement(repos.Stories, repos.Scenes, repos.Comments, authors, m, logger)
	reader := services.NewReader(graph, engagement, repos.Progress, m, logger)

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(auth)

	handlers.NewStoryHandler(registry, graph, reader).RegisterStoryRoutes(api)
	handlers.NewSceneHandler(graph).RegisterSceneRoutes(api)
	handlers.NewLikeHandler(engagement, graph).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(engagement).RegisterCommentRoutes(api)
	handlers.NewEngagementHandler(engagement).RegisterEngagementRoutes(api)
	handlers.NewReaderHandler(reader).RegisterReaderRoutes(api)
	handlers.NewUserHandler(repos.Users, registry).RegisterProfileRoutes(api)

	logger.Info("All routes configured", zap.Int("routes", len(e.Routes())))
}
