package router

import (
	"time"

	"stockledger/internal/config"
	"stockledger/internal/handler"
	"stockledger/internal/middleware"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB
func New(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute))

	// ── Repositories ─────────────────────────────────────────────────────────
	itemRepo := repository.NewItemRepository(db)
	recipeRepo := repository.NewRecipeRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(cfg)
	ledgerSvc := service.NewLedgerService(ledgerRepo, recipeRepo)
	catalogSvc := service.NewCatalogService(itemRepo, recipeRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	opsH := handler.NewOpsHandler(ledgerSvc)
	stockH := handler.NewStockHandler(ledgerSvc)
	catalogH := handler.NewCatalogHandler(catalogSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db))
	r.POST("/v1/auth/login", middleware.LoginRateLimiter(), authH.Login)

	// Protected routes
	v1 := r.Group("/v1", middleware.SessionAuth(cfg.JWTSecret))
	{
		// The four write procedures — one round trip each, idempotent by key
		ops := v1.Group("/ops")
		{
			ops.POST("/receive", opsH.Receive)
			ops.POST("/transfer", opsH.Transfer)
			ops.POST("/produce", opsH.Produce)
			ops.POST("/dispatch", opsH.Dispatch)
		}

		v1.GET("/stock", stockH.StockOnHand)
		v1.GET("/stock/by-location", stockH.StockByLocation)
		v1.GET("/stock.csv", stockH.StockCSV)
		v1.GET("/history", stockH.History)
		v1.GET("/history.csv", stockH.HistoryCSV)

		v1.GET("/items", catalogH.ListItems)
		v1.POST("/items", catalogH.CreateItem)
		v1.DELETE("/items/:id", catalogH.DeactivateItem)

		v1.GET("/recipes", catalogH.ListRecipes)
		v1.POST("/recipes", catalogH.CreateRecipe)
	}

	return r
}
