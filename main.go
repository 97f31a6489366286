package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"papertrade/config"
	"papertrade/engine"
	"papertrade/handlers"
	"papertrade/middleware"
	"papertrade/models"
	"papertrade/quotes"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded:", err)
	}
	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET not set")
	}
	if os.Getenv("ALPHA_VANTAGE_API_KEY") == "" {
		log.Fatal("ALPHA_VANTAGE_API_KEY not set")
	}

	// Initialize PostgreSQL and Redis connections.
	config.InitDB()
	config.InitRedis()

	sqlDB, err := config.DB.DB()
	if err != nil {
		log.Fatal("Failed to get database instance: ", err)
	}
	defer sqlDB.Close()

	if err := config.DB.AutoMigrate(&models.User{}, &models.Holding{}, &models.Transaction{}); err != nil {
		log.Fatal("Failed to migrate models:", err)
	}

	provider := quotes.NewAlphaVantage(os.Getenv("ALPHA_VANTAGE_API_KEY"), config.Rdb)
	handlers.Init(engine.New(config.DB, provider), provider)

	router := gin.Default()

	// Public routes
	router.POST("/signup", handlers.Signup)
	router.POST("/login", handlers.Login)

	// Protected routes
	auth := router.Group("/")
	auth.Use(middleware.JWTAuth())
	{
		auth.GET("/quote/:symbol", handlers.GetQuote)
		auth.POST("/buy", handlers.Buy)
		auth.POST("/sell", handlers.Sell)
		auth.GET("/portfolio", handlers.GetPortfolio)
		auth.GET("/history", handlers.GetHistory)
		auth.POST("/portfolio/rebuild", handlers.RebuildHoldings)
	}

	router.Run(":8080")
}
