package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.temporal.io/sdk/client"

	"github.com/yourorg/bulk-verify/internal/api"
	"github.com/yourorg/bulk-verify/internal/db"
	"github.com/yourorg/bulk-verify/internal/storage"
)

func main() {
	ctx := context.Background()

	pool, err := db.Connect(ctx, db.FromEnv())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	store, err := storage.NewS3(ctx)
	if err != nil {
		log.Fatalf("Failed to init object store: %v", err)
	}

	// Initialize Gin
	r := gin.Default()
	r.MaxMultipartMemory = 32 << 20 // 32MB

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Initialize Temporal client
	temporalClient, err := client.Dial(client.Options{
		HostPort:  getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
	})
	if err != nil {
		log.Fatalf("Failed to connect to Temporal: %v", err)
	}
	defer temporalClient.Close()

	users := db.NewUserRepo(pool)
	files := db.NewFileRepo(pool)
	uploadPrefix := getEnv("UPLOAD_PREFIX", "s3://bulk-verify/uploads")

	// API routes
	apiV1 := r.Group("/api/v1")
	{
		handler := api.NewHandler(files, users)
		uploadHandler := api.NewUploadHandler(store, users, files, temporalClient, uploadPrefix)

		apiV1.POST("/files/validate", uploadHandler.ValidateFile)
		apiV1.GET("/files/:id/status", handler.GetFileStatus)
		apiV1.GET("/credits", handler.GetCredits)
	}

	// Start server
	port := getEnv("PORT", "8080")
	log.Printf("Server starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
