package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"

	tactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/yourorg/bulk-verify/internal/activities"
	"github.com/yourorg/bulk-verify/internal/credits"
	"github.com/yourorg/bulk-verify/internal/db"
	bvmetrics "github.com/yourorg/bulk-verify/internal/metrics"
	"github.com/yourorg/bulk-verify/internal/pipeline"
	"github.com/yourorg/bulk-verify/internal/storage"
	"github.com/yourorg/bulk-verify/internal/verify"
	"github.com/yourorg/bulk-verify/internal/workflow"
)

func main() {
	ctx := context.Background()

	// Support both TEMPORAL_TARGET_HOST and TEMPORAL_ADDRESS for compatibility
	taddr := getenv("TEMPORAL_TARGET_HOST", getenv("TEMPORAL_ADDRESS", "localhost:7233"))
	ns := getenv("TEMPORAL_NAMESPACE", "default")
	q := getenv("TEMPORAL_TASK_QUEUE", workflow.TaskQueue)

	// Structured logger (zap)
	zl := newZap(getenv("LOG_LEVEL", "info"))
	defer zl.Sync()

	// Metrics server
	bvmetrics.Init()
	go func() {
		addr := bvmetrics.AddrFromEnv()
		_ = bvmetrics.Serve(addr)
	}()

	pool, err := db.Connect(ctx, db.FromEnv())
	if err != nil {
		log.Fatal("db connect:", err)
	}
	defer pool.Close()

	store, err := storage.NewS3(ctx)
	if err != nil {
		log.Fatal("s3 init:", err)
	}

	c, err := client.Dial(client.Options{HostPort: taddr, Namespace: ns})
	if err != nil {
		log.Fatal("temporal client:", err)
	}
	defer c.Close()

	pl := pipeline.New(
		store,
		verify.NewClient(verify.FromEnv(), zl),
		credits.NewLedger(pool),
		db.NewFileRepo(pool),
		zl,
		pipeline.Config{Workers: getenvInt("VERIFY_WORKERS", 0)},
	)

	w := worker.New(c, q, worker.Options{})
	acts := activities.New(pl)
	// Register activities with explicit names matching workflow.ExecuteActivity calls
	w.RegisterActivityWithOptions(acts.RunValidation, tactivity.RegisterOptions{Name: "Activities.RunValidation"})
	w.RegisterWorkflow(workflow.ValidationWorkflow)

	zl.Info("worker started", zap.String("namespace", ns), zap.String("taskQueue", q), zap.String("metrics", getenv("METRICS_ADDR", ":9090")))
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("worker failed:", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func newZap(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
