package main

import (
	"os"

	"calc-pipeline/internal/api"
	"calc-pipeline/internal/store"
	"calc-pipeline/pkg/logger"
	"calc-pipeline/pkg/utils"

	_ "calc-pipeline/docs"
)

// @title Calc Pipeline API
// @version 1.0
// @description REST API for submitting calculation pipeline runs and fetching their traces, results and output files.
// @host localhost:8080
// @BasePath /api/v1
func main() {
	log, err := logger.New(envOr("LOG_MODE", "dev"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dbPath := envOr("DB_PATH", "pipeline.db")
	if err := store.InitDB(dbPath); err != nil {
		log.Fatal("failed to open database", "path", dbPath, "error", err)
	}
	defer store.CloseDB()

	om := utils.NewOutputManager(envOr("OUTPUT_DIR", "outputs"))
	if err := om.EnsureOutputDirExists(); err != nil {
		log.Fatal("failed to create output directory", "error", err)
	}

	r := api.NewRouter(log, om)

	addr := ":" + envOr("PORT", "8080")
	log.Info("starting api server", "addr", addr, "db", dbPath)
	if err := r.Start(addr); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
