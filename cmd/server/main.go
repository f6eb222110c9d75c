package main

import (
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/darainlabs/neuroscan/internal/config"
	"github.com/darainlabs/neuroscan/internal/handlers"
	"github.com/darainlabs/neuroscan/internal/model"
	"github.com/darainlabs/neuroscan/internal/storage"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func main() {
	cfg := config.Load()
	if err := cfg.InitDirs(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "service.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))

	db, err := storage.Open(cfg.DatabaseURL, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	log.Printf("Database ready (%s), tables migrated", cfg.DatabaseURL)

	// The model is loaded lazily on the first prediction request.
	registry := model.NewRegistry(cfg.ModelPath, cfg.MetadataPath, model.DefaultClasses)
	defer registry.Close()

	store := storage.NewStore(cfg.UploadDir)
	repo := storage.NewRepo(db)
	handler := handlers.NewHandler(registry, store, repo, cfg.MaxUploadBytes)

	http.HandleFunc("/health", enableCORS(handler.Health))
	http.HandleFunc("/predict", enableCORS(handler.Predict))
	http.HandleFunc("/predict/mri/", enableCORS(handler.GetMRI))
	http.HandleFunc("/predict/heat/", enableCORS(handler.GetHeatmap))
	http.HandleFunc("/predict/report/", enableCORS(handler.GetReport))

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Model path: %s", cfg.ModelPath)
	log.Println("Endpoints:")
	log.Println("  GET  /health                  - Health check")
	log.Println("  POST /predict                 - MRI upload + prediction")
	log.Println("  GET  /predict/mri/<file>      - Stored scan")
	log.Println("  GET  /predict/heat/<file>     - Saliency overlay")
	log.Println("  GET  /predict/report/<file>   - PDF report")

	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
